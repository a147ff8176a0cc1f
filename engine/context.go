package engine

// Context carries per-call, thread-confined adapter state: the nested
// transaction depth, any backend-specific write-batch handle per namespace
// touched so far, and the last error observed. A Context is never shared
// between goroutines (spec.md §5: "not shared between threads").
type Context struct {
	depth    int
	txnState map[string]any
	snapshot any
	err      error
}

// NewContext returns a fresh, non-transactional Context.
func NewContext() *Context {
	return &Context{}
}

// Depth reports the current nested-transaction depth; 0 means no
// transaction is open.
func (c *Context) Depth() int { return c.depth }

// BeginTransaction increments the depth counter and returns the new depth.
// A nested begin is a no-op for batch allocation — only the first begin
// (depth 0 → 1) needs the backend to allocate anything, which callers
// detect by checking the returned depth == 1.
func (c *Context) BeginTransaction() int {
	c.depth++
	return c.depth
}

// EndTransaction decrements the depth counter and returns the depth after
// decrementing. Callers commit the accumulated batch when this reaches 0.
func (c *Context) EndTransaction() int {
	if c.depth > 0 {
		c.depth--
	}
	return c.depth
}

// DiscardTransaction resets the depth to 0 and drops all per-namespace
// batch state without committing it.
func (c *Context) DiscardTransaction() {
	c.depth = 0
	c.txnState = nil
}

// TxnState returns the backend-specific per-namespace transaction handle
// (e.g. a *pebble.Batch) previously stored with SetTxnState, if any.
func (c *Context) TxnState(ns string) (any, bool) {
	if c.txnState == nil {
		return nil, false
	}
	v, ok := c.txnState[ns]
	return v, ok
}

// SetTxnState stores the backend-specific per-namespace transaction handle
// for ns, allocating the underlying map on first use.
func (c *Context) SetTxnState(ns string, v any) {
	if c.txnState == nil {
		c.txnState = make(map[string]any)
	}
	c.txnState[ns] = v
}

// ForEachTxnState calls fn once per namespace with an open batch, in no
// particular order — used by CommitTransaction to flush every touched
// namespace's batch at depth 0.
func (c *Context) ForEachTxnState(fn func(ns string, state any)) {
	for ns, state := range c.txnState {
		fn(ns, state)
	}
}

// Snapshot returns the backend-specific snapshot handle bound to this
// context, if GetSnapshot has been called.
func (c *Context) Snapshot() any { return c.snapshot }

// SetSnapshot binds a backend-specific snapshot handle to this context.
func (c *Context) SetSnapshot(s any) { c.snapshot = s }

// Err returns the last error recorded on this context via SetErr.
func (c *Context) Err() error { return c.err }

// SetErr records err as this context's last error, for callers that thread
// a Context through several calls and check once at the end.
func (c *Context) SetErr(err error) { c.err = err }
