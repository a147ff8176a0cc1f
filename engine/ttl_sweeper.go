package engine

import (
	"sync"
	"time"

	"github.com/cockroachdb/tokenbucket"
	"github.com/yinqiwen/ardb/codec"
	"github.com/yinqiwen/ardb/data"
)

// sweepableTypes are the record types that can carry a TTL in their
// metadata overlay. KeyMeta itself carries no metadata (codec.metaBytes
// would panic), so it is never scanned here.
var sweepableTypes = map[codec.KeyType]bool{
	codec.KeyString: true,
	codec.KeyHash:   true,
	codec.KeyList:   true,
	codec.KeySet:    true,
	codec.KeyZSet:   true,
}

// TTLSweeper is the active, proactive counterpart to a backend's own TTL
// expiry (C9; for enginepebble, the read-time check in Get/Exists): rather
// than waiting for an expired key to be read, it periodically scans each namespace's metadata records and
// deletes anything past its TTL, throttled by a token bucket so a large
// keyspace doesn't starve foreground traffic. This is new relative to the
// original engine, which only expired keys lazily via the compaction
// filter and on read.
type TTLSweeper struct {
	eng    Engine
	logger Logger
	tb     tokenbucket.TokenBucket

	interval time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool

	// nowFn is overridden in tests; defaults to time.Now().UnixMilli.
	nowFn func() int64
}

// NewTTLSweeper constructs a sweeper from opts. If opts.TTLSweepIntervalMS
// is 0, Start is a no-op — proactive sweeping is disabled and expiry falls
// back entirely to the backend's own handling (for enginepebble, the
// read-time check; it has no compaction filter).
func NewTTLSweeper(eng Engine, opts Options, logger Logger) *TTLSweeper {
	s := &TTLSweeper{
		eng:      eng,
		logger:   logger,
		interval: time.Duration(opts.TTLSweepIntervalMS) * time.Millisecond,
		nowFn:    func() int64 { return time.Now().UnixMilli() },
	}
	budget := opts.TTLSweepBudgetPerTick
	if budget <= 0 {
		budget = 1000
	}
	s.tb.Init(tokenbucket.Rate(budget), tokenbucket.Tokens(budget))
	return s
}

// Start launches the background sweep goroutine. It is a no-op if the
// sweeper is disabled (zero interval) or already running.
func (s *TTLSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.interval <= 0 {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run()
}

// Stop signals the sweep goroutine to exit and waits for it to finish.
func (s *TTLSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()
	<-done
}

func (s *TTLSweeper) run() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

// sweepOnce scans every namespace once, deleting any metadata record whose
// TTL has passed, stopping early for the tick once the token bucket is
// exhausted.
func (s *TTLSweeper) sweepOnce() {
	ctx := NewContext()
	nss, err := s.eng.ListNameSpaces(ctx)
	if err != nil {
		s.logger.Errorf("ttl sweep: list namespaces: %v", err)
		return
	}
	now := s.nowFn()
	for _, ns := range nss {
		if !s.sweepNamespace(ctx, ns, now) {
			return // token bucket exhausted; resume next tick
		}
	}
}

// sweepNamespace walks ns once, start to end. Different user keys' records
// are not grouped by type (only one user key's own records are, per the key
// codec's sort order), so a single unbounded pass checking each record's
// type against sweepableTypes is required — seeking straight to one type
// would only ever see the first user key's block before running off the
// end of that key's records.
func (s *TTLSweeper) sweepNamespace(ctx *Context, ns data.Value, now int64) (keepGoing bool) {
	iter, err := s.eng.Find(ctx, codec.KeyObject{NS: ns})
	if err != nil {
		s.logger.Errorf("ttl sweep: find ns=%v: %v", ns, err)
		return true
	}
	defer iter.Close()

	for iter.Valid() {
		if fulfilled, after := s.tb.TryToFulfill(1); !fulfilled {
			time.Sleep(after)
			return false
		}
		key, err := iter.Key(false)
		if err != nil {
			iter.Next()
			continue
		}
		if sweepableTypes[key.Type] {
			val, err := iter.Value(false)
			if err == nil && val.GetTTL() != 0 && val.GetTTL() < now {
				if delErr := s.eng.Del(ctx, key); delErr != nil {
					s.logger.Errorf("ttl sweep: del: %v", delErr)
				}
			}
		}
		iter.Next()
	}
	return true
}
