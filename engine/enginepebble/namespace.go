package enginepebble

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/swiss"

	"github.com/yinqiwen/ardb/engine"
)

// namespaceHandle wraps one namespace's *pebble.DB with a refcount, so a
// handle removed from the namespace map by DropNameSpace stays alive for
// any iterator or in-flight operation still holding a reference — the
// "shared column-family handle" discipline spec.md §9 calls out, adapted
// to pebble's one-store-per-namespace mapping.
type namespaceHandle struct {
	name string
	db   *pebble.DB
	dir  string

	refs int32
	// dropped is set once DropNameSpace has removed this handle from the
	// live map; the backend Close+RemoveAll happens when refs reaches 0.
	dropped atomic.Bool
}

func (h *namespaceHandle) acquire() { atomic.AddInt32(&h.refs, 1) }

// release decrements the refcount and, if this handle has been dropped and
// this was the last reference, closes the pebble store and removes its
// directory from disk.
func (h *namespaceHandle) release() error {
	if atomic.AddInt32(&h.refs, -1) > 0 {
		return nil
	}
	if !h.dropped.Load() {
		return nil
	}
	return h.destroy()
}

func (h *namespaceHandle) destroy() error {
	if err := h.db.Close(); err != nil {
		return errors.Wrapf(err, "enginepebble: close namespace %q", h.name)
	}
	return os.RemoveAll(h.dir)
}

// namespaceTable is the in-memory namespace → handle map, guarded by a
// single reader/writer lock: readers (every get/put/iter) take RLock,
// creation/drop takes the exclusive Lock (spec.md §4.5/§5).
type namespaceTable struct {
	mu   sync.RWMutex
	rootDir string
	opts    Options
	handles *swiss.Map[string, *namespaceHandle]
}

func newNamespaceTable(rootDir string, opts Options) *namespaceTable {
	return &namespaceTable{
		rootDir: rootDir,
		opts:    opts,
		handles: swiss.New[string, *namespaceHandle](16),
	}
}

// get returns the handle for ns, acquiring a reference on it. If ns is
// unknown and createIfMissing is true, a new pebble store is opened for
// it; otherwise engine.ErrNamespaceNotFound is returned.
func (t *namespaceTable) get(ns string, createIfMissing bool) (*namespaceHandle, error) {
	t.mu.RLock()
	h, ok := t.handles.Get(ns)
	if ok {
		h.acquire()
		t.mu.RUnlock()
		return h, nil
	}
	t.mu.RUnlock()

	if !createIfMissing {
		return nil, errors.Mark(errors.Newf("enginepebble: namespace %q not found", ns), errNamespaceNotFound)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Re-check under the exclusive lock: another writer may have created
	// it between our RUnlock and this Lock.
	if h, ok := t.handles.Get(ns); ok {
		h.acquire()
		return h, nil
	}
	h, err := t.open(ns)
	if err != nil {
		return nil, err
	}
	h.acquire() // the table's own reference, released by drop
	h.acquire() // the caller's reference
	t.handles.Put(ns, h)
	return h, nil
}

func (t *namespaceTable) open(ns string) (*namespaceHandle, error) {
	dir := filepath.Join(t.rootDir, ns)
	db, err := pebble.Open(dir, t.opts.toPebbleOptions())
	if err != nil {
		return nil, errors.Wrapf(err, "enginepebble: open namespace %q", ns)
	}
	return &namespaceHandle{name: ns, db: db, dir: dir}, nil
}

// list returns every known namespace name.
func (t *namespaceTable) list() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, t.handles.Len())
	t.handles.All(func(name string, _ *namespaceHandle) bool {
		names = append(names, name)
		return true
	})
	return names
}

// drop removes ns from the map and releases the table's own reference.
// Live iterators/operations holding a reference keep the backend alive
// until they finish, per release's dropped-refcount-zero check.
func (t *namespaceTable) drop(ns string) error {
	t.mu.Lock()
	h, ok := t.handles.Get(ns)
	if !ok {
		t.mu.Unlock()
		return errors.Mark(errors.Newf("enginepebble: namespace %q not found", ns), errNamespaceNotFound)
	}
	t.handles.Delete(ns)
	t.mu.Unlock()

	h.dropped.Store(true)
	return h.release()
}

// closeAll closes every namespace's store; used by Engine.Close.
func (t *namespaceTable) closeAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	t.handles.All(func(_ string, h *namespaceHandle) bool {
		if err := h.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

var errNamespaceNotFound = engine.ErrNamespaceNotFound
