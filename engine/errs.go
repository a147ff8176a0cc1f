package engine

import "github.com/cockroachdb/errors"

// Sentinel errors the adapter surfaces to callers. Backend implementations
// should wrap these with errors.Wrap/errors.Mark rather than returning
// unadorned backend errors, so callers can errors.Is against a stable
// taxonomy regardless of which Engine implementation is in use.
var (
	// ErrNamespaceNotFound is returned by PutRaw et al. when a write targets
	// an unknown namespace and the backend is not configured to create one
	// lazily.
	ErrNamespaceNotFound = errors.New("engine: namespace not found")
	// ErrBackend wraps an opaque error from the underlying KV store.
	ErrBackend = errors.New("engine: backend error")
	// ErrInvalidArgument marks a caller-supplied argument that fails a
	// precondition the backend itself does not enforce (e.g. a malformed
	// KeyObject passed to Find).
	ErrInvalidArgument = errors.New("engine: invalid argument")
	// ErrCorruption marks a decode failure reading back a previously
	// written record — a corrupted manifest or a key/value codec mismatch.
	ErrCorruption = errors.New("engine: corruption")
	// ErrUnknownMergeOp names the unknown-merge_op failure at the engine
	// layer. The merge operator (C6) itself reports an unrecognized code as
	// merge.ErrUnknownOp, which is not marked with this sentinel.
	ErrUnknownMergeOp = errors.New("engine: unknown merge operator")
)
