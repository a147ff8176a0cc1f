package engine

import (
	"github.com/yinqiwen/ardb/codec"
	"github.com/yinqiwen/ardb/data"
)

// Options configures Engine.Init. It is deliberately backend-agnostic at
// this layer; enginepebble.Options embeds it and adds pebble-specific
// knobs. The fields carry gopkg.in/yaml.v3 tags; nothing in this module
// reads an options blob, and ardbctl builds its Options from DefaultOptions.
type Options struct {
	CreateIfMissing bool   `yaml:"create_if_missing"`
	CacheSizeMB     int64  `yaml:"cache_size_mb"`
	CompactionStyle string `yaml:"compaction_style"`
	// TTLSweepIntervalMS is how often the active TTL sweeper (C9) wakes to
	// scan for expired metadata records; 0 disables the sweeper.
	TTLSweepIntervalMS int64 `yaml:"ttl_sweep_interval_ms"`
	// TTLSweepBudgetPerTick bounds how many keys a single sweep tick may
	// inspect, via the token bucket in ttl_sweeper.go.
	TTLSweepBudgetPerTick int64 `yaml:"ttl_sweep_budget_per_tick"`
}

// DefaultOptions returns the options ardbctl opens a store with (ardbctl
// then turns CreateIfMissing off).
func DefaultOptions() Options {
	return Options{
		CreateIfMissing:       true,
		CacheSizeMB:           64,
		TTLSweepIntervalMS:    1000,
		TTLSweepBudgetPerTick: 1000,
	}
}

// FeatureSet reports which optional behaviors a backend implementation
// supports, mirroring the original RocksDBEngine::GetFeatureSet.
type FeatureSet struct {
	SupportNamespace     bool
	SupportCompactFilter bool
	SupportTransaction   bool
}

// Iterator is bound to a namespace and to an upper-bound key fencing the
// scan (spec.md §4.5). It is invalidated by any mutating op issued through
// the same Context.
type Iterator interface {
	Valid() bool
	Next()
	Prev()
	Jump(key codec.KeyObject)
	JumpToFirst()
	JumpToLast()
	// Key lazily decodes and caches the current position's key. When
	// cloneStr is false, the returned KeyObject may borrow from the
	// iterator's internal buffer and must not outlive the next Next/Prev.
	Key(cloneStr bool) (codec.KeyObject, error)
	Value(cloneStr bool) (codec.ValueObject, error)
	RawKey() []byte
	RawValue() []byte
	Close() error
}

// Engine is the adapter surface every backend implementation provides —
// the operation table of spec.md §4.5, reproduced exactly.
type Engine interface {
	Init(dir string, opts Options) error
	Close() error

	Put(ctx *Context, key codec.KeyObject, value codec.ValueObject) error
	PutRaw(ctx *Context, ns data.Value, key, value []byte) error
	Get(ctx *Context, key codec.KeyObject) (codec.ValueObject, error)
	MultiGet(ctx *Context, keys []codec.KeyObject) ([]codec.ValueObject, []error)
	Del(ctx *Context, key codec.KeyObject) error
	Merge(ctx *Context, key codec.KeyObject, op uint16, args []data.Value) error
	Exists(ctx *Context, key codec.KeyObject) (bool, error)

	Compact(ctx *Context, start, end codec.KeyObject) error
	Find(ctx *Context, key codec.KeyObject) (Iterator, error)

	ListNameSpaces(ctx *Context) ([]data.Value, error)
	DropNameSpace(ctx *Context, ns data.Value) error
	EstimateKeysNum(ctx *Context, ns data.Value) (int64, error)

	BeginTransaction(ctx *Context) error
	CommitTransaction(ctx *Context) error
	DiscardTransaction(ctx *Context) error

	Stats(ctx *Context) string
	GetFeatureSet() FeatureSet
}
