package enginepebble

import (
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/yinqiwen/ardb/engine"
	"github.com/yinqiwen/ardb/merge"
)

// Options embeds the backend-agnostic engine.Options and adds pebble-
// specific knobs. The fields carry gopkg.in/yaml.v3 tags; ardbctl does not
// read an options blob.
type Options struct {
	engine.Options `yaml:",inline"`

	// BytesPerSync throttles how often pebble issues an fsync while
	// writing a table, trading write latency for flush throughput.
	BytesPerSync int `yaml:"bytes_per_sync"`
	// L0CompactionThreshold is the number of L0 files that triggers a
	// compaction (pebble's L0CompactionFileThreshold).
	L0CompactionThreshold int `yaml:"l0_compaction_threshold"`
}

// DefaultOptions mirrors engine.DefaultOptions with pebble-appropriate
// defaults layered on.
func DefaultOptions() Options {
	return Options{
		Options:               engine.DefaultOptions(),
		BytesPerSync:          512 << 10,
		L0CompactionThreshold: 4,
	}
}

// toPebbleOptions builds a *pebble.Options for a single namespace's store.
// Every namespace shares the same merge operator and comparer (keyComparer,
// so the store's on-disk order agrees with codec.KeyObject.Compare), but
// gets its own Options value since pebble.Open takes ownership of the
// Cache it is handed and we want per-namespace cache accounting.
func (o Options) toPebbleOptions() *pebble.Options {
	popts := &pebble.Options{
		Merger:                    merge.NewMerger(),
		Comparer:                  keyComparer,
		BytesPerSync:              o.BytesPerSync,
		L0CompactionFileThreshold: o.L0CompactionThreshold,
	}
	if o.CacheSizeMB > 0 {
		popts.Cache = pebble.NewCache(o.CacheSizeMB << 20)
	}
	popts.EnsureDefaults()
	for i := range popts.Levels {
		popts.Levels[i].FilterPolicy = bloom.FilterPolicy(10)
	}
	return popts
}
