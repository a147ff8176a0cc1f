package enginepebble

import (
	"bytes"

	"github.com/cockroachdb/pebble"
	"github.com/yinqiwen/ardb/codec"
)

// compareEncodedKeys decodes both sides as codec.KeyObject and delegates to
// KeyObject.Compare, so pebble's on-disk key order agrees with it exactly.
// Raw bytes.Compare does not: the wire format's varuint32(key_len) length
// prefix means two keys of different lengths don't sort the same way
// raw as they do decoded — e.g. "b" encodes as [0x01,'b'] and "aa" encodes
// as [0x02,'a','a'], so raw bytes sort "b" < "aa" while Compare (a pure
// lexicographic compare of the key bytes themselves) sorts "aa" < "b". A
// decode failure falls back to a raw comparison rather than panicking;
// pebble never hands the comparator anything ardb itself didn't encode.
func compareEncodedKeys(a, b []byte) int {
	ka, okA := codec.DecodeKeyObject(a, false)
	kb, okB := codec.DecodeKeyObject(b, false)
	if !okA || !okB {
		return bytes.Compare(a, b)
	}
	return ka.Compare(&kb)
}

// keyComparer installs compareEncodedKeys as every namespace's pebble key
// order, the way the original engine registers a custom RocksDB comparator
// over this same encoding so the store's order and KeyObject.Compare's
// order are the same relation.
var keyComparer = &pebble.Comparer{
	Name:    "ardb.key-comparer.v1",
	Compare: compareEncodedKeys,
	Equal:   func(a, b []byte) bool { return compareEncodedKeys(a, b) == 0 },

	// Always returning 0 is an explicitly valid AbbreviatedKey: its only
	// effect is that pebble falls back to Compare instead of a cheap
	// integer comparison, which every comparison here already costs.
	AbbreviatedKey: func(key []byte) uint64 { return 0 },
	FormatKey:      pebble.DefaultComparer.FormatKey,

	// Separator/Successor only have to return some key between (or at/
	// after) the two bounds passed in; returning a unchanged is always
	// valid, just non-shortening. A byte-truncated prefix of an encoded
	// key generally doesn't decode to a valid KeyObject at all, so the
	// usual length-prefixed-bytes shortening tricks don't apply here.
	Separator: func(dst, a, b []byte) []byte { return append(dst, a...) },
	Successor: func(dst, a []byte) []byte { return append(dst, a...) },
	// Split never separates a suffix (every byte belongs to the key), so
	// ImmediateSuccessor is not exercised by any suffix/range-key logic;
	// appending a zero byte keeps it a valid strictly-greater fallback.
	ImmediateSuccessor: func(dst, a []byte) []byte { return append(append(dst, a...), 0x00) },
	Split:              func(key []byte) int { return len(key) },
}
