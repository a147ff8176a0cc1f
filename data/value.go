package data

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
)

// Kind identifies which variant a Value holds. The numeric value of each
// Kind is also its wire tag byte (§6 of the design doc: "first byte encodes
// the variant").
type Kind uint8

const (
	KindNil Kind = iota
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// maxStringLen bounds string payload length per spec (2^32-1 bytes); in
// practice the process heap makes this moot, but the wire format's length
// prefix is a varuint32 and decode must reject anything that can't fit.
const maxStringLen = 1<<32 - 1

// Value is the tagged scalar primitive. The zero Value is KindNil.
type Value struct {
	kind  Kind
	i     int64
	f     float64
	s     []byte
	owned bool
}

// Nil returns the nil primitive.
func Nil() Value { return Value{} }

// Int64 constructs an integer primitive.
func Int64(v int64) Value { return Value{kind: KindInt, i: v} }

// Float64 constructs a float primitive.
func Float64(v float64) Value { return Value{kind: KindFloat, f: v} }

// String constructs a string primitive. If clone is false, b is borrowed:
// the caller must guarantee it outlives the Value, or call ToMutableStr.
func String(b []byte, clone bool) Value {
	v := Value{kind: KindString}
	v.SetString(b, clone)
	return v
}

// Kind reports the variant held.
func (v *Value) Kind() Kind { return v.kind }

// IsNil reports whether v holds no value.
func (v *Value) IsNil() bool { return v.kind == KindNil }

// IsString reports whether v holds a string.
func (v *Value) IsString() bool { return v.kind == KindString }

// IsNumeric reports whether v holds an int or a float.
func (v *Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// Clear resets v to nil, releasing any owned string backing.
func (v *Value) Clear() { *v = Value{} }

// SetInt64 overwrites v with an integer primitive.
func (v *Value) SetInt64(n int64) { *v = Value{kind: KindInt, i: n} }

// SetFloat64 overwrites v with a float primitive.
func (v *Value) SetFloat64(f float64) { *v = Value{kind: KindFloat, f: f} }

// SetString overwrites v with a string primitive. When clone is false, b is
// borrowed as-is (zero-copy); when true, b is copied so v owns its bytes.
func (v *Value) SetString(b []byte, clone bool) {
	if clone {
		owned := make([]byte, len(b))
		copy(owned, b)
		*v = Value{kind: KindString, s: owned, owned: true}
		return
	}
	*v = Value{kind: KindString, s: b, owned: false}
}

// ToMutableStr promotes a borrowed string to an owned copy in place. It is a
// no-op for non-string kinds and for strings that already own their bytes.
// This is the escape hatch mentioned in the data model: call it before the
// decode buffer a Value was carved out of is reused or discarded.
func (v *Value) ToMutableStr() {
	if v.kind != KindString || v.owned {
		return
	}
	owned := make([]byte, len(v.s))
	copy(owned, v.s)
	v.s = owned
	v.owned = true
}

// Int returns the integer payload; valid only when Kind() == KindInt.
func (v *Value) Int() int64 { return v.i }

// Float returns the float payload; valid only when Kind() == KindFloat.
func (v *Value) Float() float64 { return v.f }

// Bytes returns the string payload (borrowed or owned, whichever backs it);
// valid only when Kind() == KindString.
func (v *Value) Bytes() []byte { return v.s }

// StringLength returns len(Bytes()) for string kinds, 0 otherwise — used by
// the key codec to size the outer varuint32 key-length prefix.
func (v *Value) StringLength() int {
	if v.kind != KindString {
		return 0
	}
	return len(v.s)
}

// AsFloat64 returns the value's numeric interpretation, used when collapsing
// int/float onto a common numeric axis for cross-kind comparison.
func (v *Value) AsFloat64() float64 {
	switch v.kind {
	case KindInt:
		return float64(v.i)
	case KindFloat:
		return v.f
	default:
		return 0
	}
}

// Clone returns a deep, fully-owned copy of v.
func (v Value) Clone() Value {
	v.ToMutableStr()
	return v
}

// crossKindRank is the order in which kinds are compared against each other
// when a comparison does not require exact kind match: nil < numeric <
// string (spec.md §3: "nil < integers < floats < strings", collapsed since
// int/float share a numeric axis).
func crossKindRank(k Kind) int {
	switch k {
	case KindNil:
		return 0
	case KindInt, KindFloat:
		return 1
	case KindString:
		return 2
	default:
		return 3
	}
}

// Compare orders v against other. When byKind is true, the two values must
// hold the same Kind (mismatched kinds compare by crossKindRank as a
// fallback, since there is no payload comparison to make); when false,
// numeric kinds compare across the int/float boundary by value, and any
// float that exactly equals an integer's value compares equal to it.
func (v *Value) Compare(other *Value, byKind bool) int {
	if byKind && v.kind == other.kind {
		switch v.kind {
		case KindNil:
			return 0
		case KindInt:
			return cmpInt64(v.i, other.i)
		case KindFloat:
			return cmpFloat64(v.f, other.f)
		case KindString:
			return bytes.Compare(v.s, other.s)
		}
	}
	vr, or := crossKindRank(v.kind), crossKindRank(other.kind)
	if vr != or {
		if vr < or {
			return -1
		}
		return 1
	}
	switch vr {
	case 0:
		return 0
	case 1:
		return cmpFloat64(v.AsFloat64(), other.AsFloat64())
	default:
		return bytes.Compare(v.s, other.s)
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// orderedFloatBits maps a float64's bit pattern onto a uint64 whose
// unsigned numeric order matches the float's signed order: positive numbers
// flip the sign bit, negative numbers flip every bit. This is what makes
// the big-endian 8-byte encoding below safe to compare as raw bytes, which
// is the whole point of KEY_ZSET_SORT's score prefix (spec.md §9: "it is
// not automatic from IEEE-754 bit patterns").
func orderedFloatBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits ^ (1 << 63)
}

func floatFromOrderedBits(u uint64) float64 {
	if u&(1<<63) != 0 {
		u ^= 1 << 63
	} else {
		u = ^u
	}
	return math.Float64frombits(u)
}

// Encode appends v's self-delimiting wire form to buf and returns the
// extended slice.
func (v *Value) Encode(buf []byte) []byte {
	switch v.kind {
	case KindNil:
		return append(buf, byte(KindNil))
	case KindInt:
		buf = append(buf, byte(KindInt))
		var tmp [binary.MaxVarintLen64]byte
		n := binary.PutVarint(tmp[:], v.i)
		return append(buf, tmp[:n]...)
	case KindFloat:
		buf = append(buf, byte(KindFloat))
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], orderedFloatBits(v.f))
		return append(buf, tmp[:]...)
	case KindString:
		buf = append(buf, byte(KindString))
		var tmp [binary.MaxVarintLen32]byte
		n := binary.PutUvarint(tmp[:], uint64(len(v.s)))
		buf = append(buf, tmp[:n]...)
		return append(buf, v.s...)
	default:
		return append(buf, byte(KindNil))
	}
}

// Decode reads one primitive from the front of buf. When cloneStr is false
// and the decoded variant is a string, the returned Value borrows directly
// into buf; the caller must not mutate or discard buf while the Value is
// live unless it calls ToMutableStr first. Decode reports the number of
// bytes consumed and whether the buffer held a well-formed primitive.
func Decode(buf []byte, cloneStr bool) (Value, int, bool) {
	if len(buf) == 0 {
		return Value{}, 0, false
	}
	kind := Kind(buf[0])
	rest := buf[1:]
	switch kind {
	case KindNil:
		return Value{}, 1, true
	case KindInt:
		n, nn := binary.Varint(rest)
		if nn <= 0 {
			return Value{}, 0, false
		}
		return Value{kind: KindInt, i: n}, 1 + nn, true
	case KindFloat:
		if len(rest) < 8 {
			return Value{}, 0, false
		}
		f := floatFromOrderedBits(binary.BigEndian.Uint64(rest[:8]))
		return Value{kind: KindFloat, f: f}, 1 + 8, true
	case KindString:
		slen, nn := binary.Uvarint(rest)
		if nn <= 0 || slen > maxStringLen {
			return Value{}, 0, false
		}
		rest = rest[nn:]
		if uint64(len(rest)) < slen {
			return Value{}, 0, false
		}
		sbytes := rest[:slen]
		if cloneStr {
			owned := make([]byte, slen)
			copy(owned, sbytes)
			sbytes = owned
		}
		return Value{kind: KindString, s: sbytes, owned: cloneStr}, 1 + nn + int(slen), true
	default:
		return Value{}, 0, false
	}
}

// ErrInvalidKind is returned by helpers that require a specific Kind and
// were handed something else.
var ErrInvalidKind = errors.New("data: invalid value kind for operation")
