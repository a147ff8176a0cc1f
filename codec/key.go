package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/yinqiwen/ardb/data"
)

// KeyType tags the kind of record a KeyObject addresses. Its values also
// double as the type tag byte for ValueObject (§4.3: "type (same enum space
// as KeyObject)").
type KeyType uint8

const (
	KeyMeta KeyType = iota + 1
	KeyString
	KeyHash
	KeyList
	KeySet
	KeyZSet
	KeyHashField
	KeyListElement
	KeySetMember
	KeyZSetScore
	KeyZSetSort
	// KeyMerge is a pseudo-type used only for ValueObject, marking a
	// deferred merge operand rather than a stored record.
	KeyMerge
)

// elementArity is the number of KeyObject.Elements a given type mandates.
// KeyMerge has no KeyObject arity: it never addresses a key.
var elementArity = map[KeyType]int{
	KeyMeta:        0,
	KeyString:      0,
	KeyHash:        0,
	KeyList:        0,
	KeySet:         0,
	KeyZSet:        0,
	KeyHashField:   1,
	KeyListElement: 1,
	KeySetMember:   1,
	KeyZSetScore:   1,
	KeyZSetSort:    2,
}

// ElementType returns the element-record type for a collection's metadata
// type, e.g. ElementType(KeyHash) == KeyHashField. It panics for types with
// no corresponding element type, mirroring the original element_type()
// helper's hard failure on an unexpected input.
func ElementType(t KeyType) KeyType {
	switch t {
	case KeyHash:
		return KeyHashField
	case KeyList:
		return KeyListElement
	case KeySet:
		return KeySetMember
	case KeyZSet:
		return KeyZSetScore
	default:
		panic(fmt.Sprintf("codec: no element type for key type %d", t))
	}
}

// KeyObject is the decoded form of a logical key: a namespace, a user key,
// a type tag, and zero or more sub-elements whose count is fixed by type.
//
// KeyObject is short-lived and not safe for concurrent mutation; when
// produced by iterator decoding it may borrow directly from the iterator's
// buffer (see CloneStringPart).
type KeyObject struct {
	NS       data.Value
	Key      data.Value
	Type     KeyType
	Elements []data.Value
}

// NewKeyObject builds a KeyObject and resizes Elements to Type's mandated
// arity, matching the constructor-time behavior of the original KeyObject.
func NewKeyObject(ns, key data.Value, t KeyType) KeyObject {
	k := KeyObject{NS: ns, Key: key}
	k.SetType(t)
	return k
}

// SetType assigns Type and resizes Elements to the arity Type mandates,
// truncating or zero-extending as needed.
func (k *KeyObject) SetType(t KeyType) {
	k.Type = t
	n := elementArity[t]
	if len(k.Elements) == n {
		return
	}
	if len(k.Elements) > n {
		k.Elements = k.Elements[:n]
		return
	}
	grown := make([]data.Value, n)
	copy(grown, k.Elements)
	k.Elements = grown
}

// IsValid reports whether Type is a recognized KeyObject type (KeyMerge is
// excluded: it only ever appears on a ValueObject) and Elements has exactly
// the arity Type mandates.
func (k *KeyObject) IsValid() bool {
	n, ok := elementArity[k.Type]
	if !ok {
		return false
	}
	return len(k.Elements) == n
}

// Compare orders k against other by (NS, Key, Type, len(Elements),
// Elements...) in that order. Equal namespaces and user keys sort by Type,
// so a KEY_META record sorts adjacent to all of that user key's element
// records — the invariant a single bounded scan over a logical key relies
// on.
func (k *KeyObject) Compare(other *KeyObject) int {
	if c := k.NS.Compare(&other.NS, false); c != 0 {
		return c
	}
	if c := k.Key.Compare(&other.Key, false); c != 0 {
		return c
	}
	if k.Type != other.Type {
		if k.Type < other.Type {
			return -1
		}
		return 1
	}
	if len(k.Elements) != len(other.Elements) {
		if len(k.Elements) < len(other.Elements) {
			return -1
		}
		return 1
	}
	for i := range k.Elements {
		if c := k.Elements[i].Compare(&other.Elements[i], false); c != 0 {
			return c
		}
	}
	return 0
}

// CloneStringPart upgrades every borrowed string part of k (NS, Key, and
// each element) to an owned copy, so k safely outlives the buffer it may
// have been decoded from.
func (k *KeyObject) CloneStringPart() {
	k.NS.ToMutableStr()
	k.Key.ToMutableStr()
	for i := range k.Elements {
		k.Elements[i].ToMutableStr()
	}
}

// EncodePrefix appends the varuint32(key_len) ∥ key_bytes ∥ type_u8 portion
// of the wire format to buf — the prefix used to bound range scans over a
// user key (optionally further narrowed by also encoding leading elements,
// which callers do by encoding a KeyObject with only those elements set and
// calling Encode, then trimming the trailing elements_count byte off by
// hand when they want a pure prefix — EncodePrefix itself never touches
// Elements).
func (k *KeyObject) EncodePrefix(buf []byte) []byte {
	kb := k.Key.Bytes()
	var tmp [binary.MaxVarintLen32]byte
	n := binary.PutUvarint(tmp[:], uint64(len(kb)))
	buf = append(buf, tmp[:n]...)
	buf = append(buf, kb...)
	buf = append(buf, byte(k.Type))
	return buf
}

// Encode appends k's full wire form (prefix, elements_count, elements...)
// to buf. If verify is true and k is not IsValid, Encode returns buf
// unchanged and ok=false.
func (k *KeyObject) Encode(buf []byte, verify bool) ([]byte, bool) {
	if verify && !k.IsValid() {
		return buf, false
	}
	buf = k.EncodePrefix(buf)
	buf = append(buf, byte(len(k.Elements)))
	for i := range k.Elements {
		buf = k.Elements[i].Encode(buf)
	}
	return buf, true
}

// elementCountResult distinguishes a well-formed element count (even zero)
// from the two ways decoding the count byte can fail. This replaces the
// original DecodeElementLength, which conflated "0 elements" with "short
// read" by returning 0 for both.
type elementCountResult uint8

const (
	elementCountOK elementCountResult = iota
	elementCountShortRead
	elementCountOutOfRange
)

// decodeElementCount reads the elements_count byte from the front of buf.
// A count outside [0, 127] is rejected per the wire format's contract.
func decodeElementCount(buf []byte) (n int, rest []byte, result elementCountResult) {
	if len(buf) == 0 {
		return 0, buf, elementCountShortRead
	}
	c := buf[0]
	if c > 127 {
		return 0, buf[1:], elementCountOutOfRange
	}
	return int(c), buf[1:], elementCountOK
}

// DecodeKey reads the varuint32(key_len) ∥ key_bytes portion from the
// front of buf, returning the remaining bytes and whether the read
// succeeded.
func DecodeKey(buf []byte, cloneStr bool) (key data.Value, rest []byte, ok bool) {
	klen, n := binary.Uvarint(buf)
	if n <= 0 {
		return data.Value{}, buf, false
	}
	rest = buf[n:]
	if uint64(len(rest)) < klen {
		return data.Value{}, buf, false
	}
	kb := rest[:klen]
	if cloneStr {
		owned := make([]byte, klen)
		copy(owned, kb)
		kb = owned
	}
	return data.String(kb, false), rest[klen:], true
}

// DecodeType reads the type_u8 byte from the front of buf.
func DecodeType(buf []byte) (t KeyType, rest []byte, ok bool) {
	if len(buf) == 0 {
		return 0, buf, false
	}
	return KeyType(buf[0]), buf[1:], true
}

// DecodePrefix reads the varuint32(key_len) ∥ key_bytes ∥ type_u8 prefix
// into a KeyObject (NS is left zero — callers set it from the namespace
// they scanned, since NS is never encoded).
func DecodePrefix(buf []byte, cloneStr bool) (k KeyObject, rest []byte, ok bool) {
	key, rest, ok := DecodeKey(buf, cloneStr)
	if !ok {
		return KeyObject{}, buf, false
	}
	t, rest2, ok := DecodeType(rest)
	if !ok {
		return KeyObject{}, buf, false
	}
	return KeyObject{Key: key, Type: t}, rest2, true
}

// DecodeKeyObject reads a full encoded key (prefix, elements_count,
// elements) from buf. A malformed buffer (short read, an elements_count
// outside [0, 127], or fewer encoded elements than the count announces)
// yields ok=false; the caller must discard the partially-built object.
// The type byte is returned as read: an unknown type, or an element count
// that differs from the type's arity, still decodes with ok=true (IsValid
// on the result reports both). Bytes after the last element are ignored.
func DecodeKeyObject(buf []byte, cloneStr bool) (k KeyObject, ok bool) {
	pfx, rest, ok := DecodePrefix(buf, cloneStr)
	if !ok {
		return KeyObject{}, false
	}
	n, rest, countResult := decodeElementCount(rest)
	if countResult != elementCountOK {
		return KeyObject{}, false
	}
	if n > 0 {
		pfx.Elements = make([]data.Value, n)
		for i := 0; i < n; i++ {
			var v data.Value
			var consumed int
			v, consumed, ok = data.Decode(rest, cloneStr)
			if !ok {
				return KeyObject{}, false
			}
			pfx.Elements[i] = v
			rest = rest[consumed:]
		}
	}
	return pfx, true
}
