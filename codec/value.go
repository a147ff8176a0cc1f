package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/yinqiwen/ardb/data"
)

// ValueObject is the decoded form of a stored record: a type tag (sharing
// KeyObject's enum space), an optional merge-op code (meaningful only when
// Type == KeyMerge), and an ordered array of data primitives. For
// collection metadata records, Vals[0] carries a type-specific metadata
// blob (see Meta/MKeyMeta/ListMeta below); Vals[1] and Vals[2] optionally
// carry observed min/max element hints.
type ValueObject struct {
	Type    KeyType
	MergeOp uint16
	Vals    []data.Value
}

// Element returns Vals[idx], or a nil Value if Vals is shorter than idx+1.
// For a KEY_STRING record, Vals[1] is the string's actual payload (Vals[0]
// is reserved for the Meta ttl overlay); for collection metadata records,
// Vals[1]/Vals[2] are the min/max hints accessed via GetMin/GetMax.
func (v *ValueObject) Element(idx int) data.Value {
	if idx >= len(v.Vals) {
		return data.Value{}
	}
	return v.Vals[idx]
}

// SetElement overwrites Vals[idx], growing Vals as needed.
func (v *ValueObject) SetElement(idx int, val data.Value) {
	*v.getElement(idx) = val
}

// getElement returns a pointer to Vals[idx], growing Vals as needed —
// mirroring the original's lazy element-vector growth.
func (v *ValueObject) getElement(idx int) *data.Value {
	if len(v.Vals) <= idx {
		grown := make([]data.Value, idx+1)
		copy(grown, v.Vals)
		v.Vals = grown
	}
	return &v.Vals[idx]
}

// metaReservedSize returns the number of bytes GetMeta reserves in Vals[0]
// for Type, or 0 if Type carries no metadata record.
func metaReservedSize(t KeyType) int {
	switch t {
	case KeyString:
		return metaSize
	case KeyHash, KeySet, KeyZSet:
		return mkeyMetaSize
	case KeyList:
		return listMetaSize
	default:
		return 0
	}
}

// metaBytes returns a pointer to the reserved metadata byte slice in
// Vals[0], allocating and owning it on first access. It panics if Type has
// no metadata record — per the original, accessing Meta on a type that
// doesn't carry one is a programming error, not a recoverable one.
func (v *ValueObject) metaBytes() []byte {
	size := metaReservedSize(v.Type)
	if size == 0 {
		panic(fmt.Sprintf("codec: invalid type %d to get metadata", v.Type))
	}
	el := v.getElement(0)
	if el.IsNil() || len(el.Bytes()) != size {
		el.SetString(make([]byte, size), false)
	} else {
		el.ToMutableStr()
	}
	return el.Bytes()
}

const (
	metaSize     = 8  // Meta: ttl(int64)
	mkeyMetaSize = 16 // MKeyMeta: ttl(int64) size(int64)
	listMetaSize = 32 // ListMeta: ttl(int64) head(int64) tail(int64) size(int64)
)

// Meta is the metadata overlay for a KEY_STRING record: just a TTL.
type Meta struct {
	TTL int64 // unix millis; 0 means no expiry
}

func (m Meta) encodeInto(b []byte) {
	binary.BigEndian.PutUint64(b[0:8], uint64(m.TTL))
}

func decodeMetaFixed(b []byte) Meta {
	return Meta{TTL: int64(binary.BigEndian.Uint64(b[0:8]))}
}

// MKeyMeta is the metadata overlay for hash/set/zset metadata records: a
// TTL plus the collection's element count.
type MKeyMeta struct {
	Meta
	Size int64
}

func (m MKeyMeta) encodeInto(b []byte) {
	m.Meta.encodeInto(b)
	binary.BigEndian.PutUint64(b[8:16], uint64(m.Size))
}

func decodeMKeyMetaFixed(b []byte) MKeyMeta {
	return MKeyMeta{Meta: decodeMetaFixed(b), Size: int64(binary.BigEndian.Uint64(b[8:16]))}
}

// HashMeta, SetMeta, ZSetMeta share MKeyMeta's layout.
type (
	HashMeta = MKeyMeta
	SetMeta  = MKeyMeta
	ZSetMeta = MKeyMeta
)

// ListMeta is the metadata overlay for a list's metadata record: a TTL,
// the list's element count, and the head/tail indices used to support
// O(1) push/pop at either end without renumbering every element.
type ListMeta struct {
	Meta
	Head int64
	Tail int64
	Size int64
}

func (m ListMeta) encodeInto(b []byte) {
	m.Meta.encodeInto(b)
	binary.BigEndian.PutUint64(b[8:16], uint64(m.Head))
	binary.BigEndian.PutUint64(b[16:24], uint64(m.Tail))
	binary.BigEndian.PutUint64(b[24:32], uint64(m.Size))
}

func decodeListMetaFixed(b []byte) ListMeta {
	return ListMeta{
		Meta: decodeMetaFixed(b),
		Head: int64(binary.BigEndian.Uint64(b[8:16])),
		Tail: int64(binary.BigEndian.Uint64(b[16:24])),
		Size: int64(binary.BigEndian.Uint64(b[24:32])),
	}
}

// GetMeta reinterprets Vals[0]'s backing bytes as a Meta, reserving space
// on first access. Panics (a programming error, per spec) if Type carries
// no metadata record at all.
func (v *ValueObject) GetMeta() Meta {
	b := v.metaBytes()
	return decodeMetaFixed(b)
}

// SetMeta overwrites the TTL field of Vals[0]'s metadata record, preserving
// any trailing fields (size, head/tail) already stored there.
func (v *ValueObject) SetMeta(m Meta) {
	b := v.metaBytes()
	m.encodeInto(b)
}

// GetMKeyMeta reinterprets Vals[0] as an MKeyMeta; Type must be
// KeyHash/KeySet/KeyZSet.
func (v *ValueObject) GetMKeyMeta() MKeyMeta {
	return decodeMKeyMetaFixed(v.metaBytes())
}

// SetMKeyMeta overwrites Vals[0] with m; Type must be
// KeyHash/KeySet/KeyZSet.
func (v *ValueObject) SetMKeyMeta(m MKeyMeta) {
	m.encodeInto(v.metaBytes())
}

// GetListMeta reinterprets Vals[0] as a ListMeta; Type must be KeyList.
func (v *ValueObject) GetListMeta() ListMeta {
	return decodeListMetaFixed(v.metaBytes())
}

// SetListMeta overwrites Vals[0] with m; Type must be KeyList.
func (v *ValueObject) SetListMeta(m ListMeta) {
	m.encodeInto(v.metaBytes())
}

// GetTTL returns the metadata record's TTL field.
func (v *ValueObject) GetTTL() int64 { return v.GetMeta().TTL }

// GetTTLSafe returns the metadata record's TTL field, or 0 if Type carries
// no metadata at all (e.g. an element record) — used by callers like the
// read-time expiry check that see every record type, not just metadata
// records, and must not panic on the common case.
func (v *ValueObject) GetTTLSafe() int64 {
	if metaReservedSize(v.Type) == 0 {
		return 0
	}
	return v.GetTTL()
}

// SetTTL overwrites the metadata record's TTL field.
func (v *ValueObject) SetTTL(ttl int64) {
	b := v.metaBytes()
	binary.BigEndian.PutUint64(b[0:8], uint64(ttl))
}

// GetMin returns the observed-minimum hint (Vals[1]), or a nil Value if
// never set.
func (v *ValueObject) GetMin() data.Value {
	if len(v.Vals) < 2 {
		return data.Value{}
	}
	return v.Vals[1]
}

// GetMax returns the observed-maximum hint (Vals[2]), or a nil Value if
// never set.
func (v *ValueObject) GetMax() data.Value {
	if len(v.Vals) < 3 {
		return data.Value{}
	}
	return v.Vals[2]
}

// ClearMinMaxData clears both min/max hints.
func (v *ValueObject) ClearMinMaxData() {
	if len(v.Vals) >= 2 {
		v.Vals[1] = data.Value{}
	}
	if len(v.Vals) >= 3 {
		v.Vals[2] = data.Value{}
	}
}

func (v *ValueObject) ensureMinMaxSlots() bool {
	if len(v.Vals) >= 3 {
		return false
	}
	grown := make([]data.Value, 3)
	copy(grown, v.Vals)
	v.Vals = grown
	return true
}

// SetMinData updates the observed-minimum hint (Vals[1]) to v if overwrite
// is set, the slot is nil, or v sorts lower than the current minimum. It
// reports whether the slot was changed (property test #7: "Min/Max
// idempotence").
func (v *ValueObject) SetMinData(val data.Value, overwrite bool) bool {
	replaced := v.ensureMinMaxSlots()
	cur := v.Vals[1]
	if overwrite || cur.IsNil() || cur.Compare(&val, false) > 0 {
		v.Vals[1] = val
		replaced = true
	}
	return replaced
}

// SetMaxData updates the observed-maximum hint (Vals[2]) to v if overwrite
// is set, the slot is nil, or v sorts higher than the current maximum.
func (v *ValueObject) SetMaxData(val data.Value, overwrite bool) bool {
	replaced := v.ensureMinMaxSlots()
	cur := v.Vals[2]
	if overwrite || cur.IsNil() || cur.Compare(&val, false) < 0 {
		v.Vals[2] = val
		replaced = true
	}
	return replaced
}

// SetMinMaxData updates both hints from a single observed value val,
// growing Vals to length 3 on first use.
func (v *ValueObject) SetMinMaxData(val data.Value) bool {
	replaced := v.ensureMinMaxSlots()
	min, max := v.Vals[1], v.Vals[2]
	if min.IsNil() && max.IsNil() {
		v.Vals[1] = val
		v.Vals[2] = val
		return true
	}
	if min.IsNil() || min.Compare(&val, false) > 0 {
		v.Vals[1] = val
		replaced = true
	}
	if max.Compare(&val, false) < 0 {
		v.Vals[2] = val
		replaced = true
	}
	return replaced
}

// Encode appends v's wire form to buf. A zero-value ValueObject (Type == 0)
// encodes to nothing, matching the "empty payload decodes to type==0"
// sentinel used for not-found reads.
func (v *ValueObject) Encode(buf []byte) []byte {
	if v.Type == 0 {
		return buf
	}
	buf = append(buf, byte(v.Type))
	if v.Type == KeyMerge {
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], v.MergeOp)
		buf = append(buf, tmp[:]...)
	}
	buf = append(buf, byte(len(v.Vals)))
	for i := range v.Vals {
		buf = v.Vals[i].Encode(buf)
	}
	return buf
}

// DecodeValueObject reads a full ValueObject from buf. An empty buf decodes
// to a ValueObject with Type == 0 (the not-found sentinel) and ok == true.
func DecodeValueObject(buf []byte, cloneStr bool) (v ValueObject, ok bool) {
	if len(buf) == 0 {
		return ValueObject{}, true
	}
	t := KeyType(buf[0])
	rest := buf[1:]
	var mergeOp uint16
	if t == KeyMerge {
		if len(rest) < 2 {
			return ValueObject{}, false
		}
		mergeOp = binary.BigEndian.Uint16(rest[:2])
		rest = rest[2:]
	}
	if len(rest) == 0 {
		return ValueObject{}, false
	}
	n := int(rest[0])
	rest = rest[1:]
	vals := make([]data.Value, 0, n)
	for i := 0; i < n; i++ {
		val, consumed, decOK := data.Decode(rest, cloneStr)
		if !decOK {
			return ValueObject{}, false
		}
		vals = append(vals, val)
		rest = rest[consumed:]
	}
	return ValueObject{Type: t, MergeOp: mergeOp, Vals: vals}, true
}

// DecodeValueMeta is the fast path used for TTL lookups and existence
// checks: it reads only the type tag, merge-op (if any), and Vals[0],
// skipping the remaining values entirely.
func DecodeValueMeta(buf []byte, cloneStr bool) (v ValueObject, ok bool) {
	if len(buf) == 0 {
		return ValueObject{}, true
	}
	t := KeyType(buf[0])
	rest := buf[1:]
	var mergeOp uint16
	if t == KeyMerge {
		if len(rest) < 2 {
			return ValueObject{}, false
		}
		mergeOp = binary.BigEndian.Uint16(rest[:2])
		rest = rest[2:]
	}
	if len(rest) == 0 {
		return ValueObject{}, false
	}
	n := int(rest[0])
	rest = rest[1:]
	if n == 0 {
		// A valid "no values" record, distinct from a decode error (spec's
		// second Open Question resolution).
		return ValueObject{Type: t, MergeOp: mergeOp}, true
	}
	val, _, decOK := data.Decode(rest, cloneStr)
	if !decOK {
		return ValueObject{}, false
	}
	return ValueObject{Type: t, MergeOp: mergeOp, Vals: []data.Value{val}}, true
}

// EncodeMergeOperation appends a ValueObject-shaped merge operand (Type ==
// KeyMerge, the given op code, and args as its values) to buf.
func EncodeMergeOperation(buf []byte, op uint16, args []data.Value) []byte {
	v := ValueObject{Type: KeyMerge, MergeOp: op, Vals: args}
	return v.Encode(buf)
}
