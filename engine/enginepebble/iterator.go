package enginepebble

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/yinqiwen/ardb/codec"
)

// iterator implements engine.Iterator over one namespace's *pebble.DB. It
// is bound to an upper-bound prefix fencing the scan (nil means unbounded,
// used by the TTL sweeper's whole-namespace pass); Valid checks the prefix
// at the current position itself and pebble's IterOptions bounds are not
// set, since our "bound" is a prefix-membership test
// (spec.md §4.5: "checks whether the current raw key still has the
// bound's prefix"), not a simple less-than comparison.
type iterator struct {
	handle *namespaceHandle
	it     *pebble.Iterator
	bound  []byte // nil = unbounded
	closed bool

	keyCached bool
	key       codec.KeyObject
	valCached bool
	val       codec.ValueObject
}

// keyOnlyPrefix returns varuint32(len(key)) ∥ key — the fence used to
// bound a scan to every record (any type, any elements) belonging to one
// logical key, which the key codec's sort order (ns, key, type, elements)
// groups contiguously.
func keyOnlyPrefix(k codec.KeyObject) []byte {
	if k.Key.IsNil() {
		return nil
	}
	kb := k.Key.Bytes()
	var tmp [binary.MaxVarintLen32]byte
	n := binary.PutUvarint(tmp[:], uint64(len(kb)))
	buf := append([]byte{}, tmp[:n]...)
	return append(buf, kb...)
}

func newIterator(handle *namespaceHandle, seek codec.KeyObject) (*iterator, error) {
	pit, err := handle.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		handle.release()
		return nil, errors.Wrap(err, "enginepebble: new iterator")
	}
	seekBuf, _ := seek.Encode(nil, false)
	pit.SeekGE(seekBuf)
	return &iterator{handle: handle, it: pit, bound: keyOnlyPrefix(seek)}, nil
}

func (it *iterator) invalidateCache() {
	it.keyCached = false
	it.valCached = false
}

// Valid reports whether the iterator sits at an in-range, in-bound entry.
func (it *iterator) Valid() bool {
	if it.closed || !it.it.Valid() {
		return false
	}
	if it.bound == nil {
		return true
	}
	return bytes.HasPrefix(it.it.Key(), it.bound)
}

func (it *iterator) Next() {
	it.it.Next()
	it.invalidateCache()
}

func (it *iterator) Prev() {
	it.it.Prev()
	it.invalidateCache()
}

func (it *iterator) Jump(key codec.KeyObject) {
	buf, _ := key.Encode(nil, false)
	it.it.SeekGE(buf)
	it.invalidateCache()
}

func (it *iterator) JumpToFirst() {
	if it.bound != nil {
		it.it.SeekGE(it.bound)
	} else {
		it.it.First()
	}
	it.invalidateCache()
}

func (it *iterator) JumpToLast() {
	it.it.Last()
	it.invalidateCache()
}

func (it *iterator) Key(cloneStr bool) (codec.KeyObject, error) {
	if it.keyCached {
		return it.key, nil
	}
	k, ok := codec.DecodeKeyObject(it.it.Key(), cloneStr)
	if !ok {
		return codec.KeyObject{}, errors.Mark(errors.New("enginepebble: corrupt key"), codecDecodeError)
	}
	it.key = k
	it.keyCached = true
	return k, nil
}

func (it *iterator) Value(cloneStr bool) (codec.ValueObject, error) {
	if it.valCached {
		return it.val, nil
	}
	v, ok := codec.DecodeValueObject(it.it.Value(), cloneStr)
	if !ok {
		return codec.ValueObject{}, errors.Mark(errors.New("enginepebble: corrupt value"), codecDecodeError)
	}
	it.val = v
	it.valCached = true
	return v, nil
}

func (it *iterator) RawKey() []byte { return it.it.Key() }

func (it *iterator) RawValue() []byte { return it.it.Value() }

func (it *iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	err := it.it.Close()
	if relErr := it.handle.release(); err == nil {
		err = relErr
	}
	return err
}

var codecDecodeError = errors.New("enginepebble: codec decode error sentinel")
