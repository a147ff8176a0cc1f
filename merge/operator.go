package merge

import (
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/yinqiwen/ardb/codec"
	"github.com/yinqiwen/ardb/data"
)

// NewMerger returns the pebble.Merger the engine adapter configures every
// namespace's *pebble.DB with. Its Name is part of the on-disk format
// pebble records in the manifest; changing it would make existing stores
// unopenable, so it is fixed.
func NewMerger() *pebble.Merger {
	return &pebble.Merger{
		Name: "ardb.value-merge-operator",
		Merge: func(key, value []byte) (pebble.ValueMerger, error) {
			seed := append([]byte(nil), value...)
			return &valueMerger{seed: seed}, nil
		},
	}
}

// valueMerger implements pebble.ValueMerger. Get's merge scan calls Merge
// with the newest record for a key and then MergeOlder progressively for
// each older one found, stopping once it hits a full Set (the base) or runs
// off the end of the chain; a compaction's merging iterator instead walks
// oldest to newest, calling Merge with the oldest and MergeNewer for each
// newer one. Since ops like append/setrange are not order-commutative, the
// operand bytes are buffered as they arrive and only folded into a base
// value at Finish, once the true oldest-to-newest order can be
// reconstructed regardless of which direction pebble walked.
type valueMerger struct {
	seed  []byte
	newer [][]byte // MergeNewer calls, already oldest-to-newest in arrival order
	older [][]byte // MergeOlder calls, newest-to-oldest in arrival order
}

func (m *valueMerger) MergeNewer(value []byte) error {
	m.newer = append(m.newer, append([]byte(nil), value...))
	return nil
}

func (m *valueMerger) MergeOlder(value []byte) error {
	m.older = append(m.older, append([]byte(nil), value...))
	return nil
}

func (m *valueMerger) Finish(includesBase bool) ([]byte, io.Closer, error) {
	chrono := make([][]byte, 0, 1+len(m.newer)+len(m.older))
	for i := len(m.older) - 1; i >= 0; i-- {
		chrono = append(chrono, m.older[i])
	}
	chrono = append(chrono, m.seed)
	chrono = append(chrono, m.newer...)

	var base codec.ValueObject
	hasBase := false
	for _, raw := range chrono {
		decoded, ok := codec.DecodeValueObject(raw, true)
		if !ok {
			return nil, nil, errors.New("merge: corrupt operand")
		}
		if decoded.Type == codec.KeyMerge {
			if err := Apply(&base, hasBase, Op(decoded.MergeOp), decoded.Vals); err != nil {
				return nil, nil, err
			}
			hasBase = true
			continue
		}
		base = decoded
		hasBase = true
	}
	return base.Encode(nil), nil, nil
}

// Apply folds one merge operand (op, args) into base, initializing base's
// Type and metadata record on a fresh key (hasBase == false) as needed.
// It is exported so code outside pebble's merge machinery (the reference
// model in enginepebble's metamorphic test) can apply the same logic.
func Apply(base *codec.ValueObject, hasBase bool, op Op, args []data.Value) error {
	switch op {
	case OpIncrBy, OpIncrByFloat, OpAppend, OpSetRange:
		return applyStringOp(base, hasBase, op, args)
	case OpSizeDelta:
		return applySizeDeltaOp(base, hasBase, args)
	default:
		return errors.Wrapf(ErrUnknownOp, "merge_op=%d", op)
	}
}

// ErrUnknownOp is returned by Apply when handed a merge_op code it does
// not recognize; the caller surfaces this as a read error for that key
// (spec.md §4.6: "An unknown merge_op causes the operator to report
// failure").
var ErrUnknownOp = errors.New("merge: unknown merge operator")

func applyStringOp(base *codec.ValueObject, hasBase bool, op Op, args []data.Value) error {
	if !hasBase {
		base.Type = codec.KeyString
		base.SetMeta(codec.Meta{})
	}
	cur := base.Element(1)

	switch op {
	case OpIncrBy:
		if len(args) != 1 {
			return errors.New("merge: incrby requires one operand")
		}
		if cur.Kind() == data.KindString {
			n, err := strconv.ParseInt(string(cur.Bytes()), 10, 64)
			if err != nil {
				return errors.Wrap(err, "merge: incrby base is not an integer")
			}
			base.SetElement(1, data.String([]byte(strconv.FormatInt(n+args[0].Int(), 10)), true))
			break
		}
		base.SetElement(1, data.Int64(cur.Int()+args[0].Int()))
	case OpIncrByFloat:
		if len(args) != 1 {
			return errors.New("merge: incrbyfloat requires one operand")
		}
		if cur.Kind() == data.KindString {
			f, err := strconv.ParseFloat(string(cur.Bytes()), 64)
			if err != nil {
				return errors.Wrap(err, "merge: incrbyfloat base is not a number")
			}
			base.SetElement(1, data.String([]byte(strconv.FormatFloat(f+args[0].AsFloat64(), 'f', -1, 64)), true))
			break
		}
		base.SetElement(1, data.Float64(cur.AsFloat64()+args[0].AsFloat64()))
	case OpAppend:
		if len(args) != 1 {
			return errors.New("merge: append requires one operand")
		}
		combined := append(append([]byte{}, cur.Bytes()...), args[0].Bytes()...)
		base.SetElement(1, data.String(combined, true))
	case OpSetRange:
		if len(args) != 2 {
			return errors.New("merge: setrange requires two operands")
		}
		offset := int(args[0].Int())
		patch := args[1].Bytes()
		out := append([]byte{}, cur.Bytes()...)
		if grow := offset + len(patch) - len(out); grow > 0 {
			out = append(out, make([]byte, grow)...)
		}
		copy(out[offset:], patch)
		base.SetElement(1, data.String(out, true))
	}
	return nil
}

func applySizeDeltaOp(base *codec.ValueObject, hasBase bool, args []data.Value) error {
	if len(args) == 0 {
		return errors.New("merge: sizedelta requires at least one operand")
	}
	if !hasBase {
		// Unlike the string ops, there is no single meta-bearing type to
		// default to here — KeyHash/KeySet/KeyZSet share MKeyMeta's layout
		// but are not interchangeable on disk. A collection's metadata
		// record must already exist (created by the Put that first makes
		// the collection) before its Size can be adjusted by merge; a
		// sizedelta operand with no base to apply against is a caller
		// error, not something to guess a type for.
		return errors.New("merge: sizedelta has no existing collection metadata record to adjust")
	}
	if base.Type == codec.KeyList {
		lm := base.GetListMeta()
		lm.Size += args[0].Int()
		base.SetListMeta(lm)
	} else {
		meta := base.GetMKeyMeta()
		meta.Size += args[0].Int()
		base.SetMKeyMeta(meta)
	}

	if len(args) > 1 && !args[1].IsNil() {
		base.SetMinMaxData(args[1])
	}
	return nil
}
