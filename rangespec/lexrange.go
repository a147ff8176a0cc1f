package rangespec

import (
	"bytes"

	"github.com/cockroachdb/errors"
)

// ZLexRangeSpec is a parsed lexicographic range over a sorted set's
// members, used when all members share a score (ZRANGEBYLEX).
type ZLexRangeSpec struct {
	Min, Max                   []byte
	MinUnbounded, MaxUnbounded bool
	ContainMin, ContainMax     bool
}

// ParseZLexRangeSpec parses the min/max strings ZRANGEBYLEX-style commands
// accept: "-" (unbounded low), "+" (unbounded high), "(bytes" (exclusive),
// or "[bytes" (inclusive). Any other leading character, including an empty
// string, is rejected.
func ParseZLexRangeSpec(minStr, maxStr string) (ZLexRangeSpec, error) {
	var spec ZLexRangeSpec

	switch {
	case minStr == "-":
		spec.MinUnbounded = true
	case minStr == "+":
		return ZLexRangeSpec{}, errors.New("rangespec: min cannot be the open '+' bound")
	default:
		b, contain, err := parseLexBound(minStr)
		if err != nil {
			return ZLexRangeSpec{}, errors.Wrapf(err, "rangespec: invalid min %q", minStr)
		}
		spec.Min, spec.ContainMin = b, contain
	}

	switch {
	case maxStr == "+":
		spec.MaxUnbounded = true
	case maxStr == "-":
		return ZLexRangeSpec{}, errors.New("rangespec: max cannot be the open '-' bound")
	default:
		b, contain, err := parseLexBound(maxStr)
		if err != nil {
			return ZLexRangeSpec{}, errors.Wrapf(err, "rangespec: invalid max %q", maxStr)
		}
		spec.Max, spec.ContainMax = b, contain
	}

	if !spec.MinUnbounded && !spec.MaxUnbounded && bytes.Compare(spec.Min, spec.Max) > 0 {
		return ZLexRangeSpec{}, errors.Newf("rangespec: min %q greater than max %q", spec.Min, spec.Max)
	}
	return spec, nil
}

func parseLexBound(s string) (b []byte, contain bool, err error) {
	if len(s) == 0 {
		return nil, false, errors.New("rangespec: empty lex bound")
	}
	switch s[0] {
	case '[':
		return []byte(s[1:]), true, nil
	case '(':
		return []byte(s[1:]), false, nil
	default:
		return nil, false, errors.Newf("rangespec: lex bound must start with '[' or '(': %q", s)
	}
}
