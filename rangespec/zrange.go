package rangespec

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ZRangeSpec is a parsed numeric range over a sorted set's scores.
type ZRangeSpec struct {
	Min, Max               float64
	ContainMin, ContainMax bool
}

// ParseZRangeSpec parses the min/max strings ZRANGEBYSCORE-style commands
// accept: "-inf", "+inf", a decimal number, or a "("-prefixed decimal for an
// exclusive bound. -inf/+inf map to the smallest/largest finite float64
// rather than actual infinities, since the encoded-key order of floats —
// not the mathematical value — is the scan's real contract.
func ParseZRangeSpec(minStr, maxStr string) (ZRangeSpec, error) {
	min, containMin, err := parseScoreBound(minStr)
	if err != nil {
		return ZRangeSpec{}, errors.Wrapf(err, "rangespec: invalid min %q", minStr)
	}
	max, containMax, err := parseScoreBound(maxStr)
	if err != nil {
		return ZRangeSpec{}, errors.Wrapf(err, "rangespec: invalid max %q", maxStr)
	}
	if min > max {
		return ZRangeSpec{}, errors.Newf("rangespec: min %v greater than max %v", min, max)
	}
	return ZRangeSpec{Min: min, Max: max, ContainMin: containMin, ContainMax: containMax}, nil
}

func parseScoreBound(s string) (value float64, contain bool, err error) {
	switch s {
	case "-inf":
		return -math.MaxFloat64, true, nil
	case "+inf":
		return math.MaxFloat64, true, nil
	}
	contain = true
	if strings.HasPrefix(s, "(") {
		contain = false
		s = s[1:]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, errors.Newf("rangespec: not a number: %q", s)
	}
	return f, contain, nil
}
