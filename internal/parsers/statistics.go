package parsers

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	nullTokens = map[string]bool{"n/a": true, "na": true, "null": true, "none": true, "-": true}
	moneyRE    = regexp.MustCompile(`[^0-9.]`)
	exponentRE = regexp.MustCompile(`[0-9.][eE][+-]?[0-9]`)
)

// ParseRatioToPercent normalizes a ratio or percentage to an integer in
// [0,100]. Values in [0,1] are ratios; values up to 100 are percentages,
// except non-integers strictly between 1 and 2, which are rejected as
// ambiguous. Strings may carry a % suffix. Rounding is half-to-even.
func ParseRatioToPercent(value any) (int, bool) {
	switch v := value.(type) {
	case nil, bool:
		return 0, false
	case int:
		return ratioToPercent(float64(v))
	case int32:
		return ratioToPercent(float64(v))
	case int64:
		return ratioToPercent(float64(v))
	case float32:
		return ratioToPercent(float64(v))
	case float64:
		return ratioToPercent(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" || nullTokens[strings.ToLower(s)] {
			return 0, false
		}
		s = strings.TrimSpace(strings.ReplaceAll(s, "%", ""))
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return ratioToPercent(num)
	default:
		return 0, false
	}
}

func ratioToPercent(num float64) (int, bool) {
	if math.IsNaN(num) || math.IsInf(num, 0) || num < 0 {
		return 0, false
	}
	var percent float64
	switch {
	case num <= 1:
		percent = math.RoundToEven(num * 100)
	case num <= 100:
		if num > 1 && num < 2 && math.Abs(num-math.RoundToEven(num)) > 1e-9 {
			return 0, false
		}
		percent = math.RoundToEven(num)
	default:
		return 0, false
	}
	if percent < 0 || percent > 100 {
		return 0, false
	}
	return int(percent), true
}

// ParseMoneyToInt strips currency formatting such as "$52,000" and rounds
// to whole units. Negative values are rejected.
func ParseMoneyToInt(value any) (int, bool) {
	switch v := value.(type) {
	case nil, bool:
		return 0, false
	case int:
		return v, v >= 0
	case int32:
		return int(v), v >= 0
	case int64:
		return int(v), v >= 0
	case float32:
		return moneyFromFloat(float64(v))
	case float64:
		return moneyFromFloat(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" || nullTokens[strings.ToLower(s)] || strings.HasPrefix(s, "-") {
			return 0, false
		}
		if exponentRE.MatchString(s) {
			// Stripping would turn "1e40" into 140.
			return 0, false
		}
		cleaned := moneyRE.ReplaceAllString(s, "")
		if cleaned == "" {
			return 0, false
		}
		num, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return moneyFromFloat(num)
	default:
		return 0, false
	}
}

func moneyFromFloat(num float64) (int, bool) {
	if math.IsNaN(num) || math.IsInf(num, 0) || num < 0 {
		return 0, false
	}
	rounded := math.RoundToEven(num)
	if rounded >= maxIntFloat {
		return 0, false
	}
	return int(rounded), true
}

// maxIntFloat is 2^63 on 64-bit platforms and 2^31 on 32-bit ones, the
// first float64 that no longer converts to int.
const maxIntFloat = float64(uint(math.MaxInt) + 1)
