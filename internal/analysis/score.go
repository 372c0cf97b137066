package analysis

import (
	"math"
	"strconv"
	"strings"
)

// NotApplicable is the score sentinel for nutrients that do not apply.
const NotApplicable = "N/A"

// Bucket is the progress-bar emphasis of a nutrient score.
type Bucket int

const (
	BucketNone Bucket = iota
	BucketLow
	BucketMedium
	BucketHigh
)

// Bucket thresholds, in percent.
const (
	HighThreshold   = 66
	MediumThreshold = 33
)

func (b Bucket) String() string {
	switch b {
	case BucketLow:
		return "low"
	case BucketMedium:
		return "medium"
	case BucketHigh:
		return "high"
	default:
		return "none"
	}
}

func (b Bucket) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Score is a parsed nutrient score.
//
// Value holds the longest leading number of the raw string, exponent
// included, so "45.5%" reads as 45.5, "12g" as 12 and "1e2" as 100. Value
// ranks and charts nutrients. Percent drives the progress bar and ignores
// exponents: it is the leading decimal number truncated toward zero and
// clamped to [0,100], so "1e2" fills 1%.
// Applicable is false for the N/A sentinel and for strings without a leading
// number.
type Score struct {
	Raw        string
	Value      float64
	Percent    int
	Applicable bool
}

// ParseScore never fails: anything that is not a number is not applicable.
func ParseScore(s string) Score {
	trimmed := strings.TrimSpace(s)
	if strings.EqualFold(trimmed, NotApplicable) {
		return Score{Raw: s}
	}
	mantissa, full := numericPrefix(trimmed)
	if mantissa == "" {
		return Score{Raw: s}
	}
	base, err := strconv.ParseFloat(mantissa, 64)
	if err != nil || math.IsInf(base, 0) || math.IsNaN(base) {
		return Score{Raw: s}
	}
	v := base
	if full != mantissa {
		if exp, err := strconv.ParseFloat(full, 64); err == nil && !math.IsInf(exp, 0) {
			v = exp
		}
	}
	return Score{Raw: s, Value: v, Percent: clampPercent(base), Applicable: true}
}

// Bucket maps the score onto its progress-bar emphasis.
func (s Score) Bucket() Bucket {
	if !s.Applicable {
		return BucketNone
	}
	return BucketFor(s.Percent)
}

// BucketFor returns High for ≥66, Medium for 33–65 and Low below 33.
func BucketFor(percent int) Bucket {
	switch {
	case percent >= HighThreshold:
		return BucketHigh
	case percent >= MediumThreshold:
		return BucketMedium
	default:
		return BucketLow
	}
}

// numericPrefix returns the longest prefix of s of the form
// [+-]digits[.digits] that contains at least one digit, or "". full extends
// mantissa with an exponent part when one follows.
func numericPrefix(s string) (mantissa, full string) {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	end := i
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if frac > 0 {
			end = j
			digits += frac
		} else {
			end = j
		}
	}
	if digits == 0 {
		return "", ""
	}
	return s[:end], s[:exponentEnd(s, end)]
}

// exponentEnd returns the end of an [eE][+-]digits run starting at i, or i.
func exponentEnd(s string, i int) int {
	if i >= len(s) || (s[i] != 'e' && s[i] != 'E') {
		return i
	}
	j := i + 1
	if j < len(s) && (s[j] == '+' || s[j] == '-') {
		j++
	}
	start := j
	for j < len(s) && isDigit(s[j]) {
		j++
	}
	if j == start {
		return i
	}
	return j
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func clampPercent(v float64) int {
	switch {
	case v <= 0:
		return 0
	case v >= 100:
		return 100
	default:
		return int(v)
	}
}
