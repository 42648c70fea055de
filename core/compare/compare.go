package compare

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"crm-sync/core/utils"

	"golang.org/x/text/unicode/norm"
)

const (
	// Epsilon is the absolute tolerance for numeric comparison.
	Epsilon = 1e-10
	// MaxBMPRune is the highest code point kept by NormalizeString.
	// Anything above it is replaced with a space before whitespace is dropped.
	MaxBMPRune = 0xFFFF
	// Precision is the granularity at which timestamps are compared.
	Precision = time.Second
)

var timePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{1,9})?(Z|[+-]\d{2}:\d{2})$`)

// Equals reports whether a and b are the same value once remote round-trip
// noise is ignored.
func Equals(a, b any) bool {
	a = coerce(a)
	b = coerce(b)

	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
		return false
	}

	fa, okA := utils.ToFloat(a)
	fb, okB := utils.ToFloat(b)
	if okA && okB {
		return math.Abs(fa-fb) <= Epsilon
	}

	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return NormalizeString(sa) == NormalizeString(sb)
	}

	return plainEqual(a, b)
}

// NormalizeString maps s to the canonical form used for comparison.
func NormalizeString(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r > MaxBMPRune {
			// replaced by a space, which is then dropped like any other whitespace
			continue
		}
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseTime converts v to a UTC time truncated to Precision.
// It accepts time.Time, *time.Time and strings in the datetime shape
// accepted by Equals.
func ParseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Truncate(Precision), true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return t.UTC().Truncate(Precision), true
	case string:
		if !timePattern.MatchString(t) || !validOffset(t) {
			return time.Time{}, false
		}
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC().Truncate(Precision), true
	default:
		return time.Time{}, false
	}
}

// validOffset rejects numeric zone offsets beyond +/-23:59.
func validOffset(s string) bool {
	if strings.HasSuffix(s, "Z") {
		return true
	}
	zone := s[len(s)-6:]
	hours, err := strconv.Atoi(zone[1:3])
	if err != nil {
		return false
	}
	minutes, err := strconv.Atoi(zone[4:6])
	if err != nil {
		return false
	}
	return hours < 24 && minutes < 60
}

func coerce(v any) any {
	if t, ok := ParseTime(v); ok {
		return t
	}
	return v
}

// plainEqual compares values of mismatched or unsupported kinds.
// Non-comparable values (maps, slices) are never equal.
func plainEqual(a, b any) (eq bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}
