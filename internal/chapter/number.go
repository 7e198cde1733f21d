package chapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var decimalPattern = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)$`)

// Number is an optional decimal chapter number. The zero value is absent.
type Number struct {
	value float64
	text  string
	valid bool
}

// None returns the absent number.
func None() Number { return Number{} }

// FromFloat builds a present number from f. NaN and infinities yield None.
func FromFloat(f float64) Number {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Number{}
	}
	return Number{value: f, text: format(f), valid: true}
}

// Parse reads a plain decimal chapter number. Blank input, placeholders,
// and exponent or hex forms report ok=false.
func Parse(raw string) (Number, bool) {
	trimmed := strings.TrimSpace(raw)
	if !decimalPattern.MatchString(trimmed) {
		return Number{}, false
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Number{}, false
	}
	return Number{value: f, text: trimmed, valid: true}, true
}

// MustParse is Parse for literals known to be valid.
func MustParse(raw string) Number {
	n, ok := Parse(raw)
	if !ok {
		panic(fmt.Sprintf("chapter: invalid number %q", raw))
	}
	return n
}

// Valid reports whether the number is present.
func (n Number) Valid() bool { return n.valid }

// Float returns the numeric value; absent numbers report negative infinity.
func (n Number) Float() float64 {
	if !n.valid {
		return math.Inf(-1)
	}
	return n.value
}

// String returns the textual form as first seen, or "" when absent.
func (n Number) String() string {
	if !n.valid {
		return ""
	}
	return n.text
}

// Display renders the number for messages, falling back to placeholder.
func (n Number) Display(placeholder string) string {
	if !n.valid {
		return placeholder
	}
	return format(n.value)
}

// Compare returns -1, 0, or +1. Absent sorts below every present number and
// two absent numbers are equal.
func (n Number) Compare(other Number) int {
	switch {
	case !n.valid && !other.valid:
		return 0
	case !n.valid:
		return -1
	case !other.valid:
		return 1
	case n.value < other.value:
		return -1
	case n.value > other.value:
		return 1
	default:
		return 0
	}
}

// After reports whether n is strictly greater than other.
func (n Number) After(other Number) bool { return n.Compare(other) > 0 }

// Equal compares numerically, so "11" and "11.0" are equal.
func (n Number) Equal(other Number) bool { return n.Compare(other) == 0 }

// Canonical returns the number re-rendered without trailing zeros.
func (n Number) Canonical() Number {
	if !n.valid {
		return n
	}
	return FromFloat(n.value)
}

// Max returns the greatest of the supplied numbers.
func Max(first Number, rest ...Number) Number {
	best := first
	for _, candidate := range rest {
		if candidate.After(best) {
			best = candidate
		}
	}
	return best
}

// MarshalJSON encodes present numbers as strings and absent ones as null.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.text)
}

// UnmarshalJSON accepts strings, JSON numbers, and null. Unparseable strings
// decode as absent rather than failing the enclosing document. JSON numbers
// are stored in canonical decimal form.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("chapter number: %w", err)
		}
		parsed, _ := Parse(s)
		*n = parsed
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("chapter number: %w", err)
	}
	*n = FromFloat(f)
	return nil
}

func format(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
