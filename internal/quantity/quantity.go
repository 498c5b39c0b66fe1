// Package quantity parses the metric quantities exchanged between the metric,
// evaluate and adapt hooks and turns them into a load ratio.
//
// Quantities are decimal numbers optionally followed by the "m" suffix used by
// Kubernetes for milli units. The target side is always interpreted in the
// suffixed scale, the observed side only when it carries the suffix. This
// asymmetry is inherited from the producers of the metric document and is
// kept here so that existing metric pipelines keep their meaning.
package quantity

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// MilliSuffix is the only unit suffix accepted by Parse.
const MilliSuffix = "m"

// milliScale is the factor applied when a suffix is stripped.
const milliScale = 1000

var (
	// ErrEmpty is returned for an empty or blank quantity.
	ErrEmpty = errors.New("empty quantity")
	// ErrMalformed is returned when the numeric part cannot be parsed.
	ErrMalformed = errors.New("malformed quantity")
	// ErrNegative is returned for quantities below zero.
	ErrNegative = errors.New("negative quantity")
	// ErrUnknownUnit is returned for any suffix other than MilliSuffix.
	ErrUnknownUnit = errors.New("unknown quantity unit")
	// ErrZeroTarget is returned by Ratio when the target normalizes to zero.
	ErrZeroTarget = errors.New("target quantity is zero")
)

// Quantity is a parsed, non-negative, finite number with its optional unit.
type Quantity struct {
	Value float64
	Unit  string
}

// Parse accepts values such as "1", "1.5", "2500m" or "1e3m".
func Parse(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Quantity{}, ErrEmpty
	}

	// the unit is the trailing run of letters; an exponent marker is always
	// followed by digits so it is never part of it
	end := len(s)
	for end > 0 && unicode.IsLetter(rune(s[end-1])) {
		end--
	}
	number, unit := s[:end], s[end:]
	if number == "" {
		return Quantity{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if unit != "" && unit != MilliSuffix {
		return Quantity{}, fmt.Errorf("%w: %q in %q", ErrUnknownUnit, unit, s)
	}

	v, err := strconv.ParseFloat(number, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Quantity{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if v < 0 {
		return Quantity{}, fmt.Errorf("%w: %q", ErrNegative, s)
	}
	return Quantity{Value: v, Unit: unit}, nil
}

// Suffixed reports whether the quantity carried a unit suffix.
func (q Quantity) Suffixed() bool {
	return q.Unit != ""
}

// Observed returns the observed-side magnitude: scaled when suffixed,
// verbatim otherwise.
func (q Quantity) Observed() float64 {
	if q.Suffixed() {
		return q.Value * milliScale
	}
	return q.Value
}

// Target returns the target-side magnitude, which is always scaled.
func (q Quantity) Target() float64 {
	return q.Value * milliScale
}

func (q Quantity) String() string {
	return strconv.FormatFloat(q.Value, 'f', -1, 64) + q.Unit
}

// Ratio computes current/target. A zero numerator is reported through the
// idle flag with a zero ratio.
func Ratio(current, target Value) (ratio float64, idle bool, err error) {
	t, err := target.Target()
	if err != nil {
		return 0, false, fmt.Errorf("invalid target value: %w", err)
	}
	if t == 0 {
		return 0, false, ErrZeroTarget
	}
	c, err := current.Observed()
	if err != nil {
		return 0, false, fmt.Errorf("invalid current value: %w", err)
	}
	if c == 0 {
		return 0, true, nil
	}
	return c / t, false, nil
}
