package domain

import (
	"encoding/json"
	"strconv"
)

// Intervals is a count of funding settlement intervals that may be
// unreachable. It replaces a numeric "infinity" sentinel so that callers
// cannot accidentally do arithmetic on a break-even count that does not
// exist (zero or negative funding differential).
type Intervals struct {
	count       int64
	unreachable bool
}

// FiniteIntervals returns a reachable interval count.
func FiniteIntervals(n int64) Intervals {
	return Intervals{count: n}
}

// UnreachableIntervals marks the count as never reachable.
func UnreachableIntervals() Intervals {
	return Intervals{unreachable: true}
}

// Finite reports whether the count is reachable.
func (iv Intervals) Finite() bool { return !iv.unreachable }

// Count returns the interval count. It is only meaningful when Finite is true.
func (iv Intervals) Count() int64 { return iv.count }

func (iv Intervals) String() string {
	if iv.unreachable {
		return "unreachable"
	}
	return strconv.FormatInt(iv.count, 10)
}

// MarshalJSON encodes a finite count as a number and an unreachable count as
// the string "unreachable".
func (iv Intervals) MarshalJSON() ([]byte, error) {
	if iv.unreachable {
		return json.Marshal("unreachable")
	}
	return json.Marshal(iv.count)
}

// UnmarshalJSON accepts either a number or the string "unreachable".
func (iv *Intervals) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*iv = FiniteIntervals(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*iv = UnreachableIntervals()
	return nil
}

// DeltaIntervals returns now minus entry when both counts are finite, nil
// otherwise.
func DeltaIntervals(now, entry Intervals) *int64 {
	if !now.Finite() || !entry.Finite() {
		return nil
	}
	d := now.count - entry.count
	return &d
}
