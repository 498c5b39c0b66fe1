package quantity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is a metric quantity as found on the wire, either a JSON number or a
// JSON string. Numbers are never scaled on the observed side.
type Value struct {
	raw     string
	numeric bool
	set     bool
}

// StringValue builds a Value as if decoded from a JSON string.
func StringValue(s string) Value {
	return Value{raw: s, set: true}
}

// NumberValue builds a Value as if decoded from a JSON number.
func NumberValue(f float64) Value {
	return Value{raw: strconv.FormatFloat(f, 'f', -1, 64), numeric: true, set: true}
}

// IsSet reports whether the value was present in the decoded document.
func (v Value) IsSet() bool {
	return v.set
}

// Observed returns the observed-side magnitude of v.
func (v Value) Observed() (float64, error) {
	if !v.set {
		return 0, ErrEmpty
	}
	q, err := Parse(v.raw)
	if err != nil {
		return 0, err
	}
	if v.numeric {
		return q.Value, nil
	}
	return q.Observed(), nil
}

// Target returns the target-side magnitude of v.
func (v Value) Target() (float64, error) {
	if !v.set {
		return 0, ErrEmpty
	}
	q, err := Parse(v.raw)
	if err != nil {
		return 0, err
	}
	return q.Target(), nil
}

func (v Value) String() string {
	return v.raw
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("quantity must be a number or a string: %w", err)
	}
	*v = Value{raw: n.String(), numeric: true, set: true}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.set {
		return []byte("null"), nil
	}
	if v.numeric {
		return []byte(v.raw), nil
	}
	return json.Marshal(v.raw)
}
