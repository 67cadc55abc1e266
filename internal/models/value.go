package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// AttrKind discriminates the scalar types a device attribute can hold.
type AttrKind int

const (
	AttrBool AttrKind = iota
	AttrInt
	AttrFloat
	AttrString
)

func (k AttrKind) String() string {
	switch k {
	case AttrBool:
		return "bool"
	case AttrInt:
		return "int"
	case AttrFloat:
		return "float"
	case AttrString:
		return "string"
	}
	return "unknown"
}

// AttrValue is a tagged scalar: exactly one of the payload fields is
// valid, selected by Kind.
type AttrValue struct {
	Kind  AttrKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

func BoolValue(b bool) AttrValue     { return AttrValue{Kind: AttrBool, Bool: b} }
func IntValue(i int64) AttrValue     { return AttrValue{Kind: AttrInt, Int: i} }
func FloatValue(f float64) AttrValue { return AttrValue{Kind: AttrFloat, Float: f} }
func StringValue(s string) AttrValue { return AttrValue{Kind: AttrString, Str: s} }

// Numeric returns the value as a float64 when it is an int or a float.
func (v AttrValue) Numeric() (float64, bool) {
	switch v.Kind {
	case AttrInt:
		return float64(v.Int), true
	case AttrFloat:
		return v.Float, true
	}
	return 0, false
}

func (v AttrValue) String() string {
	switch v.Kind {
	case AttrBool:
		return strconv.FormatBool(v.Bool)
	case AttrInt:
		return strconv.FormatInt(v.Int, 10)
	case AttrFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case AttrString:
		return v.Str
	}
	return ""
}

func (v AttrValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case AttrBool:
		return json.Marshal(v.Bool)
	case AttrInt:
		return json.Marshal(v.Int)
	case AttrFloat:
		return json.Marshal(v.Float)
	case AttrString:
		return json.Marshal(v.Str)
	}
	return nil, fmt.Errorf("attr value: unknown kind %d", v.Kind)
}

func (v *AttrValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("attr value: empty input")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
		return nil
	case '[', '{', 'n':
		return fmt.Errorf("attr value: not a scalar: %s", data)
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("attr value: not a scalar: %s", data)
	}
	// Integers stay integers so that equality against int literals works.
	if !bytes.ContainsAny(data, ".eE") {
		i, err := num.Int64()
		if err == nil {
			*v = IntValue(i)
			return nil
		}
	}
	f, err := num.Float64()
	if err != nil {
		return fmt.Errorf("attr value: not a scalar: %s", data)
	}
	*v = FloatValue(f)
	return nil
}

// Attributes is a device's attribute mapping.
type Attributes map[string]AttrValue

// Merge returns a shallow merge of a and delta, delta keys winning on
// conflict. Neither input is mutated. Matches the store-side JSONB merge.
func (a Attributes) Merge(delta Attributes) Attributes {
	out := make(Attributes, len(a)+len(delta))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range delta {
		out[k] = v
	}
	return out
}
