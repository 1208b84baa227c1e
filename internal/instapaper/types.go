package instapaper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// The API is loose about scalar encoding: ids and flags show up both as JSON
// numbers and as quoted strings depending on the endpoint. These types accept
// either form.

// Int is an integer that may arrive quoted.
type Int int64

// UnmarshalJSON implements json.Unmarshaler.
func (i *Int) UnmarshalJSON(data []byte) error {
	s, err := unquoteScalar(data)
	if err != nil || s == "" {
		return err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid integer %s: %w", data, err)
		}
		n = int64(f)
	}
	*i = Int(n)
	return nil
}

// Float is a floating point number that may arrive quoted.
type Float float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(data []byte) error {
	s, err := unquoteScalar(data)
	if err != nil || s == "" {
		return err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", data, err)
	}
	*f = Float(v)
	return nil
}

// Text is a string that may arrive as a bare number or boolean.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	s, err := unquoteScalar(data)
	if err != nil {
		return err
	}
	*t = Text(s)
	return nil
}

// unquoteScalar returns the textual form of a JSON scalar. null yields "".
func unquoteScalar(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		return "", fmt.Errorf("expected scalar, got %s", data)
	}
	return string(data), nil
}
