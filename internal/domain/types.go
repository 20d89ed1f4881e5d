package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON columns are TEXT in SQLite and JSONB in Postgres. Values are always
// written as strings so both drivers accept them.

type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	return jsonValue(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	return scanJSON(value, s)
}

type Contributor struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
	IPI  string `json:"ipi,omitempty"`
}

type Contributors []Contributor

func (c Contributors) Value() (driver.Value, error) {
	if len(c) == 0 {
		return "[]", nil
	}
	return jsonValue(c)
}

func (c *Contributors) Scan(value interface{}) error {
	return scanJSON(value, c)
}

// Names returns the contributor names in order.
func (c Contributors) Names() []string {
	names := make([]string, 0, len(c))
	for _, ct := range c {
		names = append(names, ct.Name)
	}
	return names
}

type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	return jsonValue(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// RawJSON is an opaque provider payload kept for forward compatibility.
type RawJSON json.RawMessage

func (r RawJSON) Value() (driver.Value, error) {
	if len(r) == 0 {
		return "null", nil
	}
	if !json.Valid(r) {
		return nil, fmt.Errorf("raw payload is not valid JSON")
	}
	return string(r), nil
}

func (r *RawJSON) Scan(value interface{}) error {
	data, ok := rawBytes(value)
	if !ok || len(data) == 0 || string(data) == "null" {
		*r = nil
		return nil
	}
	*r = append((*r)[:0], data...)
	return nil
}

func (r RawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *RawJSON) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

type AlignedWords []AlignedWord

func (w AlignedWords) Value() (driver.Value, error) {
	if len(w) == 0 {
		return "[]", nil
	}
	return jsonValue(w)
}

func (w *AlignedWords) Scan(value interface{}) error {
	return scanJSON(value, w)
}

type AlignedChars []AlignedChar

func (c AlignedChars) Value() (driver.Value, error) {
	if len(c) == 0 {
		return "[]", nil
	}
	return jsonValue(c)
}

func (c *AlignedChars) Scan(value interface{}) error {
	return scanJSON(value, c)
}

type AlignedLines []AlignedLine

func (l AlignedLines) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	return jsonValue(l)
}

func (l *AlignedLines) Scan(value interface{}) error {
	return scanJSON(value, l)
}

func jsonValue(v any) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func rawBytes(value interface{}) ([]byte, bool) {
	switch v := value.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}

func scanJSON(value interface{}, dest any) error {
	if value == nil {
		return nil
	}
	data, ok := rawBytes(value)
	if !ok {
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, dest)
}
