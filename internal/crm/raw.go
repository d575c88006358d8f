package crm

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// The raw CRM payloads carry no schema guarantees: the same field may arrive
// as a string, a number, an object, or not at all, and individual records may
// be malformed. The flex types below absorb those field-level defects at the
// decode boundary so the transformers work with plain Go values and never
// have to propagate per-field errors.

// flexString decodes a JSON string, number, or bool into a string.
// Anything else (null, objects, arrays) decodes to "".
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*f = ""
			return nil
		}
		*f = flexString(s)
	case '{', '[':
		*f = ""
	default:
		// number, true, false
		*f = flexString(data)
	}
	return nil
}

func (f flexString) String() string { return string(f) }

// flexFloat decodes a JSON number or numeric string into a float64.
// Non-numeric values decode to 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// stringList decodes a JSON array whose elements may be strings or objects
// carrying a "value", "name", or "email" field. A bare string decodes to a
// one-element list.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*l = nil
			return nil
		}
		*l = stringList{s}
		return nil
	}
	if data[0] != '[' {
		*l = nil
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		*l = nil
		return nil
	}

	out := make(stringList, 0, len(elems))
	for _, elem := range elems {
		elem = bytes.TrimSpace(elem)
		if len(elem) == 0 {
			continue
		}
		if elem[0] == '"' {
			var s string
			if err := json.Unmarshal(elem, &s); err == nil && s != "" {
				out = append(out, s)
			}
			continue
		}
		if elem[0] == '{' {
			var obj struct {
				Value flexString `json:"value"`
				Name  flexString `json:"name"`
				Email flexString `json:"email"`
			}
			if err := json.Unmarshal(elem, &obj); err != nil {
				continue
			}
			switch {
			case obj.Value != "":
				out = append(out, string(obj.Value))
			case obj.Name != "":
				out = append(out, string(obj.Name))
			case obj.Email != "":
				out = append(out, string(obj.Email))
			}
		}
	}
	*l = out
	return nil
}

// first returns the first element or "".
func (l stringList) first() string {
	if len(l) == 0 {
		return ""
	}
	return l[0]
}

// stringOr returns s, or fallback if s is empty after trimming.
func stringOr(s, fallback string) string {
	if v := trimmed(s); v != "" {
		return v
	}
	return fallback
}

func trimmed(s string) string {
	return string(bytes.TrimSpace([]byte(s)))
}

// nonNegative clamps negative amounts to zero.
func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// clampProbability bounds a probability to [0, 100].
func clampProbability(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// timestampFormats covers the layouts the source platforms emit.
var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimeOr parses a source timestamp, falling back when absent or
// unparseable.
func parseTimeOr(s string, fallback time.Time) time.Time {
	s = trimmed(s)
	if s == "" {
		return fallback
	}
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback
}
