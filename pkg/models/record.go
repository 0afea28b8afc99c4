package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CandidateRecord is a schemaless record submitted for duplicate detection.
// Matchers only read well-known field names when they are present.
type CandidateRecord map[string]any

// ID returns the record's "id" field when it is present.
func (r CandidateRecord) ID() (string, bool) {
	return r.Text("id")
}

// Text renders a scalar field as a string. A field is present when the key
// exists, the value is non-nil, and its rendered form is not blank.
func (r CandidateRecord) Text(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}

	var s string
	switch val := v.(type) {
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case bool:
		s = strconv.FormatBool(val)
	case json.Number:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}

	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
