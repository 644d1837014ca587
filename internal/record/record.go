// Package record classifies the dynamically typed values of a host record.
package record

import "encoding/json"

// Record is an open mapping from field name to a JSON compatible value.
type Record map[string]interface{}

type Kind int

const (
	KindInvalid Kind = iota
	KindNull
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// KindOf places v into the closed set of record value kinds.
func KindOf(v interface{}) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return KindNumber
	case bool:
		return KindBool
	case []interface{}, []float64, []float32:
		return KindArray
	case map[string]interface{}, Record:
		return KindObject
	default:
		return KindInvalid
	}
}

// Clone deep copies r so the copy can be written without touching the original.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, iv := range t {
			m[k] = cloneValue(iv)
		}
		return m
	case Record:
		return t.Clone()
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, iv := range t {
			s[i] = cloneValue(iv)
		}
		return s
	case []float64:
		return append([]float64(nil), t...)
	case []float32:
		return append([]float32(nil), t...)
	default:
		return v
	}
}

// Vector converts an embedding into the array form written to records.
func Vector(v []float32) []interface{} {
	out := make([]interface{}, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
