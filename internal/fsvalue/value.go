// Package fsvalue decodes Firestore REST API typed values and normalizes
// already-decoded documents into plain Go values: every store-native
// timestamp becomes an RFC 3339 string, maps and arrays map recursively,
// scalars pass through unchanged.
package fsvalue

import (
	"encoding/json"
	"log"
	"strconv"
	"time"
)

// Value is one tagged Firestore REST value. Exactly one field is set.
type Value struct {
	NullValue      json.RawMessage `json:"nullValue,omitempty"`
	BooleanValue   *bool           `json:"booleanValue,omitempty"`
	IntegerValue   *string         `json:"integerValue,omitempty"`
	DoubleValue    *float64        `json:"doubleValue,omitempty"`
	TimestampValue *string         `json:"timestampValue,omitempty"`
	StringValue    *string         `json:"stringValue,omitempty"`
	BytesValue     *string         `json:"bytesValue,omitempty"`
	ReferenceValue *string         `json:"referenceValue,omitempty"`
	GeoPointValue  *LatLng         `json:"geoPointValue,omitempty"`
	ArrayValue     *ArrayValue     `json:"arrayValue,omitempty"`
	MapValue       *MapValue       `json:"mapValue,omitempty"`
}

type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type ArrayValue struct {
	Values []Value `json:"values,omitempty"`
}

type MapValue struct {
	Fields map[string]Value `json:"fields,omitempty"`
}

// Decode converts the tagged value to a plain Go value.
func (v Value) Decode() any {
	switch {
	case v.BooleanValue != nil:
		return *v.BooleanValue
	case v.IntegerValue != nil:
		n, err := strconv.ParseInt(*v.IntegerValue, 10, 64)
		if err != nil {
			return *v.IntegerValue
		}
		return n
	case v.DoubleValue != nil:
		return *v.DoubleValue
	case v.TimestampValue != nil:
		return normalizeTimestampString(*v.TimestampValue)
	case v.StringValue != nil:
		return *v.StringValue
	case v.BytesValue != nil:
		return *v.BytesValue
	case v.ReferenceValue != nil:
		return referenceID(*v.ReferenceValue)
	case v.GeoPointValue != nil:
		return map[string]any{"latitude": v.GeoPointValue.Latitude, "longitude": v.GeoPointValue.Longitude}
	case v.ArrayValue != nil:
		out := make([]any, 0, len(v.ArrayValue.Values))
		for _, el := range v.ArrayValue.Values {
			out = append(out, el.Decode())
		}
		return out
	case v.MapValue != nil:
		return DecodeFields(v.MapValue.Fields)
	default:
		return nil
	}
}

// DecodeFields converts a Firestore document's fields to a plain map.
func DecodeFields(fields map[string]Value) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v.Decode()
	}
	return out
}

// Encode maps a plain Go value back to a tagged REST value, for query
// filter operands.
func Encode(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{NullValue: json.RawMessage("null")}
	case bool:
		return Value{BooleanValue: &t}
	case int:
		s := strconv.FormatInt(int64(t), 10)
		return Value{IntegerValue: &s}
	case int64:
		s := strconv.FormatInt(t, 10)
		return Value{IntegerValue: &s}
	case float64:
		return Value{DoubleValue: &t}
	case time.Time:
		s := t.UTC().Format(time.RFC3339Nano)
		return Value{TimestampValue: &s}
	case string:
		return Value{StringValue: &t}
	default:
		s := ""
		if b, err := json.Marshal(t); err == nil {
			s = string(b)
		}
		return Value{StringValue: &s}
	}
}

// referenceID keeps only the document id of a full resource path like
// projects/p/databases/(default)/documents/branches/abc123.
func referenceID(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func normalizeTimestampString(s string) string {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Leave an unparseable timestamp as-is; downstream treats it
		// as a data-shape error on the individual record.
		log.Printf("[fsvalue] WARN: unparseable timestamp %q kept verbatim", s)
		return s
	}
	return t.UTC().Format(time.RFC3339)
}
