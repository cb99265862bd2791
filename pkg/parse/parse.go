package parse

import (
	"encoding/json"
	"strconv"
)

// Number attempts to read v as a float64. JSON decoding hands us float64 for
// numbers, but payloads routinely carry numbers as strings ("10", "42.5"),
// so those are parsed too. The second return value is false when v holds
// nothing numeric; callers omit the wire key in that case.
func Number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// StringOrNumber passes v through when it is a string or a numeric value and
// returns nil otherwise. Used for wire fields that accept either form.
func StringOrNumber(v interface{}) interface{} {
	switch v.(type) {
	case string:
		return v
	case float64, float32, int, int32, int64, uint, uint64, json.Number:
		return v
	default:
		return nil
	}
}

// Stringify renders a scalar the way the wire format expects: booleans as
// "true"/"false", numbers without a trailing ".0" when integral.
func Stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int:
		return strconv.Itoa(s)
	case int32:
		return strconv.FormatInt(int64(s), 10)
	case int64:
		return strconv.FormatInt(s, 10)
	case uint:
		return strconv.FormatUint(uint64(s), 10)
	case uint64:
		return strconv.FormatUint(s, 10)
	case json.Number:
		return s.String()
	default:
		return ""
	}
}

// IsScalar reports whether v is a string, bool or numeric value.
func IsScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool, float64, float32, int, int32, int64, uint, uint64, json.Number:
		return true
	default:
		return false
	}
}
