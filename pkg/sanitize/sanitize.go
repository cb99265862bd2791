package sanitize

import "beacon/pkg/parse"

// Attributes whitelists an arbitrary attribute map down to the value shapes
// the wire format accepts: scalars, arrays of scalars, and one level of
// scalar-valued nested maps. Anything else (functions never reach us here,
// but nested arrays, deep objects and nils do) is dropped without error.
func Attributes(attrs map[string]interface{}) map[string]interface{} {
	if attrs == nil {
		return nil
	}

	out := make(map[string]interface{}, len(attrs))
	for key, value := range attrs {
		switch v := value.(type) {
		case nil:
			out[key] = nil
		case []interface{}:
			if arr := scalarArray(v); arr != nil {
				out[key] = arr
			}
		case map[string]interface{}:
			if m := scalarMap(v); m != nil {
				out[key] = m
			}
		default:
			if parse.IsScalar(v) {
				out[key] = v
			}
		}
	}
	return out
}

func scalarArray(arr []interface{}) []interface{} {
	out := make([]interface{}, 0, len(arr))
	for _, el := range arr {
		if parse.IsScalar(el) {
			out = append(out, el)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func scalarMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if parse.IsScalar(v) {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
