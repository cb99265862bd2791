package event

import "beacon/pkg/parse"

// ConvertCustomFlags projects a custom-flags map into lists of stringified
// scalars. Array values keep only their scalar elements; scalar values become
// single-element lists; anything else (objects, nils, empty arrays) produces
// no entry for that flag.
func ConvertCustomFlags(flags map[string]interface{}) map[string][]string {
	dto := make(map[string][]string)

	for name, value := range flags {
		var values []string

		switch v := value.(type) {
		case []interface{}:
			for _, el := range v {
				if parse.IsScalar(el) {
					values = append(values, parse.Stringify(el))
				}
			}
		default:
			if parse.IsScalar(v) {
				values = append(values, parse.Stringify(v))
			}
		}

		if len(values) > 0 {
			dto[name] = values
		}
	}

	return dto
}
