package interpolate

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Stringify renders a resolved value into the text that replaces a {{...}}
// token: strings pass through unchanged, numbers/booleans use their
// canonical textual form, nil becomes the empty string, and composite
// values are rendered as compact JSON (spec.md §4.3).
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return Stringify(float64(t))
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
