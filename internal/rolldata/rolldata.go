// Package rolldata flattens an entity's computed attribute snapshot into
// the single-level key→scalar record that filters evaluate against.
package rolldata

import (
	"strconv"

	"github.com/tidwall/gjson"
)

// Flatten converts a nested JSON document into dotted-path keys, so
// {"abilities":{"str":{"value":16}}} yields "abilities.str.value" -> 16.
// Array elements flatten by index. Invalid JSON yields an empty record.
func Flatten(doc []byte) map[string]any {
	flat := make(map[string]any)
	if len(doc) == 0 || !gjson.ValidBytes(doc) {
		return flat
	}
	flattenResult(flat, "", gjson.ParseBytes(doc))
	return flat
}

// FlattenInto merges a document into an existing record under a key prefix.
// The apply pass uses it to expose source-item fields next to actor fields.
func FlattenInto(flat map[string]any, prefix string, doc []byte) {
	if len(doc) == 0 || !gjson.ValidBytes(doc) {
		return
	}
	flattenResult(flat, prefix, gjson.ParseBytes(doc))
}

func flattenResult(flat map[string]any, prefix string, result gjson.Result) {
	if result.IsObject() || result.IsArray() {
		index := 0
		result.ForEach(func(key, value gjson.Result) bool {
			childKey := key.String()
			if result.IsArray() {
				childKey = strconv.Itoa(index)
				index++
			}
			if prefix != "" {
				childKey = prefix + "." + childKey
			}
			flattenResult(flat, childKey, value)
			return true
		})
		return
	}

	if prefix == "" {
		return
	}
	flat[prefix] = scalar(result)
}

func scalar(result gjson.Result) any {
	switch result.Type {
	case gjson.String:
		return result.Str
	case gjson.Number:
		return result.Num
	case gjson.True:
		return true
	case gjson.False:
		return false
	default:
		return nil
	}
}
