package rolldata

import (
	"reflect"
	"testing"
)

func TestFlatten(t *testing.T) {
	t.Run("nested objects", func(t *testing.T) {
		flat := Flatten([]byte(`{"abilities":{"str":{"value":16,"mod":3}},"name":"Brug"}`))
		want := map[string]any{
			"abilities.str.value": float64(16),
			"abilities.str.mod":   float64(3),
			"name":                "Brug",
		}
		if !reflect.DeepEqual(flat, want) {
			t.Fatalf("unexpected record: %#v", flat)
		}
	})

	t.Run("arrays flatten by index", func(t *testing.T) {
		flat := Flatten([]byte(`{"saves":[10,12]}`))
		if flat["saves.0"] != float64(10) || flat["saves.1"] != float64(12) {
			t.Fatalf("unexpected record: %#v", flat)
		}
	})

	t.Run("scalar kinds", func(t *testing.T) {
		flat := Flatten([]byte(`{"a":"x","b":2.5,"c":true,"d":false,"e":null}`))
		want := map[string]any{"a": "x", "b": 2.5, "c": true, "d": false, "e": nil}
		if !reflect.DeepEqual(flat, want) {
			t.Fatalf("unexpected record: %#v", flat)
		}
	})

	t.Run("invalid document yields empty record", func(t *testing.T) {
		if flat := Flatten([]byte(`{`)); len(flat) != 0 {
			t.Fatalf("expected empty record, got %#v", flat)
		}
		if flat := Flatten(nil); len(flat) != 0 {
			t.Fatalf("expected empty record, got %#v", flat)
		}
	})

	t.Run("merge under prefix", func(t *testing.T) {
		flat := Flatten([]byte(`{"hp":10}`))
		FlattenInto(flat, "item", []byte(`{"uses":{"value":2}}`))
		if flat["hp"] != float64(10) || flat["item.uses.value"] != float64(2) {
			t.Fatalf("unexpected record: %#v", flat)
		}
	})
}
