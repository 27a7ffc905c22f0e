package world

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ApplyActiveEffects is the host's native derived-state computation: it
// rebuilds the actor's Derived snapshot by applying the changes of every
// enabled effect in the actor's current effect collection, in ascending
// priority order. Decorators swap the collection before invoking this.
func ApplyActiveEffects(_ context.Context, actor *Actor) error {
	base := make(map[string]any)
	if len(actor.System) > 0 {
		if err := json.Unmarshal(actor.System, &base); err != nil {
			return fmt.Errorf("decoding system data for actor %s: %w", actor.ID, err)
		}
	}

	var changes []Change
	for i := range actor.Effects {
		if actor.Effects[i].Disabled {
			continue
		}
		changes = append(changes, actor.Effects[i].Changes...)
	}
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Priority < changes[j].Priority
	})

	for _, change := range changes {
		applyChange(base, change)
	}

	derived, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("encoding derived data for actor %s: %w", actor.ID, err)
	}
	actor.Derived = derived
	return nil
}

func applyChange(doc map[string]any, change Change) {
	switch change.Mode {
	case ModeAdd:
		updatePath(doc, change.Key, func(old any) any {
			oldNum, oldOK := changeNumber(old)
			newNum, newOK := changeNumber(change.Value)
			if oldOK && newOK {
				return oldNum + newNum
			}
			if old == nil {
				return change.Value
			}
			return fmt.Sprintf("%v%v", old, change.Value)
		})
	case ModeMultiply:
		updatePath(doc, change.Key, func(old any) any {
			oldNum, oldOK := changeNumber(old)
			newNum, newOK := changeNumber(change.Value)
			if oldOK && newOK {
				return oldNum * newNum
			}
			return old
		})
	case ModeOverride:
		updatePath(doc, change.Key, func(any) any { return change.Value })
	case ModeUpgrade:
		updatePath(doc, change.Key, func(old any) any {
			oldNum, oldOK := changeNumber(old)
			newNum, newOK := changeNumber(change.Value)
			if oldOK && newOK && newNum > oldNum {
				return newNum
			}
			if !oldOK {
				return change.Value
			}
			return old
		})
	case ModeDowngrade:
		updatePath(doc, change.Key, func(old any) any {
			oldNum, oldOK := changeNumber(old)
			newNum, newOK := changeNumber(change.Value)
			if oldOK && newOK && newNum < oldNum {
				return newNum
			}
			if !oldOK {
				return change.Value
			}
			return old
		})
	case ModeCustom:
		// Custom changes are system-specific; the engine leaves them alone.
	}
}

// updatePath walks a dotted key into the document, creating intermediate
// objects, and replaces the leaf via fn.
func updatePath(doc map[string]any, key string, fn func(old any) any) {
	parts := strings.Split(key, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		child, ok := current[part].(map[string]any)
		if !ok {
			child = make(map[string]any)
			current[part] = child
		}
		current = child
	}
	leaf := parts[len(parts)-1]
	current[leaf] = fn(current[leaf])
}

func changeNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
