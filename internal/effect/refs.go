// Package effect wraps native and passive effect records behind one
// accessor: enabled state, provenance, granted items and the stored
// filter, regardless of where the record lives.
package effect

import (
	"fmt"

	"effectcraft/internal/world"
)

// ParentRef names the entity owning the effect, by id or by live handle.
// Exactly one field must be populated.
type ParentRef struct {
	ActorID string
	ItemID  string
	Actor   *world.Actor
	Item    *world.Item
}

func (r ParentRef) populated() int {
	count := 0
	if r.ActorID != "" {
		count++
	}
	if r.ItemID != "" {
		count++
	}
	if r.Actor != nil {
		count++
	}
	if r.Item != nil {
		count++
	}
	return count
}

// EffectRef names the effect, by id or by live handle, native or passive.
// Exactly one field must be populated.
type EffectRef struct {
	NativeID  string
	PassiveID string
	Native    *world.Effect
	Passive   *world.Effect
}

func (r EffectRef) populated() int {
	count := 0
	if r.NativeID != "" {
		count++
	}
	if r.PassiveID != "" {
		count++
	}
	if r.Native != nil {
		count++
	}
	if r.Passive != nil {
		count++
	}
	return count
}

func validateRefs(parent ParentRef, ref EffectRef) error {
	if n := parent.populated(); n != 1 {
		return fmt.Errorf("parent reference must have exactly one field populated, got %d", n)
	}
	if n := ref.populated(); n != 1 {
		return fmt.Errorf("effect reference must have exactly one field populated, got %d", n)
	}
	return nil
}
