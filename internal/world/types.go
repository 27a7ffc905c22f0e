// Package world models the slice of the host platform the effect engine
// needs: actors and items with namespaced flag storage, native effects,
// and lifecycle event dispatch. The real host owns persistence; the
// in-memory implementation here backs tests, the CLI and the MCP surface.
package world

import (
	"encoding/json"
)

// ChangeMode selects how a change mutates the targeted attribute.
type ChangeMode int

const (
	ModeCustom    ChangeMode = 0
	ModeMultiply  ChangeMode = 1
	ModeAdd       ChangeMode = 2
	ModeDowngrade ChangeMode = 3
	ModeUpgrade   ChangeMode = 4
	ModeOverride  ChangeMode = 5
)

// Change is one attribute mutation carried by an effect.
type Change struct {
	Key      string     `json:"key"`
	Value    any        `json:"value"`
	Mode     ChangeMode `json:"mode"`
	Priority int        `json:"priority"`
}

type Duration struct {
	Seconds    int `json:"seconds,omitempty"`
	Rounds     int `json:"rounds,omitempty"`
	Turns      int `json:"turns,omitempty"`
	StartTime  int `json:"startTime,omitempty"`
	StartRound int `json:"startRound,omitempty"`
	StartTurn  int `json:"startTurn,omitempty"`
}

// Effect is a rule bundle attached to an actor or item. Passive effects
// reuse this shape but live inside flag storage instead of the native
// collection; those additionally persist Filter and Transfer.
type Effect struct {
	ID       string          `json:"_id,omitempty"`
	Label    string          `json:"label,omitempty"`
	Icon     string          `json:"icon,omitempty"`
	Disabled bool            `json:"disabled"`
	Origin   string          `json:"origin,omitempty"`
	Changes  []Change        `json:"changes,omitempty"`
	Duration Duration        `json:"duration"`
	Transfer *bool           `json:"transfer,omitempty"`
	Filter   json.RawMessage `json:"filter,omitempty"`
	Flags    FlagMap         `json:"flags,omitempty"`
}

// Transfers reports whether the effect transfers from an owned item onto
// the owning actor. Unset defaults to transferring.
func (e *Effect) Transfers() bool {
	return e.Transfer == nil || *e.Transfer
}

func (e *Effect) Clone() Effect {
	clone := *e
	clone.Changes = append([]Change(nil), e.Changes...)
	clone.Filter = append(json.RawMessage(nil), e.Filter...)
	clone.Flags = e.Flags.Clone()
	return clone
}

type Item struct {
	ID      string          `json:"_id,omitempty"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Img     string          `json:"img,omitempty"`
	System  json.RawMessage `json:"system,omitempty"`
	Effects []Effect        `json:"effects,omitempty"`
	Flags   FlagMap         `json:"flags,omitempty"`
}

func (i *Item) Clone() Item {
	clone := *i
	clone.System = append(json.RawMessage(nil), i.System...)
	clone.Effects = cloneEffects(i.Effects)
	clone.Flags = i.Flags.Clone()
	return clone
}

// RollData is the item's flattened attribute source. Items expose their
// system document as-is.
func (i *Item) RollData() json.RawMessage {
	return i.System
}

type Actor struct {
	ID      string          `json:"_id,omitempty"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	System  json.RawMessage `json:"system,omitempty"`
	Items   []Item          `json:"items,omitempty"`
	Effects []Effect        `json:"effects,omitempty"`
	Flags   FlagMap         `json:"flags,omitempty"`

	// Derived is the effect-applied system snapshot, rebuilt by the
	// apply routine. It is never persisted.
	Derived json.RawMessage `json:"-"`

	clone bool
}

// Item returns the owned item with the given id, or nil.
func (a *Actor) Item(id string) *Item {
	for i := range a.Items {
		if a.Items[i].ID == id {
			return &a.Items[i]
		}
	}
	return nil
}

// EffectByID returns the native effect with the given id, or nil.
func (a *Actor) EffectByID(id string) *Effect {
	for i := range a.Effects {
		if a.Effects[i].ID == id {
			return &a.Effects[i]
		}
	}
	return nil
}

// RollData is the actor's flattened attribute source: the derived snapshot
// when one has been computed, the base system document otherwise.
func (a *Actor) RollData() json.RawMessage {
	if len(a.Derived) > 0 {
		return a.Derived
	}
	return a.System
}

// Clone returns a deep, throwaway copy. Clones are used to recompute
// derived state from hypothetical data; reconciliation never runs on them.
func (a *Actor) Clone() *Actor {
	clone := &Actor{
		ID:      a.ID,
		Name:    a.Name,
		Type:    a.Type,
		System:  append(json.RawMessage(nil), a.System...),
		Derived: append(json.RawMessage(nil), a.Derived...),
		Effects: cloneEffects(a.Effects),
		Flags:   a.Flags.Clone(),
		clone:   true,
	}
	for _, item := range a.Items {
		clone.Items = append(clone.Items, item.Clone())
	}
	return clone
}

// IsClone reports whether this instance is a throwaway recompute copy
// rather than the canonical persisted actor.
func (a *Actor) IsClone() bool {
	return a.clone
}

func cloneEffects(effects []Effect) []Effect {
	if effects == nil {
		return nil
	}
	clones := make([]Effect, 0, len(effects))
	for i := range effects {
		clones = append(clones, effects[i].Clone())
	}
	return clones
}

// Origin reference strings, e.g. "Actor.abc" or "Actor.abc.OwnedItem.def".
const (
	KindActor = "Actor"
	KindItem  = "Item"
)

func (a *Actor) EntityKind() string { return KindActor }
func (a *Actor) EntityID() string   { return a.ID }
func (a *Actor) OriginRef() string  { return KindActor + "." + a.ID }

func (i *Item) EntityKind() string { return KindItem }
func (i *Item) EntityID() string   { return i.ID }
func (i *Item) OriginRef() string  { return KindItem + "." + i.ID }
