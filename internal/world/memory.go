package world

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrVetoed reports that a pre-hook cancelled the operation. No state
// changes when an operation is vetoed.
var ErrVetoed = errors.New("operation vetoed")

// Memory is an in-process world: entity directory, flag storage and hook
// dispatch with no external persistence. It backs tests and, combined with
// a store snapshot, the CLI and MCP surfaces.
type Memory struct {
	hooks  *Hooks
	actors map[string]*Actor
	items  map[string]*Item

	nextEffectID int
	nextItemID   int
}

var _ World = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		hooks:  NewHooks(),
		actors: make(map[string]*Actor),
		items:  make(map[string]*Item),
	}
}

func (m *Memory) Hooks() *Hooks {
	return m.hooks
}

// AddActor registers an actor without firing lifecycle events; ids are
// assigned when absent. Used for seeding and snapshot loading.
func (m *Memory) AddActor(actor *Actor) *Actor {
	if actor.ID == "" {
		actor.ID = m.allocID("actor")
	}
	m.actors[actor.ID] = actor
	return actor
}

// AddItem registers a directory (non-owned) item without firing events.
func (m *Memory) AddItem(item *Item) *Item {
	if item.ID == "" {
		item.ID = m.allocID("item")
	}
	m.items[item.ID] = item
	return item
}

func (m *Memory) Actor(id string) *Actor {
	return m.actors[id]
}

// Item returns the directory item with the given id, falling back to a
// scan of owned items so flag storage on either kind resolves the same
// way.
func (m *Memory) Item(id string) *Item {
	if item := m.items[id]; item != nil {
		return item
	}
	_, item := m.ownedItem(id)
	return item
}

// DirectoryItem returns only a directory item, nil when the id belongs
// to an owned item or nothing.
func (m *Memory) DirectoryItem(id string) *Item {
	return m.items[id]
}

// Owner returns the actor holding the owned item, nil when the id is not
// an owned item.
func (m *Memory) Owner(itemID string) *Actor {
	actor, item := m.ownedItem(itemID)
	if item == nil {
		return nil
	}
	return actor
}

// Actors returns every registered actor in unspecified order.
func (m *Memory) Actors() []*Actor {
	actors := make([]*Actor, 0, len(m.actors))
	for _, actor := range m.actors {
		actors = append(actors, actor)
	}
	return actors
}

// CreateEffect appends a native effect to the actor and fires
// createActiveEffect. An empty id is assigned.
func (m *Memory) CreateEffect(ctx context.Context, actorID string, effect Effect) (Effect, error) {
	actor, err := m.requireActor(actorID)
	if err != nil {
		return Effect{}, err
	}
	if effect.ID == "" {
		effect.ID = m.allocID("effect")
	}
	actor.Effects = append(actor.Effects, effect)
	m.hooks.Call(HookCreateEffect, EffectEvent{Actor: actor, Effect: effect})
	return effect, nil
}

// UpdateEffect replaces the matching native effect and fires
// updateActiveEffect.
func (m *Memory) UpdateEffect(ctx context.Context, actorID string, effect Effect) error {
	actor, err := m.requireActor(actorID)
	if err != nil {
		return err
	}
	existing := actor.EffectByID(effect.ID)
	if existing == nil {
		return fmt.Errorf("actor %s has no effect %s", actorID, effect.ID)
	}
	*existing = effect
	m.hooks.Call(HookUpdateEffect, EffectEvent{Actor: actor, Effect: effect})
	return nil
}

// UpdateItemEffect replaces the matching native effect on a directory
// item. Directory items have no owning actor, so no actor hook fires.
func (m *Memory) UpdateItemEffect(ctx context.Context, itemID string, effect Effect) error {
	item := m.items[itemID]
	if item == nil {
		return fmt.Errorf("item %s not found", itemID)
	}
	for i := range item.Effects {
		if item.Effects[i].ID == effect.ID {
			item.Effects[i] = effect
			return nil
		}
	}
	return fmt.Errorf("item %s has no effect %s", itemID, effect.ID)
}

// DeleteEffect removes the matching native effect and fires
// deleteActiveEffect.
func (m *Memory) DeleteEffect(ctx context.Context, actorID, effectID string) error {
	actor, err := m.requireActor(actorID)
	if err != nil {
		return err
	}
	for i := range actor.Effects {
		if actor.Effects[i].ID == effectID {
			deleted := actor.Effects[i]
			actor.Effects = append(actor.Effects[:i:i], actor.Effects[i+1:]...)
			m.hooks.Call(HookDeleteEffect, EffectEvent{Actor: actor, Effect: deleted})
			return nil
		}
	}
	return fmt.Errorf("actor %s has no effect %s", actorID, effectID)
}

// CreateOwnedItem appends an item to the actor and fires createOwnedItem.
func (m *Memory) CreateOwnedItem(ctx context.Context, actorID string, item Item) (Item, error) {
	actor, err := m.requireActor(actorID)
	if err != nil {
		return Item{}, err
	}
	if item.ID == "" {
		item.ID = m.allocID("item")
	}
	actor.Items = append(actor.Items, item)
	m.hooks.Call(HookCreateItem, ItemEvent{Actor: actor, Item: item})
	return item, nil
}

// UpdateOwnedItem replaces an owned item after the preUpdateOwnedItem
// hooks allow it; a veto leaves the actor untouched and returns ErrVetoed.
func (m *Memory) UpdateOwnedItem(ctx context.Context, actorID string, item Item, diff map[string]any) error {
	actor, err := m.requireActor(actorID)
	if err != nil {
		return err
	}
	existing := actor.Item(item.ID)
	if existing == nil {
		return fmt.Errorf("actor %s has no item %s", actorID, item.ID)
	}
	if !m.hooks.CallPre(HookPreUpdateItem, ItemEvent{Actor: actor, Item: *existing, Diff: diff}) {
		return fmt.Errorf("updating item %s: %w", item.ID, ErrVetoed)
	}
	*existing = item
	m.hooks.Call(HookUpdateItem, ItemEvent{Actor: actor, Item: item, Diff: diff})
	return nil
}

// DeleteOwnedItem removes an owned item after the preDeleteOwnedItem hooks
// allow it.
func (m *Memory) DeleteOwnedItem(ctx context.Context, actorID, itemID string) error {
	actor, err := m.requireActor(actorID)
	if err != nil {
		return err
	}
	for i := range actor.Items {
		if actor.Items[i].ID != itemID {
			continue
		}
		deleted := actor.Items[i]
		if !m.hooks.CallPre(HookPreDeleteItem, ItemEvent{Actor: actor, Item: deleted}) {
			return fmt.Errorf("deleting item %s: %w", itemID, ErrVetoed)
		}
		actor.Items = append(actor.Items[:i:i], actor.Items[i+1:]...)
		m.hooks.Call(HookDeleteItem, ItemEvent{Actor: actor, Item: deleted})
		return nil
	}
	return fmt.Errorf("actor %s has no item %s", actorID, itemID)
}

// UpdateActorItems replaces the actor's item list wholesale and fires a
// single updateActor event flagging the item change. This is the batched
// write the reconciler issues; pre-hooks deliberately do not run for it.
func (m *Memory) UpdateActorItems(ctx context.Context, actorID string, items []Item) error {
	actor, err := m.requireActor(actorID)
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = m.allocID("item")
		}
	}
	actor.Items = items
	m.hooks.Call(HookUpdateActor, ActorEvent{Actor: actor, ItemsChanged: true, HasDiff: true})
	return nil
}

func (m *Memory) SetEntityFlag(ctx context.Context, kind, id, namespace, key string, value any) error {
	switch kind {
	case KindActor:
		actor, err := m.requireActor(id)
		if err != nil {
			return err
		}
		actor.Flags.Set(namespace, key, value)
		m.hooks.Call(HookUpdateActor, ActorEvent{
			Actor:   actor,
			Flags:   FlagDiff{namespace + "." + key: value},
			HasDiff: true,
		})
		return nil
	case KindItem:
		if item := m.items[id]; item != nil {
			item.Flags.Set(namespace, key, value)
			return nil
		}
		actor, item := m.ownedItem(id)
		if item == nil {
			return fmt.Errorf("item %s not found", id)
		}
		item.Flags.Set(namespace, key, value)
		m.hooks.Call(HookUpdateItem, ItemEvent{
			Actor: actor,
			Item:  *item,
			Diff:  map[string]any{"flags": map[string]any{namespace: map[string]any{key: value}}},
		})
		return nil
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}
}

func (m *Memory) UnsetEntityFlag(ctx context.Context, kind, id, namespace, key string) error {
	switch kind {
	case KindActor:
		actor, err := m.requireActor(id)
		if err != nil {
			return err
		}
		actor.Flags.Unset(namespace, key)
		m.hooks.Call(HookUpdateActor, ActorEvent{
			Actor:   actor,
			Flags:   FlagDiff{namespace + ".-=" + key: nil},
			HasDiff: true,
		})
		return nil
	case KindItem:
		if item := m.items[id]; item != nil {
			item.Flags.Unset(namespace, key)
			return nil
		}
		actor, item := m.ownedItem(id)
		if item == nil {
			return fmt.Errorf("item %s not found", id)
		}
		item.Flags.Unset(namespace, key)
		m.hooks.Call(HookUpdateItem, ItemEvent{
			Actor: actor,
			Item:  *item,
			Diff:  map[string]any{"flags": map[string]any{namespace: map[string]any{"-=" + key: nil}}},
		})
		return nil
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}
}

func (m *Memory) requireActor(id string) (*Actor, error) {
	actor := m.actors[id]
	if actor == nil {
		return nil, fmt.Errorf("actor %s not found", id)
	}
	return actor, nil
}

func (m *Memory) ownedItem(id string) (*Actor, *Item) {
	for _, actor := range m.actors {
		if item := actor.Item(id); item != nil {
			return actor, item
		}
	}
	return nil, nil
}

func (m *Memory) allocID(prefix string) string {
	switch prefix {
	case "effect":
		m.nextEffectID++
		return "effect-" + strconv.Itoa(m.nextEffectID)
	default:
		m.nextItemID++
		return prefix + "-" + strconv.Itoa(m.nextItemID)
	}
}
