// Package passive stores effects as structured data inside an entity's
// flag storage, for entities the host gives no native effect collection.
// Records keep the native effect shape plus an inline filter, and ids come
// from a persisted counter that never reuses a value.
package passive

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"effectcraft/internal/ledger"
	"effectcraft/internal/world"
)

// FlagKey is the single namespaced flag holding the whole store.
const FlagKey = "passiveEffects"

// IDPrefix starts every passive effect id.
const IDPrefix = "PassiveEffect."

// OwnedItemCollection is the embedded collection name used in composite
// ids and rewritten origins for effects transferred from owned items.
const OwnedItemCollection = "OwnedItem"

// Flag is the persisted shape of the store.
type Flag struct {
	NextID         int            `json:"nextId"`
	PassiveEffects []world.Effect `json:"passiveEffects"`
}

// Store gives CRUD over the passive effects of one actor or directory
// item. The parent is resolved on every call so a store never serves
// stale records across host updates.
type Store struct {
	w         world.World
	namespace string
	kind      string
	id        string
	guard     *Guard
}

// NewStore scopes a store to one entity. The guard serializes transfer
// recomputation; nil disables the re-entrancy protection (tests only).
func NewStore(w world.World, namespace, kind, id string, guard *Guard) (*Store, error) {
	if kind != world.KindActor && kind != world.KindItem {
		return nil, fmt.Errorf("unsupported parent kind %q", kind)
	}
	if id == "" {
		return nil, fmt.Errorf("parent id is required")
	}
	return &Store{w: w, namespace: namespace, kind: kind, id: id, guard: guard}, nil
}

// List returns the stored passive effects in order.
func (s *Store) List() ([]world.Effect, error) {
	flag, _, err := s.read()
	if err != nil {
		return nil, err
	}
	return flag.PassiveEffects, nil
}

// Get returns the stored effect with the given id, or nil.
func (s *Store) Get(id string) (*world.Effect, error) {
	flag, _, err := s.read()
	if err != nil {
		return nil, err
	}
	for i := range flag.PassiveEffects {
		if flag.PassiveEffects[i].ID == id {
			effect := flag.PassiveEffects[i]
			return &effect, nil
		}
	}
	return nil, nil
}

// Create assigns the next id, defaults the origin to the parent, appends
// and persists. A record that already carries an id is rejected.
func (s *Store) Create(ctx context.Context, data world.Effect) (world.Effect, error) {
	if data.ID != "" {
		return world.Effect{}, fmt.Errorf("passive effect already has id %s", data.ID)
	}
	if len(data.Filter) > 0 {
		if err := validFilter(data.Filter); err != nil {
			return world.Effect{}, err
		}
	}

	flag, originRef, err := s.read()
	if err != nil {
		return world.Effect{}, err
	}

	alloc := ledger.New(flag.NextID)
	data.ID = IDPrefix + strconv.Itoa(alloc.Alloc())
	if data.Origin == "" {
		data.Origin = originRef
	}
	flag.NextID = alloc.Next()
	flag.PassiveEffects = append(flag.PassiveEffects, data)

	if err := s.write(ctx, flag); err != nil {
		return world.Effect{}, err
	}
	return data, nil
}

// Update replaces the matching record in place, preserving its id and
// defaulting a cleared origin back to the parent.
func (s *Store) Update(ctx context.Context, id string, data world.Effect) (world.Effect, error) {
	if id == "" {
		return world.Effect{}, fmt.Errorf("passive effect id is required")
	}
	if len(data.Filter) > 0 {
		if err := validFilter(data.Filter); err != nil {
			return world.Effect{}, err
		}
	}

	flag, originRef, err := s.read()
	if err != nil {
		return world.Effect{}, err
	}

	for i := range flag.PassiveEffects {
		if flag.PassiveEffects[i].ID != id {
			continue
		}
		data.ID = id
		if data.Origin == "" {
			data.Origin = originRef
		}
		flag.PassiveEffects[i] = data
		if err := s.write(ctx, flag); err != nil {
			return world.Effect{}, err
		}
		return data, nil
	}
	return world.Effect{}, fmt.Errorf("passive effect %s not found", id)
}

// Delete removes the matching record. The id counter is left untouched so
// it is never reissued.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("passive effect id is required")
	}

	flag, _, err := s.read()
	if err != nil {
		return err
	}

	remaining := flag.PassiveEffects[:0:0]
	found := false
	for _, effect := range flag.PassiveEffects {
		if effect.ID == id {
			found = true
			continue
		}
		remaining = append(remaining, effect)
	}
	if !found {
		return fmt.Errorf("passive effect %s not found", id)
	}
	flag.PassiveEffects = remaining
	return s.write(ctx, flag)
}

func (s *Store) read() (Flag, string, error) {
	switch s.kind {
	case world.KindActor:
		actor := s.w.Actor(s.id)
		if actor == nil {
			return Flag{}, "", fmt.Errorf("parent actor %s not found", s.id)
		}
		return DecodeFlag(actor.Flags, s.namespace), actor.OriginRef(), nil
	default:
		item := s.w.Item(s.id)
		if item == nil {
			return Flag{}, "", fmt.Errorf("parent item %s not found", s.id)
		}
		return DecodeFlag(item.Flags, s.namespace), item.OriginRef(), nil
	}
}

func (s *Store) write(ctx context.Context, flag Flag) error {
	value, err := encodeFlag(flag)
	if err != nil {
		return err
	}
	return s.w.SetEntityFlag(ctx, s.kind, s.id, s.namespace, FlagKey, value)
}

// DecodeFlag reads the passive-effect store out of an entity's flags.
// Missing or malformed data defaults to an empty store, and a lost counter
// is recovered from the highest surviving id.
func DecodeFlag(flags world.FlagMap, namespace string) Flag {
	raw, ok := flags.Get(namespace, FlagKey)
	if !ok || raw == nil {
		return Flag{}
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return Flag{}
	}

	var probe struct {
		NextID         any            `json:"nextId"`
		PassiveEffects []world.Effect `json:"passiveEffects"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Flag{}
	}

	flag := Flag{PassiveEffects: probe.PassiveEffects}
	if next, ok := probe.NextID.(float64); ok {
		flag.NextID = int(next)
	} else {
		var ids []int
		for _, effect := range flag.PassiveEffects {
			if n, ok := NumericSuffix(effect.ID); ok {
				ids = append(ids, n)
			}
		}
		alloc := ledger.Recover(ids)
		flag.NextID = alloc.Next()
	}
	return flag
}

func encodeFlag(flag Flag) (any, error) {
	data, err := json.Marshal(flag)
	if err != nil {
		return nil, fmt.Errorf("encoding passive effects: %w", err)
	}
	var value map[string]any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("encoding passive effects: %w", err)
	}
	return value, nil
}

// NumericSuffix extracts the trailing number of a passive effect id.
func NumericSuffix(id string) (int, bool) {
	dot := strings.LastIndex(id, ".")
	if dot == -1 {
		return 0, false
	}
	n, err := strconv.Atoi(id[dot+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
