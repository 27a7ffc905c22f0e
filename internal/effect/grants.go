package effect

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"effectcraft/internal/ledger"
	"effectcraft/internal/world"
)

// Grant is one item an effect promises to its bearer. Two forms are
// stored: legacy inline item data, and a compendium reference resolved at
// reconciliation time. The id is local to the effect and never reused.
type Grant struct {
	ID   int             `json:"id"`
	Name string          `json:"name,omitempty"`
	Type string          `json:"type,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
	Pack string          `json:"pack,omitempty"`
	Ref  string          `json:"ref,omitempty"`
}

// Inline reports whether the grant carries its item data inline rather
// than as a compendium reference.
func (g Grant) Inline() bool {
	return len(g.Data) > 0
}

// Grants returns the effect's granted-item list. Entries that fail to
// decode or carry neither inline data nor a reference are dropped: a
// corrupt entry must not abort reconciliation of the rest.
func (w *Wrapped) Grants() []Grant {
	record, err := w.record()
	if err != nil || record == nil {
		return nil
	}
	raw, ok := record.Flags.Get(w.r.Namespace, FlagItems)
	if !ok {
		return nil
	}
	return DecodeGrants(raw)
}

// DecodeGrants decodes a raw granted-items flag value, dropping entries
// that fail to decode or carry neither inline data nor a reference.
func DecodeGrants(raw any) []Grant {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var grants []Grant
	if err := json.Unmarshal(encoded, &grants); err != nil {
		return nil
	}
	kept := grants[:0]
	for _, grant := range grants {
		if !grant.Inline() && grant.Ref == "" {
			continue
		}
		kept = append(kept, grant)
	}
	return kept
}

// AddItem records an inline item grant. Only configured item types may be
// granted; everything else is rejected before any state changes.
func (w *Wrapped) AddItem(ctx context.Context, item world.Item) (Grant, error) {
	if !w.typeAllowed(item.Type) {
		return Grant{}, fmt.Errorf("cannot grant item type %q, supported types are %s",
			item.Type, strings.Join(w.r.GrantTypes, ", "))
	}
	data, err := json.Marshal(item)
	if err != nil {
		return Grant{}, err
	}
	return w.appendGrant(ctx, Grant{Name: item.Name, Type: item.Type, Data: data})
}

// AddReference records a grant resolved from a compendium pack at
// reconciliation time.
func (w *Wrapped) AddReference(ctx context.Context, pack, ref, itemType string) (Grant, error) {
	if ref == "" {
		return Grant{}, fmt.Errorf("compendium reference must not be empty")
	}
	if itemType != "" && !w.typeAllowed(itemType) {
		return Grant{}, fmt.Errorf("cannot grant item type %q, supported types are %s",
			itemType, strings.Join(w.r.GrantTypes, ", "))
	}
	return w.appendGrant(ctx, Grant{Type: itemType, Pack: pack, Ref: ref})
}

// DeleteItems removes the grants with the given ids. Unknown ids are
// ignored; the counter is left alone so the ids stay retired.
func (w *Wrapped) DeleteItems(ctx context.Context, ids []int) error {
	record, err := w.record()
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("effect not found")
	}

	doomed := make(map[int]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}

	grants := w.Grants()
	kept := grants[:0]
	for _, grant := range grants {
		if !doomed[grant.ID] {
			kept = append(kept, grant)
		}
	}
	if len(kept) == len(grants) {
		return nil
	}

	updated := record.Clone()
	updated.Flags.Set(w.r.Namespace, FlagItems, grantValues(kept))
	return w.persist(ctx, updated)
}

func (w *Wrapped) appendGrant(ctx context.Context, grant Grant) (Grant, error) {
	record, err := w.record()
	if err != nil {
		return Grant{}, err
	}
	if record == nil {
		return Grant{}, fmt.Errorf("effect not found")
	}

	grants := w.Grants()
	alloc := w.allocator(record, grants)
	grant.ID = alloc.Alloc()
	grants = append(grants, grant)

	updated := record.Clone()
	updated.Flags.Set(w.r.Namespace, FlagItems, grantValues(grants))
	updated.Flags.Set(w.r.Namespace, FlagItemsNextID, alloc.Next())
	if err := w.persist(ctx, updated); err != nil {
		return Grant{}, err
	}
	return grant, nil
}

// allocator restores the grant id counter, falling back to recovery from
// the surviving grant ids when the counter flag was lost.
func (w *Wrapped) allocator(record *world.Effect, grants []Grant) ledger.Allocator {
	if raw, ok := record.Flags.Get(w.r.Namespace, FlagItemsNextID); ok {
		switch next := raw.(type) {
		case float64:
			return ledger.New(int(next))
		case int:
			return ledger.New(next)
		}
	}
	ids := make([]int, 0, len(grants))
	for _, grant := range grants {
		ids = append(ids, grant.ID)
	}
	return ledger.Recover(ids)
}

func (w *Wrapped) typeAllowed(itemType string) bool {
	for _, allowed := range w.r.GrantTypes {
		if allowed == itemType {
			return true
		}
	}
	return false
}

func (w *Wrapped) persist(ctx context.Context, record world.Effect) error {
	if w.isPassive() {
		return w.updatePassive(ctx, record)
	}
	return w.persistNative(ctx, record)
}

// grantValues converts grants into the plain structure flag storage holds,
// sorted by id for deterministic writes.
func grantValues(grants []Grant) []any {
	sort.Slice(grants, func(i, j int) bool { return grants[i].ID < grants[j].ID })
	encoded, err := json.Marshal(grants)
	if err != nil {
		return nil
	}
	var values []any
	if err := json.Unmarshal(encoded, &values); err != nil {
		return nil
	}
	return values
}
