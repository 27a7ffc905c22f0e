package effect

import (
	"context"
	"fmt"

	"effectcraft/internal/filter"
	"effectcraft/internal/passive"
	"effectcraft/internal/rolldata"
	"effectcraft/internal/world"
)

// Flag keys under the configured namespace.
const (
	FlagItems         = "items"
	FlagItemsNextID   = "itemsNextId"
	FlagFilters       = "filters"
	FlagFilterMatches = "filterMatches"
	FlagItemKey       = "effectItemKey"
)

// Resolver builds wrapped effects against one world and configuration.
type Resolver struct {
	World      world.World
	Namespace  string
	GrantTypes []string
}

// Wrapped is a uniform accessor over one native or passive effect.
type Wrapped struct {
	r      *Resolver
	parent ParentRef
	ref    EffectRef
}

// Wrap validates the references; resolution of the actual record is
// deferred to each call so the wrapper never serves a stale snapshot.
func (r *Resolver) Wrap(parent ParentRef, ref EffectRef) (*Wrapped, error) {
	if err := validateRefs(parent, ref); err != nil {
		return nil, err
	}
	return &Wrapped{r: r, parent: parent, ref: ref}, nil
}

// parentEntities resolves the parent reference. A dangling id fails
// loudly; silently defaulting would corrupt reconciliation state.
func (w *Wrapped) parentEntities() (*world.Actor, *world.Item, error) {
	switch {
	case w.parent.Actor != nil:
		return w.parent.Actor, nil, nil
	case w.parent.Item != nil:
		return nil, w.parent.Item, nil
	case w.parent.ActorID != "":
		actor := w.r.World.Actor(w.parent.ActorID)
		if actor == nil {
			return nil, nil, fmt.Errorf("parent actor %s not found", w.parent.ActorID)
		}
		return actor, nil, nil
	default:
		item := w.r.World.Item(w.parent.ItemID)
		if item == nil {
			return nil, nil, fmt.Errorf("parent item %s not found", w.parent.ItemID)
		}
		return nil, item, nil
	}
}

// record resolves the underlying effect. A missing record is (nil, nil):
// the effect may have been deleted, which downstream treats as disabled.
func (w *Wrapped) record() (*world.Effect, error) {
	if w.ref.Native != nil {
		return w.ref.Native, nil
	}
	if w.ref.Passive != nil {
		return w.ref.Passive, nil
	}

	actor, item, err := w.parentEntities()
	if err != nil {
		return nil, err
	}

	if w.ref.NativeID != "" {
		if actor != nil {
			return actor.EffectByID(w.ref.NativeID), nil
		}
		for i := range item.Effects {
			if item.Effects[i].ID == w.ref.NativeID {
				return &item.Effects[i], nil
			}
		}
		return nil, nil
	}

	var flags world.FlagMap
	if actor != nil {
		flags = actor.Flags
	} else {
		flags = item.Flags
	}
	stored := passive.DecodeFlag(flags, w.r.Namespace)
	for i := range stored.PassiveEffects {
		if stored.PassiveEffects[i].ID == w.ref.PassiveID {
			return &stored.PassiveEffects[i], nil
		}
	}
	return nil, nil
}

func (w *Wrapped) isPassive() bool {
	return w.ref.Passive != nil || w.ref.PassiveID != ""
}

// ID returns the wrapped effect's id, or "" when it cannot be resolved.
func (w *Wrapped) ID() string {
	record, err := w.record()
	if err != nil || record == nil {
		return ""
	}
	return record.ID
}

// Snapshot returns a copy of the current record, or nil when it cannot
// be resolved. Mutating the copy has no effect on the stored record.
func (w *Wrapped) Snapshot() *world.Effect {
	record, err := w.record()
	if err != nil || record == nil {
		return nil
	}
	clone := record.Clone()
	return &clone
}

// IsEnabled reports whether the effect currently applies: resolvable, not
// disabled, and not flagged as failing its filter by the last apply pass.
func (w *Wrapped) IsEnabled() bool {
	record, err := w.record()
	if err != nil || record == nil {
		return false
	}
	if record.Disabled {
		return false
	}
	if matches, ok := record.Flags.Get(w.r.Namespace, FlagFilterMatches); ok {
		if matched, isBool := matches.(bool); isBool && !matched {
			return false
		}
	}
	return true
}

// SetFilterMatches caches the filter evaluation onto the effect's flags so
// consumers of IsEnabled see a pre-filtered state without re-evaluating.
func (w *Wrapped) SetFilterMatches(matches bool) error {
	record, err := w.record()
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("effect not found")
	}
	record.Flags.Set(w.r.Namespace, FlagFilterMatches, matches)
	return nil
}

// ReadFilter returns the stored filter: the inline record filter for
// passive effects, the filters flag for native ones. A malformed stored
// filter degrades to never matching so a broken filter cannot enable an
// effect.
func (w *Wrapped) ReadFilter() *filter.Filter {
	record, err := w.record()
	if err != nil || record == nil {
		return filter.Never()
	}

	if w.isPassive() || len(record.Filter) > 0 {
		parsed, err := filter.ParseJSON(record.Filter)
		if err != nil {
			return filter.Never()
		}
		return parsed
	}

	raw, ok := record.Flags.Get(w.r.Namespace, FlagFilters)
	if !ok || raw == nil {
		return filter.Always()
	}
	parsed, err := filter.Parse(raw)
	if err != nil {
		return filter.Never()
	}
	return parsed
}

// MatchesRecord evaluates the stored filter against the flattened actor
// snapshot. Fields of the effect's source item are merged under the
// "item" prefix so item-scoped conditions see them.
func (w *Wrapped) MatchesRecord(base map[string]any) bool {
	return w.ReadFilter().Matches(w.filterScope(base))
}

func (w *Wrapped) filterScope(base map[string]any) map[string]any {
	item := w.SourceItem()
	if item == nil {
		return base
	}
	merged := make(map[string]any, len(base)+8)
	for key, value := range base {
		merged[key] = value
	}
	rolldata.FlattenInto(merged, "item", item.RollData())
	return merged
}

// WriteFilter validates and persists a raw filter document. Nothing is
// written when validation fails.
func (w *Wrapped) WriteFilter(ctx context.Context, raw any) error {
	parsed, err := filter.Parse(raw)
	if err != nil {
		return err
	}

	record, err := w.record()
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("effect not found")
	}

	if w.isPassive() {
		normalized, err := parsed.NormalizedJSON()
		if err != nil {
			return err
		}
		updated := record.Clone()
		updated.Filter = normalized
		return w.updatePassive(ctx, updated)
	}

	updated := record.Clone()
	updated.Flags.Set(w.r.Namespace, FlagFilters, parsed.Normalized())
	return w.persistNative(ctx, updated)
}

func (w *Wrapped) persistNative(ctx context.Context, record world.Effect) error {
	actor, item, err := w.parentEntities()
	if err != nil {
		return err
	}
	if actor != nil {
		return w.r.World.UpdateEffect(ctx, actor.ID, record)
	}
	return w.r.World.UpdateItemEffect(ctx, item.ID, record)
}

func (w *Wrapped) updatePassive(ctx context.Context, record world.Effect) error {
	actor, item, err := w.parentEntities()
	if err != nil {
		return err
	}
	kind, id := world.KindActor, ""
	if actor != nil {
		id = actor.ID
	} else {
		kind, id = world.KindItem, item.ID
	}
	store, err := passive.NewStore(w.r.World, w.r.Namespace, kind, id, nil)
	if err != nil {
		return err
	}
	_, err = store.Update(ctx, record.ID, record)
	return err
}
