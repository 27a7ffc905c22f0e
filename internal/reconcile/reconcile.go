// Package reconcile keeps an actor's owned items consistent with the item
// grants of its enabled, filter-matching effects. Each materialized item
// carries a provenance key tying it back to the grant that produced it;
// reconciliation diffs desired against managed and issues at most one
// batched item-list update per pass.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"effectcraft/internal/effect"
	"effectcraft/internal/rolldata"
	"effectcraft/internal/world"
)

// ItemSource resolves compendium-reference grants to item documents.
type ItemSource interface {
	Item(ctx context.Context, packID, entryID string) (*world.Item, error)
}

type Reconciler struct {
	world    world.World
	resolver *effect.Resolver
	packs    ItemSource
	log      logrus.FieldLogger
}

func New(w world.World, resolver *effect.Resolver, packs ItemSource, log logrus.FieldLogger) *Reconciler {
	return &Reconciler{world: w, resolver: resolver, packs: packs, log: log}
}

// Reconcile brings the actor's granted items to their desired state.
// Clones are never reconciled; they exist to recompute derived state from
// hypothetical data and must not cause persistence.
func (r *Reconciler) Reconcile(ctx context.Context, actor *world.Actor) error {
	if actor.IsClone() {
		return nil
	}

	desired, err := r.desiredItems(ctx, actor)
	if err != nil {
		return fmt.Errorf("reconciling actor %s: %w", actor.ID, err)
	}

	unmanaged, managed := partitionItems(actor.Items, r.resolver.Namespace)

	var added, dropped int
	result := make([]world.Item, 0, len(actor.Items))
	result = append(result, unmanaged...)
	for _, want := range desired {
		if current, ok := managed[want.key]; ok {
			// An existing managed item keeps its current data so user
			// edits survive reconciliation.
			result = append(result, current)
			continue
		}
		item := want.item
		item.Flags.Set(r.resolver.Namespace, effect.FlagItemKey, want.key)
		result = append(result, item)
		added++
	}
	for key := range managed {
		if _, ok := desiredKey(desired, key); !ok {
			dropped++
		}
	}

	if added == 0 && dropped == 0 {
		return nil
	}
	if r.log != nil {
		r.log.WithFields(logrus.Fields{
			"actor":   actor.ID,
			"added":   added,
			"dropped": dropped,
		}).Info("reconciling granted items")
	}
	return r.world.UpdateActorItems(ctx, actor.ID, result)
}

type desiredItem struct {
	key  string
	item world.Item
}

// desiredItems collects one entry per grant of every eligible effect,
// keyed by provenance. Eligibility evaluates the filter directly against
// the actor's roll data: the filterMatches flag stamped by the apply pass
// never survives into the fresh passive copies resolved here, and for
// native effects it may predate the state change that triggered this
// pass. Reference grants that cannot be resolved are skipped rather than
// failing the whole pass.
func (r *Reconciler) desiredItems(ctx context.Context, actor *world.Actor) ([]desiredItem, error) {
	base := rolldata.Flatten(actor.RollData())

	var desired []desiredItem
	for _, wrapped := range r.resolver.ActorEffects(actor) {
		record := wrapped.Snapshot()
		if record == nil || record.Disabled {
			continue
		}
		if !wrapped.MatchesRecord(base) {
			continue
		}
		effectID := wrapped.ID()
		for _, grant := range wrapped.Grants() {
			key := effect.ProvenanceKey(effectID, grant.ID)
			item, err := r.materialize(ctx, grant)
			if err != nil {
				if r.log != nil {
					r.log.WithFields(logrus.Fields{
						"actor": actor.ID,
						"grant": key,
					}).WithError(err).Warn("skipping unresolvable grant")
				}
				continue
			}
			desired = append(desired, desiredItem{key: key, item: item})
		}
	}
	return desired, nil
}

func (r *Reconciler) materialize(ctx context.Context, grant effect.Grant) (world.Item, error) {
	if grant.Inline() {
		var item world.Item
		if err := json.Unmarshal(grant.Data, &item); err != nil {
			return world.Item{}, fmt.Errorf("decoding grant data: %w", err)
		}
		item.ID = ""
		if item.Flags == nil {
			item.Flags = world.FlagMap{}
		}
		return item, nil
	}
	if r.packs == nil {
		return world.Item{}, fmt.Errorf("no compendium source for %s/%s", grant.Pack, grant.Ref)
	}
	found, err := r.packs.Item(ctx, grant.Pack, grant.Ref)
	if err != nil {
		return world.Item{}, err
	}
	item := found.Clone()
	item.ID = ""
	if item.Flags == nil {
		item.Flags = world.FlagMap{}
	}
	return item, nil
}

// partitionItems splits owned items by presence of the provenance key.
func partitionItems(items []world.Item, namespace string) ([]world.Item, map[string]world.Item) {
	var unmanaged []world.Item
	managed := make(map[string]world.Item)
	for _, item := range items {
		key, ok := provenanceOf(item, namespace)
		if !ok {
			unmanaged = append(unmanaged, item)
			continue
		}
		managed[key] = item
	}
	return unmanaged, managed
}

func provenanceOf(item world.Item, namespace string) (string, bool) {
	raw, ok := item.Flags.Get(namespace, effect.FlagItemKey)
	if !ok {
		return "", false
	}
	key, ok := raw.(string)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

func desiredKey(desired []desiredItem, key string) (world.Item, bool) {
	for _, want := range desired {
		if want.key == key {
			return want.item, true
		}
	}
	return world.Item{}, false
}
