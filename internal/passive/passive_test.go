package passive

import (
	"context"
	"strings"
	"testing"

	"effectcraft/internal/world"
)

const namespace = "effectcraft"

func newActorStore(t *testing.T, m *world.Memory, actorID string) *Store {
	t.Helper()
	store, err := NewStore(m, namespace, world.KindActor, actorID, NewGuard())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return store
}

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()

	t.Run("list defaults to empty", func(t *testing.T) {
		m := world.NewMemory()
		actor := m.AddActor(&world.Actor{Name: "Brug", Type: "character"})
		store := newActorStore(t, m, actor.ID)

		effects, err := store.List()
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(effects) != 0 {
			t.Fatalf("expected empty store, got %v", effects)
		}
	})

	t.Run("create assigns sequential ids and parent origin", func(t *testing.T) {
		m := world.NewMemory()
		actor := m.AddActor(&world.Actor{Name: "Brug", Type: "character"})
		store := newActorStore(t, m, actor.ID)

		first, err := store.Create(ctx, world.Effect{Label: "Blessing"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		second, err := store.Create(ctx, world.Effect{Label: "Curse"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if first.ID != "PassiveEffect.0" || second.ID != "PassiveEffect.1" {
			t.Fatalf("unexpected ids: %s %s", first.ID, second.ID)
		}
		if first.Origin != actor.OriginRef() {
			t.Fatalf("expected origin %s, got %s", actor.OriginRef(), first.Origin)
		}
	})

	t.Run("create rejects a record with an id", func(t *testing.T) {
		m := world.NewMemory()
		actor := m.AddActor(&world.Actor{Name: "Brug", Type: "character"})
		store := newActorStore(t, m, actor.ID)

		if _, err := store.Create(ctx, world.Effect{ID: "PassiveEffect.7"}); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("update preserves id and leaves others untouched", func(t *testing.T) {
		m := world.NewMemory()
		actor := m.AddActor(&world.Actor{Name: "Brug", Type: "character"})
		store := newActorStore(t, m, actor.ID)

		first, _ := store.Create(ctx, world.Effect{Label: "Blessing"})
		second, _ := store.Create(ctx, world.Effect{Label: "Curse"})

		updated, err := store.Update(ctx, first.ID, world.Effect{Label: "Greater Blessing"})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.ID != first.ID {
			t.Fatalf("expected id preserved, got %s", updated.ID)
		}
		if updated.Origin != actor.OriginRef() {
			t.Fatalf("expected origin defaulted, got %s", updated.Origin)
		}

		effects, _ := store.List()
		if len(effects) != 2 || effects[0].Label != "Greater Blessing" || effects[1].Label != second.Label {
			t.Fatalf("unexpected records: %v", effects)
		}
	})

	t.Run("update requires id", func(t *testing.T) {
		m := world.NewMemory()
		actor := m.AddActor(&world.Actor{Name: "Brug", Type: "character"})
		store := newActorStore(t, m, actor.ID)

		if _, err := store.Update(ctx, "", world.Effect{}); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("delete removes only the match", func(t *testing.T) {
		m := world.NewMemory()
		actor := m.AddActor(&world.Actor{Name: "Brug", Type: "character"})
		store := newActorStore(t, m, actor.ID)

		first, _ := store.Create(ctx, world.Effect{Label: "Blessing"})
		second, _ := store.Create(ctx, world.Effect{Label: "Curse"})

		if err := store.Delete(ctx, first.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		effects, _ := store.List()
		if len(effects) != 1 || effects[0].ID != second.ID {
			t.Fatalf("unexpected records: %v", effects)
		}

		if err := store.Delete(ctx, first.ID); err == nil {
			t.Fatalf("expected error deleting twice")
		}
	})

	t.Run("ids stay monotonic across deletions", func(t *testing.T) {
		m := world.NewMemory()
		actor := m.AddActor(&world.Actor{Name: "Brug", Type: "character"})
		store := newActorStore(t, m, actor.ID)

		var issued []string
		for i := 0; i < 3; i++ {
			effect, err := store.Create(ctx, world.Effect{Label: "E"})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			issued = append(issued, effect.ID)
		}
		if err := store.Delete(ctx, issued[1]); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := store.Delete(ctx, issued[2]); err != nil {
			t.Fatalf("delete: %v", err)
		}

		next, err := store.Create(ctx, world.Effect{Label: "E"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		nextN, _ := NumericSuffix(next.ID)
		for _, id := range issued {
			n, _ := NumericSuffix(id)
			if nextN <= n {
				t.Fatalf("id %s reissued at or below %s", next.ID, id)
			}
		}
	})

	t.Run("lost counter recovers from surviving ids", func(t *testing.T) {
		m := world.NewMemory()
		actor := m.AddActor(&world.Actor{Name: "Brug", Type: "character"})
		actor.Flags.Set(namespace, FlagKey, map[string]any{
			"passiveEffects": []any{
				map[string]any{"_id": "PassiveEffect.4", "disabled": false},
			},
		})
		store := newActorStore(t, m, actor.ID)

		created, err := store.Create(ctx, world.Effect{Label: "E"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if created.ID != "PassiveEffect.5" {
			t.Fatalf("expected PassiveEffect.5, got %s", created.ID)
		}
	})

	t.Run("malformed flag defaults to empty", func(t *testing.T) {
		m := world.NewMemory()
		actor := m.AddActor(&world.Actor{Name: "Brug", Type: "character"})
		actor.Flags.Set(namespace, FlagKey, "garbage")
		store := newActorStore(t, m, actor.ID)

		effects, err := store.List()
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(effects) != 0 {
			t.Fatalf("expected empty store, got %v", effects)
		}
	})

	t.Run("missing parent fails loudly", func(t *testing.T) {
		m := world.NewMemory()
		store, err := NewStore(m, namespace, world.KindActor, "ghost", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := store.List(); err == nil || !strings.Contains(err.Error(), "not found") {
			t.Fatalf("expected lookup failure, got %v", err)
		}
	})

	t.Run("invalid filter blocks the write", func(t *testing.T) {
		m := world.NewMemory()
		actor := m.AddActor(&world.Actor{Name: "Brug", Type: "character"})
		store := newActorStore(t, m, actor.ID)

		_, err := store.Create(ctx, world.Effect{Filter: []byte(`{"groupType":"XOR","conditions":[]}`)})
		if err == nil {
			t.Fatalf("expected validation error")
		}
		effects, _ := store.List()
		if len(effects) != 0 {
			t.Fatalf("expected nothing persisted, got %v", effects)
		}
	})
}

func TestTransferred(t *testing.T) {
	ctx := context.Background()

	t.Run("owned item effects transfer with composite ids", func(t *testing.T) {
		m := world.NewMemory()
		actor := m.AddActor(&world.Actor{ID: "a1", Name: "Brug", Type: "character"})
		sword := world.Item{ID: "i1", Name: "Sword", Type: "weapon"}
		sword.Flags.Set(namespace, FlagKey, map[string]any{
			"nextId": float64(1),
			"passiveEffects": []any{
				map[string]any{"_id": "PassiveEffect.0", "label": "Sharpness", "disabled": false},
			},
		})
		actor.Items = append(actor.Items, sword)

		effects := Transferred(actor, namespace)
		if len(effects) != 1 {
			t.Fatalf("expected 1 transferred effect, got %v", effects)
		}
		if effects[0].ID != "Actor.a1.OwnedItem.i1.PassiveEffect.0" {
			t.Fatalf("unexpected composite id: %s", effects[0].ID)
		}
		if effects[0].Origin != "Actor.a1.OwnedItem.i1" {
			t.Fatalf("unexpected origin: %s", effects[0].Origin)
		}
	})

	t.Run("transfer false stays on the item", func(t *testing.T) {
		m := world.NewMemory()
		actor := m.AddActor(&world.Actor{ID: "a1", Name: "Brug", Type: "character"})
		sword := world.Item{ID: "i1", Name: "Sword", Type: "weapon"}
		sword.Flags.Set(namespace, FlagKey, map[string]any{
			"passiveEffects": []any{
				map[string]any{"_id": "PassiveEffect.0", "transfer": false},
			},
		})
		actor.Items = append(actor.Items, sword)

		if effects := Transferred(actor, namespace); len(effects) != 0 {
			t.Fatalf("expected no transfer, got %v", effects)
		}
	})

	t.Run("own effects survive, stale transfers are dropped", func(t *testing.T) {
		m := world.NewMemory()
		actor := m.AddActor(&world.Actor{ID: "a1", Name: "Brug", Type: "character"})
		actor.Flags.Set(namespace, FlagKey, map[string]any{
			"passiveEffects": []any{
				map[string]any{"_id": "PassiveEffect.0", "label": "Own", "origin": "Actor.a1"},
				map[string]any{"_id": "Actor.a1.OwnedItem.gone.PassiveEffect.0", "origin": "Actor.a1.OwnedItem.gone"},
			},
		})

		effects := Transferred(actor, namespace)
		if len(effects) != 1 || effects[0].Label != "Own" {
			t.Fatalf("unexpected effects: %v", effects)
		}
	})

	t.Run("sync is guarded against re-entry", func(t *testing.T) {
		m := world.NewMemory()
		actor := m.AddActor(&world.Actor{ID: "a1", Name: "Brug", Type: "character"})
		guard := NewGuard()
		store, err := NewStore(m, namespace, world.KindActor, actor.ID, guard)
		if err != nil {
			t.Fatalf("new store: %v", err)
		}

		// A handler that reacts to the sync write by syncing again, as the
		// lifecycle listener does. The guard must stop the recursion.
		depth := 0
		m.Hooks().On(world.HookUpdateActor, func(any) bool {
			depth++
			if depth > 5 {
				t.Fatalf("unbounded recursion")
			}
			if err := store.SyncTransferred(ctx); err != nil {
				t.Fatalf("nested sync: %v", err)
			}
			return true
		})

		if err := store.SyncTransferred(ctx); err != nil {
			t.Fatalf("sync: %v", err)
		}
	})
}
