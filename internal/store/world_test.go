package store

import (
	"context"
	"testing"

	"effectcraft/internal/world"
)

// fakeBackend keeps saved documents in maps and counts writes.
type fakeBackend struct {
	actors map[string]*world.Actor
	items  map[string]*world.Item
	saves  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		actors: make(map[string]*world.Actor),
		items:  make(map[string]*world.Item),
	}
}

func (f *fakeBackend) Close(ctx context.Context) error        { return nil }
func (f *fakeBackend) EnsureSchema(ctx context.Context) error { return nil }

func (f *fakeBackend) SaveActor(ctx context.Context, actor *world.Actor) error {
	clone := actor.Clone()
	f.actors[actor.ID] = clone
	f.saves++
	return nil
}

func (f *fakeBackend) LoadActor(ctx context.Context, id string) (*world.Actor, error) {
	actor, ok := f.actors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return actor, nil
}

func (f *fakeBackend) ListActors(ctx context.Context) ([]ActorSummary, error) {
	var summaries []ActorSummary
	for _, actor := range f.actors {
		summaries = append(summaries, ActorSummary{ID: actor.ID, Name: actor.Name, Type: actor.Type})
	}
	return summaries, nil
}

func (f *fakeBackend) DeleteActor(ctx context.Context, id string) error {
	delete(f.actors, id)
	return nil
}

func (f *fakeBackend) SaveItem(ctx context.Context, item *world.Item) error {
	clone := item.Clone()
	f.items[item.ID] = &clone
	f.saves++
	return nil
}

func (f *fakeBackend) LoadItem(ctx context.Context, id string) (*world.Item, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return item, nil
}

func (f *fakeBackend) ListItems(ctx context.Context) ([]ItemSummary, error) {
	var summaries []ItemSummary
	for _, item := range f.items {
		summaries = append(summaries, ItemSummary{ID: item.ID, Name: item.Name, Type: item.Type})
	}
	return summaries, nil
}

func (f *fakeBackend) DeleteItem(ctx context.Context, id string) error {
	delete(f.items, id)
	return nil
}

func TestOpenWorld(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.actors["a1"] = &world.Actor{ID: "a1", Name: "Riona", Type: "character"}
	backend.items["i1"] = &world.Item{ID: "i1", Name: "Longsword", Type: "weapon"}

	w, err := OpenWorld(ctx, backend)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if w.Actor("a1") == nil {
		t.Fatal("actor not loaded")
	}
	if w.Item("i1") == nil {
		t.Fatal("item not loaded")
	}
}

func TestWriteThrough(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.actors["a1"] = &world.Actor{ID: "a1", Name: "Riona", Type: "character", Flags: world.FlagMap{}}
	backend.items["i1"] = &world.Item{ID: "i1", Name: "Longsword", Type: "weapon", Flags: world.FlagMap{}}

	w, err := OpenWorld(ctx, backend)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("effect create persists the actor", func(t *testing.T) {
		if _, err := w.CreateEffect(ctx, "a1", world.Effect{Label: "Bless"}); err != nil {
			t.Fatal(err)
		}
		saved, err := backend.LoadActor(ctx, "a1")
		if err != nil {
			t.Fatal(err)
		}
		if len(saved.Effects) != 1 || saved.Effects[0].Label != "Bless" {
			t.Fatalf("saved effects = %+v", saved.Effects)
		}
	})

	t.Run("actor flag write persists the actor", func(t *testing.T) {
		if err := w.SetEntityFlag(ctx, world.KindActor, "a1", "effectcraft", "note", "hi"); err != nil {
			t.Fatal(err)
		}
		saved, _ := backend.LoadActor(ctx, "a1")
		if value, ok := saved.Flags.Get("effectcraft", "note"); !ok || value != "hi" {
			t.Fatalf("flag = %v, %v", value, ok)
		}
	})

	t.Run("directory item flag write persists the item", func(t *testing.T) {
		if err := w.SetEntityFlag(ctx, world.KindItem, "i1", "effectcraft", "note", "hi"); err != nil {
			t.Fatal(err)
		}
		saved, err := backend.LoadItem(ctx, "i1")
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := saved.Flags.Get("effectcraft", "note"); !ok {
			t.Fatal("item flag not persisted")
		}
	})

	t.Run("owned item flag write persists the owner", func(t *testing.T) {
		if _, err := w.CreateOwnedItem(ctx, "a1", world.Item{ID: "owned-1", Name: "Cloak", Type: "equipment", Flags: world.FlagMap{}}); err != nil {
			t.Fatal(err)
		}
		if err := w.SetEntityFlag(ctx, world.KindItem, "owned-1", "effectcraft", "note", "hi"); err != nil {
			t.Fatal(err)
		}
		saved, _ := backend.LoadActor(ctx, "a1")
		owned := saved.Item("owned-1")
		if owned == nil {
			t.Fatal("owned item not persisted with the actor")
		}
		if _, ok := owned.Flags.Get("effectcraft", "note"); !ok {
			t.Fatal("owned item flag not persisted")
		}
	})

	t.Run("batched item update persists once per call", func(t *testing.T) {
		before := backend.saves
		if err := w.UpdateActorItems(ctx, "a1", nil); err != nil {
			t.Fatal(err)
		}
		if backend.saves != before+1 {
			t.Fatalf("saves = %d, want %d", backend.saves, before+1)
		}
	})

	t.Run("memory hooks still fire", func(t *testing.T) {
		var fired bool
		w.Hooks().On(world.HookUpdateActor, func(payload any) bool {
			fired = true
			return true
		})
		if err := w.SetEntityFlag(ctx, world.KindActor, "a1", "effectcraft", "other", 1); err != nil {
			t.Fatal(err)
		}
		if !fired {
			t.Fatal("adapter must preserve hook dispatch")
		}
	})
}
