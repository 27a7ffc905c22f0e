package store

import (
	"context"
	"fmt"

	"effectcraft/internal/world"
)

// World exposes a loaded snapshot as a live world with write-through
// persistence: every mutation runs against the in-memory world first
// (firing its lifecycle hooks) and is then saved to the backend.
type World struct {
	*world.Memory
	backend Store
}

var _ world.World = (*World)(nil)

// OpenWorld loads every stored actor and item into memory.
func OpenWorld(ctx context.Context, backend Store) (*World, error) {
	mem := world.NewMemory()

	actors, err := backend.ListActors(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening world: %w", err)
	}
	for _, summary := range actors {
		actor, err := backend.LoadActor(ctx, summary.ID)
		if err != nil {
			return nil, fmt.Errorf("opening world: %w", err)
		}
		mem.AddActor(actor)
	}

	items, err := backend.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening world: %w", err)
	}
	for _, summary := range items {
		item, err := backend.LoadItem(ctx, summary.ID)
		if err != nil {
			return nil, fmt.Errorf("opening world: %w", err)
		}
		mem.AddItem(item)
	}

	return &World{Memory: mem, backend: backend}, nil
}

func (w *World) CreateEffect(ctx context.Context, actorID string, effect world.Effect) (world.Effect, error) {
	created, err := w.Memory.CreateEffect(ctx, actorID, effect)
	if err != nil {
		return world.Effect{}, err
	}
	return created, w.saveActor(ctx, actorID)
}

func (w *World) UpdateEffect(ctx context.Context, actorID string, effect world.Effect) error {
	if err := w.Memory.UpdateEffect(ctx, actorID, effect); err != nil {
		return err
	}
	return w.saveActor(ctx, actorID)
}

func (w *World) DeleteEffect(ctx context.Context, actorID, effectID string) error {
	if err := w.Memory.DeleteEffect(ctx, actorID, effectID); err != nil {
		return err
	}
	return w.saveActor(ctx, actorID)
}

func (w *World) UpdateItemEffect(ctx context.Context, itemID string, effect world.Effect) error {
	if err := w.Memory.UpdateItemEffect(ctx, itemID, effect); err != nil {
		return err
	}
	return w.saveItemOrOwner(ctx, itemID)
}

func (w *World) CreateOwnedItem(ctx context.Context, actorID string, item world.Item) (world.Item, error) {
	created, err := w.Memory.CreateOwnedItem(ctx, actorID, item)
	if err != nil {
		return world.Item{}, err
	}
	return created, w.saveActor(ctx, actorID)
}

func (w *World) UpdateOwnedItem(ctx context.Context, actorID string, item world.Item, diff map[string]any) error {
	if err := w.Memory.UpdateOwnedItem(ctx, actorID, item, diff); err != nil {
		return err
	}
	return w.saveActor(ctx, actorID)
}

func (w *World) DeleteOwnedItem(ctx context.Context, actorID, itemID string) error {
	if err := w.Memory.DeleteOwnedItem(ctx, actorID, itemID); err != nil {
		return err
	}
	return w.saveActor(ctx, actorID)
}

func (w *World) UpdateActorItems(ctx context.Context, actorID string, items []world.Item) error {
	if err := w.Memory.UpdateActorItems(ctx, actorID, items); err != nil {
		return err
	}
	return w.saveActor(ctx, actorID)
}

func (w *World) SetEntityFlag(ctx context.Context, kind, id, namespace, key string, value any) error {
	if err := w.Memory.SetEntityFlag(ctx, kind, id, namespace, key, value); err != nil {
		return err
	}
	return w.saveEntity(ctx, kind, id)
}

func (w *World) UnsetEntityFlag(ctx context.Context, kind, id, namespace, key string) error {
	if err := w.Memory.UnsetEntityFlag(ctx, kind, id, namespace, key); err != nil {
		return err
	}
	return w.saveEntity(ctx, kind, id)
}

func (w *World) saveEntity(ctx context.Context, kind, id string) error {
	if kind == world.KindActor {
		return w.saveActor(ctx, id)
	}
	return w.saveItemOrOwner(ctx, id)
}

func (w *World) saveActor(ctx context.Context, id string) error {
	actor := w.Memory.Actor(id)
	if actor == nil {
		return fmt.Errorf("saving actor %s: not in memory", id)
	}
	return w.backend.SaveActor(ctx, actor)
}

// saveItemOrOwner persists a directory item directly; a flag write on an
// owned item lands inside its owner's document instead.
func (w *World) saveItemOrOwner(ctx context.Context, id string) error {
	if item := w.Memory.DirectoryItem(id); item != nil {
		return w.backend.SaveItem(ctx, item)
	}
	if owner := w.Memory.Owner(id); owner != nil {
		return w.backend.SaveActor(ctx, owner)
	}
	return fmt.Errorf("saving item %s: not in memory", id)
}
