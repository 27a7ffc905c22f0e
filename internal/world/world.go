package world

import (
	"context"
)

// World is the entity lookup and persistence boundary the effect engine
// consumes. Lookups return nil for unknown ids, mirroring the host's
// undefined. Mutations are asynchronous on the real host; here they take a
// context and report failure to the caller, which must surface it.
type World interface {
	Actor(id string) *Actor
	Item(id string) *Item

	// UpdateActorItems replaces the actor's owned-item list wholesale in
	// one batched update.
	UpdateActorItems(ctx context.Context, actorID string, items []Item) error

	// UpdateEffect replaces a native effect record on the actor in place.
	UpdateEffect(ctx context.Context, actorID string, effect Effect) error

	// UpdateItemEffect replaces a native effect record on a directory item.
	UpdateItemEffect(ctx context.Context, itemID string, effect Effect) error

	// SetEntityFlag and UnsetEntityFlag write namespaced flag storage on an
	// actor, a directory item or an owned item.
	SetEntityFlag(ctx context.Context, kind, id, namespace, key string, value any) error
	UnsetEntityFlag(ctx context.Context, kind, id, namespace, key string) error
}
