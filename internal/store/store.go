// Package store persists world entities. Backends keep the full entity
// document in a JSON column; summaries are projected for listings so the
// CLI does not decode every document.
package store

import (
	"context"
	"errors"

	"effectcraft/internal/world"
)

// ErrNotFound reports a lookup for an id the backend has never saved.
var ErrNotFound = errors.New("not found")

type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	SaveActor(ctx context.Context, actor *world.Actor) error
	LoadActor(ctx context.Context, id string) (*world.Actor, error)
	ListActors(ctx context.Context) ([]ActorSummary, error)
	DeleteActor(ctx context.Context, id string) error

	SaveItem(ctx context.Context, item *world.Item) error
	LoadItem(ctx context.Context, id string) (*world.Item, error)
	ListItems(ctx context.Context) ([]ItemSummary, error)
	DeleteItem(ctx context.Context, id string) error
}

type ActorSummary struct {
	ID      string
	Name    string
	Type    string
	Items   int
	Effects int
}

type ItemSummary struct {
	ID   string
	Name string
	Type string
}
