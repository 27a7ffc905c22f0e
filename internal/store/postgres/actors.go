package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"effectcraft/internal/store"
	"effectcraft/internal/world"
)

func (c *Client) SaveActor(ctx context.Context, actor *world.Actor) error {
	if actor.ID == "" {
		return fmt.Errorf("saving actor: id is required")
	}
	doc, err := json.Marshal(actor)
	if err != nil {
		return fmt.Errorf("marshaling actor: %w", err)
	}

	query := `
INSERT INTO actors (id, name, actor_type, doc, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    actor_type = EXCLUDED.actor_type,
    doc = EXCLUDED.doc,
    updated_at = now()
`
	if _, err := c.pool.Exec(ctx, query, actor.ID, actor.Name, actor.Type, doc); err != nil {
		return fmt.Errorf("saving actor: %w", err)
	}
	return nil
}

func (c *Client) LoadActor(ctx context.Context, id string) (*world.Actor, error) {
	var doc []byte
	err := c.pool.QueryRow(ctx, `SELECT doc FROM actors WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("actor %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading actor: %w", err)
	}

	var actor world.Actor
	if err := json.Unmarshal(doc, &actor); err != nil {
		return nil, fmt.Errorf("unmarshaling actor %s: %w", id, err)
	}
	return &actor, nil
}

func (c *Client) ListActors(ctx context.Context) ([]store.ActorSummary, error) {
	query := `
SELECT id, name, actor_type,
       COALESCE(jsonb_array_length(doc -> 'items'), 0),
       COALESCE(jsonb_array_length(doc -> 'effects'), 0)
FROM actors
ORDER BY name
`
	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing actors: %w", err)
	}
	defer rows.Close()

	var summaries []store.ActorSummary
	for rows.Next() {
		var s store.ActorSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Type, &s.Items, &s.Effects); err != nil {
			return nil, fmt.Errorf("scanning actor: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (c *Client) DeleteActor(ctx context.Context, id string) error {
	tag, err := c.pool.Exec(ctx, `DELETE FROM actors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting actor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("actor %s: %w", id, store.ErrNotFound)
	}
	return nil
}
