package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

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
	VALUES (?, ?, ?, ?, datetime('now'))
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		actor_type = excluded.actor_type,
		doc = excluded.doc,
		updated_at = datetime('now')
	`

	if _, err := c.db.ExecContext(ctx, query, actor.ID, actor.Name, actor.Type, doc); err != nil {
		return fmt.Errorf("saving actor: %w", err)
	}
	return nil
}

func (c *Client) LoadActor(ctx context.Context, id string) (*world.Actor, error) {
	var doc []byte
	err := c.db.QueryRowContext(ctx, `SELECT doc FROM actors WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
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
	       json_array_length(doc, '$.items'),
	       json_array_length(doc, '$.effects')
	FROM actors
	ORDER BY name
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing actors: %w", err)
	}
	defer rows.Close()

	var summaries []store.ActorSummary
	for rows.Next() {
		var s store.ActorSummary
		var items, effects sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Name, &s.Type, &items, &effects); err != nil {
			return nil, fmt.Errorf("scanning actor: %w", err)
		}
		s.Items = int(items.Int64)
		s.Effects = int(effects.Int64)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (c *Client) DeleteActor(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM actors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting actor: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting actor: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("actor %s: %w", id, store.ErrNotFound)
	}
	return nil
}
