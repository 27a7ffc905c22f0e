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

func (c *Client) SaveItem(ctx context.Context, item *world.Item) error {
	if item.ID == "" {
		return fmt.Errorf("saving item: id is required")
	}
	doc, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}

	query := `
INSERT INTO items (id, name, item_type, doc, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    item_type = EXCLUDED.item_type,
    doc = EXCLUDED.doc,
    updated_at = now()
`
	if _, err := c.pool.Exec(ctx, query, item.ID, item.Name, item.Type, doc); err != nil {
		return fmt.Errorf("saving item: %w", err)
	}
	return nil
}

func (c *Client) LoadItem(ctx context.Context, id string) (*world.Item, error) {
	var doc []byte
	err := c.pool.QueryRow(ctx, `SELECT doc FROM items WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading item: %w", err)
	}

	var item world.Item
	if err := json.Unmarshal(doc, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling item %s: %w", id, err)
	}
	return &item, nil
}

func (c *Client) ListItems(ctx context.Context) ([]store.ItemSummary, error) {
	rows, err := c.pool.Query(ctx, `SELECT id, name, item_type FROM items ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var summaries []store.ItemSummary
	for rows.Next() {
		var s store.ItemSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Type); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (c *Client) DeleteItem(ctx context.Context, id string) error {
	tag, err := c.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	return nil
}
