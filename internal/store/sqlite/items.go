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
	VALUES (?, ?, ?, ?, datetime('now'))
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		item_type = excluded.item_type,
		doc = excluded.doc,
		updated_at = datetime('now')
	`

	if _, err := c.db.ExecContext(ctx, query, item.ID, item.Name, item.Type, doc); err != nil {
		return fmt.Errorf("saving item: %w", err)
	}
	return nil
}

func (c *Client) LoadItem(ctx context.Context, id string) (*world.Item, error) {
	var doc []byte
	err := c.db.QueryRowContext(ctx, `SELECT doc FROM items WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
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
	rows, err := c.db.QueryContext(ctx, `SELECT id, name, item_type FROM items ORDER BY name`)
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
	res, err := c.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	return nil
}
