package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS actors (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    actor_type TEXT NOT NULL,
    doc        JSONB NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS items (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    item_type  TEXT NOT NULL,
    doc        JSONB NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_actors_type ON actors (actor_type);
CREATE INDEX IF NOT EXISTS idx_actors_name ON actors (name);
CREATE INDEX IF NOT EXISTS idx_actors_doc ON actors USING GIN (doc);
CREATE INDEX IF NOT EXISTS idx_items_type ON items (item_type);
CREATE INDEX IF NOT EXISTS idx_items_name ON items (name);
`
	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
