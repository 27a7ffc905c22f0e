package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"effectcraft/internal/store"
	"effectcraft/internal/world"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "memory",
			input:    "sqlite://:memory:",
			expected: ":memory:",
		},
		{
			name:     "relative path",
			input:    "sqlite://data/world.db",
			expected: "./data/world.db",
		},
		{
			name:     "absolute path",
			input:    "sqlite:///var/lib/effectcraft/world.db",
			expected: "/var/lib/effectcraft/world.db",
		},
		{
			name:     "query options kept",
			input:    "sqlite://world.db?mode=ro",
			expected: "./world.db?mode=ro",
		},
		{
			name:    "wrong scheme",
			input:   "postgres://localhost/effectcraft",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDSN(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseDSN(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDSN(%q): %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("parseDSN(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func openTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()
	client, err := New(ctx, "sqlite://:memory:")
	if err != nil {
		t.Fatalf("opening client: %v", err)
	}
	t.Cleanup(func() { client.Close(ctx) })
	if err := client.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return client
}

func TestActorRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := openTestClient(t)

	actor := &world.Actor{
		ID:     "a1",
		Name:   "Riona",
		Type:   "character",
		System: json.RawMessage(`{"attributes":{"ac":{"value":13}}}`),
		Items: []world.Item{
			{ID: "i1", Name: "Longsword", Type: "weapon"},
		},
		Effects: []world.Effect{
			{ID: "e1", Label: "Bless", Changes: []world.Change{{Key: "system.attributes.ac.value", Mode: world.ModeAdd, Value: "2"}}},
		},
		Flags: world.FlagMap{"effectcraft": {"nextId": float64(3)}},
	}
	if err := client.SaveActor(ctx, actor); err != nil {
		t.Fatalf("saving: %v", err)
	}

	loaded, err := client.LoadActor(ctx, "a1")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if loaded.Name != "Riona" || loaded.Type != "character" {
		t.Errorf("loaded actor = %q/%q", loaded.Name, loaded.Type)
	}
	if len(loaded.Items) != 1 || loaded.Items[0].ID != "i1" {
		t.Errorf("items = %+v", loaded.Items)
	}
	if len(loaded.Effects) != 1 || loaded.Effects[0].Changes[0].Key != "system.attributes.ac.value" {
		t.Errorf("effects = %+v", loaded.Effects)
	}
	if value, ok := loaded.Flags.Get("effectcraft", "nextId"); !ok || value != float64(3) {
		t.Errorf("flags = %v, %v", value, ok)
	}

	// Saving again replaces the document.
	actor.Name = "Riona the Bold"
	if err := client.SaveActor(ctx, actor); err != nil {
		t.Fatalf("resaving: %v", err)
	}
	loaded, err = client.LoadActor(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Name != "Riona the Bold" {
		t.Errorf("upsert did not replace, name = %q", loaded.Name)
	}
}

func TestListAndDeleteActors(t *testing.T) {
	ctx := context.Background()
	client := openTestClient(t)

	for _, actor := range []*world.Actor{
		{ID: "a1", Name: "Riona", Type: "character", Items: []world.Item{{ID: "i1"}, {ID: "i2"}}},
		{ID: "a2", Name: "Goblin", Type: "npc", Effects: []world.Effect{{ID: "e1"}}},
	} {
		if err := client.SaveActor(ctx, actor); err != nil {
			t.Fatal(err)
		}
	}

	summaries, err := client.ListActors(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	byID := map[string]store.ActorSummary{}
	for _, s := range summaries {
		byID[s.ID] = s
	}
	if byID["a1"].Items != 2 || byID["a1"].Effects != 0 {
		t.Errorf("a1 summary = %+v", byID["a1"])
	}
	if byID["a2"].Effects != 1 {
		t.Errorf("a2 summary = %+v", byID["a2"])
	}

	if err := client.DeleteActor(ctx, "a1"); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	if _, err := client.LoadActor(ctx, "a1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("load after delete = %v, want ErrNotFound", err)
	}
	if err := client.DeleteActor(ctx, "a1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestItemRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := openTestClient(t)

	item := &world.Item{
		ID:   "i1",
		Name: "Cloak of Protection",
		Type: "equipment",
		Effects: []world.Effect{
			{ID: "e1", Label: "Protection", Transfer: boolPtr(true)},
		},
	}
	if err := client.SaveItem(ctx, item); err != nil {
		t.Fatalf("saving: %v", err)
	}

	loaded, err := client.LoadItem(ctx, "i1")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if loaded.Name != "Cloak of Protection" {
		t.Errorf("name = %q", loaded.Name)
	}
	if len(loaded.Effects) != 1 || !loaded.Effects[0].Transfers() {
		t.Errorf("effects = %+v", loaded.Effects)
	}

	if _, err := client.LoadItem(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing item = %v, want ErrNotFound", err)
	}
}

func boolPtr(b bool) *bool { return &b }
