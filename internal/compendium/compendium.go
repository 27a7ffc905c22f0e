// Package compendium loads item documents from pack directories. A pack
// is a directory of JSON (optionally zstd-compressed) item documents; each
// document is validated against the item schema before it is served.
package compendium

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"effectcraft/internal/world"
)

const itemSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "type"],
  "properties": {
    "_id": {"type": "string"},
    "name": {"type": "string", "minLength": 1},
    "type": {"type": "string", "minLength": 1},
    "img": {"type": "string"},
    "system": {"type": "object"},
    "effects": {"type": "array", "items": {"type": "object"}},
    "flags": {"type": "object"}
  }
}`

// Library reads packs from a root directory. Pack ids are directory
// names, entry ids are the document's _id or its filename stem.
type Library struct {
	root   string
	schema *jsonschema.Schema
}

func Open(root string) (*Library, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening compendium root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("compendium root %s is not a directory", root)
	}
	schema, err := jsonschema.CompileString("item.schema.json", itemSchema)
	if err != nil {
		return nil, fmt.Errorf("compiling item schema: %w", err)
	}
	return &Library{root: root, schema: schema}, nil
}

// Packs lists the pack ids under the root.
func (l *Library) Packs() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("listing packs: %w", err)
	}
	var packs []string
	for _, entry := range entries {
		if entry.IsDir() {
			packs = append(packs, entry.Name())
		}
	}
	return packs, nil
}

// LoadPack reads and validates every document in a pack. A document that
// fails validation fails the whole load; a pack with a broken entry
// should be fixed, not partially served.
func (l *Library) LoadPack(packID string) (map[string]world.Item, error) {
	dir := filepath.Join(l.root, packID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("loading pack %s: %w", packID, err)
	}

	items := make(map[string]world.Item)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stem, compressed := entryStem(name)
		if stem == "" {
			continue
		}
		data, err := readDocument(filepath.Join(dir, name), compressed)
		if err != nil {
			return nil, fmt.Errorf("pack %s entry %s: %w", packID, name, err)
		}
		item, err := l.decode(data)
		if err != nil {
			return nil, fmt.Errorf("pack %s entry %s: %w", packID, name, err)
		}
		id := item.ID
		if id == "" {
			id = stem
		}
		if _, dup := items[id]; dup {
			return nil, fmt.Errorf("pack %s: duplicate entry id %s", packID, id)
		}
		items[id] = item
	}
	return items, nil
}

func (l *Library) decode(data []byte) (world.Item, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return world.Item{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := l.schema.Validate(doc); err != nil {
		return world.Item{}, fmt.Errorf("schema validation: %w", err)
	}
	var item world.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return world.Item{}, err
	}
	return item, nil
}

// entryStem returns the entry id stem and whether the file is
// zstd-compressed. Files with other extensions are skipped.
func entryStem(name string) (string, bool) {
	if strings.HasSuffix(name, ".json.zst") {
		return strings.TrimSuffix(name, ".json.zst"), true
	}
	if strings.HasSuffix(name, ".json") {
		return strings.TrimSuffix(name, ".json"), false
	}
	return "", false
}

func readDocument(path string, compressed bool) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !compressed {
		return io.ReadAll(f)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
