package config

import (
	"testing"
)

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	for _, itemType := range []string{"class", "equipment", "feat", "weapon", "spell"} {
		if !rules.IsGrantable(itemType) {
			t.Fatalf("expected %s to be grantable", itemType)
		}
	}
	if rules.IsGrantable("consumable") {
		t.Fatalf("consumable should not be grantable by default")
	}
	if !rules.IsAutoApplyParent("character") || !rules.IsAutoApplyParent("NPC") {
		t.Fatalf("character and npc should auto-apply, case-insensitively")
	}
	if rules.IsAutoApplyParent("vehicle") {
		t.Fatalf("vehicle should not auto-apply by default")
	}
}

func TestLoadRules(t *testing.T) {
	t.Run("valid rules load", func(t *testing.T) {
		path := writeTempConfig(t, "version: 1\nfeature_item_types: [feat]\nspell_item_types: [spell]\nauto_apply_parent_types: [character]\n")
		rules, err := LoadRules(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := rules.GrantableTypes(); len(got) != 2 {
			t.Fatalf("expected 2 grantable types, got %v", got)
		}
	})

	t.Run("unsupported version", func(t *testing.T) {
		path := writeTempConfig(t, "version: 3\nfeature_item_types: [feat]\nauto_apply_parent_types: [character]\n")
		if _, err := LoadRules(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("no feature item types", func(t *testing.T) {
		path := writeTempConfig(t, "version: 1\nauto_apply_parent_types: [character]\n")
		if _, err := LoadRules(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("duplicate item types across groups", func(t *testing.T) {
		path := writeTempConfig(t, "version: 1\nfeature_item_types: [feat]\nspell_item_types: [Feat]\nauto_apply_parent_types: [character]\n")
		if _, err := LoadRules(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("no parent types", func(t *testing.T) {
		path := writeTempConfig(t, "version: 1\nfeature_item_types: [feat]\n")
		if _, err := LoadRules(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("empty parent type name", func(t *testing.T) {
		path := writeTempConfig(t, "version: 1\nfeature_item_types: [feat]\nauto_apply_parent_types: [\" \"]\n")
		if _, err := LoadRules(path); err == nil {
			t.Fatalf("expected error")
		}
	})
}
