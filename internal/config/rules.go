package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules describes the game-system taxonomy the engine enforces: which
// item types an effect may grant and which actor types take part in
// automatic effect application.
type Rules struct {
	Version              int      `yaml:"version"`
	FeatureItemTypes     []string `yaml:"feature_item_types"`
	SpellItemTypes       []string `yaml:"spell_item_types"`
	AutoApplyParentTypes []string `yaml:"auto_apply_parent_types"`

	grantIndex  map[string]struct{}
	parentIndex map[string]struct{}
}

// DefaultRules covers a dnd5e-style item taxonomy.
func DefaultRules() *Rules {
	rules := &Rules{
		Version:              1,
		FeatureItemTypes:     []string{"class", "equipment", "feat", "weapon"},
		SpellItemTypes:       []string{"spell"},
		AutoApplyParentTypes: []string{"character", "npc"},
	}
	rules.buildIndexes()
	return rules
}

func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	if err := validateRules(&rules); err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	rules.buildIndexes()
	return &rules, nil
}

func validateRules(rules *Rules) error {
	if rules.Version != 1 {
		return fmt.Errorf("unsupported version: %d", rules.Version)
	}
	if len(rules.FeatureItemTypes) == 0 {
		return fmt.Errorf("at least one feature item type is required")
	}
	if len(rules.AutoApplyParentTypes) == 0 {
		return fmt.Errorf("at least one auto-apply parent type is required")
	}

	seen := make(map[string]struct{})
	for _, group := range [][]string{rules.FeatureItemTypes, rules.SpellItemTypes} {
		for _, itemType := range group {
			if strings.TrimSpace(itemType) == "" {
				return fmt.Errorf("item type name must not be empty")
			}
			key := strings.ToLower(itemType)
			if _, exists := seen[key]; exists {
				return fmt.Errorf("duplicate item type: %s", itemType)
			}
			seen[key] = struct{}{}
		}
	}

	parents := make(map[string]struct{})
	for _, parentType := range rules.AutoApplyParentTypes {
		if strings.TrimSpace(parentType) == "" {
			return fmt.Errorf("parent type name must not be empty")
		}
		key := strings.ToLower(parentType)
		if _, exists := parents[key]; exists {
			return fmt.Errorf("duplicate parent type: %s", parentType)
		}
		parents[key] = struct{}{}
	}

	return nil
}

func (r *Rules) buildIndexes() {
	r.grantIndex = make(map[string]struct{})
	for _, itemType := range r.GrantableTypes() {
		r.grantIndex[strings.ToLower(itemType)] = struct{}{}
	}
	r.parentIndex = make(map[string]struct{})
	for _, parentType := range r.AutoApplyParentTypes {
		r.parentIndex[strings.ToLower(parentType)] = struct{}{}
	}
}

// GrantableTypes is the full allowlist, feature types before spell types.
func (r *Rules) GrantableTypes() []string {
	types := make([]string, 0, len(r.FeatureItemTypes)+len(r.SpellItemTypes))
	types = append(types, r.FeatureItemTypes...)
	types = append(types, r.SpellItemTypes...)
	return types
}

func (r *Rules) IsGrantable(itemType string) bool {
	if r == nil {
		return false
	}
	_, ok := r.grantIndex[strings.ToLower(itemType)]
	return ok
}

func (r *Rules) IsAutoApplyParent(actorType string) bool {
	if r == nil {
		return false
	}
	_, ok := r.parentIndex[strings.ToLower(actorType)]
	return ok
}
