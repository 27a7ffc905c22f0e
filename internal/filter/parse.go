package filter

import (
	"encoding/json"
	"fmt"
)

// Raw filters arrive either from flag storage (legacy effects used a
// "values" child list) or from passive-effect records (which use
// "conditions"). Both spellings decode to the same tree; Normalized always
// emits "conditions".

// Parse validates a decoded filter document and returns the immutable
// filter. A nil document is a filter that always matches. Validation
// failures identify the offending field; callers must not persist on error.
func Parse(raw any) (*Filter, error) {
	if raw == nil {
		return Always(), nil
	}

	group, err := parseGroup(raw, "filter")
	if err != nil {
		return nil, err
	}
	return &Filter{root: group}, nil
}

// ParseJSON parses a filter stored as a JSON document.
func ParseJSON(data []byte) (*Filter, error) {
	if len(data) == 0 {
		return Always(), nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("filter is not valid JSON: %w", err)
	}
	return Parse(raw)
}

func parseGroup(raw any, path string) (*Group, error) {
	object, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an object, got %T", path, raw)
	}

	groupType, ok := object["groupType"].(string)
	if !ok || (GroupType(groupType) != GroupAnd && GroupType(groupType) != GroupOr) {
		return nil, fmt.Errorf("%s.groupType must be AND or OR, got %v", path, object["groupType"])
	}

	children, childKey, err := childList(object, path)
	if err != nil {
		return nil, err
	}

	group := &Group{GroupType: GroupType(groupType)}
	for i, child := range children {
		childPath := fmt.Sprintf("%s.%s[%d]", path, childKey, i)
		node, err := parseNode(child, childPath)
		if err != nil {
			return nil, err
		}
		group.Children = append(group.Children, node)
	}
	return group, nil
}

func childList(object map[string]any, path string) ([]any, string, error) {
	for _, key := range []string{"conditions", "values"} {
		raw, ok := object[key]
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, "", fmt.Errorf("%s.%s must be an array, got %T", path, key, raw)
		}
		return list, key, nil
	}
	return nil, "", fmt.Errorf("%s is missing a conditions array", path)
}

func parseNode(raw any, path string) (Node, error) {
	if isGroupObject(raw) {
		group, err := parseGroup(raw, path)
		if err != nil {
			return Node{}, err
		}
		return Node{Group: group}, nil
	}

	condition, err := parseCondition(raw, path)
	if err != nil {
		return Node{}, err
	}
	return Node{Condition: condition}, nil
}

// isGroupObject applies the host's classification rule: a node is a group
// only when it has exactly the two group keys with a recognized groupType.
// Anything else at that position is treated as a condition.
func isGroupObject(raw any) bool {
	object, ok := raw.(map[string]any)
	if !ok {
		return false
	}
	if len(object) != 2 {
		return false
	}
	groupType, ok := object["groupType"].(string)
	if !ok {
		return false
	}
	if GroupType(groupType) != GroupAnd && GroupType(groupType) != GroupOr {
		return false
	}
	_, hasConditions := object["conditions"]
	_, hasValues := object["values"]
	return hasConditions || hasValues
}

func parseCondition(raw any, path string) (*Condition, error) {
	object, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an object, got %T", path, raw)
	}

	field, ok := object["field"].(string)
	if !ok {
		return nil, fmt.Errorf("%s.field must be a string, got %v", path, object["field"])
	}

	comparison, ok := object["comparison"].(string)
	if !ok {
		return nil, fmt.Errorf("%s.comparison must be a string, got %v", path, object["comparison"])
	}
	if _, known := comparisons[Comparison(comparison)]; !known {
		return nil, fmt.Errorf("%s.comparison must be one of = != > >= < <=, got %q", path, comparison)
	}

	value := normalizeScalar(object["value"])
	switch value.(type) {
	case nil, string, float64, bool:
	default:
		return nil, fmt.Errorf("%s.value must be null, a string, a number or a boolean, got %T", path, object["value"])
	}

	return &Condition{
		Field:      field,
		Comparison: Comparison(comparison),
		Value:      value,
	}, nil
}

// Normalized returns the canonical stored form of the filter, or nil for
// an always-matching filter. Parsing the result yields an equal filter.
func (f *Filter) Normalized() map[string]any {
	if f == nil || f.never || f.root == nil {
		return nil
	}
	return normalizedGroup(f.root)
}

// NormalizedJSON marshals the canonical form, "null" for an empty filter.
func (f *Filter) NormalizedJSON() (json.RawMessage, error) {
	normalized := f.Normalized()
	if normalized == nil {
		return json.RawMessage("null"), nil
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("encoding filter: %w", err)
	}
	return data, nil
}

func normalizedGroup(group *Group) map[string]any {
	children := make([]any, 0, len(group.Children))
	for _, child := range group.Children {
		if child.Group != nil {
			children = append(children, normalizedGroup(child.Group))
			continue
		}
		if child.Condition != nil {
			children = append(children, map[string]any{
				"field":      child.Condition.Field,
				"comparison": string(child.Condition.Comparison),
				"value":      child.Condition.Value,
			})
		}
	}
	return map[string]any{
		"groupType":  string(group.GroupType),
		"conditions": children,
	}
}
