package filter

import (
	"encoding/json"
	"strconv"
)

type GroupType string

const (
	GroupAnd GroupType = "AND"
	GroupOr  GroupType = "OR"
)

type Comparison string

const (
	CompareEqual        Comparison = "="
	CompareNotEqual     Comparison = "!="
	CompareGreater      Comparison = ">"
	CompareGreaterEqual Comparison = ">="
	CompareLess         Comparison = "<"
	CompareLessEqual    Comparison = "<="
)

var comparisons = map[Comparison]struct{}{
	CompareEqual:        {},
	CompareNotEqual:     {},
	CompareGreater:      {},
	CompareGreaterEqual: {},
	CompareLess:         {},
	CompareLessEqual:    {},
}

// Condition compares one field of the flattened roll data against a scalar.
// Value is nil, string, float64 or bool after normalization.
type Condition struct {
	Field      string
	Comparison Comparison
	Value      any
}

// Group is an AND/OR node over conditions and nested groups.
type Group struct {
	GroupType GroupType
	Children  []Node
}

// Node holds exactly one of Group or Condition.
type Node struct {
	Group     *Group
	Condition *Condition
}

// Filter is an immutable match predicate. The zero root means the filter
// always matches; a never-matching filter stands in for malformed stored
// data so a broken filter disables its effect instead of enabling it.
type Filter struct {
	root  *Group
	never bool
}

// Always matches every record.
func Always() *Filter {
	return &Filter{}
}

// Never matches no record.
func Never() *Filter {
	return &Filter{never: true}
}

func (f *Filter) Matches(flat map[string]any) bool {
	if f == nil {
		return true
	}
	if f.never {
		return false
	}
	if f.root == nil {
		return true
	}
	return matchesGroup(flat, f.root)
}

// IsEmpty reports whether the filter has no condition group at all.
func (f *Filter) IsEmpty() bool {
	return f != nil && !f.never && f.root == nil
}

func matchesGroup(flat map[string]any, group *Group) bool {
	switch group.GroupType {
	case GroupAnd:
		for _, child := range group.Children {
			if !matchesNode(flat, child) {
				return false
			}
		}
		return true
	case GroupOr:
		for _, child := range group.Children {
			if matchesNode(flat, child) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func matchesNode(flat map[string]any, node Node) bool {
	if node.Group != nil {
		return matchesGroup(flat, node.Group)
	}
	if node.Condition != nil {
		return matchesCondition(flat, node.Condition)
	}
	return false
}

func matchesCondition(flat map[string]any, condition *Condition) bool {
	source := normalizeScalar(flat[condition.Field])

	switch condition.Comparison {
	case CompareEqual:
		return looseEqual(source, condition.Value)
	case CompareNotEqual:
		return !looseEqual(source, condition.Value)
	case CompareGreater:
		ordering, ok := compareOrdered(source, condition.Value)
		return ok && ordering > 0
	case CompareGreaterEqual:
		ordering, ok := compareOrdered(source, condition.Value)
		return ok && ordering >= 0
	case CompareLess:
		ordering, ok := compareOrdered(source, condition.Value)
		return ok && ordering < 0
	case CompareLessEqual:
		ordering, ok := compareOrdered(source, condition.Value)
		return ok && ordering <= 0
	default:
		return false
	}
}

// looseEqual mirrors the host's loose equality: the number 5 equals the
// string "5", booleans equal their "true"/"false" and 1/0 spellings, and
// nil only equals nil.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}

	aNum, aIsNum := asNumber(a)
	bNum, bIsNum := asNumber(b)
	if aIsNum && bIsNum {
		return aNum == bNum
	}

	if aBool, ok := a.(bool); ok {
		return boolEquals(aBool, b)
	}
	if bBool, ok := b.(bool); ok {
		return boolEquals(bBool, a)
	}

	return false
}

func boolEquals(value bool, other any) bool {
	switch v := other.(type) {
	case bool:
		return value == v
	case string:
		if value {
			return v == "true"
		}
		return v == "false"
	case float64:
		if value {
			return v == 1
		}
		return v == 0
	default:
		return false
	}
}

// compareOrdered returns the ordering of a relative to b. Numbers (and
// numeric strings against numbers) compare numerically, two strings compare
// lexicographically; any other pairing, including nil on either side, is
// unordered and the relational operators fail.
func compareOrdered(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}

	aNum, aIsNum := asNumber(a)
	bNum, bIsNum := asNumber(b)
	if aIsNum && bIsNum {
		switch {
		case aNum < bNum:
			return -1, true
		case aNum > bNum:
			return 1, true
		default:
			return 0, true
		}
	}

	aStr, aIsStr := a.(string)
	bStr, bIsStr := b.(string)
	if aIsStr && bIsStr {
		switch {
		case aStr < bStr:
			return -1, true
		case aStr > bStr:
			return 1, true
		default:
			return 0, true
		}
	}

	return 0, false
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

// normalizeScalar maps lookup results to the four supported value kinds.
// Empty strings were already normalized to nil at write time; lookups are
// normalized again so evaluation is consistent for pre-existing data.
func normalizeScalar(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return v
	case bool:
		return v
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if parsed, err := v.Float64(); err == nil {
			return parsed
		}
		return v.String()
	default:
		return value
	}
}
