package world

import (
	"strings"
)

// FlagMap is namespaced key-value storage on an entity: namespace → key →
// value. Values hold JSON-compatible data (maps, slices, scalars).
type FlagMap map[string]map[string]any

// Get returns the flag value, reporting whether it was present.
func (f FlagMap) Get(namespace, key string) (any, bool) {
	scope, ok := f[namespace]
	if !ok {
		return nil, false
	}
	value, ok := scope[key]
	return value, ok
}

// Set stores a flag value, allocating scopes as needed.
func (f *FlagMap) Set(namespace, key string, value any) {
	if *f == nil {
		*f = make(FlagMap)
	}
	scope, ok := (*f)[namespace]
	if !ok {
		scope = make(map[string]any)
		(*f)[namespace] = scope
	}
	scope[key] = value
}

// Unset removes a flag, dropping the namespace scope when it empties.
func (f FlagMap) Unset(namespace, key string) {
	scope, ok := f[namespace]
	if !ok {
		return
	}
	delete(scope, key)
	if len(scope) == 0 {
		delete(f, namespace)
	}
}

// Clone deep-copies the flag map. Flag values hold decoded JSON, so maps
// and slices are the only container kinds that need recursion.
func (f FlagMap) Clone() FlagMap {
	if f == nil {
		return nil
	}
	clone := make(FlagMap, len(f))
	for namespace, scope := range f {
		scopeClone := make(map[string]any, len(scope))
		for key, value := range scope {
			scopeClone[key] = cloneValue(value)
		}
		clone[namespace] = scopeClone
	}
	return clone
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(v))
		for key, child := range v {
			clone[key] = cloneValue(child)
		}
		return clone
	case []any:
		clone := make([]any, 0, len(v))
		for _, child := range v {
			clone = append(clone, cloneValue(child))
		}
		return clone
	default:
		return value
	}
}

// FlagDiff describes the flag portion of an actor-update difference. Keys
// are "namespace.key"; a deleted flag appears under the host's deletion
// spelling "namespace.-=key" with a nil value.
type FlagDiff map[string]any

// Changed reports whether the diff touches the given flag, either as a
// write or as a deletion.
func (d FlagDiff) Changed(namespace, key string) bool {
	if d == nil {
		return false
	}
	if _, ok := d[namespace+"."+key]; ok {
		return true
	}
	_, ok := d[namespace+".-="+key]
	return ok
}

// Namespace reports whether any flag inside the namespace changed.
func (d FlagDiff) Namespace(namespace string) bool {
	for key := range d {
		if strings.HasPrefix(key, namespace+".") {
			return true
		}
	}
	return false
}
