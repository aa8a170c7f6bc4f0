package condition

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Entity is the mapping a condition is evaluated against, usually a task
// decoded from JSON.
type Entity = map[string]any

// Resolve walks a dot-path ("metadata.points", "labels.0") through nested
// maps and slices. Missing keys, out-of-range indexes and scalars in the
// middle of the path all resolve to (nil, false); Resolve never panics.
func Resolve(entity Entity, path string) (any, bool) {
	if entity == nil || path == "" {
		return nil, false
	}

	var current any = entity
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return nil, false
		}
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		case []string:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// SetPath returns a deep copy of entity with value stored at path. Missing
// intermediate maps are created; a non-map value in the middle of the path is
// an error and the original entity is left untouched.
func SetPath(entity Entity, path string, value any) (Entity, error) {
	if path == "" {
		return nil, fmt.Errorf("set path: empty field path")
	}
	out := Clone(entity)
	if out == nil {
		out = Entity{}
	}

	segments := strings.Split(path, ".")
	node := out
	for i, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("set path %q: empty segment", path)
		}
		if i == len(segments)-1 {
			node[segment] = value
			break
		}
		next, ok := node[segment]
		if !ok || next == nil {
			child := Entity{}
			node[segment] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("set path %q: segment %q is %T, not an object", path, segment, next)
		}
		node = child
	}
	return out, nil
}

// Clone deep-copies the maps and slices of an entity. Scalars are shared.
func Clone(entity Entity) Entity {
	if entity == nil {
		return nil
	}
	cloned, _ := cloneValue(entity).(map[string]any)
	return cloned
}

func cloneValue(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[k] = cloneValue(child)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[k] = child
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			out[i] = cloneValue(child)
		}
		return out
	case []string:
		out := make([]any, len(node))
		for i, child := range node {
			out[i] = child
		}
		return out
	default:
		return v
	}
}

// FromStruct converts any JSON-marshalable value into an Entity so typed
// tasks can be evaluated with the same field paths the API exposes.
func FromStruct(v any) (Entity, error) {
	if entity, ok := v.(map[string]any); ok {
		return entity, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode entity: %w", err)
	}
	var entity Entity
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("decode entity: %w", err)
	}
	return entity, nil
}
