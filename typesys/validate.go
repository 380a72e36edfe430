package typesys

import "fmt"

// ValueError reports the dotted path, within a value, where type validation
// failed.
type ValueError struct {
	Path    string
	Message string
}

func (e *ValueError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidateValue checks that v conforms to t, recursing into list elements,
// map values, and object fields. Numeric values use Go's json.Unmarshal
// convention: floats decode as float64 even for "int" fields, so ints are
// accepted when they carry no fractional part.
func ValidateValue(v any, t TypeRef) error {
	return validateAt("", v, t)
}

func validateAt(path string, v any, t TypeRef) error {
	if v == nil {
		return &ValueError{Path: path, Message: "value is nil"}
	}
	switch t.Kind {
	case KindStr:
		if _, ok := v.(string); !ok {
			return &ValueError{Path: path, Message: fmt.Sprintf("expected str, got %T", v)}
		}
	case KindInt:
		switch n := v.(type) {
		case int, int32, int64:
			// already integral
		case float64:
			if n != float64(int64(n)) {
				return &ValueError{Path: path, Message: fmt.Sprintf("expected int, got non-integral float %v", n)}
			}
		default:
			return &ValueError{Path: path, Message: fmt.Sprintf("expected int, got %T", v)}
		}
	case KindFloat:
		switch v.(type) {
		case float32, float64, int, int32, int64:
			// numeric is fine
		default:
			return &ValueError{Path: path, Message: fmt.Sprintf("expected float, got %T", v)}
		}
	case KindBool:
		if _, ok := v.(bool); !ok {
			return &ValueError{Path: path, Message: fmt.Sprintf("expected bool, got %T", v)}
		}
	case KindList:
		items, ok := v.([]any)
		if !ok {
			return &ValueError{Path: path, Message: fmt.Sprintf("expected list, got %T", v)}
		}
		if t.Item != nil {
			for i, item := range items {
				if err := validateAt(fmt.Sprintf("%s[%d]", path, i), item, *t.Item); err != nil {
					return err
				}
			}
		}
	case KindMap:
		m, ok := v.(map[string]any)
		if !ok {
			return &ValueError{Path: path, Message: fmt.Sprintf("expected dict, got %T", v)}
		}
		if t.Value != nil {
			for k, val := range m {
				if err := validateAt(fmt.Sprintf("%s.%s", path, k), val, *t.Value); err != nil {
					return err
				}
			}
		}
	case KindObject:
		m, ok := v.(map[string]any)
		if !ok {
			return &ValueError{Path: path, Message: fmt.Sprintf("expected object, got %T", v)}
		}
		for name, ft := range t.Fields {
			fv, present := m[name]
			if !present {
				return &ValueError{Path: joinPath(path, name), Message: "required object field missing"}
			}
			if err := validateAt(joinPath(path, name), fv, *ft); err != nil {
				return err
			}
		}
	default:
		return &ValueError{Path: path, Message: "unknown type kind"}
	}
	return nil
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
