// Package typesys implements the declaration's type grammar: parsing type
// descriptors from their surface syntax and validating runtime values
// against the resulting type tree.
package typesys

import "fmt"

// Kind identifies which variant of TypeRef a value holds.
type Kind int

const (
	KindStr Kind = iota
	KindInt
	KindFloat
	KindBool
	KindList
	KindMap
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindStr:
		return "str"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "dict"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// TypeRef is the tagged-variant type tree described in spec §3: a scalar
// Basic kind, or a recursive List/Map/Object composed of nested TypeRefs.
type TypeRef struct {
	Kind Kind

	// Item is the element type for KindList.
	Item *TypeRef

	// Key/Value are the key and value types for KindMap.
	Key   *TypeRef
	Value *TypeRef

	// Fields holds the member types for KindObject, keyed by field name.
	Fields map[string]*TypeRef
}

// Equal reports whether two TypeRefs describe the same type, recursing into
// List/Map/Object element types as required by the validator's output-type
// equality check (spec §4.3 pass 4).
func (t TypeRef) Equal(other TypeRef) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case KindList:
		if t.Item == nil || other.Item == nil {
			return t.Item == other.Item
		}
		return t.Item.Equal(*other.Item)
	case KindMap:
		if (t.Key == nil) != (other.Key == nil) || (t.Value == nil) != (other.Value == nil) {
			return false
		}
		if t.Key != nil && !t.Key.Equal(*other.Key) {
			return false
		}
		if t.Value != nil && !t.Value.Equal(*other.Value) {
			return false
		}
		return true
	case KindObject:
		if len(t.Fields) != len(other.Fields) {
			return false
		}
		for name, ft := range t.Fields {
			oft, ok := other.Fields[name]
			if !ok || !ft.Equal(*oft) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (t TypeRef) String() string {
	switch t.Kind {
	case KindList:
		if t.Item != nil {
			return fmt.Sprintf("list[%s]", t.Item)
		}
		return "list"
	case KindMap:
		if t.Key != nil && t.Value != nil {
			return fmt.Sprintf("dict[%s,%s]", t.Key, t.Value)
		}
		return "dict"
	case KindObject:
		return "object"
	default:
		return t.Kind.String()
	}
}

// Basic type constructors, used by callers that build TypeRefs programmatically
// (the state/output model builder, node output schema validation).
func Str() TypeRef   { return TypeRef{Kind: KindStr} }
func Int() TypeRef   { return TypeRef{Kind: KindInt} }
func Float() TypeRef { return TypeRef{Kind: KindFloat} }
func Bool() TypeRef  { return TypeRef{Kind: KindBool} }

func List(item TypeRef) TypeRef {
	return TypeRef{Kind: KindList, Item: &item}
}

func Map(key, value TypeRef) TypeRef {
	return TypeRef{Kind: KindMap, Key: &key, Value: &value}
}

func Object(fields map[string]*TypeRef) TypeRef {
	return TypeRef{Kind: KindObject, Fields: fields}
}
