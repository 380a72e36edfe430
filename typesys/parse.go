package typesys

import (
	"fmt"
	"strings"
)

// ParseError reports where in the surface syntax parsing failed and what
// form was expected there.
type ParseError struct {
	Input    string
	Pos      int
	Expected string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("type %q: at position %d: expected %s", e.Input, e.Pos, e.Expected)
}

// ParseType parses the surface syntax described in spec §4.1:
//
//	str | int | float | bool | list | dict | list[T] | dict[K,V] | object
//
// Whitespace inside generic brackets is insignificant. "object" is accepted
// here as a bare TypeRef with no Fields. Neither declaration loading nor
// validate attaches a schema to it or rejects a bare "object", so such a
// field accepts any map value and ValidateValue checks none of its fields.
func ParseType(s string) (TypeRef, error) {
	p := &typeParser{input: s}
	t, err := p.parseType()
	if err != nil {
		return TypeRef{}, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return TypeRef{}, &ParseError{Input: s, Pos: p.pos, Expected: "end of type expression"}
	}
	return t, nil
}

type typeParser struct {
	input string
	pos   int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *typeParser) peekWord() string {
	start := p.pos
	for start < len(p.input) && isWordChar(p.input[start]) {
		start++
	}
	return p.input[p.pos:start]
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (p *typeParser) parseType() (TypeRef, error) {
	p.skipSpace()
	word := p.peekWord()
	if word == "" {
		return TypeRef{}, &ParseError{Input: p.input, Pos: p.pos, Expected: "a type name (str, int, float, bool, list, dict, object)"}
	}
	p.pos += len(word)

	switch word {
	case "str":
		return Str(), nil
	case "int":
		return Int(), nil
	case "float":
		return Float(), nil
	case "bool":
		return Bool(), nil
	case "object":
		return TypeRef{Kind: KindObject}, nil
	case "list":
		p.skipSpace()
		if p.pos < len(p.input) && p.input[p.pos] == '[' {
			p.pos++
			item, err := p.parseType()
			if err != nil {
				return TypeRef{}, err
			}
			p.skipSpace()
			if p.pos >= len(p.input) || p.input[p.pos] != ']' {
				return TypeRef{}, &ParseError{Input: p.input, Pos: p.pos, Expected: "']' closing list[T]"}
			}
			p.pos++
			return List(item), nil
		}
		return TypeRef{Kind: KindList}, nil
	case "dict":
		p.skipSpace()
		if p.pos < len(p.input) && p.input[p.pos] == '[' {
			p.pos++
			key, err := p.parseType()
			if err != nil {
				return TypeRef{}, err
			}
			p.skipSpace()
			if p.pos >= len(p.input) || p.input[p.pos] != ',' {
				return TypeRef{}, &ParseError{Input: p.input, Pos: p.pos, Expected: "',' separating dict[K,V]"}
			}
			p.pos++
			value, err := p.parseType()
			if err != nil {
				return TypeRef{}, err
			}
			p.skipSpace()
			if p.pos >= len(p.input) || p.input[p.pos] != ']' {
				return TypeRef{}, &ParseError{Input: p.input, Pos: p.pos, Expected: "']' closing dict[K,V]"}
			}
			p.pos++
			return Map(key, value), nil
		}
		return TypeRef{Kind: KindMap}, nil
	default:
		return TypeRef{}, &ParseError{
			Input:    p.input,
			Pos:      p.pos - len(word),
			Expected: "one of str, int, float, bool, list, list[T], dict, dict[K,V], object, got " + strings.TrimSpace(word),
		}
	}
}
