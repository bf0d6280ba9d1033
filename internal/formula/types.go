package formula

import (
	"strings"

	"govreport/internal/domain"
)

// Type is the inferred type of a formula node.
type Type uint8

// Formula types. Any marks a value whose type is deferred (an unresolved
// sibling reference); Null is the type of the None literal.
const (
	TypeInvalid Type = iota
	TypeAny
	TypeNull
	TypeNumber
	TypeString
	TypeBoolean
	TypeDate
)

func (t Type) String() string {
	switch t {
	case TypeAny:
		return "any"
	case TypeNull:
		return "null"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeBoolean:
		return "boolean"
	case TypeDate:
		return "date"
	}
	return "invalid"
}

// FromSemantic converts a schema type to a formula type.
func FromSemantic(t domain.SemanticType) Type {
	switch t {
	case domain.TypeNumber:
		return TypeNumber
	case domain.TypeString:
		return TypeString
	case domain.TypeBoolean:
		return TypeBoolean
	case domain.TypeDate:
		return TypeDate
	}
	return TypeInvalid
}

// Semantic converts a concrete formula type to a schema type. Any and Null
// have no semantic counterpart and return ok=false.
func (t Type) Semantic() (domain.SemanticType, bool) {
	switch t {
	case TypeNumber:
		return domain.TypeNumber, true
	case TypeString:
		return domain.TypeString, true
	case TypeBoolean:
		return domain.TypeBoolean, true
	case TypeDate:
		return domain.TypeDate, true
	}
	return "", false
}

// Concrete reports whether t is one of the four semantic types.
func (t Type) Concrete() bool {
	_, ok := t.Semantic()
	return ok
}

// TypeSet is a union of types accepted by a function argument.
type TypeSet uint8

// Argument type sets.
const (
	SetNumber TypeSet = 1 << iota
	SetString
	SetBoolean
	SetDate
	SetAny TypeSet = SetNumber | SetString | SetBoolean | SetDate
)

// Contains reports whether t is acceptable for the set. Any and Null are
// acceptable everywhere.
func (s TypeSet) Contains(t Type) bool {
	switch t {
	case TypeAny, TypeNull:
		return true
	case TypeNumber:
		return s&SetNumber != 0
	case TypeString:
		return s&SetString != 0
	case TypeBoolean:
		return s&SetBoolean != 0
	case TypeDate:
		return s&SetDate != 0
	}
	return false
}

func (s TypeSet) String() string {
	if s == SetAny {
		return "any"
	}
	var parts []string
	for _, e := range []struct {
		bit  TypeSet
		name string
	}{{SetNumber, "number"}, {SetString, "string"}, {SetBoolean, "boolean"}, {SetDate, "date"}} {
		if s&e.bit != 0 {
			parts = append(parts, e.name)
		}
	}
	return strings.Join(parts, "|")
}

// unify returns the common type of a and b, treating Null and Any as
// wildcards, or TypeInvalid when they disagree.
func unify(a, b Type) Type {
	switch {
	case a == b:
		return a
	case a == TypeNull:
		return b
	case b == TypeNull:
		return a
	case a == TypeAny:
		return b
	case b == TypeAny:
		return a
	}
	return TypeInvalid
}
