// Package schema models GraphQL introspection types and derives node type
// names and field declarations from them.
package schema

import "strings"

// Kind is an introspection type kind.
type Kind string

const (
	KindScalar      Kind = "SCALAR"
	KindObject      Kind = "OBJECT"
	KindInterface   Kind = "INTERFACE"
	KindUnion       Kind = "UNION"
	KindEnum        Kind = "ENUM"
	KindInputObject Kind = "INPUT_OBJECT"
	KindList        Kind = "LIST"
	KindNonNull     Kind = "NON_NULL"
)

// TypeRef is a (possibly wrapped) reference to a type, mirroring the
// introspection `__Type` shape. LIST and NON_NULL carry OfType; terminal
// kinds carry Name.
type TypeRef struct {
	Kind   Kind     `json:"kind"`
	Name   *string  `json:"name"`
	OfType *TypeRef `json:"ofType"`
}

// Named returns a terminal type reference.
func Named(kind Kind, name string) *TypeRef {
	return &TypeRef{Kind: kind, Name: &name}
}

// ListOf wraps t in a LIST.
func ListOf(t *TypeRef) *TypeRef {
	return &TypeRef{Kind: KindList, OfType: t}
}

// NonNullOf wraps t in a NON_NULL.
func NonNullOf(t *TypeRef) *TypeRef {
	return &TypeRef{Kind: KindNonNull, OfType: t}
}

// name returns the terminal name or "" when absent.
func (t *TypeRef) name() string {
	if t == nil || t.Name == nil {
		return ""
	}
	return *t.Name
}

// NamedType unwraps every LIST and NON_NULL and returns the innermost name.
func (t *TypeRef) NamedType() string {
	for t != nil {
		if t.Kind != KindList && t.Kind != KindNonNull {
			return t.name()
		}
		t = t.OfType
	}
	return ""
}

// IsList reports whether a LIST wrapper appears anywhere in t.
func (t *TypeRef) IsList() bool {
	for ; t != nil; t = t.OfType {
		if t.Kind == KindList {
			return true
		}
	}
	return false
}

// InputValue is an argument or input field.
type InputValue struct {
	Name         string  `json:"name"`
	Type         TypeRef `json:"type"`
	DefaultValue *string `json:"defaultValue"`
}

// Required reports whether the argument must be supplied by the caller.
func (v InputValue) Required() bool {
	return v.Type.Kind == KindNonNull && v.DefaultValue == nil
}

// Field is a field of an object or interface type.
type Field struct {
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	Args        []InputValue `json:"args"`
	Type        TypeRef      `json:"type"`
}

// HasRequiredArgs reports whether selecting f needs arguments.
func (f Field) HasRequiredArgs() bool {
	for _, arg := range f.Args {
		if arg.Required() {
			return true
		}
	}
	return false
}

// Arg returns the argument called name.
func (f Field) Arg(name string) (*InputValue, bool) {
	for i := range f.Args {
		if f.Args[i].Name == name {
			return &f.Args[i], true
		}
	}
	return nil, false
}

// EnumValue is a member of an enum type.
type EnumValue struct {
	Name string `json:"name"`
}

// FullType is a named type with its members.
type FullType struct {
	Kind          Kind         `json:"kind"`
	Name          string       `json:"name"`
	Description   *string      `json:"description"`
	Fields        []Field      `json:"fields"`
	InputFields   []InputValue `json:"inputFields"`
	Interfaces    []TypeRef    `json:"interfaces"`
	EnumValues    []EnumValue  `json:"enumValues"`
	PossibleTypes []TypeRef    `json:"possibleTypes"`
}

// Field returns the field called name.
func (t *FullType) Field(name string) (*Field, bool) {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

// IsBuiltin reports whether the type is part of the GraphQL prelude or the
// introspection system.
func (t *FullType) IsBuiltin() bool {
	if strings.HasPrefix(t.Name, "__") {
		return true
	}
	switch t.Name {
	case "String", "Int", "Float", "Boolean", "ID":
		return true
	}
	return false
}

// NamedRef is the `{ name }` shape used for root operation types.
type NamedRef struct {
	Name string `json:"name"`
}

// Schema is the `__schema` object of an introspection result.
type Schema struct {
	QueryType        *NamedRef  `json:"queryType"`
	MutationType     *NamedRef  `json:"mutationType"`
	SubscriptionType *NamedRef  `json:"subscriptionType"`
	Types            []FullType `json:"types"`

	index map[string]int
}

// QueryTypeName returns the name of the query root, defaulting to "Query".
func (s *Schema) QueryTypeName() string {
	if s.QueryType != nil && s.QueryType.Name != "" {
		return s.QueryType.Name
	}
	return "Query"
}

// Type looks up a named type.
func (s *Schema) Type(name string) (*FullType, bool) {
	if s.index == nil {
		for i := range s.Types {
			if s.Types[i].Name == name {
				return &s.Types[i], true
			}
		}
		return nil, false
	}
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return &s.Types[i], true
}

// KindOf returns the kind of a named type, or "" when unknown.
func (s *Schema) KindOf(name string) Kind {
	if t, ok := s.Type(name); ok {
		return t.Kind
	}
	return ""
}

// Reindex builds the name lookup table. Loaders call it once after decoding;
// the schema is read-only afterwards.
func (s *Schema) Reindex() {
	s.index = make(map[string]int, len(s.Types))
	for i, t := range s.Types {
		s.index[t.Name] = i
	}
}
