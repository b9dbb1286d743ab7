package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// Source supplies an introspected schema.
type Source interface {
	Load(ctx context.Context) (*Schema, error)
}

// FileSource loads a schema from disk. Files ending in .json are read as
// introspection results, anything else as SDL.
type FileSource struct {
	Path string
}

// Load implements Source.
func (s FileSource) Load(ctx context.Context) (*Schema, error) {
	content, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(s.Path), ".json") {
		return ParseIntrospection(content)
	}
	return LoadSDL(filepath.Base(s.Path), string(content))
}

// ParseIntrospection decodes an introspection result. Both the bare
// `{"__schema": ...}` object and the full `{"data": {"__schema": ...}}`
// response are accepted.
func ParseIntrospection(content []byte) (*Schema, error) {
	var envelope struct {
		Data *struct {
			Schema *Schema `json:"__schema"`
		} `json:"data"`
		Schema *Schema `json:"__schema"`
	}
	if err := json.NewDecoder(bytes.NewReader(content)).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode introspection result: %w", err)
	}

	s := envelope.Schema
	if s == nil && envelope.Data != nil {
		s = envelope.Data.Schema
	}
	if s == nil {
		return nil, fmt.Errorf("introspection result has no __schema")
	}
	s.Reindex()
	return s, nil
}

// LoadSDL parses a schema definition and converts it into the introspection
// model.
func LoadSDL(name, input string) (*Schema, error) {
	doc, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to parse GraphQL schema: %w", err)
	}
	return FromAST(doc), nil
}

// FromAST converts a validated gqlparser schema.
func FromAST(doc *ast.Schema) *Schema {
	s := &Schema{}
	if doc.Query != nil {
		s.QueryType = &NamedRef{Name: doc.Query.Name}
	}
	if doc.Mutation != nil {
		s.MutationType = &NamedRef{Name: doc.Mutation.Name}
	}
	if doc.Subscription != nil {
		s.SubscriptionType = &NamedRef{Name: doc.Subscription.Name}
	}

	for _, def := range doc.Types {
		t := FullType{
			Kind: Kind(def.Kind),
			Name: def.Name,
		}
		if def.Description != "" {
			desc := def.Description
			t.Description = &desc
		}

		for _, f := range def.Fields {
			if strings.HasPrefix(f.Name, "__") {
				continue
			}
			field := Field{Name: f.Name, Type: *refFromAST(doc, f.Type)}
			if f.Description != "" {
				desc := f.Description
				field.Description = &desc
			}
			for _, arg := range f.Arguments {
				field.Args = append(field.Args, inputValue(doc, arg.Name, arg.Type, arg.DefaultValue))
			}
			if def.Kind == ast.InputObject {
				t.InputFields = append(t.InputFields, inputValue(doc, f.Name, f.Type, f.DefaultValue))
				continue
			}
			t.Fields = append(t.Fields, field)
		}

		for _, member := range def.Types {
			t.PossibleTypes = append(t.PossibleTypes, *Named(KindObject, member))
		}
		for _, iface := range def.Interfaces {
			t.Interfaces = append(t.Interfaces, *Named(KindInterface, iface))
		}
		for _, v := range def.EnumValues {
			t.EnumValues = append(t.EnumValues, EnumValue{Name: v.Name})
		}

		s.Types = append(s.Types, t)
	}

	s.Reindex()
	return s
}

func inputValue(doc *ast.Schema, name string, t *ast.Type, def *ast.Value) InputValue {
	v := InputValue{Name: name, Type: *refFromAST(doc, t)}
	if def != nil {
		raw := def.String()
		v.DefaultValue = &raw
	}
	return v
}

func refFromAST(doc *ast.Schema, t *ast.Type) *TypeRef {
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListOf(refFromAST(doc, t.Elem))
	} else {
		kind := KindScalar
		if def, ok := doc.Types[t.NamedType]; ok {
			kind = Kind(def.Kind)
		}
		ref = Named(kind, t.NamedType)
	}
	if t.NonNull {
		ref = NonNullOf(ref)
	}
	return ref
}
