// Package query builds the GraphQL operations that page through the CMS
// content types.
package query

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"

	"github.com/sanixdarker/strapisource/pkg/naming"
	"github.com/sanixdarker/strapisource/pkg/schema"
)

const (
	// DefaultMaxDepth bounds component nesting.
	DefaultMaxDepth = 5
	// DefaultRelationLimit is the page size requested for to-many relations.
	DefaultRelationLimit = 100

	typenameField = "__typename"
)

var (
	// ErrUnknownField is returned when the query root has no such field.
	ErrUnknownField = errors.New("unknown query field")
	// ErrNotEntityResponse is returned when a field is not an entity wrapper.
	ErrNotEntityResponse = errors.New("field does not return an entity response")
)

// Root is a query root field returning entities.
type Root struct {
	Field  string
	Entity string
	Single bool
}

// Operation is a built query.
type Operation struct {
	Name   string
	Field  string
	Entity string
	Single bool
	// Paginated operations take $start and $limit.
	Paginated bool
	Document  *ast.QueryDocument
	Text      string
}

// Options tunes a Builder.
type Options struct {
	MaxDepth      int
	RelationLimit int
}

// Builder derives selection sets from an introspected schema.
type Builder struct {
	schema        *schema.Schema
	relations     *naming.RelationParser
	maxDepth      int
	relationLimit int
}

// NewBuilder creates a Builder.
func NewBuilder(s *schema.Schema, relations *naming.RelationParser, opts Options) *Builder {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.RelationLimit <= 0 {
		opts.RelationLimit = DefaultRelationLimit
	}
	return &Builder{
		schema:        s,
		relations:     relations,
		maxDepth:      opts.MaxDepth,
		relationLimit: opts.RelationLimit,
	}
}

// Roots lists the query fields returning entity collections or single
// entities, sorted by field name.
func (b *Builder) Roots() []Root {
	q, ok := b.schema.Type(b.schema.QueryTypeName())
	if !ok {
		return nil
	}
	var roots []Root
	for _, f := range q.Fields {
		if f.HasRequiredArgs() {
			continue
		}
		wrapper := f.Type.NamedType()
		if entity, ok := b.relations.EntityResponseCollection(wrapper); ok {
			roots = append(roots, Root{Field: f.Name, Entity: entity})
			continue
		}
		if entity, ok := b.relations.EntityResponse(wrapper); ok {
			roots = append(roots, Root{Field: f.Name, Entity: entity, Single: true})
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Field < roots[j].Field })
	return roots
}

// Collection builds the paginated query for a collection field.
func (b *Builder) Collection(field string) (*Operation, error) {
	return b.build(field, false)
}

// Single builds the query for a single-type field.
func (b *Builder) Single(field string) (*Operation, error) {
	return b.build(field, true)
}

func (b *Builder) build(field string, single bool) (*Operation, error) {
	q, ok := b.schema.Type(b.schema.QueryTypeName())
	if !ok {
		return nil, fmt.Errorf("schema has no query type %q", b.schema.QueryTypeName())
	}
	f, ok := q.Field(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	wrapper := f.Type.NamedType()
	var entity string
	if single {
		entity, ok = b.relations.EntityResponse(wrapper)
	} else {
		entity, ok = b.relations.EntityResponseCollection(wrapper)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s returns %s", ErrNotEntityResponse, field, wrapper)
	}

	attributes, err := b.attributesType(wrapper)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve attributes of %s: %w", field, err)
	}

	op := &Operation{
		Name:   schema.TypePrefix + naming.TypeName(field),
		Field:  field,
		Entity: entity,
		Single: single,
	}

	root := &ast.Field{
		Alias: field,
		Name:  field,
		SelectionSet: ast.SelectionSet{
			leaf("data", b.entitySelection(attributes, true)),
		},
	}

	if !single {
		if _, ok := f.Arg("pagination"); ok {
			op.Paginated = true
			root.Arguments = ast.ArgumentList{{
				Name: "pagination",
				Value: objectValue(
					childValue("start", &ast.Value{Kind: ast.Variable, Raw: "start"}),
					childValue("limit", &ast.Value{Kind: ast.Variable, Raw: "limit"}),
				),
			}}
		}
		if wt, ok := b.schema.Type(wrapper); ok {
			if _, ok := wt.Field("meta"); ok {
				root.SelectionSet = append(root.SelectionSet,
					leaf("meta", ast.SelectionSet{leaf("pagination", ast.SelectionSet{leaf("total", nil)})}))
			}
		}
	}

	def := &ast.OperationDefinition{
		Operation:    ast.Query,
		Name:         op.Name,
		SelectionSet: ast.SelectionSet{root},
	}
	if op.Paginated {
		def.VariableDefinitions = ast.VariableDefinitionList{
			{Variable: "start", Type: ast.NamedType("Int", nil)},
			{Variable: "limit", Type: ast.NamedType("Int", nil)},
		}
	}
	op.Document = &ast.QueryDocument{Operations: ast.OperationList{def}}
	op.Text = Print(op.Document)
	return op, nil
}

// attributesType follows <Wrapper>.data -> <Entity>.attributes.
func (b *Builder) attributesType(wrapper string) (string, error) {
	wt, ok := b.schema.Type(wrapper)
	if !ok {
		return "", fmt.Errorf("unknown type %s", wrapper)
	}
	data, ok := wt.Field("data")
	if !ok {
		return "", fmt.Errorf("type %s has no data field", wrapper)
	}
	et, ok := b.schema.Type(data.Type.NamedType())
	if !ok {
		return "", fmt.Errorf("unknown entity type %s", data.Type.NamedType())
	}
	attrs, ok := et.Field("attributes")
	if !ok {
		return "", fmt.Errorf("type %s has no attributes field", et.Name)
	}
	return attrs.Type.NamedType(), nil
}

// entitySelection selects `__typename id attributes { ... }`. Full
// selections descend into the attributes; otherwise only file entities do.
func (b *Builder) entitySelection(attributes string, full bool) ast.SelectionSet {
	sel := ast.SelectionSet{leaf(typenameField, nil), leaf("id", nil)}
	switch {
	case full:
		if attrs := b.objectSelection(attributes, 1); len(attrs) > 0 {
			sel = append(sel, leaf("attributes", attrs))
		}
	case attributes == schema.FileTypename:
		if attrs := b.scalarSelection(attributes); len(attrs) > 0 {
			sel = append(sel, leaf("attributes", attrs))
		}
	}
	return sel
}

// objectSelection selects every field of typeName that can be selected
// without arguments, down to the configured depth.
func (b *Builder) objectSelection(typeName string, depth int) ast.SelectionSet {
	t, ok := b.schema.Type(typeName)
	if !ok {
		return nil
	}
	sel := ast.SelectionSet{leaf(typenameField, nil)}
	for _, f := range t.Fields {
		if f.HasRequiredArgs() {
			continue
		}
		if s := b.fieldSelection(f, depth); s != nil {
			sel = append(sel, s)
		}
	}
	return sel
}

func (b *Builder) fieldSelection(f schema.Field, depth int) ast.Selection {
	named := f.Type.NamedType()
	switch b.schema.KindOf(named) {
	case schema.KindScalar, schema.KindEnum:
		return leaf(f.Name, nil)

	case schema.KindObject:
		if entity, ok := b.relations.EntityResponse(named); ok {
			return leaf(f.Name, b.relationSelection(named, entity))
		}
		if entity, ok := b.relations.Relation(named); ok {
			field := leaf(f.Name, b.relationSelection(named, entity))
			if _, ok := f.Arg("pagination"); ok {
				field.Arguments = ast.ArgumentList{{
					Name: "pagination",
					Value: objectValue(childValue("limit", &ast.Value{
						Kind: ast.IntValue,
						Raw:  strconv.Itoa(b.relationLimit),
					})),
				}}
			}
			return field
		}
		if depth >= b.maxDepth {
			return nil
		}
		if sel := b.objectSelection(named, depth+1); len(sel) > 1 {
			return leaf(f.Name, sel)
		}

	case schema.KindUnion, schema.KindInterface:
		if depth >= b.maxDepth {
			return nil
		}
		t, _ := b.schema.Type(named)
		sel := ast.SelectionSet{leaf(typenameField, nil)}
		for _, member := range t.PossibleTypes {
			memberName := member.NamedType()
			if inner := b.objectSelection(memberName, depth+1); len(inner) > 0 {
				sel = append(sel, &ast.InlineFragment{TypeCondition: memberName, SelectionSet: inner})
			}
		}
		return leaf(f.Name, sel)
	}
	return nil
}

// relationSelection selects `__typename data { __typename id }` for a
// relation wrapper, plus the file attributes for upload relations.
func (b *Builder) relationSelection(wrapper, entity string) ast.SelectionSet {
	attributes := ""
	if attrs, err := b.attributesType(wrapper); err == nil {
		attributes = attrs
	}
	if entity != schema.FileTypename {
		attributes = ""
	}
	return ast.SelectionSet{
		leaf(typenameField, nil),
		leaf("data", b.entitySelection(attributes, false)),
	}
}

// scalarSelection selects the scalar and enum fields of typeName.
func (b *Builder) scalarSelection(typeName string) ast.SelectionSet {
	t, ok := b.schema.Type(typeName)
	if !ok {
		return nil
	}
	sel := ast.SelectionSet{leaf(typenameField, nil)}
	for _, f := range t.Fields {
		if f.HasRequiredArgs() {
			continue
		}
		switch b.schema.KindOf(f.Type.NamedType()) {
		case schema.KindScalar, schema.KindEnum:
			sel = append(sel, leaf(f.Name, nil))
		}
	}
	return sel
}

// Print renders a query document.
func Print(doc *ast.QueryDocument) string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatQueryDocument(doc)
	return buf.String()
}

func leaf(name string, sel ast.SelectionSet) *ast.Field {
	return &ast.Field{Alias: name, Name: name, SelectionSet: sel}
}

func objectValue(children ...*ast.ChildValue) *ast.Value {
	return &ast.Value{Kind: ast.ObjectValue, Children: children}
}

func childValue(name string, v *ast.Value) *ast.ChildValue {
	return &ast.ChildValue{Name: name, Value: v}
}
