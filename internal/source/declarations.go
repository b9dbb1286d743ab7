package source

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/sanixdarker/strapisource/internal/query"
	"github.com/sanixdarker/strapisource/pkg/naming"
	"github.com/sanixdarker/strapisource/pkg/schema"
)

// Declarations renders the node type definitions for the configured content
// types as SDL: one `Strapi<Entity>` node type per content type plus every
// object, union and custom scalar reachable from it.
func (s *Sourcer) Declarations(sch *schema.Schema, markdownFields map[string][]string) (string, error) {
	builder := query.NewBuilder(sch, s.deps.Relations, query.Options{})
	targets, _ := s.targets(builder.Roots())

	entities := make(map[string]bool)
	var roots []string
	for _, t := range targets {
		if !entities[t.root.Entity] {
			entities[t.root.Entity] = true
			roots = append(roots, t.root.Entity)
		}
	}

	d := &declarer{
		schema:    sch,
		relations: s.deps.Relations,
		entities:  entities,
		markdown:  markdownFields,
		seen:      make(map[string]bool),
		scalars:   make(map[string]bool),
	}
	for _, name := range roots {
		d.visit(name)
	}
	return d.render()
}

type declarer struct {
	schema    *schema.Schema
	relations *naming.RelationParser
	entities  map[string]bool
	markdown  map[string][]string
	seen      map[string]bool
	scalars   map[string]bool
	order     []string
}

func (d *declarer) visit(name string) {
	if d.seen[name] {
		return
	}
	t, ok := d.schema.Type(name)
	if !ok {
		return
	}
	switch t.Kind {
	case schema.KindObject, schema.KindUnion:
	default:
		return
	}
	d.seen[name] = true
	d.order = append(d.order, name)

	for _, member := range t.PossibleTypes {
		d.visit(member.NamedType())
	}
	for _, f := range t.Fields {
		d.visitField(f)
	}
}

func (d *declarer) visitField(f schema.Field) {
	named := f.Type.NamedType()
	switch d.schema.KindOf(named) {
	case schema.KindScalar:
		if t, ok := d.schema.Type(named); ok && !t.IsBuiltin() && schema.TypeName(&f.Type) != schema.TextType {
			d.scalars[named] = true
		}
	case schema.KindObject, schema.KindUnion:
		d.visit(named)
	}
}

// declarable reports whether f can be rendered with a known type. Fields
// with malformed type descriptors are left out.
func (d *declarer) declarable(f schema.Field) bool {
	if strings.HasPrefix(f.Name, "__") || schema.Validate(&f.Type) != nil {
		return false
	}
	switch d.schema.KindOf(f.Type.NamedType()) {
	case schema.KindScalar, schema.KindEnum, schema.KindObject, schema.KindUnion:
		return true
	}
	return false
}

func (d *declarer) render() (string, error) {
	var b strings.Builder
	b.WriteString("interface Node {\n  id: ID!\n}\n\n")

	scalars := make([]string, 0, len(d.scalars))
	for name := range d.scalars {
		scalars = append(scalars, name)
	}
	sort.Strings(scalars)
	for _, name := range scalars {
		fmt.Fprintf(&b, "scalar %s\n\n", name)
	}

	for _, name := range d.order {
		t, _ := d.schema.Type(name)
		if t.Kind == schema.KindUnion {
			members := make([]string, 0, len(t.PossibleTypes))
			for _, m := range t.PossibleTypes {
				if d.seen[m.NamedType()] {
					members = append(members, schema.TypePrefix+m.NamedType())
				}
			}
			if len(members) > 0 {
				fmt.Fprintf(&b, "union %s%s = %s\n\n", schema.TypePrefix, name, strings.Join(members, " | "))
			}
			continue
		}
		d.renderObject(&b, t)
	}

	doc, err := parser.ParseSchema(&ast.Source{Name: "declarations.graphql", Input: b.String()})
	if err != nil {
		return "", fmt.Errorf("failed to parse generated declarations: %w", err)
	}
	var out bytes.Buffer
	formatter.NewFormatter(&out).FormatSchemaDocument(doc)
	return out.String(), nil
}

func (d *declarer) renderObject(b *strings.Builder, t *schema.FullType) {
	fields := make(map[string]string)
	var order []string
	add := func(name, typ string) {
		if _, ok := fields[name]; ok {
			return
		}
		fields[name] = typ
		order = append(order, name)
	}

	node := d.entities[t.Name]
	if node {
		add("id", "ID!")
		add("nodeId", "String")
		add("strapiId", "ID")
	}
	for _, f := range t.Fields {
		if d.declarable(f) {
			add(f.Name, schema.FieldType(&f.Type))
		}
	}

	switch {
	case t.Name == schema.FileTypename:
		add("file", "ID")
	case isEntityResponse(d.relations, t.Name):
		add("id", "ID")
		add("nodeId", "String")
	case isRelationCollection(d.relations, t.Name):
		add("nodeIds", "[ID]")
	}
	for _, md := range d.markdown[t.Name] {
		add(md+"_images", "[ID]")
		add(md+"_html", "String")
	}

	if len(order) == 0 {
		return
	}

	fmt.Fprintf(b, "type %s%s", schema.TypePrefix, t.Name)
	if node {
		b.WriteString(" implements Node")
	}
	b.WriteString(" {\n")
	for _, name := range order {
		fmt.Fprintf(b, "  %s: %s\n", name, fields[name])
	}
	b.WriteString("}\n\n")
}

func isEntityResponse(p *naming.RelationParser, name string) bool {
	_, ok := p.EntityResponse(name)
	return ok
}

func isRelationCollection(p *naming.RelationParser, name string) bool {
	if isEntityResponse(p, name) {
		return false
	}
	_, ok := p.Relation(name)
	return ok
}
