package naming

import "regexp"

// RelationParser recovers entity names from relation wrapper type names
// such as ArticleEntityResponse or TagRelationResponseCollection.
type RelationParser struct {
	entityResponse           *regexp.Regexp
	entityResponseCollection *regexp.Regexp
	collection               *regexp.Regexp
}

// NewRelationParser compiles the wrapper name patterns.
func NewRelationParser() *RelationParser {
	return &RelationParser{
		entityResponse:           regexp.MustCompile(`^(.+)EntityResponse$`),
		entityResponseCollection: regexp.MustCompile(`^(.+)EntityResponseCollection$`),
		collection:               regexp.MustCompile(`^(.+)(?:EntityResponse|RelationResponseCollection)$`),
	}
}

// EntityResponse matches a to-one wrapper (`<Entity>EntityResponse`).
func (p *RelationParser) EntityResponse(typeName string) (string, bool) {
	return match(p.entityResponse, typeName)
}

// EntityResponseCollection matches a top-level collection wrapper
// (`<Entity>EntityResponseCollection`).
func (p *RelationParser) EntityResponseCollection(typeName string) (string, bool) {
	return match(p.entityResponseCollection, typeName)
}

// Collection matches names ending in EntityResponse or
// RelationResponseCollection.
func (p *RelationParser) Collection(typeName string) (string, bool) {
	return match(p.collection, typeName)
}

// Relation reports whether typeName is any kind of relation wrapper and
// returns the entity name.
func (p *RelationParser) Relation(typeName string) (string, bool) {
	if entity, ok := p.EntityResponseCollection(typeName); ok {
		return entity, true
	}
	return p.Collection(typeName)
}

func match(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}
