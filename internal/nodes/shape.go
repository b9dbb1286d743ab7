package nodes

import (
	"encoding/json"
	"strconv"

	"github.com/sanixdarker/strapisource/pkg/naming"
	"github.com/sanixdarker/strapisource/pkg/schema"
)

// Shape is the kind of a value found in a response payload.
type Shape int

const (
	// ShapePlain is any non-container value.
	ShapePlain Shape = iota
	// ShapeObject is a mapping that is not a relation wrapper.
	ShapeObject
	// ShapeArray is an ordered sequence.
	ShapeArray
	// ShapeEntityResponse is a to-one relation wrapper.
	ShapeEntityResponse
	// ShapeCollectionResponse is a to-many relation wrapper.
	ShapeCollectionResponse
	// ShapeFile is an upload entity.
	ShapeFile
)

func (s Shape) String() string {
	switch s {
	case ShapeObject:
		return "object"
	case ShapeArray:
		return "array"
	case ShapeEntityResponse:
		return "entity-response"
	case ShapeCollectionResponse:
		return "collection-response"
	case ShapeFile:
		return "file"
	}
	return "plain"
}

// Classifier discriminates payload values by their __typename.
type Classifier struct {
	relations *naming.RelationParser
}

// NewClassifier creates a classifier backed by p.
func NewClassifier(p *naming.RelationParser) *Classifier {
	return &Classifier{relations: p}
}

// Classify returns the shape of v and, for relation wrappers, the entity
// name recovered from the typename.
func (c *Classifier) Classify(v any) (Shape, string) {
	switch value := v.(type) {
	case []any:
		return ShapeArray, ""
	case map[string]any:
		typename, _ := value[TypenameKey].(string)
		if typename == "" {
			return ShapeObject, ""
		}
		if typename == schema.FileTypename {
			return ShapeFile, ""
		}
		if entity, ok := c.relations.EntityResponse(typename); ok {
			return ShapeEntityResponse, entity
		}
		if entity, ok := c.relations.Relation(typename); ok {
			return ShapeCollectionResponse, entity
		}
		return ShapeObject, ""
	}
	return ShapePlain, ""
}

// RemoteID returns the id of the entity wrapped by a to-one relation
// (`data.id`).
func RemoteID(wrapper map[string]any) (string, bool) {
	data, ok := wrapper["data"].(map[string]any)
	if !ok {
		return "", false
	}
	return idString(data["id"])
}

// EntityID returns the id of an entity object (`{id, attributes}`).
func EntityID(entity map[string]any) (string, bool) {
	return idString(entity["id"])
}

// idString formats the id forms produced by JSON decoding.
func idString(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case json.Number:
		return id.String(), id != ""
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	}
	return "", false
}
