package schema

import (
	"errors"
	"fmt"
)

const (
	// TypePrefix namespaces every object and union type emitted for the site.
	TypePrefix = "Strapi"
	// TextType is the scalar used for enums and date-times.
	TextType = "String"
	// FileTypename is the typename of media library uploads.
	FileTypename = "UploadFile"

	dateTimeName = "DateTime"
)

// ErrMalformedType is returned by Validate for descriptors missing a name or
// an inner type.
var ErrMalformedType = errors.New("malformed type descriptor")

// TypeName resolves t to its canonical scalar or collection type name,
// discarding LIST and NON_NULL wrappers. Malformed descriptors resolve to "".
func TypeName(t *TypeRef) string {
	if t == nil {
		return ""
	}
	if t.name() == dateTimeName {
		return TextType
	}
	switch t.Kind {
	case KindEnum:
		return TextType
	case KindList, KindNonNull:
		return TypeName(t.OfType)
	}
	return t.name()
}

// FieldType renders t as a field type declaration, keeping list and non-null
// markers and prefixing object and union names with TypePrefix. Malformed
// descriptors render as "".
func FieldType(t *TypeRef) string {
	if t == nil {
		return ""
	}
	if t.name() == dateTimeName {
		return TextType
	}
	switch t.Kind {
	case KindEnum:
		return TextType
	case KindList:
		inner := FieldType(t.OfType)
		if inner == "" {
			return ""
		}
		return "[" + inner + "]"
	case KindNonNull:
		inner := FieldType(t.OfType)
		if inner == "" {
			return ""
		}
		return inner + "!"
	case KindObject, KindUnion:
		if t.name() == "" {
			return ""
		}
		return TypePrefix + t.name()
	}
	return t.name()
}

// Validate checks that every wrapper carries an inner type and the terminal
// carries a name.
func Validate(t *TypeRef) error {
	path := ""
	for depth := 0; ; depth++ {
		if t == nil {
			return fmt.Errorf("%w: missing type at %q", ErrMalformedType, path)
		}
		path += string(t.Kind) + "/"
		switch t.Kind {
		case KindList, KindNonNull:
			t = t.OfType
			continue
		}
		if t.name() == "" {
			return fmt.Errorf("%w: %s without name at depth %d", ErrMalformedType, t.Kind, depth)
		}
		return nil
	}
}
