package schema

import (
	"errors"
	"testing"
)

func TestTypeName_UnwrapsWrappers(t *testing.T) {
	tests := []struct {
		name string
		ref  *TypeRef
	}{
		{"bare scalar", Named(KindScalar, "Foo")},
		{"non null", NonNullOf(Named(KindScalar, "Foo"))},
		{"list", ListOf(Named(KindScalar, "Foo"))},
		{"list of non null", ListOf(NonNullOf(Named(KindScalar, "Foo")))},
		{"non null list of non null", NonNullOf(ListOf(NonNullOf(Named(KindScalar, "Foo"))))},
		{"nested lists", ListOf(ListOf(ListOf(Named(KindScalar, "Foo"))))},
		{"deep mix", NonNullOf(ListOf(NonNullOf(ListOf(NonNullOf(Named(KindScalar, "Foo"))))))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeName(tt.ref); got != "Foo" {
				t.Errorf("expected Foo, got %q", got)
			}
		})
	}
}

func TestTypeName_SpecialCases(t *testing.T) {
	tests := []struct {
		name string
		ref  *TypeRef
		want string
	}{
		{"enum", Named(KindEnum, "ENUM_ARTICLE_STATUS"), "String"},
		{"date time scalar", Named(KindScalar, "DateTime"), "String"},
		{"date time wrapped", NonNullOf(Named(KindScalar, "DateTime")), "String"},
		{"object keeps bare name", Named(KindObject, "Article"), "Article"},
		{"union keeps bare name", ListOf(Named(KindUnion, "ArticleBlocksDynamicZone")), "ArticleBlocksDynamicZone"},
		{"nil", nil, ""},
		{"list without inner", &TypeRef{Kind: KindList}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeName(tt.ref); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFieldType(t *testing.T) {
	tests := []struct {
		name string
		ref  *TypeRef
		want string
	}{
		{"non null list of non null object", NonNullOf(ListOf(NonNullOf(Named(KindObject, "Article")))), "[StrapiArticle!]!"},
		{"scalar", Named(KindScalar, "Int"), "Int"},
		{"non null scalar", NonNullOf(Named(KindScalar, "ID")), "ID!"},
		{"enum in list", ListOf(Named(KindEnum, "ENUM_X")), "[String]"},
		{"date time", NonNullOf(Named(KindScalar, "DateTime")), "String!"},
		{"union", Named(KindUnion, "ArticleBlocksDynamicZone"), "StrapiArticleBlocksDynamicZone"},
		{"custom scalar", Named(KindScalar, "JSON"), "JSON"},
		{"object without name", &TypeRef{Kind: KindObject}, ""},
		{"non null without inner", &TypeRef{Kind: KindNonNull}, ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FieldType(tt.ref); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(NonNullOf(ListOf(Named(KindScalar, "String")))); err != nil {
		t.Errorf("expected valid descriptor, got %v", err)
	}

	malformed := []*TypeRef{
		nil,
		{Kind: KindList},
		NonNullOf(&TypeRef{Kind: KindObject}),
	}
	for _, ref := range malformed {
		err := Validate(ref)
		if !errors.Is(err, ErrMalformedType) {
			t.Errorf("expected ErrMalformedType, got %v", err)
		}
	}
}

func TestTypeRef_NamedType(t *testing.T) {
	ref := NonNullOf(ListOf(Named(KindObject, "Tag")))
	if got := ref.NamedType(); got != "Tag" {
		t.Errorf("expected Tag, got %q", got)
	}
	if !ref.IsList() {
		t.Error("expected list")
	}
	if Named(KindScalar, "Int").IsList() {
		t.Error("expected scalar not to be a list")
	}
}
