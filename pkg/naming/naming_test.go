package naming

import "testing"

func TestFormatCollectionName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"helloWorld", "Hello World"},
		{"FAQ_page", "FAQPage"},
		{"article", "Article"},
		{"blog post", "Blog Post"},
		{"blog-post", "BlogPost"},
		// only the first boundary is split
		{"myBlogPost", "My BlogPost"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := FormatCollectionName(tt.in); got != tt.want {
				t.Errorf("FormatCollectionName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTypeName(t *testing.T) {
	tests := map[string]string{
		"blogPost":  "BlogPost",
		"blog-post": "BlogPost",
		"Article":   "Article",
		"faq_page":  "FaqPage",
	}
	for in, want := range tests {
		if got := TypeName(in); got != want {
			t.Errorf("TypeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRelationParser(t *testing.T) {
	p := NewRelationParser()

	t.Run("singular entity response", func(t *testing.T) {
		entity, ok := p.EntityResponse("ArticleEntityResponse")
		if !ok || entity != "Article" {
			t.Errorf("expected Article, got %q (ok=%v)", entity, ok)
		}
		if _, ok := p.EntityResponse("ArticleEntityResponseCollection"); ok {
			t.Error("collection should not match singular pattern")
		}
	})

	t.Run("entity response collection", func(t *testing.T) {
		entity, ok := p.EntityResponseCollection("ArticleEntityResponseCollection")
		if !ok || entity != "Article" {
			t.Errorf("expected Article, got %q (ok=%v)", entity, ok)
		}
	})

	t.Run("generic collection", func(t *testing.T) {
		entity, ok := p.Collection("TagRelationResponseCollection")
		if !ok || entity != "Tag" {
			t.Errorf("expected Tag, got %q (ok=%v)", entity, ok)
		}
		entity, ok = p.Collection("AuthorEntityResponse")
		if !ok || entity != "Author" {
			t.Errorf("expected Author, got %q (ok=%v)", entity, ok)
		}
	})

	t.Run("relation", func(t *testing.T) {
		for in, want := range map[string]string{
			"ArticleEntityResponseCollection": "Article",
			"TagRelationResponseCollection":   "Tag",
			"AuthorEntityResponse":            "Author",
		} {
			if got, ok := p.Relation(in); !ok || got != want {
				t.Errorf("Relation(%q) = %q, %v", in, got, ok)
			}
		}
	})

	t.Run("no match", func(t *testing.T) {
		for _, name := range []string{"Article", "ComponentSharedSeo", "EntityResponse", "", "ArticleEntity"} {
			if _, ok := p.EntityResponse(name); ok {
				t.Errorf("EntityResponse(%q) matched", name)
			}
			if _, ok := p.EntityResponseCollection(name); ok {
				t.Errorf("EntityResponseCollection(%q) matched", name)
			}
			if _, ok := p.Collection(name); ok {
				t.Errorf("Collection(%q) matched", name)
			}
		}
	})
}
