package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/sanixdarker/strapisource/internal/gqlclient"
	"github.com/sanixdarker/strapisource/internal/nodes"
	"github.com/sanixdarker/strapisource/internal/report"
	"github.com/sanixdarker/strapisource/internal/storage"
	"github.com/sanixdarker/strapisource/pkg/naming"
	"github.com/sanixdarker/strapisource/pkg/schema"
)

const testSDL = `
scalar DateTime
scalar JSON

input PaginationArg { start: Int limit: Int }

type Pagination { total: Int! }
type ResponseCollectionMeta { pagination: Pagination! }

type UploadFile { url: String! formats: JSON }
type UploadFileEntity { id: ID attributes: UploadFile }
type UploadFileEntityResponse { data: UploadFileEntity }

type Author { name: String }
type AuthorEntity { id: ID attributes: Author }
type AuthorEntityResponse { data: AuthorEntity }

type Tag { label: String }
type TagEntity { id: ID attributes: Tag }
type TagRelationResponseCollection { data: [TagEntity!]! }

type ComponentSharedQuote { id: ID! body: String }
union ArticleBlocksDynamicZone = ComponentSharedQuote

type Article {
  title: String!
  body: String
  publishedAt: DateTime
  author: AuthorEntityResponse
  tags(pagination: PaginationArg): TagRelationResponseCollection
  cover: UploadFileEntityResponse
  blocks: [ArticleBlocksDynamicZone]
}
type ArticleEntity { id: ID attributes: Article }
type ArticleEntityResponseCollection { data: [ArticleEntity!]! meta: ResponseCollectionMeta! }

type Homepage { headline: String }
type HomepageEntity { id: ID attributes: Homepage }
type HomepageEntityResponse { data: HomepageEntity }

type Query {
  articles(pagination: PaginationArg): ArticleEntityResponseCollection
  homepage: HomepageEntityResponse
}
`

type staticSchema struct {
	loads int
}

func (s *staticSchema) Load(ctx context.Context) (*schema.Schema, error) {
	s.loads++
	return schema.LoadSDL("test.graphql", testSDL)
}

// fakeClient serves articles from a slice and records requests.
type fakeClient struct {
	mu       sync.Mutex
	articles []map[string]any
	homepage map[string]any
	fail     map[string]error
	requests []gqlclient.Request
	// maxLimit caps the page size like the server's maxLimit setting.
	maxLimit int
}

func (c *fakeClient) Do(ctx context.Context, req gqlclient.Request) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)

	if err, ok := c.fail[req.OperationName]; ok {
		return nil, err
	}

	switch req.OperationName {
	case "StrapiArticles":
		start := req.Variables["start"].(int)
		limit := req.Variables["limit"].(int)
		if c.maxLimit > 0 {
			limit = min(limit, c.maxLimit)
		}
		end := min(start+limit, len(c.articles))
		page := make([]any, 0)
		if start < len(c.articles) {
			for _, a := range c.articles[start:end] {
				page = append(page, a)
			}
		}
		return map[string]any{"articles": map[string]any{
			"data": page,
			"meta": map[string]any{"pagination": map[string]any{"total": float64(len(c.articles))}},
		}}, nil
	case "StrapiHomepage":
		return map[string]any{"homepage": map[string]any{"data": c.homepage}}, nil
	}
	return nil, errors.New("unexpected operation " + req.OperationName)
}

func article(id, title string) map[string]any {
	return map[string]any{
		"__typename": "ArticleEntity",
		"id":         id,
		"attributes": map[string]any{
			"__typename": "Article",
			"title":      title,
			"body":       "![img](/uploads/" + id + ".png)",
			"author": map[string]any{
				"__typename": "AuthorEntityResponse",
				"data":       map[string]any{"__typename": "AuthorEntity", "id": "7"},
			},
		},
	}
}

type stubAcquirer struct{}

func (stubAcquirer) Acquire(_ context.Context, req nodes.FileRequest) (*nodes.FileNode, error) {
	return &nodes.FileNode{ID: "file:" + req.URL}, nil
}

type recordingSink struct {
	messages []string
}

func (s *recordingSink) Error(message string, cause error) {
	s.messages = append(s.messages, message)
}

type fixture struct {
	sourcer *Sourcer
	client  *fakeClient
	schema  *staticSchema
	repo    *storage.NodeRepository
	sink    *recordingSink
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	db, err := storage.NewDB(filepath.Join(t.TempDir(), "nodes.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	idGen := func(key string) string { return "id:" + key }
	relations := naming.NewRelationParser()
	classifier := nodes.NewClassifier(relations)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		client: &fakeClient{},
		schema: &staticSchema{},
		repo:   storage.NewNodeRepository(db),
		sink:   &recordingSink{},
	}
	f.sourcer = New(cfg, Deps{
		Schema:   f.schema,
		Client:   f.client,
		Store:    f.repo,
		Assigner: nodes.NewAssigner(classifier, idGen),
		Processor: nodes.NewProcessor(nodes.ProcessorConfig{
			APIURL:         "http://cms.local",
			MarkdownFields: map[string][]string{"Article": {"body"}},
			Acquirer:       stubAcquirer{},
			IDGen:          idGen,
			Classifier:     classifier,
		}),
		Relations: relations,
		Reporter:  report.NewReporter(f.sink),
		IDGen:     idGen,
		Logger:    logger,
	})
	return f
}

func TestSourcer_Sync(t *testing.T) {
	f := newFixture(t, Config{
		CollectionTypes: []string{"article"},
		SingleTypes:     []string{"homepage"},
		QueryLimit:      2,
	})
	f.client.articles = []map[string]any{article("1", "One"), article("2", "Two"), article("3", "Three")}
	f.client.homepage = map[string]any{
		"__typename": "HomepageEntity",
		"id":         "1",
		"attributes": map[string]any{"__typename": "Homepage", "headline": "Hi"},
	}

	rep, err := f.sourcer.Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Failed() {
		t.Fatalf("unexpected failures: %+v", rep.Collections)
	}
	if len(rep.Collections) != 2 {
		t.Fatalf("expected 2 collections, got %d", len(rep.Collections))
	}
	if !strings.Contains(rep.Declarations, "type StrapiArticle implements Node") {
		t.Errorf("expected declarations in report:\n%s", rep.Declarations)
	}

	articles := rep.Collections[0]
	if articles.Fetched != 3 || articles.Created != 3 || articles.NodeType != "StrapiArticle" {
		t.Errorf("unexpected article report: %+v", articles)
	}

	pages := 0
	for _, req := range f.client.requests {
		if req.OperationName == "StrapiArticles" {
			pages++
		}
	}
	if pages != 2 {
		t.Errorf("expected 2 pages, got %d", pages)
	}

	n, err := f.repo.Get("id:StrapiArticle-2")
	if err != nil || n == nil {
		t.Fatalf("expected stored article, got %v, %v", n, err)
	}
	if n.Content["title"] != "Two" || n.Content["strapiId"] != "2" || n.RemoteID != "2" {
		t.Errorf("unexpected content: %v", n.Content)
	}
	author := n.Content["author"].(map[string]any)
	if author["id"] != "id:StrapiAuthor-7" || author["nodeId"] != "StrapiAuthor-7" {
		t.Errorf("expected resolved author relation, got %v", author)
	}
	images := n.Content["body_images"].([]any)
	if len(images) != 1 || images[0] != "file:http://cms.local/uploads/2.png" {
		t.Errorf("unexpected body images: %v", images)
	}

	home, _ := f.repo.Get("id:StrapiHomepage-1")
	if home == nil || home.Content["headline"] != "Hi" {
		t.Errorf("expected stored homepage, got %+v", home)
	}
}

func TestSourcer_SyncIsIncremental(t *testing.T) {
	f := newFixture(t, Config{CollectionTypes: []string{"articles"}, SchemaTTL: time.Minute})
	f.client.articles = []map[string]any{article("1", "One"), article("2", "Two")}

	if _, err := f.sourcer.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.client.articles = []map[string]any{article("1", "One"), article("3", "Three")}
	rep, err := f.sourcer.Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := rep.Collections[0]
	if c.Unchanged != 1 || c.Created != 1 || c.Deleted != 1 {
		t.Errorf("unexpected report: %+v", c)
	}
	if n, _ := f.repo.Get("id:StrapiArticle-2"); n != nil {
		t.Error("expected removed article to be deleted")
	}
	if f.schema.loads != 1 {
		t.Errorf("expected schema to be cached, loaded %d times", f.schema.loads)
	}

	f.sourcer.InvalidateSchema()
	if _, err := f.sourcer.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.schema.loads != 2 {
		t.Errorf("expected schema reload after invalidation, loaded %d times", f.schema.loads)
	}
}

func TestSourcer_ServerCappedPageSize(t *testing.T) {
	f := newFixture(t, Config{CollectionTypes: []string{"article"}, QueryLimit: 200})
	f.client.articles = []map[string]any{
		article("1", "One"), article("2", "Two"), article("3", "Three"),
		article("4", "Four"), article("5", "Five"),
	}
	if _, err := f.sourcer.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.client.maxLimit = 2
	f.client.requests = nil
	rep, err := f.sourcer.Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := rep.Collections[0]
	if c.Fetched != 5 || c.Unchanged != 5 || c.Deleted != 0 {
		t.Errorf("unexpected report: %+v", c)
	}
	if len(f.client.requests) != 3 {
		t.Errorf("expected 3 page requests, got %d", len(f.client.requests))
	}
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		if n, _ := f.repo.Get("id:StrapiArticle-" + id); n == nil {
			t.Errorf("expected article %s to be kept", id)
		}
	}
}

func TestSourcer_FailuresAreReported(t *testing.T) {
	f := newFixture(t, Config{
		CollectionTypes: []string{"article", "missing"},
		SingleTypes:     []string{"homepage"},
	})
	f.client.articles = []map[string]any{article("1", "One")}
	if _, err := f.sourcer.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.client.fail = map[string]error{
		"StrapiArticles": &gqlclient.NetworkError{StatusCode: 500, Err: errors.New("boom")},
	}
	rep, err := f.sourcer.Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rep.Failed() {
		t.Error("expected report to be marked failed")
	}

	var missing, articles *CollectionReport
	for i := range rep.Collections {
		switch rep.Collections[i].Name {
		case "missing":
			missing = &rep.Collections[i]
		case "article":
			articles = &rep.Collections[i]
		}
	}
	if missing == nil || !errors.Is(missing.Err, ErrUnknownType) {
		t.Errorf("expected unknown type report, got %+v", missing)
	}
	if articles == nil || articles.Err == nil {
		t.Fatalf("expected article failure, got %+v", articles)
	}

	if len(f.sink.messages) != 1 || !strings.Contains(f.sink.messages[0], "StrapiArticles failed") {
		t.Errorf("expected one reported failure, got %v", f.sink.messages)
	}
	if n, _ := f.repo.Get("id:StrapiArticle-1"); n == nil {
		t.Error("expected nodes of a failed collection to be kept")
	}
}

func TestSourcer_Declarations(t *testing.T) {
	f := newFixture(t, Config{CollectionTypes: []string{"article"}, SingleTypes: []string{"homepage"}})

	sch, err := f.sourcer.Schema(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sdl, err := f.sourcer.Declarations(sch, map[string][]string{"Article": {"body"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	withQuery := sdl + "\ntype Query { node(id: ID!): Node }\n"
	if _, err := gqlparser.LoadSchema(&ast.Source{Name: "declarations.graphql", Input: withQuery}); err != nil {
		t.Fatalf("declarations do not form a valid schema: %v\n%s", err, sdl)
	}

	for _, want := range []string{
		"type StrapiArticle implements Node",
		"type StrapiHomepage implements Node",
		"author: StrapiAuthorEntityResponse",
		"type StrapiAuthorEntityResponse",
		"nodeId: String",
		"nodeIds: [ID]",
		"file: ID",
		"body_images: [ID]",
		"publishedAt: String",
		"scalar JSON",
		"StrapiComponentSharedQuote",
	} {
		if !strings.Contains(sdl, want) {
			t.Errorf("expected declarations to contain %q:\n%s", want, sdl)
		}
	}
	if strings.Contains(sdl, "scalar DateTime") {
		t.Errorf("expected DateTime to be declared as String:\n%s", sdl)
	}
}

func TestCache(t *testing.T) {
	c := NewCache[string](time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("expected cached value, got %q, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("expected value to expire")
	}

	c.Set("b", "2")
	c.Delete("b")
	if _, ok := c.Get("b"); ok {
		t.Error("expected value to be deleted")
	}

	disabled := NewCache[string](0)
	disabled.Set("a", "1")
	if _, ok := disabled.Get("a"); ok {
		t.Error("expected zero ttl to disable caching")
	}
}
