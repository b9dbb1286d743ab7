package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sanixdarker/strapisource/internal/app"
	"github.com/sanixdarker/strapisource/internal/nodes"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	dir := t.TempDir()

	schemaPath := filepath.Join(dir, "schema.graphql")
	if err := os.WriteFile(schemaPath, []byte("type Query { ping: String }"), 0o644); err != nil {
		t.Fatalf("failed to write schema: %v", err)
	}

	cfg := app.DefaultConfig()
	cfg.APIURL = "http://cms.invalid"
	cfg.SchemaFile = schemaPath
	cfg.DBPath = filepath.Join(dir, "nodes.db")
	cfg.Download.Dir = filepath.Join(dir, "files")

	application, err := app.NewWithLogger(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	t.Cleanup(func() { application.Close() })
	return application
}

func seed(t *testing.T, application *app.App) {
	t.Helper()
	for _, id := range []string{"1", "2", "3"} {
		_, err := application.Nodes.Upsert(&nodes.Node{
			ID:       "article-" + id,
			Type:     "StrapiArticle",
			RemoteID: id,
			Content:  map[string]any{"title": "Article " + id},
			Digest:   "digest-" + id,
		})
		if err != nil {
			t.Fatalf("failed to seed node: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "cover.png")
	if err := os.WriteFile(path, []byte("png-bytes"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	err := application.Files.Put(&nodes.FileNode{
		ID:        "file-1",
		URL:       "http://cms.invalid/uploads/cover.png",
		Path:      path,
		MediaType: "image/png",
		Size:      9,
	})
	if err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_Routes(t *testing.T) {
	application := newTestApp(t)
	seed(t, application)

	s := New(application)
	defer s.stop()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	t.Run("health", func(t *testing.T) {
		resp := get(t, srv, "/healthz")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", resp.StatusCode)
		}
	})

	t.Run("schema", func(t *testing.T) {
		resp := get(t, srv, "/schema")
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "interface Node") {
			t.Errorf("unexpected schema response: %d %q", resp.StatusCode, body)
		}
	})

	t.Run("types", func(t *testing.T) {
		resp := get(t, srv, "/types")
		var types map[string]int
		if err := json.NewDecoder(resp.Body).Decode(&types); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if types["StrapiArticle"] != 3 {
			t.Errorf("expected 3 articles, got %v", types)
		}
	})

	t.Run("list paginates", func(t *testing.T) {
		resp := get(t, srv, "/nodes/StrapiArticle?limit=2&page=2")
		var body struct {
			Nodes   []nodes.Node `json:"nodes"`
			Total   int          `json:"total"`
			HasNext bool         `json:"hasNext"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if body.Total != 3 || len(body.Nodes) != 1 || body.HasNext {
			t.Errorf("unexpected page: %+v", body)
		}
		if len(body.Nodes) == 1 && body.Nodes[0].RemoteID != "3" {
			t.Errorf("expected last article, got %q", body.Nodes[0].RemoteID)
		}
	})

	t.Run("node", func(t *testing.T) {
		resp := get(t, srv, "/node/article-2")
		var n nodes.Node
		if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if n.Content["title"] != "Article 2" {
			t.Errorf("unexpected node: %+v", n)
		}
	})

	t.Run("missing node", func(t *testing.T) {
		if resp := get(t, srv, "/node/nope"); resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", resp.StatusCode)
		}
	})

	t.Run("file", func(t *testing.T) {
		resp := get(t, srv, "/files/file-1")
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK || string(body) != "png-bytes" {
			t.Errorf("unexpected file response: %d %q", resp.StatusCode, body)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("expected image/png, got %q", ct)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if resp := get(t, srv, "/files/nope"); resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", resp.StatusCode)
		}
	})

	t.Run("refresh", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/__refresh", "application/json", nil)
		if err != nil {
			t.Fatalf("POST /__refresh: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", resp.StatusCode)
		}
		var body struct {
			Collections []map[string]any `json:"collections"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if len(body.Collections) != 0 {
			t.Errorf("expected no collections, got %v", body.Collections)
		}
	})
}
