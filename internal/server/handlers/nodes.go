// Package handlers serves the sourced nodes and files as JSON.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sanixdarker/strapisource/internal/app"
	"github.com/sanixdarker/strapisource/internal/server/middleware"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NodesHandler handles node and file requests.
type NodesHandler struct {
	app *app.App
}

// NewNodesHandler creates a new NodesHandler.
func NewNodesHandler(application *app.App) *NodesHandler {
	return &NodesHandler{app: application}
}

// Health reports whether the node store is reachable.
func (h *NodesHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.app.DB.PingContext(r.Context()); err != nil {
		h.app.Logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Types returns the node count per type.
func (h *NodesHandler) Types(w http.ResponseWriter, r *http.Request) {
	types, err := h.app.Nodes.Types()
	if err != nil {
		h.app.Logger.Error("failed to list types", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

// List returns one page of nodes of a type.
func (h *NodesHandler) List(w http.ResponseWriter, r *http.Request) {
	nodeType := chi.URLParam(r, "type")

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	nodes, total, err := h.app.Nodes.ListByType(nodeType, (page-1)*limit, limit)
	if err != nil {
		h.app.Logger.Error("failed to list nodes", "type", nodeType, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"type":    nodeType,
		"nodes":   nodes,
		"total":   total,
		"page":    page,
		"hasNext": total > page*limit,
	})
}

// Get returns a single node.
func (h *NodesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	node, err := h.app.Nodes.Get(id)
	if err != nil {
		h.app.Logger.Error("failed to get node", "id", id, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if node == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// File serves a downloaded file.
func (h *NodesHandler) File(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f, err := h.app.Files.GetByID(id)
	if err != nil {
		h.app.Logger.Error("failed to get file", "id", id, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if f == nil {
		http.NotFound(w, r)
		return
	}

	if f.MediaType != "" {
		w.Header().Set("Content-Type", f.MediaType)
	}
	w.Header().Set("Content-Disposition", "inline; filename=\""+middleware.SanitizeFilename(filepath.Base(f.Path))+"\"")
	http.ServeFile(w, r, f.Path)
}

// Schema returns the node type definitions as SDL.
func (h *NodesHandler) Schema(w http.ResponseWriter, r *http.Request) {
	sch, err := h.app.Sourcer.Schema(r.Context())
	if err != nil {
		h.app.Logger.Error("failed to load schema", "error", err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}
	sdl, err := h.app.Sourcer.Declarations(sch, h.app.Config.MarkdownFields())
	if err != nil {
		h.app.Logger.Error("failed to build declarations", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/graphql; charset=utf-8")
	w.Write([]byte(sdl))
}

// Refresh re-runs the sync and returns its report.
func (h *NodesHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.app.Sourcer.InvalidateSchema()

	rep, err := h.app.Sync(r.Context())
	if errors.Is(err, app.ErrSyncInProgress) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		h.app.Logger.Error("refresh failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	type collection struct {
		Name      string `json:"name"`
		NodeType  string `json:"nodeType"`
		Fetched   int    `json:"fetched"`
		Created   int    `json:"created"`
		Updated   int    `json:"updated"`
		Unchanged int    `json:"unchanged"`
		Deleted   int64  `json:"deleted"`
		Failed    int    `json:"failed"`
		Error     string `json:"error,omitempty"`
	}
	out := make([]collection, 0, len(rep.Collections))
	for _, c := range rep.Collections {
		item := collection{
			Name:      c.Label,
			NodeType:  c.NodeType,
			Fetched:   c.Fetched,
			Created:   c.Created,
			Updated:   c.Updated,
			Unchanged: c.Unchanged,
			Deleted:   c.Deleted,
			Failed:    c.Failed,
		}
		if c.Err != nil {
			item.Error = c.Err.Error()
		}
		out = append(out, item)
	}

	status := http.StatusOK
	if rep.Failed() {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, map[string]any{
		"collections": out,
		"duration":    rep.Duration.String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
