// Package source pages through the configured CMS content types and
// materializes every entity as a node.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sanixdarker/strapisource/internal/gqlclient"
	"github.com/sanixdarker/strapisource/internal/nodes"
	"github.com/sanixdarker/strapisource/internal/query"
	"github.com/sanixdarker/strapisource/internal/report"
	"github.com/sanixdarker/strapisource/internal/storage"
	"github.com/sanixdarker/strapisource/pkg/naming"
	"github.com/sanixdarker/strapisource/pkg/schema"
)

const (
	// DefaultQueryLimit is the page size used when none is configured.
	DefaultQueryLimit = 100

	schemaCacheKey = "schema"
)

// ErrUnknownType is reported for configured types the schema does not expose.
var ErrUnknownType = errors.New("content type not found in schema")

// Client executes GraphQL operations.
type Client interface {
	Do(ctx context.Context, req gqlclient.Request) (map[string]any, error)
}

// NodeStore persists nodes.
type NodeStore interface {
	Upsert(n *nodes.Node) (storage.Change, error)
	DeleteStale(nodeType string, keep []string) (int64, error)
}

// Config selects what is sourced.
type Config struct {
	CollectionTypes []string
	SingleTypes     []string
	QueryLimit      int
	// MarkdownFields lists, per type name, the fields holding markdown.
	MarkdownFields map[string][]string
	// SchemaTTL caches the introspected schema between syncs.
	SchemaTTL time.Duration
}

// Deps are the collaborators of a Sourcer.
type Deps struct {
	Schema    schema.Source
	Client    Client
	Store     NodeStore
	Assigner  *nodes.Assigner
	Processor *nodes.Processor
	Relations *naming.RelationParser
	Reporter  *report.Reporter
	IDGen     nodes.IDGenerator
	Logger    *slog.Logger
}

// CollectionReport summarizes the sync of one content type.
type CollectionReport struct {
	Name      string
	Label     string
	Field     string
	NodeType  string
	Single    bool
	Fetched   int
	Created   int
	Updated   int
	Unchanged int
	Failed    int
	Deleted   int64
	Err       error
}

// SyncReport summarizes a sync.
type SyncReport struct {
	Collections []CollectionReport
	// Declarations are the node type definitions the sync was run against.
	Declarations string
	Duration     time.Duration
}

// Failed reports whether any collection or entity failed.
func (r *SyncReport) Failed() bool {
	for _, c := range r.Collections {
		if c.Err != nil || c.Failed > 0 {
			return true
		}
	}
	return false
}

// Sourcer runs syncs.
type Sourcer struct {
	cfg    Config
	deps   Deps
	schema *Cache[*schema.Schema]
}

// New creates a Sourcer.
func New(cfg Config, deps Deps) *Sourcer {
	if cfg.QueryLimit <= 0 {
		cfg.QueryLimit = DefaultQueryLimit
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Reporter == nil {
		deps.Reporter = report.NewReporter(report.LogSink{Logger: deps.Logger})
	}
	return &Sourcer{
		cfg:    cfg,
		deps:   deps,
		schema: NewCache[*schema.Schema](cfg.SchemaTTL),
	}
}

// Schema returns the introspected schema, cached for SchemaTTL.
func (s *Sourcer) Schema(ctx context.Context) (*schema.Schema, error) {
	if sch, ok := s.schema.Get(schemaCacheKey); ok {
		return sch, nil
	}
	sch, err := s.deps.Schema.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	s.schema.Set(schemaCacheKey, sch)
	return sch, nil
}

// InvalidateSchema forces the next sync to introspect again.
func (s *Sourcer) InvalidateSchema() {
	s.schema.Clear()
}

type target struct {
	name string
	root query.Root
}

// Sync fetches every configured content type and stores its entities.
// A failing content type is reported and skipped; the others continue.
func (s *Sourcer) Sync(ctx context.Context) (*SyncReport, error) {
	start := time.Now()

	sch, err := s.Schema(ctx)
	if err != nil {
		return nil, err
	}
	builder := query.NewBuilder(sch, s.deps.Relations, query.Options{RelationLimit: s.cfg.QueryLimit})

	declarations, err := s.Declarations(sch, s.cfg.MarkdownFields)
	if err != nil {
		return nil, fmt.Errorf("failed to build declarations: %w", err)
	}

	rep := &SyncReport{Declarations: declarations}
	targets, missing := s.targets(builder.Roots())
	for _, m := range missing {
		s.deps.Logger.Warn("skipping unknown content type", "name", m.Name)
		rep.Collections = append(rep.Collections, m)
	}

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := s.syncType(ctx, builder, t)
		s.deps.Logger.Info("synced content type",
			"name", c.Label,
			"fetched", c.Fetched,
			"created", c.Created,
			"updated", c.Updated,
			"deleted", c.Deleted,
			"failed", c.Failed,
		)
		rep.Collections = append(rep.Collections, c)
	}

	rep.Duration = time.Since(start)
	return rep, nil
}

// targets resolves configured names against the query roots. A name matches
// a root by field name, entity name or normalized entity name.
func (s *Sourcer) targets(roots []query.Root) ([]target, []CollectionReport) {
	var found []target
	var missing []CollectionReport

	resolve := func(names []string, single bool) {
		for _, name := range names {
			root, ok := matchRoot(roots, name, single)
			if !ok {
				missing = append(missing, CollectionReport{
					Name:   name,
					Label:  naming.FormatCollectionName(name),
					Single: single,
					Err:    fmt.Errorf("%w: %s", ErrUnknownType, name),
				})
				continue
			}
			found = append(found, target{name: name, root: root})
		}
	}
	resolve(s.cfg.CollectionTypes, false)
	resolve(s.cfg.SingleTypes, true)
	return found, missing
}

func matchRoot(roots []query.Root, name string, single bool) (query.Root, bool) {
	normalized := naming.TypeName(name)
	for _, r := range roots {
		if r.Single != single {
			continue
		}
		if r.Field == name || r.Entity == name || r.Entity == normalized {
			return r, true
		}
	}
	return query.Root{}, false
}

func (s *Sourcer) syncType(ctx context.Context, builder *query.Builder, t target) CollectionReport {
	c := CollectionReport{
		Name:     t.name,
		Label:    naming.FormatCollectionName(t.name),
		Field:    t.root.Field,
		NodeType: nodes.EntityType(t.root.Entity),
		Single:   t.root.Single,
	}

	var op *query.Operation
	var err error
	if t.root.Single {
		op, err = builder.Single(t.root.Field)
	} else {
		op, err = builder.Collection(t.root.Field)
	}
	if err != nil {
		c.Err = err
		s.deps.Reporter.Report(report.Operation{Field: t.root.Field, CollectionType: t.root.Entity}, err)
		return c
	}

	seen := make([]string, 0)
	for offset := 0; ; {
		var vars map[string]any
		if op.Paginated {
			vars = map[string]any{"start": offset, "limit": s.cfg.QueryLimit}
		}

		data, err := s.deps.Client.Do(ctx, gqlclient.Request{
			Query:         op.Text,
			OperationName: op.Name,
			Variables:     vars,
		})
		if err != nil {
			c.Err = err
			s.deps.Reporter.Report(report.Operation{
				OperationName:  op.Name,
				Field:          op.Field,
				CollectionType: t.root.Entity,
				Query:          op.Document,
				Variables:      vars,
			}, err)
			break
		}

		entries, total := pageEntries(data, op.Field)
		for _, entry := range entries {
			c.Fetched++
			id, change, err := s.syncEntity(ctx, t.root.Entity, entry)
			if id != "" {
				seen = append(seen, id)
			}
			if err != nil {
				c.Failed++
				s.deps.Logger.Error("failed to process entity", "type", c.NodeType, "id", entry["id"], "error", err)
				if ctx.Err() != nil {
					c.Err = ctx.Err()
					return c
				}
				continue
			}
			switch change {
			case storage.Created:
				c.Created++
			case storage.Updated:
				c.Updated++
			default:
				c.Unchanged++
			}
		}

		offset += len(entries)
		if !op.Paginated || len(entries) == 0 {
			break
		}
		// The server may cap the page size below QueryLimit, so a short
		// page only ends the collection when no total is reported.
		if total >= 0 {
			if offset >= total {
				break
			}
		} else if len(entries) < s.cfg.QueryLimit {
			break
		}
	}

	if c.Err == nil {
		deleted, err := s.deps.Store.DeleteStale(c.NodeType, seen)
		if err != nil {
			c.Err = err
		}
		c.Deleted = deleted
	}
	return c
}

// pageEntries returns the entities of one page and the collection total, or
// -1 when the response carries no pagination meta.
func pageEntries(data map[string]any, field string) ([]map[string]any, int) {
	wrapper, _ := data[field].(map[string]any)
	total := -1
	if meta, ok := wrapper["meta"].(map[string]any); ok {
		if p, ok := meta["pagination"].(map[string]any); ok {
			total = toInt(p["total"], -1)
		}
	}

	var entries []map[string]any
	switch d := wrapper["data"].(type) {
	case []any:
		for _, item := range d {
			if m, ok := item.(map[string]any); ok {
				entries = append(entries, m)
			}
		}
	case map[string]any:
		if d != nil {
			entries = append(entries, d)
		}
	}
	return entries, total
}

// syncEntity turns one entity into a node. The node id is returned even when
// processing fails so the stored node survives stale deletion.
func (s *Sourcer) syncEntity(ctx context.Context, entity string, entry map[string]any) (string, storage.Change, error) {
	remoteID, ok := nodes.EntityID(entry)
	if !ok {
		return "", storage.Unchanged, fmt.Errorf("entity of %s has no id", entity)
	}
	key := nodes.EntityKey(entity, remoteID)
	id := s.deps.IDGen(key)

	processed, err := s.deps.Processor.Process(ctx, s.deps.Assigner.Assign(entry), id)
	if err != nil {
		return id, storage.Unchanged, fmt.Errorf("failed to process %s: %w", key, err)
	}

	content := make(map[string]any)
	if attrs, ok := processed["attributes"].(map[string]any); ok {
		for k, v := range attrs {
			content[k] = v
		}
	}
	content["id"] = id
	content["nodeId"] = key
	content["strapiId"] = remoteID

	encoded, err := json.Marshal(content)
	if err != nil {
		return id, storage.Unchanged, fmt.Errorf("failed to encode %s: %w", key, err)
	}
	sum := sha256.Sum256(encoded)

	change, err := s.deps.Store.Upsert(&nodes.Node{
		ID:       id,
		Type:     nodes.EntityType(entity),
		RemoteID: remoteID,
		Content:  content,
		Digest:   hex.EncodeToString(sum[:]),
	})
	if err != nil {
		return id, storage.Unchanged, err
	}
	return id, change, nil
}

func toInt(v any, fallback int) int {
	switch n := v.(type) {
	case json.Number:
		if i, err := strconv.Atoi(n.String()); err == nil {
			return i
		}
	case float64:
		return int(n)
	case int:
		return n
	}
	return fallback
}
