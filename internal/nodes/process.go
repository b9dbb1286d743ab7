package nodes

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mohae/deepcopy"
	"golang.org/x/sync/errgroup"

	"github.com/sanixdarker/strapisource/pkg/markdown"
	"github.com/sanixdarker/strapisource/pkg/schema"
)

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	// APIURL prefixes relative file URLs.
	APIURL string
	// MarkdownFields lists, per typename, the fields holding markdown.
	MarkdownFields map[string][]string
	Acquirer       Acquirer
	IDGen          IDGenerator
	Classifier     *Classifier
	Images         *markdown.ImageExtractor
	// HTML is optional. When set, every markdown field also gets a
	// sanitized `<field>_html` sibling.
	HTML *markdown.HTMLRenderer
}

// Processor downloads the files referenced by an entity payload and
// resolves relation ids.
type Processor struct {
	cfg ProcessorConfig
}

// NewProcessor creates a Processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Images == nil {
		cfg.Images = markdown.NewImageExtractor()
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Processor{cfg: cfg}
}

// Process returns a processed deep copy of data. Upload entities get a
// `file` field with the downloaded file id, configured markdown fields get a
// `<field>_images` list and relation ids are replaced with node ids.
// Sub-objects are processed concurrently; the first acquisition error cancels
// the remaining work and is returned.
func (p *Processor) Process(ctx context.Context, data map[string]any, parentNodeID string) (map[string]any, error) {
	if data == nil {
		return nil, nil
	}
	out, ok := deepcopy.Copy(data).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("failed to copy payload of type %T", data)
	}
	if err := p.processObject(ctx, out, parentNodeID); err != nil {
		return nil, err
	}
	return out, nil
}

// processObject works in place on a map owned by the current call.
func (p *Processor) processObject(ctx context.Context, obj map[string]any, parent string) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}

	typename, _ := obj[TypenameKey].(string)

	if typename == schema.FileTypename {
		if raw, ok := obj["url"].(string); ok && raw != "" {
			file, err := p.acquire(ctx, raw, parent)
			if err != nil {
				return err
			}
			if file != nil {
				obj["file"] = file.ID
			}
		}
	}

	skip := make(map[string]bool)
	for _, field := range p.cfg.MarkdownFields[typename] {
		text, ok := obj[field].(string)
		if !ok {
			continue
		}
		skip[field] = true
		ids, err := p.markdownImages(ctx, text, parent)
		if err != nil {
			return err
		}
		obj[field+"_images"] = ids
		if p.cfg.HTML != nil {
			rendered, err := p.cfg.HTML.Render(text)
			if err != nil {
				return fmt.Errorf("failed to render field %s: %w", field, err)
			}
			obj[field+"_html"] = rendered
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		if skip[key] {
			continue
		}
		p.processValue(gctx, g, obj[key], parent)
	}
	return g.Wait()
}

// processValue schedules the work for one value on g. Each scheduled
// goroutine only touches the sub-tree it was given.
func (p *Processor) processValue(ctx context.Context, g *errgroup.Group, v any, parent string) {
	shape, entity := p.cfg.Classifier.Classify(v)
	switch shape {
	case ShapeEntityResponse:
		wrapper := v.(map[string]any)
		remoteID, ok := RemoteID(wrapper)
		if !ok {
			g.Go(func() error { return p.processObject(ctx, wrapper, parent) })
			return
		}
		wrapper["id"] = p.cfg.IDGen(EntityKey(entity, remoteID))
		if entity == schema.FileTypename {
			// Upload relations still need their file downloaded.
			g.Go(func() error { return p.processObject(ctx, wrapper, parent) })
		}

	case ShapeCollectionResponse:
		wrapper := v.(map[string]any)
		if entries, ok := wrapper["data"].([]any); ok {
			ids := make([]any, 0, len(entries))
			for _, entry := range entries {
				if m, ok := entry.(map[string]any); ok {
					if remoteID, ok := idString(m["id"]); ok {
						ids = append(ids, p.cfg.IDGen(EntityKey(entity, remoteID)))
					}
				}
			}
			wrapper["nodeIds"] = ids
		}
		g.Go(func() error { return p.processObject(ctx, wrapper, parent) })

	case ShapeObject, ShapeFile:
		obj := v.(map[string]any)
		g.Go(func() error { return p.processObject(ctx, obj, parent) })

	case ShapeArray:
		for _, item := range v.([]any) {
			p.processValue(ctx, g, item, parent)
		}
	}
}

// markdownImages acquires every image referenced by text. The result keeps
// source order; images that could not be acquired leave a nil hole.
func (p *Processor) markdownImages(ctx context.Context, text, parent string) ([]any, error) {
	refs := p.cfg.Images.Extract(text)
	ids := make([]any, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			file, err := p.acquire(gctx, ref, parent)
			if err != nil {
				return err
			}
			if file != nil {
				ids[i] = file.ID
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (p *Processor) acquire(ctx context.Context, raw, parent string) (*FileNode, error) {
	if p.cfg.Acquirer == nil {
		return nil, nil
	}
	return p.cfg.Acquirer.Acquire(ctx, FileRequest{
		URL:          ResolveURL(p.cfg.APIURL, raw),
		ParentNodeID: parent,
	})
}

// ResolveURL prefixes relative references with base. Absolute URLs are
// returned unchanged.
func ResolveURL(base, ref string) string {
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return base + ref
}
