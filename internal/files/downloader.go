// Package files downloads the media referenced by sourced content.
package files

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/sanixdarker/strapisource/internal/nodes"
)

const defaultTimeout = 60 * time.Second

// Store records downloaded files between builds.
type Store interface {
	GetByURL(url string) (*nodes.FileNode, error)
	Put(f *nodes.FileNode) error
}

// Config holds downloader settings.
type Config struct {
	Dir string
	// MaxParallel bounds concurrent downloads. Zero means unbounded.
	MaxParallel int
	// RequestsPerSecond paces downloads. Zero disables pacing.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Downloader implements nodes.Acquirer on top of HTTP and the local disk.
type Downloader struct {
	dir     string
	client  *http.Client
	store   Store
	idGen   nodes.IDGenerator
	logger  *slog.Logger
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	group   singleflight.Group
}

// New creates a Downloader. store may be nil, in which case every request
// downloads again.
func New(cfg Config, store Store, idGen nodes.IDGenerator, logger *slog.Logger) *Downloader {
	d := &Downloader{
		dir:    cfg.Dir,
		client: cfg.HTTPClient,
		store:  store,
		idGen:  idGen,
		logger: logger,
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.MaxParallel > 0 {
		d.sem = semaphore.NewWeighted(int64(cfg.MaxParallel))
	}
	if cfg.RequestsPerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return d
}

// FileID is the node id of the file downloaded from rawURL.
func (d *Downloader) FileID(rawURL string) string {
	return d.idGen(nodes.FileNodeType + "-" + rawURL)
}

// Acquire downloads req.URL unless a previous build already did. Requests
// for the same URL that overlap share one download. HTTP failures are
// logged and reported as (nil, nil); disk and context errors are returned.
func (d *Downloader) Acquire(ctx context.Context, req nodes.FileRequest) (*nodes.FileNode, error) {
	v, err, _ := d.group.Do(req.URL, func() (any, error) {
		return d.acquire(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	f, _ := v.(*nodes.FileNode)
	return f, nil
}

func (d *Downloader) acquire(ctx context.Context, req nodes.FileRequest) (*nodes.FileNode, error) {
	if d.store != nil {
		cached, err := d.store.GetByURL(req.URL)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			if _, err := os.Stat(cached.Path); err == nil {
				d.logger.Debug("reusing cached file", "url", req.URL, "path", cached.Path)
				return cached, nil
			}
		}
	}

	if d.sem != nil {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer d.sem.Release(1)
	}
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	f, err := d.download(ctx, req)
	if err != nil || f == nil {
		return nil, err
	}

	if d.store != nil {
		if err := d.store.Put(f); err != nil {
			return nil, err
		}
	}
	d.logger.Debug("downloaded file", "url", req.URL, "path", f.Path, "size", f.Size)
	return f, nil
}

func (d *Downloader) download(ctx context.Context, req nodes.FileRequest) (*nodes.FileNode, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		d.logger.Warn("skipping file with invalid url", "url", req.URL, "error", err)
		return nil, nil
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d.logger.Warn("failed to download file", "url", req.URL, "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.logger.Warn("failed to download file", "url", req.URL, "status", resp.StatusCode)
		return nil, nil
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory %q: %w", d.dir, err)
	}

	tmp, err := os.CreateTemp(d.dir, ".download-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), resp.Body)
	closeErr := tmp.Close()
	if err != nil {
		var pathErr *fs.PathError
		switch {
		case errors.As(err, &pathErr):
			return nil, fmt.Errorf("failed to write file for %s: %w", req.URL, err)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		}
		d.logger.Warn("failed to read file body", "url", req.URL, "error", err)
		return nil, nil
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to write file for %s: %w", req.URL, closeErr)
	}

	dest := filepath.Join(d.dir, fileName(req.URL, mediaType))
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	return &nodes.FileNode{
		ID:           d.FileID(req.URL),
		URL:          req.URL,
		Path:         dest,
		MediaType:    mediaType,
		Size:         size,
		Digest:       hex.EncodeToString(hash.Sum(nil)),
		ParentNodeID: req.ParentNodeID,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// fileName derives a stable on-disk name from the url, keeping its extension
// or guessing one from the media type.
func fileName(rawURL, mediaType string) string {
	sum := sha256.Sum256([]byte(rawURL))
	name := hex.EncodeToString(sum[:])

	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = path.Ext(u.Path)
	}
	if ext == "" && mediaType != "" {
		if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return name + ext
}
