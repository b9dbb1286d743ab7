// Package app provides the application container and dependency injection.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/sanixdarker/strapisource/internal/files"
	"github.com/sanixdarker/strapisource/internal/gqlclient"
	"github.com/sanixdarker/strapisource/internal/nodes"
	"github.com/sanixdarker/strapisource/internal/report"
	"github.com/sanixdarker/strapisource/internal/source"
	"github.com/sanixdarker/strapisource/internal/storage"
	"github.com/sanixdarker/strapisource/pkg/markdown"
	"github.com/sanixdarker/strapisource/pkg/naming"
	"github.com/sanixdarker/strapisource/pkg/schema"
)

// ErrSyncInProgress is returned by Sync while another sync is running.
var ErrSyncInProgress = errors.New("sync already in progress")

// App is the main application container.
type App struct {
	Config     *Config
	DB         *sql.DB
	Logger     *slog.Logger
	Nodes      *storage.NodeRepository
	Files      *storage.FileRepository
	Client     *gqlclient.Client
	Downloader *files.Downloader
	Sourcer    *source.Sourcer

	syncMu sync.Mutex
}

// New creates a new application instance.
func New(cfg *Config) (*App, error) {
	logger := NewLogger(os.Stderr, cfg.LogFormat, cfg.Debug)
	return NewWithLogger(cfg, logger)
}

// NewWithLogger creates an application instance logging to logger.
func NewWithLogger(cfg *Config, logger *slog.Logger) (*App, error) {
	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := storage.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	nodeRepo := storage.NewNodeRepository(db)
	fileRepo := storage.NewFileRepository(db)

	client := gqlclient.New(cfg.APIURL, gqlclient.Options{
		Token:             cfg.AccessToken,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})

	var schemaSource schema.Source = client
	if cfg.SchemaFile != "" {
		schemaSource = schema.FileSource{Path: cfg.SchemaFile}
	}

	idGen := nodes.NewIDGenerator(cfg.Namespace)
	relations := naming.NewRelationParser()
	classifier := nodes.NewClassifier(relations)

	downloader := files.New(files.Config{
		Dir:               cfg.Download.Dir,
		MaxParallel:       cfg.Download.MaxParallel,
		RequestsPerSecond: cfg.Download.RequestsPerSecond,
	}, fileRepo, idGen, logger)

	var imageOpts []markdown.Option
	if cfg.MarkdownImages.IncludeHTML {
		imageOpts = append(imageOpts, markdown.WithHTMLImages())
	}
	var renderer *markdown.HTMLRenderer
	if cfg.MarkdownImages.RenderHTML {
		renderer = markdown.NewHTMLRenderer()
	}

	processor := nodes.NewProcessor(nodes.ProcessorConfig{
		APIURL:         cfg.APIURL,
		MarkdownFields: cfg.MarkdownFields(),
		Acquirer:       downloader,
		IDGen:          idGen,
		Classifier:     classifier,
		Images:         markdown.NewImageExtractor(imageOpts...),
		HTML:           renderer,
	})

	sourcer := source.New(source.Config{
		CollectionTypes: cfg.CollectionTypes,
		SingleTypes:     cfg.SingleTypes,
		QueryLimit:      cfg.QueryLimit,
		MarkdownFields:  cfg.MarkdownFields(),
		SchemaTTL:       cfg.SchemaTTL,
	}, source.Deps{
		Schema:    schemaSource,
		Client:    client,
		Store:     nodeRepo,
		Assigner:  nodes.NewAssigner(classifier, idGen),
		Processor: processor,
		Relations: relations,
		Reporter:  report.NewReporter(report.LogSink{Logger: logger}),
		IDGen:     idGen,
		Logger:    logger,
	})

	return &App{
		Config:     cfg,
		DB:         db,
		Logger:     logger,
		Nodes:      nodeRepo,
		Files:      fileRepo,
		Client:     client,
		Downloader: downloader,
		Sourcer:    sourcer,
	}, nil
}

// Sync runs one sync. Concurrent calls fail fast with ErrSyncInProgress.
func (a *App) Sync(ctx context.Context) (*source.SyncReport, error) {
	if !a.syncMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer a.syncMu.Unlock()
	return a.Sourcer.Sync(ctx)
}

// Close cleans up application resources.
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
