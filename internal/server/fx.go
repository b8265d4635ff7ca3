// Package server builds the application's dependencies and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/oiliness-w4v0/canvas-application/internal/api"
	"github.com/oiliness-w4v0/canvas-application/internal/canvas"
	"github.com/oiliness-w4v0/canvas-application/internal/clock/system"
	"github.com/oiliness-w4v0/canvas-application/internal/config"
	collyfetcher "github.com/oiliness-w4v0/canvas-application/internal/fetcher/colly"
	headlessfetcher "github.com/oiliness-w4v0/canvas-application/internal/fetcher/headless"
	"github.com/oiliness-w4v0/canvas-application/internal/hash/md5"
	"github.com/oiliness-w4v0/canvas-application/internal/headless/detector"
	"github.com/oiliness-w4v0/canvas-application/internal/id/uuid"
	"github.com/oiliness-w4v0/canvas-application/internal/images"
	"github.com/oiliness-w4v0/canvas-application/internal/logging"
	"github.com/oiliness-w4v0/canvas-application/internal/metadata"
	"github.com/oiliness-w4v0/canvas-application/internal/metrics"
	memorypublisher "github.com/oiliness-w4v0/canvas-application/internal/publisher/memory"
	gcppublisher "github.com/oiliness-w4v0/canvas-application/internal/publisher/pubsub"
	"github.com/oiliness-w4v0/canvas-application/internal/space"
	gcsstorage "github.com/oiliness-w4v0/canvas-application/internal/storage/gcs"
	localstorage "github.com/oiliness-w4v0/canvas-application/internal/storage/local"
	memorystorage "github.com/oiliness-w4v0/canvas-application/internal/storage/memory"
	pgstore "github.com/oiliness-w4v0/canvas-application/internal/storage/postgres"
	sqlitestore "github.com/oiliness-w4v0/canvas-application/internal/storage/sqlite"
)

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	apiServer *api.Server
	store     canvas.Store
	gcs       *storage.Client
	headless  *headlessfetcher.Fetcher
	pubsub    *gcppublisher.Publisher
}

// Handler returns the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP until ctx is canceled or SIGINT/SIGTERM arrives, then
// shuts down gracefully and releases every dependency.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	closeErr := a.Close()
	if err := <-serveErr; err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return closeErr
}

// Close releases the store, publishers, and browser.
func (a *App) Close() error {
	var errs []error
	if a.headless != nil {
		if err := a.headless.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close headless fetcher: %w", err))
		}
	}
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close gcs client: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logging.OrNop(logger)}
	app.logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Driver),
		zap.String("uploads", cfg.Uploads.Backend),
		zap.String("events", cfg.Events.Backend),
	)
	metrics.Init()

	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	if err := setupStore(ctx, app); err != nil {
		return nil, err
	}
	blobs, uploadsDir, err := setupBlobs(ctx, app)
	if err != nil {
		return nil, err
	}
	extractor, pageFetcher, err := setupExtractor(app)
	if err != nil {
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}

	downloader := images.NewDownloader(images.Config{
		Fetcher:      pageFetcher,
		Blobs:        blobs,
		Hasher:       md5.New(),
		PublicPrefix: cfg.ImagePublicPrefix(),
		Logger:       app.logger,
	})
	clock := system.New()
	svc := space.NewService(space.Config{
		Metadata:  extractor,
		Images:    downloader,
		Builder:   canvas.NewBuilder(uuid.New()),
		Store:     app.store,
		Publisher: publisher,
		Topic:     cfg.Events.Topic,
		Clock:     clock,
		Logger:    app.logger,
	})

	app.apiServer = api.NewServer(api.Config{
		Store:          app.store,
		Saver:          svc,
		Clock:          clock,
		Logger:         app.logger,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		UploadsDir:     uploadsDir,
		UploadsPrefix:  cfg.Uploads.PublicPrefix,
	})

	ok = true
	return app, nil
}

func setupStore(ctx context.Context, app *App) error {
	cfg := app.cfg.Store
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := pgstore.NewCanvasStore(ctx, pgstore.CanvasStoreConfig{
			DSN:      cfg.DSN,
			Table:    cfg.Table,
			MaxConns: cfg.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("postgres store init failed: %w", err)
		}
		app.store = store
		app.logger.Info("using postgres canvas store", zap.String("table", cfg.Table))
	case config.DriverMemory:
		app.store = memorystorage.NewCanvasStore()
		app.logger.Warn("using in-memory canvas store; data is lost on restart")
	default:
		store, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("sqlite store init failed: %w", err)
		}
		app.store = store
		app.logger.Info("using sqlite canvas store", zap.String("path", cfg.SQLitePath))
	}
	return nil
}

// setupBlobs returns the image blob store and, for the local backend, the
// directory to serve statically.
func setupBlobs(ctx context.Context, app *App) (canvas.BlobStore, string, error) {
	cfg := app.cfg.Uploads
	switch cfg.Backend {
	case config.UploadsGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("gcs client init failed: %w", err)
		}
		app.gcs = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket:       cfg.GCSBucket,
			CacheControl: "public, max-age=86400",
		})
		if err != nil {
			return nil, "", fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Info("using GCS image storage", zap.String("bucket", cfg.GCSBucket))
		return blobs, "", nil
	case config.UploadsMemory:
		app.logger.Warn("using in-memory image storage; images are not served")
		return memorystorage.NewBlobStore(), "", nil
	default:
		blobs, err := localstorage.New(localstorage.Config{BaseDir: cfg.Dir})
		if err != nil {
			return nil, "", fmt.Errorf("local blob store init failed: %w", err)
		}
		if err := os.MkdirAll(filepath.Join(blobs.Dir(), images.Dir), 0o750); err != nil {
			return nil, "", fmt.Errorf("create images directory: %w", err)
		}
		app.logger.Info("using local image storage", zap.String("dir", blobs.Dir()))
		return blobs, blobs.Dir(), nil
	}
}

func setupExtractor(app *App) (*metadata.Extractor, canvas.Fetcher, error) {
	cfg := app.cfg
	pageFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      cfg.Fetch.Timeout,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	})
	app.logger.Info("using colly fetcher",
		zap.String("user_agent", cfg.Fetch.UserAgent),
		zap.Duration("timeout", cfg.Fetch.Timeout),
	)

	extractorCfg := metadata.Config{
		Fetcher:   pageFetcher,
		UserAgent: cfg.Fetch.UserAgent,
		Logger:    app.logger,
	}
	if cfg.Headless.Enabled {
		hf, err := headlessfetcher.New(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Fetch.UserAgent,
			NavigationTimeout: cfg.Headless.NavTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("headless fetcher init failed: %w", err)
		}
		app.headless = hf
		extractorCfg.Headless = hf
		extractorCfg.Detector = detector.NewHeuristic(cfg.Headless.PromotionThreshold)
		app.logger.Info("headless promotion enabled",
			zap.Int("max_parallel", cfg.Headless.MaxParallel),
			zap.Int("promotion_threshold", cfg.Headless.PromotionThreshold),
		)
	}
	return metadata.NewExtractor(extractorCfg), pageFetcher, nil
}

func setupPublisher(ctx context.Context, app *App) (canvas.Publisher, error) {
	cfg := app.cfg.Events
	switch cfg.Backend {
	case config.EventsPubSub:
		pub, err := gcppublisher.New(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
		}
		app.pubsub = pub
		app.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", cfg.ProjectID),
			zap.String("topic", cfg.Topic),
		)
		return pub, nil
	case config.EventsMemory:
		app.logger.Info("using in-memory save event publisher")
		return memorypublisher.New(), nil
	default:
		app.logger.Debug("save events disabled")
		return nil, nil
	}
}
