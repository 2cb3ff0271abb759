package cli

import (
	"context"
	"errors"
	"fmt"

	apprinting "github.com/erp/labelprint/internal/application/printing"
	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/erp/labelprint/internal/infrastructure/config"
	"github.com/erp/labelprint/internal/infrastructure/imagecache"
	"github.com/erp/labelprint/internal/infrastructure/logger"
	"github.com/erp/labelprint/internal/infrastructure/persistence"
	"github.com/erp/labelprint/internal/infrastructure/printer"
	infra "github.com/erp/labelprint/internal/infrastructure/printing"
	"github.com/erp/labelprint/internal/infrastructure/qrcode"
	"github.com/erp/labelprint/internal/infrastructure/registration"
	"github.com/erp/labelprint/internal/infrastructure/storage"
	"github.com/erp/labelprint/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// App holds the wired components of one process
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Telemetry    *telemetry.Providers
	Database     *persistence.Database
	History      printing.JobHistoryRepository
	Settings     *apprinting.SettingsStore
	Tracker      *apprinting.JobTracker
	Reprints     *apprinting.ReprintStore
	Previews     *printer.PreviewSink
	Agents       *printer.AgentHub
	Archive      *storage.S3Archive
	Orchestrator *apprinting.Orchestrator

	closers []func() error
}

// Bootstrap builds every component from cfg. Close releases them in
// reverse order.
func Bootstrap(ctx context.Context, cfg *config.Config, version string) (*App, error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app := &App{Config: cfg, Logger: log}
	if err := app.wire(ctx, version); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *App) wire(ctx context.Context, version string) error {
	cfg, log := a.Config, a.Logger

	providers, err := telemetry.NewProviders(ctx, &cfg.Telemetry, version, log)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.Telemetry = providers
	a.Logger = providers.BridgeLogger(a.Logger, cfg.Telemetry.ServiceName)
	log = a.Logger
	a.onClose(func() error { return providers.Shutdown(context.Background()) })
	profiler, err := telemetry.StartProfiler(&cfg.Telemetry, version, log)
	if err != nil {
		return err
	}
	a.onClose(profiler.Stop)
	metrics, err := telemetry.NewJobMetrics(providers.Meter("github.com/erp/labelprint"))
	if err != nil {
		return fmt.Errorf("failed to create job metrics: %w", err)
	}

	db, err := persistence.NewDatabase(&cfg.Database, log, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to open job history: %w", err)
	}
	a.Database = db
	a.onClose(db.Close)
	if providers.Enabled() {
		if err := db.EnableTracing(providers.TracerProvider(), cfg.Database.Driver); err != nil {
			return err
		}
	}
	a.History = persistence.NewGormJobHistoryRepository(db.DB)

	a.Settings = apprinting.NewSettingsStore(printing.PrinterSettings{
		Destination:   cfg.Printer.Destination,
		AutoPrint:     cfg.Printer.AutoPrint,
		StartPosition: cfg.Printer.StartPosition,
	})
	a.Tracker = apprinting.NewJobTracker(0)
	a.onClose(a.Tracker.Close)
	a.Reprints = apprinting.NewReprintStore(cfg.Printer.ReprintTTL)
	a.onClose(a.Reprints.Close)

	images, err := a.imageSource()
	if err != nil {
		return err
	}

	encoder, err := a.encoder()
	if err != nil {
		return err
	}
	a.onClose(encoder.Close)

	sink, err := a.sinks()
	if err != nil {
		return err
	}
	a.Previews = printer.NewPreviewSink(sink, &printer.PreviewConfig{
		Timeout: cfg.Printer.PreviewTimeout,
		OnPending: func(p printer.Preview) {
			log.Info("label sheet waiting for confirmation",
				zap.String("job_id", p.ID.String()),
				zap.Int("pages", p.Pages))
		},
		Logger: log,
	})

	client := registration.NewClient(&registration.Config{
		Endpoint:         cfg.Registration.Endpoint,
		LocationEndpoint: cfg.Registration.LocationEndpoint,
		APIKey:           cfg.Registration.APIKey,
		Timeout:          cfg.Registration.Timeout,
		Logger:           log,
	})

	hooks := []apprinting.PrintedHook{}
	if cfg.Registration.LocationEndpoint != "" {
		hooks = append(hooks, apprinting.NewLocationHook(client))
	}
	if cfg.Storage.Enabled {
		archive, err := storage.NewS3Archive(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return fmt.Errorf("failed to initialize label archive: %w", err)
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Warn("label archive bucket check failed", zap.Error(err))
		}
		a.Archive = archive
		hooks = append(hooks, apprinting.NewArchiveHook(archive))
	}

	geometry := printing.StandardSheet()
	orch, err := apprinting.NewOrchestrator(apprinting.Dependencies{
		Registrar: client,
		Renderer: infra.NewRasterRenderer(&infra.RasterConfig{
			DPI:      cfg.Printer.DPI,
			Geometry: geometry,
			Logger:   log,
		}, qrcode.NewGenerator()),
		Encoder:     encoder,
		Sink:        sink,
		Interactive: a.Previews,
		Images:      images,
		Settings:    a.Settings,
		Reprints:    a.Reprints,
		History:     a.History,
		Hooks:       hooks,
		Metrics:     metrics,
		Defaults:    StoreDefaults(cfg),
		Geometry:    geometry,
		Retry: apprinting.RetryPolicy{
			MaxAttempts: cfg.Registration.MaxAttempts,
			BaseDelay:   cfg.Registration.BaseDelay,
		},
		Logger: log,
	})
	if err != nil {
		return err
	}
	a.Orchestrator = orch
	a.onClose(func() error {
		orch.Wait()
		return nil
	})
	return nil
}

func (a *App) imageSource() (*imagecache.Prefetcher, error) {
	cfg := a.Config
	memory := imagecache.NewMemoryCache(cfg.Images.MaxEntries)
	a.onClose(memory.Close)

	var cache imagecache.BlobCache = memory
	if cfg.Redis.Enabled {
		shared, err := imagecache.NewRedisCache(imagecache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to image cache: %w", err)
		}
		a.onClose(shared.Close)
		cache = imagecache.NewTieredCache(memory, shared, a.Logger)
	}
	return imagecache.NewPrefetcher(&imagecache.Config{
		Timeout:  cfg.Images.Timeout,
		TTL:      cfg.Images.CacheTTL,
		MaxBytes: cfg.Images.MaxBytes,
		Logger:   a.Logger,
	}, cache), nil
}

func (a *App) encoder() (infra.DocumentEncoder, error) {
	cfg := a.Config
	switch cfg.Printer.Encoder {
	case "", "gofpdf":
		return infra.NewGofpdfEncoder(a.Logger), nil
	case "chromedp":
		return infra.NewChromedpEncoder(&infra.ChromedpConfig{
			DefaultTimeout: cfg.Chromedp.Timeout,
			RemoteURL:      cfg.Chromedp.RemoteURL,
			NoSandbox:      cfg.Chromedp.NoSandbox,
			Logger:         a.Logger,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported document encoder %q", cfg.Printer.Encoder)
	}
}

func (a *App) sinks() (*printer.Router, error) {
	cfg := a.Config
	spool, err := printer.NewDirectorySink(&printer.DirectoryConfig{
		BasePath: cfg.Printer.OutputDir,
		Logger:   a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare spool directory: %w", err)
	}
	a.Agents = printer.NewAgentHub(&printer.AgentHubConfig{
		APIKey: cfg.HTTP.AgentAPIKey,
		Logger: a.Logger,
	})
	a.onClose(a.Agents.Close)

	return printer.NewRouter().
		Handle(printer.SchemeTCP, printer.NewSocketSink(&printer.SocketConfig{
			Timeout: cfg.Printer.SocketTimeout,
			Logger:  a.Logger,
		})).
		Handle(printer.SchemeFile, spool).
		Handle(printer.SchemeAgent, a.Agents), nil
}

// StoreDefaults converts the store section to the job config every job
// starts from
func StoreDefaults(cfg *config.Config) printing.PrintJobConfig {
	return printing.PrintJobConfig{
		StoreID:            cfg.Store.ID,
		StoreName:          cfg.Store.Name,
		LocationID:         cfg.Store.LocationID,
		LocationName:       cfg.Store.LocationName,
		DistributorLicense: cfg.Store.DistributorLicense,
		ComplianceLines:    cfg.Store.ComplianceLines,
		LogoURL:            cfg.Store.LogoURL,
		FallbackGlyph:      cfg.Store.FallbackGlyph,
		DefaultTierLabel:   cfg.Store.DefaultTier,
		TrackingBaseURL:    cfg.Registration.TrackingBaseURL,
	}
}

// Close releases every component, newest first
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}
