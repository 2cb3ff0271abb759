package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/labelprint/internal/infrastructure/config"
	"github.com/erp/labelprint/internal/infrastructure/logger"
	"github.com/erp/labelprint/internal/interfaces/http/handler"
	"github.com/erp/labelprint/internal/interfaces/http/middleware"
	"github.com/erp/labelprint/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func buildServeCommand(opts *rootOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the label print HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.App.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides app.port)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	app, err := Bootstrap(ctx, cfg, Version)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			app.Logger.Error("error during shutdown", zap.Error(err))
		}
	}()
	log := app.Logger

	log.Info("Starting labelprint",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("telemetry", app.Telemetry.Enabled()),
	)

	jobs := handler.NewLabelJobHandler(handler.LabelJobConfig{
		Runner:   app.Orchestrator,
		Tracker:  app.Tracker,
		History:  app.History,
		Defaults: StoreDefaults(cfg),
		Logger:   log,
	})
	printers := handler.NewPrinterHandler(app.Settings, app.Previews, app.Agents, log)
	system := handler.NewSystemHandler(Version, map[string]handler.Pinger{"database": app.Database})

	engine := NewEngine(cfg, log)
	engine.GET("/health", system.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	for _, g := range handler.LabelJobRoutes(jobs) {
		r.Register(g)
	}
	for _, g := range handler.PrinterRoutes(printers) {
		r.Register(g)
	}
	r.Setup()

	srv := &http.Server{
		Addr:        ":" + cfg.App.Port,
		Handler:     engine,
		ReadTimeout: cfg.HTTP.ReadTimeout,
		// event streams stay open for the life of a job
		WriteTimeout: 0,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	// abandoning running jobs ends their event streams so Shutdown can drain
	srv.RegisterOnShutdown(func() { _ = jobs.Close() })

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			_ = jobs.Close()
			return err
		}
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	_ = jobs.Close()

	log.Info("Server exited gracefully")
	return nil
}

// NewEngine returns a gin engine with the request middleware stack
func NewEngine(cfg *config.Config, log *zap.Logger) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName))
	engine.Use(middleware.SpanRequestID())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	return engine
}
