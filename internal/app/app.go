// Package app wires configuration, storage, the realtime hub and the
// aggregation scheduler into a running board.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/sujalbistaa/retroboard/internal/aggregate"
	"github.com/sujalbistaa/retroboard/internal/analysis"
	"github.com/sujalbistaa/retroboard/internal/board"
	"github.com/sujalbistaa/retroboard/internal/config"
	"github.com/sujalbistaa/retroboard/internal/db"
	routes "github.com/sujalbistaa/retroboard/internal/http"
	"github.com/sujalbistaa/retroboard/internal/models"
	"github.com/sujalbistaa/retroboard/internal/notify"
	"github.com/sujalbistaa/retroboard/internal/store"
	"github.com/sujalbistaa/retroboard/internal/ws"
)

// App holds the long-lived dependencies shared by the commands.
type App struct {
	cfg        *config.Config
	log        *slog.Logger
	db         *gorm.DB
	store      *store.Store
	summarizer analysis.Summarizer
	renderer   analysis.ImageRenderer
}

// New opens the database and builds the analysis collaborators.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	opts := analysis.Options{
		Provider:      cfg.Analysis.Provider,
		APIKey:        cfg.Analysis.APIKey,
		Model:         cfg.Analysis.Model,
		BaseURL:       cfg.Analysis.BaseURL,
		ImageProvider: cfg.Analysis.ImageProvider,
		ImageAPIKey:   cfg.Analysis.ImageAPIKey,
		ImageModel:    cfg.Analysis.ImageModel,
		Context:       cfg.Analysis.Context,
	}
	summarizer, err := analysis.NewSummarizer(opts)
	if err != nil {
		return nil, err
	}
	renderer, err := analysis.NewImageRenderer(opts)
	if err != nil {
		return nil, err
	}

	debug := strings.EqualFold(cfg.Log.Level, "debug")
	database, err := db.Init(cfg.Database, debug, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	log.Info("analysis configured",
		slog.String("provider", cfg.Analysis.Provider),
		slog.String("image_provider", cfg.Analysis.ImageProvider))

	return &App{
		cfg:        cfg,
		log:        log,
		db:         database,
		store:      store.New(database),
		summarizer: summarizer,
		renderer:   renderer,
	}, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (a *App) scheduler(publisher aggregate.Publisher) *aggregate.Scheduler {
	return aggregate.New(a.store, a.store, a.summarizer, a.renderer, publisher, aggregate.Config{
		Interval:     a.cfg.Aggregation.Interval,
		InitialDelay: a.cfg.Aggregation.InitialDelay,
		Timeout:      a.cfg.Aggregation.Timeout,
	}, a.log)
}

func (a *App) notifier() *notify.Manager {
	var notifiers []notify.Notifier
	if a.cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(a.cfg.Notify.WebhookURL, a.cfg.Notify.WebhookSecret))
	}
	return notify.NewManager(notifiers...)
}

// AggregateOnce runs a single aggregation against the store without a
// server. The result is persisted but not broadcast.
func (a *App) AggregateOnce(ctx context.Context) (models.AggregateResult, error) {
	return a.scheduler(nil).RunNow(ctx)
}

// Serve runs the HTTP server, the hub and the scheduler until ctx is
// cancelled, then shuts the server down gracefully.
func (a *App) Serve(ctx context.Context) error {
	hub := ws.NewHub(a.log)
	broadcaster := board.NewBroadcaster(hub, a.notifier(), a.log)

	sch := a.scheduler(broadcaster)
	if err := sch.Restore(ctx); err != nil {
		a.log.Warn("could not restore aggregate", slog.Any("error", err))
	}

	svc := board.NewService(a.store, broadcaster, sch, a.log)
	socket := ws.NewEndpoint(hub, svc, ws.Options{
		AllowedOrigin: a.cfg.CORS.Origin,
		RateLimit:     rate.Limit(a.cfg.RateLimit.SocketRPS),
		Burst:         a.cfg.RateLimit.SocketBurst,
	}, a.log)

	if a.cfg.Server.Mode != "" {
		gin.SetMode(a.cfg.Server.Mode)
	}
	router := gin.New()

	g, gctx := errgroup.WithContext(ctx)

	routes.SetupRoutes(gctx, router, &routes.Env{Board: svc, Sessions: hub, Log: a.log}, socket, routes.Options{
		CORSOrigin:  a.cfg.CORS.Origin,
		AdminToken:  a.cfg.Admin.Token,
		CreateRPS:   a.cfg.RateLimit.CreateRPS,
		CreateBurst: a.cfg.RateLimit.CreateBurst,
	})
	if a.cfg.Admin.Token == "" {
		a.log.Warn("admin token not set, aggregation trigger endpoint is open")
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: a.cfg.Server.ReadTimeout,
	}

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := sch.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		a.log.Info("server listening", slog.String("addr", srv.Addr), slog.String("version", BuildVersion()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.log.Info("server exiting")
	return nil
}
