package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"attendance/internal/config"
	"attendance/internal/csrf"
	"attendance/internal/database"
	"attendance/internal/handler"
	"attendance/internal/httpclient"
	"attendance/internal/logging"
	"attendance/internal/metrics"
	"attendance/internal/query"
	"attendance/internal/repository"
	"attendance/internal/scheduler"
	"attendance/internal/session"
	"attendance/internal/templates"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.AppMode, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		return err
	}
	logger.Info("attendance-web stopped")
	return nil
}

// serve wires every component and runs the HTTP server until ctx is done.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	client := httpclient.New(cfg.API.BaseURL,
		httpclient.WithTimeout(cfg.API.Timeout),
		httpclient.WithLogger(logger),
		httpclient.WithMetrics(m),
	)

	backend, jobs, closeBackend, err := sessionBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	store := session.NewStore(backend,
		session.WithSecureCookies(cfg.Cookie.Secure),
		session.WithLogger(logger),
		session.WithMetrics(m),
	)

	cache, err := query.New(query.Options{
		StaleTime:  cfg.Query.StaleTime,
		GCTime:     cfg.Query.GCTime,
		MaxEntries: cfg.Query.CacheSize,
		Logger:     logger,
		Metrics:    m,
	})
	if err != nil {
		return err
	}

	views, err := templates.New(cfg.BasePath)
	if err != nil {
		return err
	}

	protector, err := csrf.New(cfg.Session.Secret, cfg.Cookie.Secure)
	if err != nil {
		return err
	}

	router := handler.NewRouter(handler.Deps{
		Auth:     repository.NewAuthRepository(client),
		CSRF:     protector,
		Courses:  repository.NewCourseRepository(client),
		Store:    store,
		Cache:    cache,
		Views:    views,
		Logger:   logger,
		Metrics:  m,
		Gatherer: reg,
		Mode:     cfg.AppMode,
		BasePath: cfg.BasePath,
	})

	jobs = append(jobs, scheduler.Job{
		Name: "query-sweep",
		Spec: "@every 1m",
		Run: func(context.Context) error {
			if n := cache.Sweep(); n > 0 {
				logger.Debug("query cache swept", "removed", n)
			}
			return nil
		},
	})
	sched, err := scheduler.New(logger, 30*time.Second, jobs...)
	if err != nil {
		return err
	}
	sched.Start()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.API.Timeout + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			"addr", srv.Addr,
			"mode", cfg.AppMode,
			"api", cfg.API.BaseURL,
			"session_backend", cfg.Session.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	router.Wait()
	cache.Close()
	sched.Stop(shutdownCtx)

	if serveErr != nil {
		return fmt.Errorf("serve: %w", serveErr)
	}
	return nil
}

// sessionBackend builds the store for the user record and the housekeeping
// jobs it needs.
func sessionBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sessions.Store, []scheduler.Job, func(), error) {
	if cfg.Session.Backend != config.SessionBackendPostgres {
		backend, err := session.NewCookieBackend(cfg.Session.Secret, cfg.Cookie.Secure)
		if err != nil {
			return nil, nil, nil, err
		}
		return backend, nil, func() {}, nil
	}

	db, err := database.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.MigrateUp(db); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	backend, err := session.NewPGBackend(db, cfg.Session.Secret, cfg.Cookie.Secure)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	cleanup := scheduler.Job{
		Name: "session-cleanup",
		Spec: "@every 10m",
		Run: func(ctx context.Context) error {
			n, err := backend.DeleteExpired(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
			return nil
		},
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing database", "error", err)
		}
	}
	return backend, []scheduler.Job{cleanup}, closeDB, nil
}
