package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"animedash/internal/archive"
	"animedash/internal/dashboard"
	"animedash/internal/events"
	"animedash/internal/jikan"
	"animedash/internal/scheduler"
	"animedash/internal/web"
	"animedash/pkg/config"
	"animedash/pkg/database"
	"animedash/pkg/logging"
)

func main() {
	var cfgPath, addr string

	root := &cobra.Command{
		Use:           "api-server",
		Short:         "Serve the top anime dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			return run(cfg)
		},
	}
	root.Flags().StringVar(&cfgPath, "config", config.Path(), "YAML config file (env ANIMEDASH_CONFIG)")
	root.Flags().StringVar(&addr, "addr", "", "listen address, overrides http.addr")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "api-server:", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client := jikan.NewClient(
		jikan.WithBaseURL(cfg.Jikan.BaseURL),
		jikan.WithTimeout(cfg.Jikan.Timeout),
		jikan.WithLogger(logger.Named("jikan")),
	)
	svc := dashboard.NewService(client, logger.Named("dashboard"),
		dashboard.WithDetailTimeout(cfg.Jikan.DetailTimeout))

	sessions, err := dashboard.NewSessions(svc, cfg.Sessions.Max)
	if err != nil {
		return err
	}

	hub := events.NewHub(logger.Named("events"))
	svc.OnChange(hub.Observe)

	handlerOpts := []web.Option{web.WithReloadTimeout(loadTimeout(cfg))}

	var archiveRepo *archive.Repo
	if cfg.Archive.Path != "" {
		db, err := database.Open(context.Background(), database.Config{Path: cfg.Archive.Path})
		if err != nil {
			return err
		}
		defer db.Close()

		archiveRepo = archive.NewRepo(db, logger.Named("archive"))
		svc.OnChange(func(ls dashboard.LoadState) { go archiveRepo.Observe(ls) })
		handlerOpts = append(handlerOpts, web.WithArchive(archiveRepo))
		logger.Info("archiving revisions", zap.String("path", cfg.Archive.Path))
	}

	var sched *scheduler.Scheduler
	if cfg.Refresh.Schedule != "" {
		sched, err = scheduler.New(cfg.Refresh.Timezone)
		if err != nil {
			return err
		}
		if err := sched.Schedule(cfg.Refresh.Schedule, func() { svc.Refresh(loadTimeout(cfg)) }); err != nil {
			return err
		}
		sched.Start()
		logger.Info("periodic reload enabled",
			zap.String("schedule", cfg.Refresh.Schedule),
			zap.Time("next", sched.Next()))
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logging.GinMiddleware(logger.Named("http")))
	if err := router.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	router.GET("/ws", events.WSHandler(hub))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ready", func(c *gin.Context) {
		ls := svc.State()
		body := gin.H{
			"dataset":    ls.Status,
			"revision":   ls.Revision(),
			"ws_clients": hub.Stats().WSClients,
		}
		if archiveRepo != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := archiveRepo.DB.PingContext(ctx); err != nil {
				body["status"] = "not_ready"
				body["db_error"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
			body["db"] = "ok"
		}
		if ls.Dataset == nil {
			body["status"] = "not_ready"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["status"] = "ready"
		c.JSON(http.StatusOK, body)
	})

	router.GET("/debug", func(c *gin.Context) {
		ls := svc.State()
		body := gin.H{
			"dataset":    ls.Status,
			"since":      ls.Since,
			"revision":   ls.Revision(),
			"records":    len(ls.Records()),
			"sessions":   sessions.Len(),
			"ws_clients": hub.Stats().WSClients,
			"archive":    cfg.Archive.Path,
			"schedule":   cfg.Refresh.Schedule,
		}
		if sched != nil {
			body["next_reload"] = sched.Next()
		}
		c.JSON(http.StatusOK, body)
	})

	web.NewHandler(svc, sessions, logger.Named("web"), handlerOpts...).RegisterRoutes(router)

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// first load runs in the background; pages show the loading state meanwhile
	svc.Refresh(loadTimeout(cfg))

	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP dashboard listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case runErr = <-errCh:
		logger.Error("server error", zap.Error(runErr))
	}

	logger.Info("shutting down")
	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}

	wg.Wait()
	logger.Info("server stopped")
	return runErr
}

// loadTimeout bounds one full pipeline run. Both pages are fetched
// concurrently, each under the client timeout.
func loadTimeout(cfg config.Config) time.Duration {
	return cfg.Jikan.Timeout + 5*time.Second
}
