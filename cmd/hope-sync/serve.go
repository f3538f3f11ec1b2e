package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/unicef/hope-sub007/pkg/platform/middleware"
	"github.com/unicef/hope-sub007/pkg/platform/startup"
	"github.com/unicef/hope-sub007/pkg/routes/businessarea"
	"github.com/unicef/hope-sub007/pkg/routes/health"
	"github.com/unicef/hope-sub007/pkg/routes/representation"
	"github.com/unicef/hope-sub007/pkg/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the periodic sync scheduler and the ops API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))
	cfg, logger := a.cfg, a.logger

	interval := time.Duration(0)
	if cfg.SchedulerEnabled {
		interval = cfg.SyncInterval
	}
	sched := scheduler.New(a.runner, a.store, scheduler.Config{
		Interval:      interval,
		BusinessAreas: cfg.SchedulerBusinessAreas,
	}, logger)

	if err := registerDependencies(a, sched); err != nil {
		return err
	}

	checks := []health.Check{{Name: "database", Ping: a.store.Ping}}
	if a.redis != nil {
		checks = append(checks, health.Check{Name: "redis", Ping: a.redis.Ping})
	}
	checker := health.NewChecker(cfg.Version, checks...)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(
		echomiddleware.Recover(),
		echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{AllowOrigins: cfg.AllowOrigins}),
		otelecho.Middleware(cfg.AppName),
		middleware.Context(),
		middleware.Logger(logger),
	)
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	api := e.Group("/api/v1")
	businessarea.Register(api.Group("/business-areas"))
	representation.Register(api.Group("/representations"))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      e,
		ReadTimeout:  time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
	}

	serverErr := make(chan error, 1)
	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(startup.Func{Name: "database", OnStart: a.store.Ping})
	boot.AddDependency(startup.Func{
		Name:     "scheduler",
		Requires: []string{"database"},
		OnStart:  sched.Start,
		OnStop:   sched.Stop,
	})
	boot.AddDependency(startup.Func{
		Name:     "http",
		Requires: []string{"scheduler"},
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Infof("HTTP server listening on %s", server.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()
			return nil
		},
		OnStop: server.Shutdown,
	})

	if err := boot.Start(ctx); err != nil {
		return err
	}
	checker.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err = <-serverErr:
		logger.WithError(err).Error("HTTP server failed")
	}
	checker.SetReady(false)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if stopErr := boot.Stop(stopCtx); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}
