// Command authd serves the auth and user services over HTTP. Every method is
// a POST /<service>/<method> route taking a JSON object.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/goliatone/go-router"
	"github.com/urfave/cli/v2"

	"github.com/goliatone/go-auth-service/config"
	"github.com/goliatone/go-auth-service/internal/bootstrap"
	"github.com/goliatone/go-auth-service/transport/httpapi"
)

const shutdownTimeout = 10 * time.Second

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "authd",
		Usage:   "auth service HTTP server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"AUTHSVC_CONFIG"},
			},
			&cli.StringSliceFlag{
				Name:  "set",
				Usage: "override a configuration key, e.g. --set http.address=:9000",
			},
		},
		Action: serve,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	values := map[string]any{}
	for _, kv := range c.StringSlice("set") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return cli.Exit(fmt.Sprintf("--set %q is not key=value", kv), 2)
		}
		values[key] = value
	}

	cfg, err := config.Load(c.Context,
		config.WithConfigFile(c.String("config")),
		config.WithValues(values),
	)
	if err != nil {
		return err
	}

	app, err := bootstrap.New(c.Context, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	log := app.Logger.GetLogger("authd")

	var fiberApp *fiber.App
	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		fiberApp = router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:          true,
			DisableStartupMessage: true,
		}))
		return fiberApp
	})

	controller := httpapi.NewController(app.Dispatchers.All(),
		httpapi.WithLogger(app.Logger.GetLogger("http")),
	)
	controller.RegisterRoutes(srv.Router())

	var metricsServer *http.Server
	if cfg.HTTP.MetricsAddress != "" {
		metricsServer = &http.Server{
			Addr:              cfg.HTTP.MetricsAddress,
			Handler:           app.Metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("metrics listening", "address", cfg.HTTP.MetricsAddress)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "error", err)
			}
		}()
	} else if fiberApp != nil {
		fiberApp.Get("/metrics", adaptor.HTTPHandler(app.Metrics.Handler()))
	}

	go func() {
		log.Info("http listening", "address", cfg.HTTP.Address, "routes", controller.Routes())
		srv.Serve(cfg.HTTP.Address)
	}()

	sig := waitExitSignal()
	log.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Warn("metrics shutdown failed", "error", err)
		}
	}
	if fiberApp != nil {
		if err := fiberApp.ShutdownWithContext(ctx); err != nil {
			log.Warn("http shutdown failed", "error", err)
		}
	}
	return nil
}

func waitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
