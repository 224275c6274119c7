// @title			TeamTask API
// @version		1.0
// @description	Team task tracker with derived task status and live per-member notifications.
// @BasePath		/api/v1
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization

package main

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

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/teamtask/internal/client"
	"github.com/mtlprog/teamtask/internal/config"
	"github.com/mtlprog/teamtask/internal/database"
	"github.com/mtlprog/teamtask/internal/handler"
	"github.com/mtlprog/teamtask/internal/live"
	"github.com/mtlprog/teamtask/internal/logger"
)

func main() {
	app := &cli.App{
		Name:  "teamtask",
		Usage: "Team task tracker with live notifications",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "json",
				Usage:   "Log format (json, text)",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Aliases: []string{"d"},
				Value:   config.DefaultDatabaseURL,
				Usage:   "PostgreSQL database URL (serve, migrate)",
				EnvVars: []string{"DATABASE_URL"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")), c.String("log-format"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the web server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
					&cli.StringFlag{
						Name:    "redis-url",
						Value:   config.DefaultRedisURL,
						Usage:   "Redis URL for relaying live signals between instances (optional)",
						EnvVars: []string{"REDIS_URL"},
					},
					&cli.IntFlag{
						Name:    "fanout-concurrency",
						Value:   config.DefaultFanoutConcurrency,
						Usage:   "Maximum recipients served concurrently per task event",
						EnvVars: []string{"FANOUT_CONCURRENCY"},
					},
				},
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations and exit",
				Action: runMigrate,
			},
			{
				Name:  "watch",
				Usage: "Follow a member's notifications on a running server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Value:   config.DefaultAPIURL,
						Usage:   "Server base URL",
						EnvVars: []string{"TEAMTASK_API_URL"},
					},
					&cli.StringFlag{
						Name:     "token",
						Usage:    "Member API token",
						EnvVars:  []string{"TEAMTASK_TOKEN"},
						Required: true,
					},
				},
				Action: runWatch,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func openDatabase(c *cli.Context) (*database.DB, error) {
	databaseURL := c.String("database-url")
	if databaseURL == "" {
		return nil, errors.New("database url is required (--database-url or DATABASE_URL)")
	}

	db, err := database.New(c.Context, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(c.Context, db.Pool()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func runMigrate(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("migrations applied")
	return nil
}

func runServe(c *cli.Context) error {
	ctx := c.Context

	port := c.String("port")
	if port == "" {
		port = config.DefaultPort
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	hub := live.NewHub()
	defer hub.Close()

	var publisher live.Publisher = hub
	if redisURL := c.String("redis-url"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		bridge := live.NewRedisBridge(rdb, hub, live.DefaultRedisChannel)
		if err := bridge.Start(ctx); err != nil {
			return fmt.Errorf("failed to start redis bridge: %w", err)
		}
		defer func() {
			if err := bridge.Close(); err != nil {
				slog.Warn("redis bridge close failed", "error", err)
			}
		}()
		publisher = bridge
	}

	h := handler.New(db.Pool(), hub, handler.Options{
		Publisher:         publisher,
		FanoutConcurrency: c.Int("fanout-concurrency"),
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "server_addr", "http://localhost:"+port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-done:
		slog.Info("shutting down server")
	}

	// Open streams never finish on their own; closing the hub ends them so
	// Shutdown can complete.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, config.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func runWatch(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.New(c.String("api-url"), c.String("token"), nil)
	cache := client.NewCache(api)

	if err := cache.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to load notifications: %w", err)
	}
	report(cache)

	for {
		signals, err := api.Stream(ctx)
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
				return err
			}
			slog.Warn("stream unavailable", "error", err)
		} else {
			// Changes made while disconnected are only visible after a re-fetch.
			if err := cache.Refresh(ctx); err != nil {
				slog.Warn("notification refresh failed", "error", err)
			}
			report(cache)

			for sig := range signals {
				if err := cache.HandleSignal(ctx, sig); err != nil {
					slog.Warn("notification refresh failed", "error", err)
					continue
				}
				report(cache)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(config.WatchReconnectDelay):
		}
	}
}

func report(cache *client.Cache) {
	items := cache.Notifications()
	latest := ""
	if len(items) > 0 {
		latest = items[0].Event.TaskTitle
	}
	slog.Info("notifications",
		"total", len(items),
		"unread", cache.UnreadCount(),
		"latest_task", latest,
	)
}
