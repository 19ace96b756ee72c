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

	"account_service/internal/app"
	"account_service/internal/config"
	"account_service/internal/lib/logger"
	sl "account_service/internal/lib/logger/sl"
	"account_service/internal/storage/postgres"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "auth_service",
		Usage: "Account registration, email verification and login",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "./config/config.yaml",
				Usage:   "Path to configuration file",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "Apply or roll back database migrations",
				Commands: []*cli.Command{
					{
						Name:   "up",
						Usage:  "Apply all pending migrations",
						Action: migrate(true),
					},
					{
						Name:   "down",
						Usage:  "Roll back the last migration",
						Action: migrate(false),
					},
				},
			},
			{
				Name:   "purge",
				Usage:  "Delete unverified accounts whose verification links expired",
				Action: purge,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func load(cmd *cli.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}

	return cfg, logger.Setup(cfg.Env, os.Stdout), nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := load(cmd)
	if err != nil {
		return err
	}

	log.Info("starting auth service", slog.String("env", cfg.Env))

	application, err := app.New(ctx, log, cfg)
	if err != nil {
		log.Error("failed to init application", sl.Err(err))
		return err
	}
	defer application.Close()

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      application.Router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go application.RunPurger(ctx, cfg.Tokens.PurgeInterval)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error("Server failed", sl.Err(err))
			return err
		}
	}

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", sl.Err(err))
		return err
	}

	log.Info("Server stopped gracefully")

	return nil
}

func migrate(up bool) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, log, err := load(cmd)
		if err != nil {
			return err
		}

		if !cfg.UsesPostgres() {
			log.Info("no postgres storage configured, nothing to migrate")
			return nil
		}

		repo, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer repo.Close()

		if up {
			err = repo.Migrate()
		} else {
			err = repo.MigrateDown()
		}
		if err != nil {
			log.Error("migration failed", sl.Err(err))
			return err
		}

		log.Info("migrations applied", slog.Bool("up", up))

		return nil
	}
}

func purge(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := load(cmd)
	if err != nil {
		return err
	}

	application, err := app.New(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	n, err := application.Auth.PurgeExpired(ctx)
	if err != nil {
		return err
	}

	log.Info("purge finished", slog.Int("accounts", n))

	return nil
}
