// Package app assembles the service from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"account_service/internal/auth"
	"account_service/internal/config"
	httpserver "account_service/internal/http_server"
	"account_service/internal/http_server/handlers/login"
	"account_service/internal/lib/hasher"
	sl "account_service/internal/lib/logger/sl"
	"account_service/internal/mailer"
	rateLimit "account_service/internal/middleware/ratelimit"
	"account_service/internal/notify"
	"account_service/internal/rabbitmq"
	"account_service/internal/storage/memory"
	"account_service/internal/storage/postgres"
	redisrepo "account_service/internal/storage/redis"
	"account_service/internal/tokens"
)

type App struct {
	Auth   *auth.Auth
	Router http.Handler

	log     *slog.Logger
	closers []func()
}

// New connects every backend named in cfg and wires the flows on top of
// them. On error, whatever was already opened is closed.
func New(ctx context.Context, log *slog.Logger, cfg *config.Config) (_ *App, err error) {
	const op = "app.New"

	a := &App{log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var (
		pg  *postgres.PostgresRepo
		mem = memory.New()
	)

	if cfg.UsesPostgres() {
		pg, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, pg.Close)
	}

	var accounts auth.AccountStore
	switch cfg.Storage.Accounts {
	case config.BackendPostgres:
		accounts = pg
	default:
		accounts = mem
	}

	var repo tokens.Repository
	switch cfg.Storage.Tokens {
	case config.BackendPostgres:
		repo = pg
	case config.BackendRedis:
		rdb, err := redisrepo.New(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, rdb.Close)
		repo = rdb
	default:
		repo = mem
	}

	publisher, err := a.publisher(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	h := hasher.New(0)

	a.Auth = auth.New(
		log,
		accounts,
		tokens.New(log, repo, h),
		h,
		publisher,
		auth.Settings{
			PublicURL:       cfg.HTTPServer.PublicURL,
			VerificationTTL: cfg.Tokens.VerificationTokenTTL,
			SessionSecret:   cfg.Tokens.SessionSecret,
		},
	)

	a.Router = httpserver.NewRouter(log, a.Auth, httpserver.Options{
		AllowedOrigins: cfg.HTTPServer.AllowedOrigins,
		Cookie: login.Cookie{
			Name:   cfg.HTTPServer.CookieName,
			Secure: cfg.HTTPServer.CookieSecure,
		},
		Limits: rateLimit.Default(),
	})

	return a, nil
}

func (a *App) publisher(cfg *config.Config) (notify.Publisher, error) {
	switch cfg.Notifier.Mode {
	case config.NotifierRabbitMQ:
		mq, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, mq.Close)
		return mq, nil
	case config.NotifierSMTP:
		return mailer.New(cfg.SMTP), nil
	default:
		return notify.NewLog(a.log), nil
	}
}

// RunPurger removes expired signups every interval until ctx is done. A
// non-positive interval disables it.
func (a *App) RunPurger(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Auth.PurgeExpired(ctx); err != nil {
				a.log.Error("failed to purge expired signups", sl.Err(err))
			}
		}
	}
}

// Close releases backends in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
