package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"account_service/internal/config"
	"account_service/internal/lib/logger"
	sl "account_service/internal/lib/logger/sl"
	"account_service/internal/mailer"
	"account_service/internal/rabbitmq"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "mail_sender",
		Usage: "Deliver queued account emails over SMTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "./config/config.yaml",
				Usage:   "Path to configuration file",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
		},
		Action: run,
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	log := logger.Setup(cfg.Env, os.Stdout)

	log.Info("Starting mail_sender", slog.String("env", cfg.Env))

	if cfg.RabbitMQ.URL == "" || cfg.SMTP.Host == "" {
		return errors.New("mail_sender needs rabbitmq.url and smtp.host")
	}

	r, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to init rabbitmq", sl.Err(err))
		return err
	}
	defer r.Close()

	m := mailer.New(cfg.SMTP)

	log.Info("consumer successfully started", slog.String("queue", cfg.RabbitMQ.QueueName))

	if err := r.StartReading(ctx, log, m.Handler(log)); err != nil {
		log.Error("consumer stopped", sl.Err(err))
		return err
	}

	log.Info("service gracefully stopped")

	return nil
}
