package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/auth"
	"expenses/internal/cli"
	"expenses/internal/config"
	apphttp "expenses/internal/http"
	"expenses/internal/mail"
	"expenses/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig((*config.Config).Validate)
	logger := cli.SetupLogger(cfg.LogLevel)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	receiptStore := cli.InitReceipts(logger, cfg.UploadDir, cfg.ReceiptMaxBytes)

	// Without a queue, mail is logged and dropped.
	var mailer mail.Dispatcher = mail.NewLogDispatcher()
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		mailer = amqpClient
		logger.Info("Mail queue enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Warn("AMQP_URL not set, outgoing mail will be dropped")
	}

	var google *auth.IDTokenVerifier
	if cfg.GoogleClientID != "" {
		var err error
		google, err = auth.NewIDTokenVerifier(context.Background(), cfg.GoogleClientID)
		if err != nil {
			logger.Error("Failed to initialize Google sign-in", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("Google sign-in disabled - no GOOGLE_CLIENT_ID provided")
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer)
	srv := apphttp.NewServer(apphttp.Options{
		Addr:            ":" + cfg.Port,
		CORSOrigin:      cfg.CORSOrigin,
		Production:      cfg.IsProduction(),
		RateLimit:       cfg.RateLimit,
		ResetRateLimit:  cfg.ResetRateLimit,
		ReceiptMaxBytes: cfg.ReceiptMaxBytes,
	}, apphttp.Deps{
		Auth:     services.NewAuthService(repo, tokens, google, mailer, cfg.FrontendURL),
		Expenses: services.NewExpenseService(repo, repo, receiptStore, mailer, cfg.FrontendURL),
		Tasks:    services.NewTaskService(repo),
		Ready:    repo.Ping,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting expenses API", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
