package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"notebot/notebot/app"
	"notebot/notebot/bot"
	"notebot/notebot/config"
	"notebot/notebot/middlewares"
	"notebot/notebot/routes"
	"notebot/notebot/sources/db"
	"notebot/notebot/utils/logging"
)

func main() {
	cliApp := &cli.App{
		Name:  "notebot",
		Usage: "note-taking chat bot with local model enrichment and search",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "start the Telegram bot and the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the notes table",
				Action: migrate,
			},
			{
				Name:  "token",
				Usage: "issue an API token for a user id",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "user", Required: true, Usage: "numeric user id"},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime, 0 for none"},
				},
				Action: issueToken,
			},
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		logging.ErrorLogger.Error("notebot exited with error", zap.Error(err))
		logging.Sync()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	logging.Sync()
}

func setup() (config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return cfg, err
	}
	logging.InitLogger(cfg.LogDir, cfg.LogConsole)
	return cfg, nil
}

func serve(c *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := app.New(ctx, cfg)
	if err != nil {
		logging.ErrorLogger.Error("database connection error", zap.Error(err))
		return err
	}
	defer provider.Close()

	if !cfg.HTTPEnabled() && cfg.TelegramToken == "" {
		return errors.New("nothing to serve: set TELEGRAM_TOKEN and/or JWT_SECRET")
	}

	eg, groupCtx := errgroup.WithContext(ctx)

	if cfg.HTTPEnabled() {
		serveHTTP(groupCtx, eg, cfg, provider)
	} else {
		logging.AppLogger.Warn("JWT_SECRET not set, HTTP API disabled")
	}

	if cfg.TelegramToken == "" {
		logging.AppLogger.Warn("TELEGRAM_TOKEN not set, running HTTP API only")
	} else {
		b, err := bot.New(cfg.TelegramToken, provider.Notes, cfg.BotWorkers)
		if err != nil {
			stop()
			eg.Wait()
			return fmt.Errorf("telegram: %w", err)
		}
		eg.Go(func() error { return b.Run(groupCtx) })
	}

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.AppLogger.Info("server shutdown complete")
	return nil
}

func serveHTTP(ctx context.Context, eg *errgroup.Group, cfg config.Config, provider *app.Provider) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: routes.NewRouter(cfg, provider.Notes, provider.Health),
	}
	eg.Go(func() error {
		logging.AppLogger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		logging.AppLogger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.ErrorLogger.Error("server shutdown error", zap.Error(err))
		}
		return nil
	})
}

func migrate(c *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()
	database, err := db.NewDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	database.Close()
	logging.AppLogger.Info("migration complete", zap.String("driver", cfg.DBDriver))
	fmt.Println("notes table is up to date")
	return nil
}

func issueToken(c *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	token, err := middlewares.IssueToken(cfg.JWTSecret, c.Int64("user"), c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
