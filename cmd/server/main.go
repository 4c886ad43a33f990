package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/shaun/chatsync/internal/api"
	"github.com/shaun/chatsync/internal/auth"
	"github.com/shaun/chatsync/internal/config"
	"github.com/shaun/chatsync/internal/github"
	"github.com/shaun/chatsync/internal/metrics"
	"github.com/shaun/chatsync/internal/publish"
)

const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:           "chatsync",
		Short:         "Publish chat exports to a GitHub repository",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadDotEnv(envFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.Flags().StringP("addr", "a", "", "listen address (default :8080, or :$PORT)")
	cmd.Flags().String("log-level", config.DefaultLogLevel, "log level (debug|info|warn|error)")
	cmd.Flags().Bool("metrics", true, "serve Prometheus metrics at /metrics")
	v.BindPFlag(config.KeyAddr, cmd.Flags().Lookup("addr"))
	v.BindPFlag(config.KeyLogLevel, cmd.Flags().Lookup("log-level"))
	v.BindPFlag(config.KeyMetricsEnabled, cmd.Flags().Lookup("metrics"))
	return cmd
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	}))
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.ValidateRemote(); err != nil {
		// keep serving; every upload answers 500 until the settings exist
		logger.Warn("GitHub publishing disabled", "error", err)
	}

	gh, err := github.NewClient(github.Options{
		Token:     cfg.Token,
		APIURL:    cfg.APIURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.HTTPTimeout,
	})
	if err != nil {
		return err
	}

	pubOpts := []publish.Option{publish.WithLogger(logger)}
	routerOpts := api.RouterOptions{
		Auth:         auth.Middleware(cfg.BasicAuthUser, cfg.BasicAuthPass, "anonymous"),
		MaxBodyBytes: cfg.MaxBodyBytes,
	}
	if cfg.MetricsEnabled {
		m := metrics.New()
		pubOpts = append(pubOpts, publish.WithRecorder(m))
		routerOpts.Metrics = m.Middleware
		routerOpts.MetricsHandler = m.Handler()
	}

	pub := publish.New(cfg.Publish(), gh, pubOpts...)
	handler := api.NewHandler(pub, api.WithPrecheck(cfg.ValidateRemote), api.WithLogger(logger))
	router := api.NewRouter(handler, routerOpts)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("chatsync listening", "addr", cfg.Addr, "owner", cfg.Owner, "repo", cfg.Repo, "branch", cfg.Branch)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("chatsync failed", "error", err)
		os.Exit(1)
	}
}
