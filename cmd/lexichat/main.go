// Package main is the entry point for the lexichat terminal client.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"lexichat/config"
	"lexichat/internal/chat"
	"lexichat/internal/deepseek"
	"lexichat/internal/history"
	"lexichat/internal/logging"
	"lexichat/internal/observability"
	"lexichat/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath  string
	model       string
	temperature float64
	task        string
	mode        string
	session     string
	balance     bool
	version     bool
}

func parseFlags(args []string) (*flags, *pflag.FlagSet, error) {
	var f flags
	fs := pflag.NewFlagSet("lexichat", pflag.ContinueOnError)
	fs.StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file (default: ./config.yaml if present)")
	fs.StringVarP(&f.model, "model", "m", "", "model identifier (default: deepseek-chat)")
	fs.Float64VarP(&f.temperature, "temperature", "t", 0, "sampling temperature in [0, 2]")
	fs.StringVar(&f.task, "task", "", "temperature preset: coding, data-cleaning, conversation, translation, creative (or 1-4)")
	fs.StringVar(&f.mode, "mode", string(chat.ModeConcurrent), "streaming mode: concurrent or sequential")
	fs.StringVarP(&f.session, "session", "s", "", "session ID to resume (default: a new random session)")
	fs.BoolVar(&f.balance, "balance", false, "print the account balance and exit")
	fs.BoolVar(&f.version, "version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	if fs.NArg() > 0 {
		return nil, fs, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return &f, fs, nil
}

// applyFlags lets explicitly set flags win over the loaded configuration.
func applyFlags(cfg *config.Config, f *flags, fs *pflag.FlagSet) error {
	if fs.Changed("model") {
		cfg.Client.Model = f.model
	}
	if fs.Changed("task") {
		cfg.Client.Task = f.task
		if err := cfg.ApplyTask(); err != nil {
			return err
		}
	}
	// An explicit temperature beats any preset.
	if fs.Changed("temperature") {
		cfg.Client.Temperature = f.temperature
	}
	if fs.Changed("session") {
		cfg.History.SessionID = f.session
	}
	return cfg.Validate()
}

func run() error {
	f, fs, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if f.version {
		fmt.Println(version.Info())
		return nil
	}

	mode, err := chat.ParseMode(f.mode)
	if err != nil {
		return err
	}

	result, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := result.Config
	if err := applyFlags(cfg, f, fs); err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	slog.Debug("starting lexichat",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
		"config_file", result.Path,
	)

	// SIGTERM ends the process; SIGINT is handled by the REPL.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics, err = observability.NewPrometheusHooks(prometheus.NewRegistry())
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		shutdown := serveMetrics(cfg.Metrics.Address, metrics)
		defer shutdown()
	}

	timeouts := cfg.HTTP.Timeouts()
	client, err := deepseek.New(deepseek.Config{
		APIKey:          cfg.Client.APIKey,
		Endpoint:        cfg.Client.Endpoint,
		BalanceEndpoint: cfg.Client.BalanceEndpoint,
		Timeouts:        &timeouts,
		BalanceTimeout:  cfg.HTTP.BalanceTimeoutDuration(),
	},
		deepseek.WithHooks(metrics.Hooks()),
		deepseek.WithFrameObserver(metrics.ObserveFrame),
		deepseek.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("%w (set DEEPSEEK_API_KEY or client.api_key)", err)
	}

	balance := client.GetBalance(ctx)
	if f.balance {
		if !balance.OK() {
			return balance.Err
		}
		return printJSON(balance.Fields)
	}
	if balance.OK() {
		slog.Info("account balance", "balance", balance.Fields)
	}

	historyResult, err := history.New(ctx, cfg.History)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() {
		if err := historyResult.Close(); err != nil {
			slog.Warn("failed to close history", "error", err)
		}
	}()

	session, err := chat.NewSession(client, historyResult.Store, chat.SessionConfig{
		ID:           cfg.History.SessionID,
		Model:        cfg.Client.Model,
		Temperature:  cfg.Client.Temperature,
		Mode:         mode,
		SystemPrompt: cfg.Client.SystemPrompt,
	}, logger)
	if err != nil {
		return err
	}

	repl := chat.NewREPL(session, os.Stdout, chat.REPLOptions{
		Interactive: logging.IsTerminal(os.Stdin),
		Interrupts:  interrupts(ctx),
		Logger:      logger,
	})
	return repl.Run(ctx, os.Stdin)
}

// interrupts converts SIGINT into REPL interrupts.
func interrupts(ctx context.Context) <-chan struct{} {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	out := make(chan struct{})
	go func() {
		defer signal.Stop(sig)
		for {
			select {
			case <-sig:
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// serveMetrics exposes /metrics in the background and returns a shutdown func.
func serveMetrics(addr string, metrics *observability.Metrics) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("prometheus metrics enabled", "address", addr, "endpoint", "/metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("metrics server shutdown error", "error", err)
		}
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
