package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sportsfeed/internal/config"
)

// app carries what every command needs once the config has been read.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func main() {
	a := &app{logger: setupLogger("info")}

	root := &cobra.Command{
		Use:           "sportsfeed",
		Short:         "sportsfeed - hockey news and highlights to Bluesky",
		Long:          "Scrapes NHL.com news and YouTube highlights into PostgreSQL, captions them and posts them to Bluesky.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "config.yaml", "path to config file")

	root.AddCommand(
		scrapeArticlesCmd(a),
		scrapeVideosCmd(a),
		publishCmd(a),
		migrateCmd(a),
		runCmd(a),
		workerCmd(a),
		enqueueCmd(a),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		a.logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := root.ExecuteContext(ctx); err != nil {
		a.logger.Error("command failed", "command", commandName(root), "error", err)
		cancel()
		os.Exit(1)
	}
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = setupLogger(cfg.LogLevel)
	return nil
}

func commandName(root *cobra.Command) string {
	cmd, _, err := root.Find(os.Args[1:])
	if err != nil || cmd == nil {
		return root.Name()
	}
	return cmd.Name()
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
