package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"markestedt/guestagent/config"
	"markestedt/guestagent/systray"
)

type options struct {
	configPath string
	address    string
	logLevel   string
	noTray     bool
}

func main() {
	// Setup logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("Guest agent failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "guestagent",
		Short: "Bridge guest hotkeys, power events and clipboard to the VM host",
		Long: `guestagent runs inside the Windows guest. It connects to the host driver,
reports hotkey presses and suspend/resume transitions, and serves the host's
clipboard and hotkey requests.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to config.toml (default %APPDATA%\\guestagent\\config.toml)")
	cmd.Flags().StringVar(&opts.address, "address", "", "host address, overrides host.address")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error, overrides log.level")
	cmd.Flags().BoolVar(&opts.noTray, "no-tray", false, "do not show the system tray icon")

	return cmd
}

func loadConfig(opts options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFrom(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.address != "" {
		cfg.Host.Address = opts.address
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.noTray {
		cfg.Tray.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	slog.Info("Configuration loaded", "host", cfg.Host.Address, "tray", cfg.Tray.Enabled)

	agent := NewAgent(cfg)

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !cfg.Tray.Enabled {
		return runAgent(ctx, agent)
	}

	tray := systray.NewSystrayManager(nil)
	agent.OnStatus = tray.SetStatus

	done := make(chan error, 1)
	go func() {
		done <- runAgent(ctx, agent)
		tray.Stop()
	}()

	// The tray owns this goroutine until Quit is clicked or the agent stops
	tray.Run()
	cancel()
	return <-done
}

func runAgent(ctx context.Context, agent *Agent) error {
	if err := agent.Run(ctx); err != nil {
		return err
	}
	slog.Info("Guest agent stopped")
	return nil
}
