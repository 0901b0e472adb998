package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jeffreymoya/photoeditor-sub006/internal/capability"
	"github.com/jeffreymoya/photoeditor-sub006/internal/config"
	"github.com/jeffreymoya/photoeditor-sub006/internal/features/camera"
	"github.com/jeffreymoya/photoeditor-sub006/internal/store"
	"github.com/jeffreymoya/photoeditor-sub006/internal/ui"
	"github.com/jeffreymoya/photoeditor-sub006/pkg/events"
)

var (
	// Version is set at build time
	Version = "dev"

	configPath  string
	workDir     string
	debugMode   bool
	showVersion bool

	previewMode  string
	previewLabel string

	// Set by the root command before any subcommand runs
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "photoeditor",
	Short: "Camera overlay preview and per-package validation tooling",
	Long: `photoeditor hosts the camera overlay in a terminal and runs the
validation pipeline (lint, static analysis, tests, coverage) that produces
the dated reports under docs/validation.

Configuration is read from .photoeditor.toml files in the working directory
and its parents, the nearest file winning per key.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Fprintf(cmd.OutOrStdout(), "photoeditor version %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the camera overlay in the terminal",
	Long: `Mounts the camera overlay under the session store and probes the
configured device directory for a camera.

Keys: enter/space capture, g toggle grid, f cycle flash, q quit.`,
	Args: cobra.NoArgs,
	RunE: runPreview,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, f := range cfg.Files {
			fmt.Fprintf(cmd.OutOrStdout(), "# from %s\n", f)
		}
		return cfg.Encode(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version information")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (skips the directory search)")
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "d", ".", "Working directory")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	previewCmd.Flags().StringVar(&previewMode, "mode", "", "Capture mode shown by the overlay (default: session mode)")
	previewCmd.Flags().StringVar(&previewLabel, "label", "", "Label shown above the overlay")

	rootCmd.AddCommand(previewCmd, configCmd, qaCmd)
}

func main() {
	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger for every command.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	logger, err = newLogger(debugMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.LoadFrom(workDir)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Debug("config loaded", zap.Strings("files", cfg.Files))
	return nil
}

// newLogger logs everything in debug mode and only warnings otherwise, since
// the preview owns the terminal.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return zc.Build()
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx, stop := notifyContext(cmd.Context())
	defer stop()

	bus := events.NewEventBusWithConfig(events.WorkerPoolConfig{
		WorkerCount: 1,
		BufferSize:  64,
		Logger:      logger,
	})
	defer bus.Shutdown()

	s := store.New(store.DefaultState(), bus)
	unsubscribe := bus.Subscribe(events.StoreChanged, func(e events.Event) {
		logger.Debug("store changed", zap.Any("action", e.Data["action"]))
	})
	defer unsubscribe()

	ctx = capability.WithProbe(ctx, capability.DeviceProbe(cfg.GetDeviceDir(), cfg.GetDevicePattern()))
	ctx = ui.WithLogger(ctx, logger)

	el := store.Provider(s, camera.Element(camera.Props{Mode: previewMode, Label: previewLabel}))
	p, err := ui.NewProgram(ctx, el,
		[]ui.Option{ui.WithRootLogger(logger), ui.WithQuitKeys("q", "ctrl+c")},
		tea.WithAltScreen())
	if err != nil {
		return err
	}

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}

	st := s.GetState()
	fmt.Fprintf(cmd.OutOrStdout(), "captures: %d\n", st.Session.Captures)
	return nil
}

// notifyContext cancels on any of shutdownSignals.
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, shutdownSignals...)
}
