package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dotandev/cotopha-patcher/internal/config"
	"github.com/dotandev/cotopha-patcher/internal/logger"
	"github.com/dotandev/cotopha-patcher/internal/telemetry"
)

// Version is set by main via ldflags.
var Version = "dev"

var cfgFile string

var telemetryShutdown func()

var rootCmd = &cobra.Command{
	Use:   "cotopha",
	Short: "Patch and repackage Cotopha engine CSX script containers",
	Long: `cotopha inspects, patches, and repackages CSX script containers used by
the Cotopha interactive fiction runtime.

Key features:
  - Parse a base CSX container and one or more mod containers
  - Merge mods together and apply them onto a base image
  - Produce a patched CSX container or a compact CCO delta archive
  - Record every operation to a local audit log for later review

Examples:
  cotopha patch base.csx mod1.csx mod2.csx -o patched.csx
  cotopha patch base.csx mod.cso -o patched.csx --save-compact patch.cco
  cotopha compact base.csx mod.csx -o patch.cco`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		level := slogLevel(cfg.LogLevel)
		logger.Init(level, nil)

		shutdown, err := telemetry.Init(context.Background(), telemetry.Config{
			Enabled:     cfg.TelemetryEnabled,
			ExporterURL: cfg.TelemetryEndpoint,
			ServiceName: "cotopha",
		})
		if err != nil {
			return err
		}
		telemetryShutdown = shutdown
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if telemetryShutdown != nil {
			telemetryShutdown()
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it. Called
// once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "accepted but not read; configuration is always loaded from ~/.cotopha/config.json")
}

func slogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
