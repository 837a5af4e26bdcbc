package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dotandev/cotopha-patcher/internal/config"
	"github.com/dotandev/cotopha-patcher/internal/cotopha"
	"github.com/dotandev/cotopha-patcher/internal/cotopha/compact"
	"github.com/dotandev/cotopha-patcher/internal/history"
	"github.com/dotandev/cotopha-patcher/internal/logger"
)

var compactOutputFlag string

var compactCmd = &cobra.Command{
	Use:   "compact <base.csx> <mod.csx>",
	Short: "Build a CCO compact delta archive of a mod relative to a base",
	Long: `Parse a base CSX container and a single CSX mod overlay, diff the mod's
global/data blobs and every function against the base, and write a CCO
archive holding only what changed.

Example:
  cotopha compact base.csx mod.csx -o patch.cco`,
	Args: cobra.ExactArgs(2),
	RunE: runCompact,
}

func init() {
	compactCmd.Flags().StringVarP(&compactOutputFlag, "output", "o", "", "path to write the CCO archive (required)")
	compactCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(compactCmd)
}

func runCompact(cmd *cobra.Command, args []string) error {
	basePath, modPath := args[0], args[1]

	baseData, err := os.ReadFile(basePath)
	if err != nil {
		return fmt.Errorf("failed to read base %s: %w", basePath, err)
	}
	base, err := cotopha.ParseBase(baseData)
	if err != nil {
		return reportParseError("base", basePath, err)
	}

	modData, err := os.ReadFile(modPath)
	if err != nil {
		return fmt.Errorf("failed to read mod %s: %w", modPath, err)
	}
	mod, err := cotopha.ParseMod(base, modData)
	if err != nil {
		return reportParseError("mod", modPath, err)
	}

	arch, err := compact.Compress(base, mod)
	if err != nil {
		return fmt.Errorf("failed to build compact archive: %w", err)
	}

	out := arch.Rebuild()
	if err := os.WriteFile(compactOutputFlag, out, 0o644); err != nil {
		return fmt.Errorf("failed to write compact archive: %w", err)
	}
	color.Green("wrote compact archive to %s (%d bytes, %d entries)", compactOutputFlag, len(out), len(arch.Entries))
	logger.Logger.Info("wrote compact archive", "path", compactOutputFlag, "entries", len(arch.Entries))

	cfg, cfgErr := config.Load()
	if cfgErr == nil {
		if store, err := history.Open(cfg.HistoryPath); err == nil {
			defer store.Close()
			_ = store.Record(&history.Entry{
				BaseHash:    history.HashHex(base.BaseHash[:]),
				ModFiles:    []string{modPath},
				OutputPath:  compactOutputFlag,
				Kind:        "compact",
				InputBytes:  int64(len(modData)),
				OutputBytes: int64(len(out)),
			})
		}
	}

	return nil
}
