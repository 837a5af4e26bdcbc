package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dotandev/cotopha-patcher/internal/config"
	"github.com/dotandev/cotopha-patcher/internal/cotopha"
	"github.com/dotandev/cotopha-patcher/internal/cotopha/compact"
	"github.com/dotandev/cotopha-patcher/internal/history"
	"github.com/dotandev/cotopha-patcher/internal/logger"
	"github.com/dotandev/cotopha-patcher/internal/telemetry"
)

var (
	patchOutputFlag      string
	patchSaveCompactFlag string
)

var patchCmd = &cobra.Command{
	Use:   "patch <base.csx> <mod...>",
	Short: "Apply one or more mods onto a base CSX container",
	Long: `Parse a base CSX container and one or more mod files (CSX overlays or
CCO compact archives, auto-detected by magic), concatenate the mods
together, apply the result onto the base, and write the patched container.

Example:
  cotopha patch base.csx mod1.csx mod2.cco -o patched.csx`,
	Args: cobra.MinimumNArgs(2),
	RunE: runPatch,
}

func init() {
	patchCmd.Flags().StringVarP(&patchOutputFlag, "output", "o", "", "path to write the patched CSX container (required)")
	patchCmd.Flags().StringVar(&patchSaveCompactFlag, "save-compact", "", "also write a CCO compact archive of the merged mods to this path")
	patchCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(patchCmd)
}

func runPatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	basePath, modPaths := args[0], args[1:]

	baseData, err := os.ReadFile(basePath)
	if err != nil {
		return fmt.Errorf("failed to read base %s: %w", basePath, err)
	}

	_, span := telemetry.GetTracer().Start(ctx, "cotopha.patch")
	defer span.End()

	base, err := cotopha.ParseBase(baseData)
	if err != nil {
		return reportParseError("base", basePath, err)
	}
	logger.Logger.Info("parsed base", "path", basePath, "functions", len(base.Functions))

	mods := make([]*cotopha.Image, 0, len(modPaths))
	for _, p := range modPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read mod %s: %w", p, err)
		}

		var mod *cotopha.Image
		switch cotopha.DetectKind(data) {
		case cotopha.KindCSX:
			mod, err = cotopha.ParseMod(base, data)
		case cotopha.KindCCO:
			var arch *compact.Archive
			arch, err = compact.Parse(data)
			if err == nil {
				mod, err = arch.Decompress(base)
			}
		default:
			return fmt.Errorf("%s: unrecognized container magic", p)
		}
		if err != nil {
			return reportParseError("mod", p, err)
		}
		logger.Logger.Info("parsed mod", "path", p, "functions", len(mod.Functions))
		mods = append(mods, mod)
	}

	merged, err := cotopha.ConcatMods(mods)
	if err != nil {
		return fmt.Errorf("failed to merge mods: %w", err)
	}

	if patchSaveCompactFlag != "" {
		arch, err := compact.Compress(base, merged)
		if err != nil {
			return fmt.Errorf("failed to build compact archive: %w", err)
		}
		if err := os.WriteFile(patchSaveCompactFlag, arch.Rebuild(), 0o644); err != nil {
			return fmt.Errorf("failed to write compact archive: %w", err)
		}
		color.Green("wrote compact archive to %s", patchSaveCompactFlag)
	}

	if err := base.ApplyAllMods(merged); err != nil {
		return fmt.Errorf("failed to apply mods: %w", err)
	}

	out := base.Rebuild()
	if err := os.WriteFile(patchOutputFlag, out, 0o644); err != nil {
		return fmt.Errorf("failed to write patched container: %w", err)
	}
	color.Green("wrote patched container to %s (%d bytes)", patchOutputFlag, len(out))

	cfg, cfgErr := config.Load()
	if cfgErr == nil {
		if store, err := history.Open(cfg.HistoryPath); err == nil {
			defer store.Close()
			_ = store.Record(&history.Entry{
				BaseHash:    history.HashHex(base.BaseHash[:]),
				ModFiles:    modPaths,
				OutputPath:  patchOutputFlag,
				Kind:        "patch",
				InputBytes:  int64(len(baseData)),
				OutputBytes: int64(len(out)),
			})
		}
	}

	return nil
}

// reportParseError surfaces a byte offset for the original CLI's
// "where did this fail" diagnostic when the underlying error carries one.
func reportParseError(kind, path string, err error) error {
	var oe *cotopha.OffsetError
	if errors.As(err, &oe) {
		logger.Logger.Error("parse failed", "kind", kind, "path", path, "offset", oe.Offset, "error", oe.Err)
		return fmt.Errorf("failed to parse %s %s: %w", kind, path, err)
	}
	logger.Logger.Error("parse failed", "kind", kind, "path", path, "error", err)
	return fmt.Errorf("failed to parse %s %s: %w", kind, path, err)
}
