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
)

var inspectHistoryFlag bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print a summary of a CSX container or CCO archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectHistoryFlag, "history", false, "after the summary, also print recorded operations for this file's base hash")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch cotopha.DetectKind(data) {
	case cotopha.KindCSX:
		img, err := cotopha.ParseBase(data)
		if err != nil {
			return reportParseError("container", path, err)
		}
		color.Cyan("%s: CSX base container", path)
		fmt.Printf("  base hash:  %x\n", img.BaseHash)
		fmt.Printf("  functions:  %d\n", len(img.Functions))
		fmt.Printf("  global:     %d bytes\n", len(img.Global))
		fmt.Printf("  data:       %d bytes\n", len(img.Data))
		if inspectHistoryFlag {
			return printHistory(history.HashHex(img.BaseHash[:]))
		}
	case cotopha.KindCCO:
		arch, err := compact.Parse(data)
		if err != nil {
			return reportParseError("archive", path, err)
		}
		color.Cyan("%s: CCO compact archive", path)
		fmt.Printf("  base hash:  %x\n", arch.BaseHash)
		fmt.Printf("  entries:    %d\n", len(arch.Entries))
		if inspectHistoryFlag {
			return printHistory(history.HashHex(arch.BaseHash[:]))
		}
	default:
		return fmt.Errorf("%s: unrecognized container magic", path)
	}

	return nil
}

func printHistory(baseHash string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Search(history.SearchParams{BaseHash: baseHash})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("  no recorded operations for this base hash")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("  [%s] %s -> %s (%d -> %d bytes)\n", e.Kind, e.ModFiles, e.OutputPath, e.InputBytes, e.OutputBytes)
	}
	return nil
}
