package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/ostafen/sigcrawl/internal/inventory"
	"github.com/ostafen/sigcrawl/internal/logger"
	"github.com/ostafen/sigcrawl/pkg/util/format"
	"github.com/spf13/cobra"
)

func DefineInventoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory <quarantine_dir>",
		Short: "Write or verify a DFXML report of the quarantined files",
		Long: `The 'inventory' command lists every file held in a quarantine directory together with its
size, mode, modification time and SHA-256 digest, in DFXML format.
With --verify, a previously written report is compared against the current directory content instead.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunInventory,
	}

	cmd.Flags().StringP("output", "o", "", "path of the report file (stdout if empty)")
	cmd.Flags().String("verify", "", "path of a report to check the directory against")
	return cmd
}

func RunInventory(cmd *cobra.Command, args []string) error {
	dir := args[0]

	if report, _ := cmd.Flags().GetString("verify"); report != "" {
		return runVerify(cmd, dir, report)
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		_, err := inventory.Write(cmd.OutOrStdout(), dir)
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	summary, err := inventory.Write(w, dir)
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	logger.NewConsole(cmd.OutOrStdout()).Infof("%d files (%s) written to %s",
		summary.Files, format.FormatBytes(summary.TotalSize), output)
	return f.Close()
}

func runVerify(cmd *cobra.Command, dir, report string) error {
	f, err := os.Open(report)
	if err != nil {
		return err
	}
	defer f.Close()

	mismatches, err := inventory.Verify(dir, bufio.NewReader(f))
	if err != nil {
		return err
	}
	return printMismatches(cmd.OutOrStdout(), mismatches)
}

func printMismatches(w io.Writer, mismatches []inventory.Mismatch) error {
	console := logger.NewConsole(w)
	if len(mismatches) == 0 {
		console.Infof("quarantine directory matches the report")
		return nil
	}

	for _, m := range mismatches {
		console.Warnf("%s", m)
	}
	return fmt.Errorf("%d differences found", len(mismatches))
}
