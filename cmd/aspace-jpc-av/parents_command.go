package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JPC-AV/aspace-jpc-av/internal/csvsource"
	"github.com/JPC-AV/aspace-jpc-av/internal/report"
)

// parentReportHeader matches the columns archivists already filter on.
var parentReportHeader = []string{"Parent Ref ID", "Exists in ArchivesSpace", "Status"}

func newParentsCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "parents <csv>",
		Short: "Check that every parent ref_id in a CSV exists",
		Long: "Check that every parent ref_id in a CSV exists.\n\n" +
			"Writes a CSV report (default <report_dir>/parent_check_<timestamp>.csv)\n" +
			"and exits with status 2 when any parent is missing or could not be checked.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			src, err := csvsource.Open(args[0], cfg.Import.CSVEncoding)
			if err != nil {
				return err
			}
			defer src.Close()
			result, err := csvsource.Validate(src)
			if err != nil {
				return err
			}
			if len(result.ParentRefs()) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No parent ref_ids found")
				return nil
			}

			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			client, logout, err := ctx.connect(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer logout()

			parents := csvsource.CheckParents(cmd.Context(), client, result, logger)

			target := strings.TrimSpace(output)
			if target == "" {
				target = filepath.Join(cfg.Paths.ReportDir, "parent_check_"+time.Now().Format(report.TimestampLayout)+".csv")
			}
			rows := make([][]string, 0, len(parents))
			for _, p := range parents {
				rows = append(rows, []string{p.RefID, yesNo(p.Exists), p.Status()})
			}
			if err := report.WriteCSV(target, report.Table{Name: "Parents", Header: parentReportHeader, Rows: rows}); err != nil {
				return fmt.Errorf("write parent report: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderParents(parents))
			missing := missingParents(parents)
			fmt.Fprintf(out, "%d of %d parent(s) found\n", len(parents)-missing, len(parents))
			fmt.Fprintf(out, "Report: %s\n", target)
			if missing > 0 {
				return &exitError{code: 2, msg: fmt.Sprintf("%d parent ref_id(s) missing or unchecked", missing)}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Report path")
	return cmd
}
