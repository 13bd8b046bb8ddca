package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JPC-AV/aspace-jpc-av/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var catalog string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded import and stamping runs",
		Long: "Show recorded import and stamping runs.\n\n" +
			"Without arguments the most recent runs are listed. A run id, or any\n" +
			"unique prefix of one, shows that run's per-row results. --catalog shows\n" +
			"every recorded outcome for one catalog number.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(ctx.configValue().HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()
			runCtx := cmd.Context()

			switch {
			case strings.TrimSpace(catalog) != "":
				rows, err := store.CatalogHistory(runCtx, strings.TrimSpace(catalog))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, rows)
				}
				if len(rows) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No history for %s\n", catalog)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRowRecords(rows, true))
				return nil

			case len(args) == 1:
				run, err := store.GetRun(runCtx, args[0])
				if errors.Is(err, history.ErrRunNotFound) || errors.Is(err, history.ErrAmbiguousRun) {
					return fmt.Errorf("%w: %s", err, args[0])
				}
				if err != nil {
					return err
				}
				rows, err := store.RowResults(runCtx, run.ID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, struct {
						Run  history.Run         `json:"run"`
						Rows []history.RowRecord `json:"rows"`
					}{run, rows})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderRuns([]history.Run{run}))
				if run.AbortReason != "" {
					fmt.Fprintf(out, "Aborted: %s\n", run.AbortReason)
				}
				if len(rows) > 0 {
					fmt.Fprintln(out, renderRowRecords(rows, false))
				}
				return nil

			default:
				runs, err := store.ListRuns(runCtx, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRuns(runs))
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&catalog, "catalog", "", "Show every recorded outcome for a catalog number")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a number of days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if !cmd.Flags().Changed("days") {
				days = cfg.Logging.RetentionDays
			}
			if days <= 0 {
				return errors.New("--days must be positive")
			}
			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()
			removed, err := store.Prune(cmd.Context(), time.Now().AddDate(0, 0, -days))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s) older than %d day(s)\n", removed, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Age in days (default from logging.retention_days)")
	return cmd
}

func renderRuns(runs []history.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		state := "finished"
		switch {
		case !run.Finished():
			state = "incomplete"
		case run.Aborted:
			state = "aborted"
		}
		if run.DryRun {
			state += " (dry run)"
		}
		rows = append(rows, []string{
			shortID(run.ID),
			run.Kind,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Mode,
			strconv.Itoa(run.TotalRows),
			formatCounts(run.Counts),
			state,
			run.Source,
		})
	}
	return renderTable(
		[]string{"Run", "Kind", "Started", "Mode", "Rows", "Outcomes", "State", "Source"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	)
}

func renderRowRecords(rows []history.RowRecord, withRun bool) string {
	headers := []string{"Row", "Catalog Number", "Status", "Message", "URI"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft}
	if withRun {
		headers = append([]string{"Run", "Recorded"}, headers...)
		aligns = append([]columnAlignment{alignLeft, alignLeft}, aligns...)
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		row := []string{strconv.Itoa(r.RowNumber), r.CatalogNumber, r.Status, r.Message, r.URI}
		if withRun {
			row = append([]string{shortID(r.RunID), r.RecordedAt.Local().Format("2006-01-02 15:04")}, row...)
		}
		out = append(out, row)
	}
	return renderTable(headers, out, aligns)
}

// formatCounts lists non-zero outcomes in a stable order.
func formatCounts(counts map[string]int) string {
	order := []string{"created", "updated", "stamped", "unchanged", "skipped", "error"}
	var parts []string
	for _, status := range order {
		if n := counts[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", status, n))
		}
	}
	return strings.Join(parts, ", ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
