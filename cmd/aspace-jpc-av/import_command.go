package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JPC-AV/aspace-jpc-av/internal/csvsource"
	"github.com/JPC-AV/aspace-jpc-av/internal/history"
	"github.com/JPC-AV/aspace-jpc-av/internal/importer"
	"github.com/JPC-AV/aspace-jpc-av/internal/logging"
	"github.com/JPC-AV/aspace-jpc-av/internal/mapping"
	"github.com/JPC-AV/aspace-jpc-av/internal/report"
	"github.com/JPC-AV/aspace-jpc-av/internal/vocab"
)

type importFlags struct {
	duplicates string
	dryRun     bool
	batchSize  int
	noReports  bool
	quiet      bool
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import <csv>",
		Short: "Create or update archival objects from a catalog CSV",
		Long: "Create or update archival objects from a catalog CSV.\n\n" +
			"Rows whose CATALOG_NUMBER already exists in the resource are skipped,\n" +
			"updated, or abort the run depending on --duplicates. The command exits\n" +
			"with status 2 when any row failed or the run was aborted.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, ctx, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.duplicates, "duplicates", "d", "", "Duplicate handling: skip, update, or fail (default from import.duplicate_mode)")
	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "Search and compare only; write nothing to ArchivesSpace")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "Rows between pauses (default from import.batch_size)")
	cmd.Flags().BoolVar(&flags.noReports, "no-reports", false, "Do not write report files")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Print only the final summary")
	return cmd
}

func runImport(cmd *cobra.Command, ctx *commandContext, path string, flags importFlags) error {
	cfg := ctx.configValue()

	modeName := cfg.Import.DuplicateMode
	if cmd.Flags().Changed("duplicates") {
		modeName = flags.duplicates
	}
	mode, err := importer.ParseMode(modeName)
	if err != nil {
		return err
	}
	batchSize := cfg.Import.BatchSize
	if flags.batchSize > 0 {
		batchSize = flags.batchSize
	}
	if err := cfg.ValidateRepository(); err != nil {
		return err
	}

	started := time.Now()
	logger, logPath, err := ctx.runLogger(cmd, history.KindImport, started)
	if err != nil {
		return err
	}

	src, err := csvsource.Open(path, cfg.Import.CSVEncoding)
	if err != nil {
		return err
	}
	defer src.Close()

	unlock, err := ctx.lock(flags.dryRun)
	if err != nil {
		return err
	}
	defer unlock()

	runCtx := cmd.Context()
	client, logout, err := ctx.connect(runCtx, logger)
	if err != nil {
		return err
	}
	defer logout()

	var extents *vocab.Checker
	if cfg.Import.ValidateExtentTypes {
		extents = vocab.Load(runCtx, client, cfg.Import.ExtentTypeEnumeration)
		if !extents.Live() {
			logging.WarnWithContext(logger, "extent types loaded from fallback list", "extent_fallback",
				logging.String("enumeration", extents.Name()),
				logging.Int("terms", extents.Len()),
				logging.String(logging.FieldImpact, "Original Format values are checked against the configured list"),
			)
		}
	}

	mapper := mapping.New(mapping.OptionsFrom(cfg), logger)
	processor := importer.NewProcessor(client, mapper, importer.Options{
		Mode:    mode,
		DryRun:  flags.dryRun,
		Extents: extents,
	}, logger)

	runID := uuid.NewString()
	var observers []importer.Observer
	if !flags.quiet {
		observers = append(observers, newConsoleObserver(cmd.OutOrStdout()))
	}
	if store := ctx.openHistory(logger); store != nil {
		defer store.Close()
		recorder, err := history.NewRecorder(runCtx, store, history.Run{
			ID:        runID,
			Kind:      history.KindImport,
			Source:    path,
			Mode:      string(mode),
			DryRun:    flags.dryRun,
			StartedAt: started,
		}, logger)
		if err != nil {
			logging.WarnWithContext(logger, "history run not recorded", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "this run is not recorded in history"),
			)
		} else {
			observers = append(observers, recorder)
		}
	}

	driver := importer.NewDriver(processor, importer.DriverOptions{
		RunID:            runID,
		Source:           path,
		Mode:             mode,
		DryRun:           flags.dryRun,
		BatchSize:        batchSize,
		Pause:            cfg.BatchPause(),
		ProgressInterval: cfg.Import.ProgressInterval,
		Observers:        observers,
	}, logger)

	summary, results, runErr := driver.Run(runCtx, src)

	var written []string
	if formats := ctx.reportFormats(flags.noReports); len(formats) > 0 {
		paths, err := report.WriteImport(cfg.Paths.ReportDir, formats, summary, results)
		if err != nil {
			logging.WarnWithContext(logger, "report not written", "report_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.report_dir permissions"),
			)
		}
		written = paths
	}
	if target := strings.TrimSpace(cfg.Reports.MetricsTextfile); target != "" {
		if err := report.WriteMetrics(target, summary); err != nil {
			logging.WarnWithContext(logger, "metrics textfile not written", "metrics_write_failed",
				logging.Error(err),
				logging.String("path", target),
			)
		}
	}

	printImportSummary(cmd, summary, written, logPath)

	if runErr != nil {
		return runErr
	}
	if code := summary.ExitCode(); code != 0 {
		msg := fmt.Sprintf("%d row(s) failed", summary.Count(importer.StatusError))
		if summary.Aborted {
			msg = "run aborted: " + summary.AbortReason
		}
		return &exitError{code: code, msg: msg}
	}
	return nil
}

func printImportSummary(cmd *cobra.Command, summary importer.Summary, reports []string, logPath string) {
	out := cmd.OutOrStdout()
	title := "Import summary"
	if summary.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintf(out, "\n%s  run %s  mode %s\n", title, summary.RunID, summary.Mode)

	rows := make([][]string, 0, len(importer.Statuses())+1)
	for _, st := range importer.Statuses() {
		rows = append(rows, []string{string(st), strconv.Itoa(summary.Count(st))})
	}
	rows = append(rows, []string{"total", strconv.Itoa(summary.TotalRows)})
	fmt.Fprintln(out, renderCounts("Status", rows))

	if summary.Aborted {
		fmt.Fprintf(out, "Aborted: %s\n", summary.AbortReason)
	}
	fmt.Fprintf(out, "Elapsed: %s\n", summary.Duration().Round(time.Millisecond))
	for _, path := range reports {
		fmt.Fprintf(out, "Report: %s\n", path)
	}
	if logPath != "" {
		fmt.Fprintf(out, "Log: %s\n", logPath)
	}
}
