package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JPC-AV/aspace-jpc-av/internal/history"
	"github.com/JPC-AV/aspace-jpc-av/internal/logging"
	"github.com/JPC-AV/aspace-jpc-av/internal/media/ffprobe"
	"github.com/JPC-AV/aspace-jpc-av/internal/report"
	"github.com/JPC-AV/aspace-jpc-av/internal/stamping"
)

type stampFlags struct {
	dryRun      bool
	noUpdate    bool
	noRename    bool
	renameMedia bool
	noReports   bool
}

func newStampCommand(ctx *commandContext) *cobra.Command {
	var flags stampFlags

	cmd := &cobra.Command{
		Use:   "stamp <directory>",
		Short: "Record media durations and tag transfer directories with ref_ids",
		Long: "Record media durations and tag transfer directories with ref_ids.\n\n" +
			"Each subdirectory whose name contains stamp.directory_match is looked up\n" +
			"as an item by component id. The duration of its first media file is\n" +
			"written to the record's Duration note and the directory is renamed to\n" +
			"<name>_refid_<ref_id>. Directories already carrying _refid_ are skipped.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStamp(cmd, ctx, args[0], flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "Report intended changes without writing or renaming")
	cmd.Flags().BoolVar(&flags.noUpdate, "no-update", false, "Do not write durations to ArchivesSpace")
	cmd.Flags().BoolVar(&flags.noRename, "no-rename", false, "Do not rename directories")
	cmd.Flags().BoolVar(&flags.renameMedia, "rename-media", false, "Also rename the media file to include its ref_id (default from stamp.rename_media)")
	cmd.Flags().BoolVar(&flags.noReports, "no-reports", false, "Do not write report files")
	return cmd
}

func runStamp(cmd *cobra.Command, ctx *commandContext, root string, flags stampFlags) error {
	cfg := ctx.configValue()
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}
	if err := cfg.ValidateRepository(); err != nil {
		return err
	}

	started := time.Now()
	logger, logPath, err := ctx.runLogger(cmd, history.KindStamp, started)
	if err != nil {
		return err
	}

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

	renameMedia := cfg.Stamp.RenameMedia
	if cmd.Flags().Changed("rename-media") {
		renameMedia = flags.renameMedia
	}
	prober := ffprobe.Prober{
		Tool:      cfg.Stamp.DurationTool,
		FFprobe:   cfg.Stamp.FFprobeBinary,
		Mediainfo: cfg.Stamp.MediainfoBinary,
		Run:       ffprobe.ExecRunner,
	}
	stamper := stamping.New(client, prober, stamping.Options{
		RunID:          uuid.NewString(),
		DirectoryMatch: cfg.Stamp.DirectoryMatch,
		MediaExtension: cfg.Stamp.MediaExtension,
		DryRun:         flags.dryRun,
		NoUpdate:       flags.noUpdate,
		NoRename:       flags.noRename,
		RenameMedia:    renameMedia,
	}, logger)

	summary, results, runErr := stamper.Run(runCtx, abs)

	if store := ctx.openHistory(logger); store != nil {
		if err := history.RecordStamp(runCtx, store, summary, results); err != nil {
			logging.WarnWithContext(logger, "stamping run not recorded", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldRunID, summary.RunID),
				logging.String(logging.FieldImpact, "this run is missing from history"),
			)
		}
		_ = store.Close()
	}

	var written []string
	if formats := ctx.reportFormats(flags.noReports); len(formats) > 0 && len(results) > 0 {
		paths, err := report.WriteStamp(cfg.Paths.StampReportDir, formats, summary, results)
		if err != nil {
			logging.WarnWithContext(logger, "stamping report not written", "report_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.stamp_report_dir permissions"),
			)
		}
		written = paths
	}

	printStampSummary(cmd, summary, results, written, logPath)

	if runErr != nil {
		return runErr
	}
	if code := summary.ExitCode(); code != 0 {
		return &exitError{code: code, msg: fmt.Sprintf("%d directory(ies) failed", summary.Count(stamping.StatusError))}
	}
	return nil
}

func printStampSummary(cmd *cobra.Command, summary stamping.Summary, results []stamping.Result, reports []string, logPath string) {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintf(out, "No directories to stamp under %s\n", summary.Root)
		return
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		name := r.Directory
		if r.NewDirectory != "" {
			name = r.NewDirectory
		}
		rows = append(rows, []string{name, r.Duration, string(r.Status), r.Message})
	}
	fmt.Fprintln(out, renderTable([]string{"Directory", "Duration", "Status", "Message"}, rows, nil))

	title := "Stamping summary"
	if summary.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintf(out, "%s  run %s\n", title, summary.RunID)
	counts := make([][]string, 0, len(stamping.Statuses())+1)
	for _, st := range stamping.Statuses() {
		counts = append(counts, []string{string(st), strconv.Itoa(summary.Count(st))})
	}
	counts = append(counts, []string{"total", strconv.Itoa(summary.Total)})
	fmt.Fprintln(out, renderCounts("Status", counts))
	for _, path := range reports {
		fmt.Fprintf(out, "Report: %s\n", path)
	}
	if logPath != "" {
		fmt.Fprintf(out, "Log: %s\n", logPath)
	}
}
