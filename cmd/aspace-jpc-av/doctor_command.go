package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JPC-AV/aspace-jpc-av/internal/aspace"
	"github.com/JPC-AV/aspace-jpc-av/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, media tools, and the ArchivesSpace connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			var leading []preflight.Result
			var repo preflight.Repository
			if !offline {
				if err := cfg.ValidateRepository(); err != nil {
					leading = append(leading, preflight.Result{Name: "Repository settings", Detail: err.Error()})
				} else {
					client := aspace.New(aspace.ConfigFrom(cfg), aspace.WithLogger(logger))
					defer func() { _ = client.Logout(context.WithoutCancel(cmd.Context())) }()
					repo = client
				}
			}

			results := append(leading, preflight.RunAll(cmd.Context(), cfg, repo)...)

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "ok"
				switch {
				case r.Passed:
				case r.Optional:
					status = "warn"
				default:
					status = "fail"
				}
				if isTerminal(cmd.OutOrStdout()) {
					status = statusColor(status) + status + ansiReset
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))

			if preflight.Failed(results) {
				return &exitError{code: 1, msg: "one or more required checks failed"}
			}
			fmt.Fprintln(out, "All required checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the repository checks")
	return cmd
}
