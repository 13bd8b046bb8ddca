package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JPC-AV/aspace-jpc-av/internal/csvsource"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var checkParents bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <csv>",
		Short: "Check a catalog CSV before importing it",
		Long: "Check a catalog CSV before importing it.\n\n" +
			"Reports missing or unexpected columns, duplicate catalog numbers,\n" +
			"unparsable dates, and rows without a parent ref_id. Exits with status 1\n" +
			"when errors are found; warnings do not fail the check.",
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

			var parents []csvsource.ParentStatus
			if checkParents {
				logger, err := ctx.logger(cmd)
				if err != nil {
					return err
				}
				client, logout, err := ctx.connect(cmd.Context(), logger)
				if err != nil {
					return err
				}
				defer logout()
				parents = csvsource.CheckParents(cmd.Context(), client, result, logger)
			}

			if asJSON {
				payload := struct {
					File    string                   `json:"file"`
					Valid   bool                     `json:"valid"`
					Report  csvsource.Report         `json:"report"`
					Parents []csvsource.ParentStatus `json:"parents,omitempty"`
				}{args[0], result.Valid() && missingParents(parents) == 0, result, parents}
				if err := writeJSON(cmd, payload); err != nil {
					return err
				}
			} else {
				printValidation(cmd, args[0], result, parents)
			}

			errCount := len(result.Errors()) + missingParents(parents)
			if errCount > 0 {
				return &exitError{code: 1, msg: fmt.Sprintf("validation failed with %d error(s)", errCount)}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkParents, "check-parents", false, "Also confirm each parent ref_id exists in ArchivesSpace")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func printValidation(cmd *cobra.Command, path string, result csvsource.Report, parents []csvsource.ParentStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validated %s\n", path)

	if len(result.Issues) > 0 {
		rows := make([][]string, 0, len(result.Issues))
		for _, issue := range result.Issues {
			row := ""
			if issue.Row > 0 {
				row = strconv.Itoa(issue.Row)
			}
			rows = append(rows, []string{string(issue.Severity), row, issue.Column, issue.Message})
		}
		fmt.Fprintln(out, renderTable([]string{"Severity", "Row", "Column", "Message"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft}))
	}

	stats := result.Stats
	fmt.Fprintln(out, renderCounts("Statistic", [][]string{
		{"rows", strconv.Itoa(stats.TotalRows)},
		{"unique catalog numbers", strconv.Itoa(stats.UniqueCatalog)},
		{"duplicate catalog numbers", strconv.Itoa(stats.DuplicateCatalog)},
		{"empty titles", strconv.Itoa(stats.EmptyTitles)},
		{"invalid dates", strconv.Itoa(stats.InvalidDates)},
		{"missing parent refs", strconv.Itoa(stats.MissingParentRefs)},
		{"unique parent refs", strconv.Itoa(stats.UniqueParentRefs)},
	}))

	if len(stats.Formats) > 0 {
		formats := make([]string, 0, len(stats.Formats))
		for name := range stats.Formats {
			formats = append(formats, name)
		}
		sort.Strings(formats)
		rows := make([][]string, 0, len(formats))
		for _, name := range formats {
			rows = append(rows, []string{name, strconv.Itoa(stats.Formats[name])})
		}
		fmt.Fprintln(out, renderCounts("Original Format", rows))
	}

	if len(parents) > 0 {
		fmt.Fprintln(out, renderParents(parents))
	}

	if result.Valid() && missingParents(parents) == 0 {
		fmt.Fprintf(out, "OK: %d row(s), %d warning(s)\n", stats.TotalRows, len(result.Warnings()))
	}
}

func renderParents(parents []csvsource.ParentStatus) string {
	rows := make([][]string, 0, len(parents))
	for _, p := range parents {
		detail := p.URI
		if p.Error != "" {
			detail = p.Error
		}
		rows = append(rows, []string{p.RefID, strconv.Itoa(p.Rows), p.Status(), detail})
	}
	return renderTable([]string{"Parent Ref ID", "Rows", "Status", "URI"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft})
}

func missingParents(parents []csvsource.ParentStatus) int {
	n := 0
	for _, p := range parents {
		if !p.Exists {
			n++
		}
	}
	return n
}
