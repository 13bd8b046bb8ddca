package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JPC-AV/aspace-jpc-av/internal/csvsource"
	"github.com/JPC-AV/aspace-jpc-av/internal/mapping"
	"github.com/JPC-AV/aspace-jpc-av/internal/vocab"
)

// formatUsage is one distinct Original Format value and its verdict.
type formatUsage struct {
	Value       string   `json:"value"`
	Rows        int      `json:"rows"`
	Valid       bool     `json:"valid"`
	CaseMatch   string   `json:"case_match,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func newExtentTypesCommand(ctx *commandContext) *cobra.Command {
	var csvPath string
	var list bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "extent-types",
		Short: "Show the extent type vocabulary and check CSV formats against it",
		Long: "Show the extent type vocabulary and check CSV formats against it.\n\n" +
			"With --csv, every distinct Original Format value is compared to the\n" +
			"vocabulary and close matches are suggested. Exits with status 2 when\n" +
			"a value would be rejected on import.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			client, logout, err := ctx.connect(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer logout()

			checker := vocab.Load(cmd.Context(), client, cfg.Import.ExtentTypeEnumeration)

			var usage []formatUsage
			if strings.TrimSpace(csvPath) != "" {
				usage, err = checkFormats(csvPath, cfg.Import.CSVEncoding, checker)
				if err != nil {
					return err
				}
			}

			invalid := 0
			for _, u := range usage {
				if !u.Valid {
					invalid++
				}
			}

			if asJSON {
				payload := struct {
					Enumeration string        `json:"enumeration"`
					Live        bool          `json:"live"`
					Terms       []string      `json:"terms"`
					Formats     []formatUsage `json:"formats,omitempty"`
				}{checker.Name(), checker.Live(), checker.Terms(), usage}
				if err := writeJSON(cmd, payload); err != nil {
					return err
				}
			} else {
				printExtentTypes(cmd, checker, list || csvPath == "", usage)
			}

			if invalid > 0 {
				return &exitError{code: 2, msg: fmt.Sprintf("%d Original Format value(s) are not extent types", invalid)}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Catalog CSV whose Original Format values are checked")
	cmd.Flags().BoolVar(&list, "list", false, "List every term even when --csv is given")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

// checkFormats tallies Original Format values in file order.
func checkFormats(path, encodingName string, checker *vocab.Checker) ([]formatUsage, error) {
	src, err := csvsource.Open(path, encodingName)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	index := map[string]int{}
	var usage []formatUsage
	for {
		_, row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		value := strings.TrimSpace(row.Get(mapping.ColumnOriginalFormat))
		if value == "" {
			continue
		}
		if i, ok := index[value]; ok {
			usage[i].Rows++
			continue
		}
		u := formatUsage{Value: value, Rows: 1, Valid: checker.Contains(value)}
		if !u.Valid {
			if term, ok := checker.CaseMatch(value); ok {
				u.CaseMatch = term
			}
			u.Suggestions = checker.Suggest(value, 3)
		}
		index[value] = len(usage)
		usage = append(usage, u)
	}
	return usage, nil
}

func printExtentTypes(cmd *cobra.Command, checker *vocab.Checker, list bool, usage []formatUsage) {
	out := cmd.OutOrStdout()
	source := "ArchivesSpace"
	if !checker.Live() {
		source = "fallback list (repository vocabulary unavailable)"
	}
	fmt.Fprintf(out, "Extent types from %s: %d term(s) in %s\n", source, checker.Len(), checker.Name())

	if list {
		rows := make([][]string, 0, checker.Len())
		for i, term := range checker.Terms() {
			rows = append(rows, []string{strconv.Itoa(i + 1), term})
		}
		fmt.Fprintln(out, renderTable([]string{"#", "Term"}, rows, []columnAlignment{alignRight, alignLeft}))
	}

	if len(usage) == 0 {
		return
	}
	rows := make([][]string, 0, len(usage))
	for _, u := range usage {
		status := "ok"
		hint := ""
		switch {
		case u.Valid:
		case u.CaseMatch != "":
			status = "case mismatch"
			hint = "use " + strconv.Quote(u.CaseMatch)
		default:
			status = "invalid"
			if len(u.Suggestions) > 0 {
				hint = "did you mean " + strings.Join(u.Suggestions, ", ") + "?"
			}
		}
		rows = append(rows, []string{u.Value, strconv.Itoa(u.Rows), status, hint})
	}
	fmt.Fprintln(out, renderTable([]string{"Original Format", "Rows", "Status", "Suggestion"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft}))
}
