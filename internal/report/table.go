package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JPC-AV/aspace-jpc-av/internal/fileutil"
)

// Table is a named grid of report cells.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Format is a report file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormats validates configured format names, dropping repeats.
func ParseFormats(names []string) ([]Format, error) {
	seen := map[Format]bool{}
	var formats []Format
	for _, name := range names {
		f := Format(strings.ToLower(strings.TrimSpace(name)))
		switch f {
		case FormatCSV, FormatJSON, FormatXLSX:
		case "":
			continue
		default:
			return nil, fmt.Errorf("unsupported report format %q", name)
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	return formats, nil
}

// WriteCSV writes a table to path atomically.
func WriteCSV(path string, table Table) error {
	return fileutil.WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(table.Header); err != nil {
			return err
		}
		if err := cw.WriteAll(table.Rows); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	})
}

// WriteJSON writes v as indented JSON to path atomically.
func WriteJSON(path string, v any) error {
	return fileutil.WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// WriteXLSX writes each table to its own worksheet.
func WriteXLSX(path string, tables ...Table) error {
	if len(tables) == 0 {
		return fmt.Errorf("xlsx report: no tables")
	}
	book := excelize.NewFile()
	defer book.Close()

	bold, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx report: style: %w", err)
	}

	for i, table := range tables {
		sheet := sheetName(table.Name, i)
		if i == 0 {
			if err := book.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("xlsx report: rename sheet: %w", err)
			}
		} else if _, err := book.NewSheet(sheet); err != nil {
			return fmt.Errorf("xlsx report: add sheet %s: %w", sheet, err)
		}
		if err := writeSheet(book, sheet, table, bold); err != nil {
			return fmt.Errorf("xlsx report: sheet %s: %w", sheet, err)
		}
	}

	return fileutil.WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		return book.Write(w)
	})
}

func writeSheet(book *excelize.File, sheet string, table Table, headerStyle int) error {
	header := make([]any, len(table.Header))
	for i, h := range table.Header {
		header[i] = h
	}
	if err := book.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if len(table.Header) > 0 {
		last, err := excelize.CoordinatesToCellName(len(table.Header), 1)
		if err != nil {
			return err
		}
		if err := book.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return err
		}
	}
	for r, row := range table.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}
	return book.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// sheetName keeps names within the 31 character worksheet limit.
func sheetName(name string, index int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Sheet%d", index+1)
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
