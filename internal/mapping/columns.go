package mapping

import "strings"

// CSV column names.
const (
	ColumnCatalogNumber     = "CATALOG_NUMBER"
	ColumnParentRefID       = "ASpace Parent RefID"
	ColumnTitle             = "TITLE"
	ColumnCreationDate      = "Creation or Recording Date"
	ColumnEditDate          = "Edit Date"
	ColumnBroadcastDate     = "Broadcast Date"
	ColumnOriginalFormat    = "Original Format"
	ColumnDescription       = "DESCRIPTION"
	ColumnTransferNotes     = "_TRANSFER_NOTES"
	ColumnSeason            = "EJS Season"
	ColumnEpisode           = "EJS Episode"
	ColumnContentTRT        = "Content TRT"
	ColumnOriginalMediaType = "ORIGINAL_MEDIA_TYPE"
)

// DateColumn ties a CSV date column to the date label it is stored under.
type DateColumn struct {
	Column string
	Label  string
}

// DateColumns lists the date columns in output order.
func DateColumns() []DateColumn {
	return []DateColumn{
		{Column: ColumnCreationDate, Label: "creation"},
		{Column: ColumnEditDate, Label: "modified"},
		{Column: ColumnBroadcastDate, Label: "broadcast"},
	}
}

// RequiredColumns must be present in every input file.
func RequiredColumns() []string {
	return []string{ColumnCatalogNumber, ColumnParentRefID}
}

// OptionalColumns are read when present.
func OptionalColumns() []string {
	return []string{
		ColumnTitle,
		ColumnCreationDate,
		ColumnEditDate,
		ColumnBroadcastDate,
		ColumnOriginalFormat,
		ColumnDescription,
		ColumnTransferNotes,
		ColumnSeason,
		ColumnEpisode,
		ColumnContentTRT,
		ColumnOriginalMediaType,
	}
}

// MappedColumns are the optional columns that feed record fields.
func MappedColumns() []string {
	return []string{
		ColumnTitle,
		ColumnCreationDate,
		ColumnEditDate,
		ColumnBroadcastDate,
		ColumnOriginalFormat,
		ColumnDescription,
		ColumnTransferNotes,
	}
}

// KnownColumn reports whether name is a required or optional column.
func KnownColumn(name string) bool {
	for _, col := range RequiredColumns() {
		if col == name {
			return true
		}
	}
	for _, col := range OptionalColumns() {
		if col == name {
			return true
		}
	}
	return false
}

// Row is one CSV record keyed by header name.
type Row map[string]string

// Get returns the trimmed value of a column, or "" when absent.
func (r Row) Get(column string) string {
	return strings.TrimSpace(r[column])
}

// CatalogNumber returns the row's component identifier.
func (r Row) CatalogNumber() string {
	return r.Get(ColumnCatalogNumber)
}

// ParentRefID returns the ref_id of the row's parent record.
func (r Row) ParentRefID() string {
	return r.Get(ColumnParentRefID)
}

// Title returns the TITLE column.
func (r Row) Title() string {
	return r.Get(ColumnTitle)
}
