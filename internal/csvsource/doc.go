// Package csvsource reads import CSV files and checks them before an import.
//
// Reader decodes the configured character set, strips a byte order mark, and
// yields rows keyed by trimmed header names. Validate reports column layout
// problems, duplicate or missing catalog numbers, unparsable dates, and
// missing parent references. CheckParents resolves the distinct parent
// ref_ids against the repository.
package csvsource
