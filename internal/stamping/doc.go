// Package stamping links digitized media directories to their repository
// records.
//
// For every directory whose name contains the configured catalog prefix and
// has not been stamped yet, the Stamper resolves the item-level archival
// object by component id, reads the runtime of the first media file, writes
// it into the record's ODD Duration note, and renames the directory to
// <name>_refid_<ref id>. Directories are processed independently: one
// failure never stops the rest.
package stamping
