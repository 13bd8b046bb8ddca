// Package changes decides whether an existing archival object needs an update
// and builds the update body.
//
// Detect compares the typed record with mapped row fields. Merge applies the
// mapped fields to the raw record with a JSON merge patch so that anything the
// importer does not model survives the round trip. AuditPatch records what a
// write changed.
package changes
