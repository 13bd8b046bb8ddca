// Package importer synchronizes CSV rows with archival objects.
//
// Mode.Resolve is the duplicate policy: an existing catalog number is
// skipped, updated, or fails the run. Processor handles one row end to end
// and always yields a Result; only a fail-mode duplicate is returned as an
// error. Driver walks a RowSource in order, paces writes in batches, turns
// panics into error results, and stops early only for a fail-mode duplicate,
// an unreadable input, or cancellation.
package importer
