// Package services defines shared utilities consumed by the repository client,
// the importer, and the stamping workflow.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, CSV row numbers, and catalog numbers
//     for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (validation vs transient vs duplicate) with errors.Is.
package services
