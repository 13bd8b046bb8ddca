// Package history keeps a SQLite ledger of import and stamping runs.
//
// Each run is one row in runs; every processed CSV row or stamped directory is
// one row in row_results, including the change summary and the JSON patch
// that was sent for updates. The Recorder type plugs the ledger into the
// importer's Batch Driver as an Observer.
package history
