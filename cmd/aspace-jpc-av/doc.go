// Command aspace-jpc-av synchronizes JPC AV catalog spreadsheets with the
// ArchivesSpace collection.
//
// Subcommands cover the import run itself (import), offline and online
// checks of a spreadsheet (validate, parents, extent-types), stamping of
// digitized media directories (stamp), the run ledger (history), and
// environment checks (doctor, config).
package main
