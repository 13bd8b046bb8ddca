// Package preflight provides the readiness checks behind the doctor command:
// output directories, the media tools used for stamping, repository
// credentials, the extent vocabulary, the run lock, and the history ledger.
//
// Checks marked Optional report problems without failing the command.
package preflight
