// Package aspace is the ArchivesSpace backend API client.
//
// A Client holds one authenticated session and runs every call through Do,
// which retries failed requests a fixed number of times with a fixed delay and
// re-authenticates once when the server reports the session has expired
// (HTTP 412). Typed helpers cover identifier search, archival object reads and
// writes, top container creation, and controlled vocabulary lookup.
//
// Records are modeled explicitly: notes decode into MultipartNote,
// SinglepartNote, or OtherNote by their jsonmodel_type, and notes read from the
// server re-encode unchanged so updates leave untouched notes intact.
package aspace
