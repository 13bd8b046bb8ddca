// Package textutil provides text normalization for field comparison and
// filename sanitization.
//
// Normalize folds Unicode to NFC and collapses runs of whitespace so values
// typed into a spreadsheet compare equal to the same values stored in the
// repository. SanitizeFileName keeps directory and media
// names filesystem-safe.
package textutil
