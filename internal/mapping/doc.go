// Package mapping turns CSV rows into archival object fields.
//
// Date, extent, and note mappers are pure. Instances is the exception: it
// mints a top container through a ContainerMinter and is skipped in dry runs.
// The column schema shared with CSV validation lives here too.
package mapping
