// Package ffprobe reads media runtimes for directory stamping.
//
// Inspect decodes ffprobe's JSON output into Result. ParseMediainfo reads the
// plain-text report of `mediainfo -f`. Prober combines the two behind one
// Duration call that always answers in hh:mm:ss.
package ffprobe
