// Package deps checks that the external media tools used for stamping are
// installed.
package deps
