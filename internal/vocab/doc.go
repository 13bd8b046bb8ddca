// Package vocab checks values against repository controlled vocabularies and
// suggests close terms for values that do not match.
package vocab
