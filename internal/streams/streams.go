// Package streams drains readers into memory.
package streams

import (
	"io"
	"strings"
)

// ToString reads r until EOF and returns everything read as a single string.
// If reading fails, the text read before the failure is returned together
// with the error.
func ToString(r io.Reader) (string, error) {
	var b strings.Builder
	_, err := io.Copy(&b, r)
	return b.String(), err
}
