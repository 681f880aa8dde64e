// Package xio provides io helper types and functions.
package xio

import (
	"errors"
	"fmt"
	"io"
)

const (
	_   = iota
	KiB = 1 << (10 * iota)
	MiB
	GiB
)

// LimitCopy limits the copy from the reader. This is useful when extracting files from
// archives to protect against decompression bomb attacks.
func LimitCopy(w io.Writer, r io.Reader, limit int64) (int64, error) {
	written, err := io.Copy(w, io.LimitReader(r, limit))
	if err != nil && !errors.Is(err, io.EOF) {
		return written, err
	}
	if written >= limit {
		return written, fmt.Errorf("size to read limit hit (potential decompression bomb attack): %d", limit)
	}
	return written, nil
}
