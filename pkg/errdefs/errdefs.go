// Package errdefs defines the updater's error taxonomy and helpers to attach
// detail to a sentinel while keeping errors.Is matching intact.
package errdefs

import (
	"errors"
	"fmt"
)

// Newf joins the base sentinel with a new formatted error, so callers can
// match the category with errors.Is and still read the detail.
func Newf(base error, format string, args ...any) error {
	return errors.Join(base, fmt.Errorf(format, args...))
}

// NewE joins the base sentinel with an underlying error. A nil error stays
// nil, and an error already carrying the sentinel is returned unchanged.
func NewE(base error, err error) error {
	if err == nil || errors.Is(err, base) {
		return err
	}
	return errors.Join(base, err)
}
