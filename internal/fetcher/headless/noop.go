package headless

import (
	"context"
	"errors"
)

// ErrDisabled is returned by Noop.
var ErrDisabled = errors.New("headless browser disabled")

// Noop stands in when headless rendering is turned off.
type Noop struct{}

// Available always reports false.
func (Noop) Available() bool { return false }

// Fetch always fails with ErrDisabled.
func (Noop) Fetch(context.Context, string) (Page, error) {
	return Page{}, ErrDisabled
}
