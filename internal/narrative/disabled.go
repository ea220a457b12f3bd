package narrative

import (
	"context"
	"errors"
)

// ErrDisabled is returned when no generation API key is configured.
var ErrDisabled = errors.New("story generation disabled")

// Disabled is a Generator that always fails. Products created while it is
// wired get an empty story, since generation is a non-fatal dependency.
type Disabled struct{}

func (Disabled) Generate(ctx context.Context, productName string) (string, error) {
	return "", ErrDisabled
}
