package squeezenext

import (
	"errors"
	"fmt"
)

// ErrConfig is the root of every construction error. Callers can test any
// factory error with errors.Is(err, ErrConfig).
var ErrConfig = errors.New("squeezenext: invalid configuration")

var (
	// ErrUnsupportedArch is returned for an architecture tag other than "23" or "23v5".
	ErrUnsupportedArch = fmt.Errorf("%w: unsupported architecture type", ErrConfig)

	// ErrPretrainedUnavailable is returned whenever pretrained weights are
	// requested. No weights are bundled, so this never succeeds.
	ErrPretrainedUnavailable = fmt.Errorf("%w: pretrained weights are not available", ErrConfig)

	// ErrUnknownModel is returned by Lookup for a name outside Models().
	ErrUnknownModel = fmt.Errorf("%w: unknown model name", ErrConfig)
)
