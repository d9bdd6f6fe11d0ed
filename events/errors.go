package events

import (
	"errors"
	"fmt"
)

var ErrValidation = errors.New("invalid event")

var (
	ErrUnknownEventType  = fmt.Errorf("%w: unknown event type", ErrValidation)
	ErrMalformedEnvelope = fmt.Errorf("%w: malformed envelope", ErrValidation)
)
