package moderation

import (
	"errors"
	"fmt"
	"time"
)

// Denial categories. Every denial is terminal for the command.
var (
	ErrInsufficientPermission = errors.New("insufficient permission")
	ErrInsufficientAuthority  = errors.New("insufficient authority")
	ErrRateLimited            = errors.New("rate limited")
	ErrTargetNotFound         = errors.New("target not found")
	ErrNoOpPromotion          = errors.New("promotion does not change rank")
	ErrTransferConflict       = errors.New("ownership transfer conflict")
)

// ErrExternalResolution marks a failed platform membership query. It is
// recovered inside the resolver and never returned to command callers.
var ErrExternalResolution = errors.New("external rank resolution failed")

// RateLimitError reports an active cooldown.
type RateLimitError struct {
	Command    Command
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: %s available again in %s", ErrRateLimited, e.Command, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// IsDenial reports whether err is one of the denial categories.
func IsDenial(err error) bool {
	return errors.Is(err, ErrInsufficientPermission) ||
		errors.Is(err, ErrInsufficientAuthority) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTargetNotFound) ||
		errors.Is(err, ErrNoOpPromotion) ||
		errors.Is(err, ErrTransferConflict)
}
