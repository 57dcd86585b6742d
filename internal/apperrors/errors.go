package apperrors

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by services wraps one of these,
// so callers may check the kind with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidChoice     = errors.New("invalid choice")
	ErrStakeMismatch     = errors.New("stake does not match fixed stake")
	ErrStakeOutOfRange   = errors.New("stake out of range")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWagerClosed       = errors.New("wager is not active")
	ErrDeadlinePassed    = errors.New("wager deadline passed")
	ErrAlreadyApplied    = errors.New("external credit already applied")

	// Retryable: the operation had no effect and may be repeated as is
	ErrConflict    = errors.New("concurrent update conflict")
	ErrUnavailable = errors.New("storage unavailable")
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = fmt.Errorf("user %w", ErrNotFound)

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenIsUsed   = errors.New("refresh token is used")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")
	ErrAccessTokenRevoked   = errors.New("access token is revoked")

	ErrWagerNotFound     = fmt.Errorf("wager %w", ErrNotFound)
	ErrWagerInvalid      = errors.New("wager parameters are invalid")
	ErrWagerHasBets      = errors.New("wager already has participants")
	ErrInvalidStake      = fmt.Errorf("stake: %w", ErrInvalidAmount)
	ErrTransactionExists = errors.New("transaction already recorded")

	ErrExternalRefEmpty = fmt.Errorf("external reference is empty: %w", ErrInvalidAmount)

	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
)

// Retryable reports whether err is a transient failure that left no effect.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrUnavailable)
}
