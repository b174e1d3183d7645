package services

import "errors"

// Error taxonomy shared across the core services. Handlers map these to
// HTTP responses; everything else is passed through (pgx.ErrNoRows means
// not found, any other error is internal).
var (
	ErrInvalidInput                  = errors.New("invalid input")
	ErrInvalidTransition             = errors.New("invalid session transition")
	ErrAlreadyTerminal               = errors.New("session already in a terminal state")
	ErrCompletionFailed              = errors.New("session completion failed")
	ErrQuotaExceeded                 = errors.New("subscription quota exceeded")
	ErrSubscriptionInactive          = errors.New("subscription is not active")
	ErrInvalidSubscriptionTransition = errors.New("invalid subscription transition")
	ErrNoRateConfigured              = errors.New("no rate configured for teacher")
	ErrNothingToPayout               = errors.New("no payable earnings for period")
	ErrPayoutExists                  = errors.New("payout already exists for period")
	ErrInvalidPayoutTransition       = errors.New("invalid payout transition")
	ErrEarningClaimed                = errors.New("earning already claimed by a payout")
	ErrConcurrencyConflict           = errors.New("concurrent modification, retry")
	ErrTeacherNotFound               = errors.New("teacher not found")
	ErrStudentNotFound               = errors.New("student not found")
)
