package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrLockHeld          = errors.New("lock already held")
	ErrThrottled         = errors.New("throttle interval not elapsed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadySettled    = errors.New("position already settled")
	ErrUnparsedResponse  = errors.New("oracle response could not be parsed")
	ErrRateLimited       = errors.New("rate limited by upstream")
	ErrContextDone       = errors.New("context cancelled")
)
