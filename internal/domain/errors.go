package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
	ErrInvalidWallet = errors.New("invalid wallet address")
	ErrFetchFailed   = errors.New("failed to fetch activity data")
	ErrInvalidInput  = errors.New("invalid input")
)
