package service

import "errors"

var (
	// ErrNotFound means a referenced user, holding or transaction does not
	// exist. Fatal to the operation that referenced it.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput means a request failed validation before touching state.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientQuantity means a SELL asked for more than the holding
	// currently carries. The transaction is never created.
	ErrInsufficientQuantity = errors.New("insufficient quantity")

	// ErrExternalSourceUnavailable means the exchange adapter itself failed.
	// Fatal to the whole sync call, unlike per-asset errors which are
	// accumulated into the result.
	ErrExternalSourceUnavailable = errors.New("external source unavailable")
)
