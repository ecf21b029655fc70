package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrCapacityExceeded    = errors.New("maximum points limit would be exceeded")
	ErrInsufficientBalance = errors.New("insufficient points balance")
	ErrEntryNotPending     = errors.New("transaction not found or already processed")
	ErrInvalidAmount       = errors.New("points must be greater than zero")
	ErrInvalidSource       = errors.New("invalid points source")
	ErrInvalidSettings     = errors.New("invalid loyalty settings")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrDuplicateAccrual    = errors.New("points already awarded for this reference")
	ErrFeatureDisabled     = errors.New("feature disabled in loyalty settings")
	ErrForbidden           = errors.New("forbidden")
)
