package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken       = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken       = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidCredentials = &AppError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"}
	ErrForbidden          = &AppError{http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action"}
	ErrInvalidRequest     = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed   = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound   = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError      = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrCustomerNotFound    = &AppError{http.StatusNotFound, "CUSTOMER_NOT_FOUND", "Customer not found"}
	ErrCapacityExceeded    = &AppError{http.StatusUnprocessableEntity, "CAPACITY_EXCEEDED", "Maximum points limit would be exceeded"}
	ErrInsufficientBalance = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Insufficient points balance"}
	ErrEntryNotPending     = &AppError{http.StatusConflict, "TRANSACTION_NOT_PENDING", "Transaction not found or already processed"}
	ErrInvalidAmount       = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Points must be a positive amount within the allowed range"}
	ErrInvalidSource       = &AppError{http.StatusBadRequest, "INVALID_SOURCE", "Invalid points source"}
	ErrInvalidSettings     = &AppError{http.StatusUnprocessableEntity, "INVALID_SETTINGS", "Loyalty settings are invalid"}
	ErrDuplicateAccrual    = &AppError{http.StatusConflict, "DUPLICATE_ACCRUAL", "Points already awarded for this reference"}
	ErrFeatureDisabled     = &AppError{http.StatusUnprocessableEntity, "FEATURE_DISABLED", "Feature is disabled in loyalty settings"}

	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrIdempotencyInProgress = &AppError{http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "A request with this idempotency key is still being processed"}
)
