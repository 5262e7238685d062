package ports

import "errors"

// Standard application-level errors.
// Components wrap these with context using fmt.Errorf("...: %w", err) and callers
// classify failures with errors.Is.
var (
	// General Errors
	ErrUnknown         = errors.New("unknown error occurred")
	ErrNotFound        = errors.New("resource not found")
	ErrContextCanceled = errors.New("operation canceled via context")

	// Simulation Errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInvalidBars          = errors.New("invalid bar sequence")
	ErrDataInsufficient     = errors.New("insufficient price history")
	ErrNumericDegenerate    = errors.New("numerically degenerate input")
	ErrConstraintViolation  = errors.New("position constraint violated")

	// Data Source Errors
	ErrSourceUnavailable = errors.New("price data source unavailable")
	ErrMalformedData     = errors.New("malformed price data")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
)
