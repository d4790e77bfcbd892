package errors

import (
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

var (
	// ErrListingNotFound is returned when a listing is not found
	ErrListingNotFound = pkgerrors.NewNotFoundError("listing not found")

	// ErrSourceNotFound is returned when a source is not found
	ErrSourceNotFound = pkgerrors.NewNotFoundError("source not found")

	// ErrTickAlreadyProcessed is returned when a scheduler tick replays
	ErrTickAlreadyProcessed = pkgerrors.NewConflictError("tick already processed")

	// ErrAdapterNotRegistered is returned when no adapter serves a source
	ErrAdapterNotRegistered = pkgerrors.NewValidationError("no adapter registered for source")

	// ErrBlobMissing is returned when a raw blob cannot be loaded
	ErrBlobMissing = pkgerrors.NewNotFoundError("raw blob missing")

	// ErrUnmappableBrand is returned when brand/model cannot be resolved
	ErrUnmappableBrand = pkgerrors.NewValidationError("brand/model not mappable")

	// ErrLLMUnavailable is returned when the escalation service fails
	ErrLLMUnavailable = pkgerrors.NewUnavailableError("llm unavailable")

	// ErrDatabaseOperation is returned when a database operation fails
	ErrDatabaseOperation = pkgerrors.NewDatabaseError("database operation failed")
)
