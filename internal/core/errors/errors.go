// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - Unexported errors (err*): Use for internal package errors
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Vote validation errors. Nothing is written when one of these fires.
var (
	// ErrInvalidID indicates a rater or item identifier is not a valid UUID.
	ErrInvalidID = errors.New("invalid id")

	// ErrSelfComparison indicates a pairwise vote where both sides are the same item.
	ErrSelfComparison = errors.New("pairwise vote compares an item with itself")

	// ErrWinnerNotInPair indicates the declared winner is neither side of the pair.
	ErrWinnerNotInPair = errors.New("winner is not part of the pair")

	// ErrSnapshotNotFinite indicates a rating snapshot is NaN or infinite.
	ErrSnapshotNotFinite = errors.New("rating snapshot is not finite")

	// ErrUnknownWeightClass indicates a weight class the engine does not know.
	ErrUnknownWeightClass = errors.New("unknown weight class")

	// ErrScoreOutOfRange indicates a raw score outside the 0-100 slider.
	ErrScoreOutOfRange = errors.New("raw score outside [0,100]")
)

// Data integrity errors. Fatal for the affected item's processing cycle;
// the item is logged, skipped, and left dirty for retry.
var (
	// ErrCheckpointRegression indicates a fetched event id at or below a
	// stream checkpoint.
	ErrCheckpointRegression = errors.New("event id at or below stream checkpoint")
)

// Generic lookup errors.
var (
	// ErrNotFound is a generic not found error.
	ErrNotFound = errors.New("not found")
)
