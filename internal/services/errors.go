package services

import (
	"errors"
	"fmt"
)

// Sentinel errors the API layer branches on. Storage failures are wrapped with
// fmt.Errorf("%w") and surface as generic errors; mongo.ErrNoDocuments passes
// through for not-found.
var (
	// ErrValidation marks malformed input rejected before any I/O.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition marks a state change attempted from an incompatible status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyAssigned marks a lost agent-assignment race: another agent
	// claimed the showing between read and write.
	ErrAlreadyAssigned = errors.New("showing already assigned to another agent")

	// ErrNotReversible marks an undo attempt on an append-only action type.
	ErrNotReversible = errors.New("action type cannot be undone")

	// ErrMessagingFrozen marks a send attempt on a cancelled showing's conversation.
	ErrMessagingFrozen = errors.New("messaging is frozen for cancelled showings")
)

// validationErrorf wraps ErrValidation with a caller-facing detail message.
func validationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}
