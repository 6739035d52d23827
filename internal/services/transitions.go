package services

import (
	"fmt"

	"hometour/portal/internal/models"
)

// allowedTransitions is the canonical forward path plus the cancel and
// reschedule edges. cancelled is reachable from every non-terminal state and
// reschedule resets every non-terminal, non-completed state back to pending;
// both are encoded here explicitly so legality stays a pure table lookup.
var allowedTransitions = map[models.ShowingStatus][]models.ShowingStatus{
	models.StatusPending:           {models.StatusSubmitted, models.StatusUnderReview, models.StatusAgentAssigned, models.StatusCancelled},
	models.StatusSubmitted:         {models.StatusUnderReview, models.StatusAgentAssigned, models.StatusPending, models.StatusCancelled},
	models.StatusUnderReview:       {models.StatusAgentAssigned, models.StatusPending, models.StatusCancelled},
	models.StatusAgentAssigned:     {models.StatusAgentConfirmed, models.StatusAwaitingAgreement, models.StatusPending, models.StatusCancelled},
	models.StatusAgentConfirmed:    {models.StatusAwaitingAgreement, models.StatusConfirmed, models.StatusPending, models.StatusCancelled},
	models.StatusAwaitingAgreement: {models.StatusConfirmed, models.StatusPending, models.StatusCancelled},
	models.StatusConfirmed:         {models.StatusScheduled, models.StatusInProgress, models.StatusCompleted, models.StatusPending, models.StatusCancelled},
	models.StatusScheduled:         {models.StatusInProgress, models.StatusCompleted, models.StatusPending, models.StatusCancelled},
	models.StatusInProgress:        {models.StatusCompleted, models.StatusCancelled},
	// Terminal states have no outgoing edges.
	models.StatusCompleted: {},
	models.StatusCancelled: {},
}

// CanTransition reports whether the state machine permits from → to.
func CanTransition(from, to models.ShowingStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition (wrapped with both states)
// when from → to is not permitted.
func ValidateTransition(from, to models.ShowingStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("cannot move showing from %q to %q: %w", from, to, ErrInvalidTransition)
	}
	return nil
}

// assignableStatuses are the states from which an agent may claim a showing.
var assignableStatuses = []models.ShowingStatus{
	models.StatusPending,
	models.StatusSubmitted,
	models.StatusUnderReview,
}

// IsAssignable reports whether an agent may still claim a showing in this status.
func IsAssignable(status models.ShowingStatus) bool {
	for _, s := range assignableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// RequiresAgentAssignment reports whether the status implies a non-nil
// assigned agent. pending/submitted/under_review may lack one, and a cancelled
// showing may have been cancelled before assignment.
func RequiresAgentAssignment(status models.ShowingStatus) bool {
	switch status {
	case models.StatusPending, models.StatusSubmitted, models.StatusUnderReview, models.StatusCancelled:
		return false
	}
	return true
}

// AgreementRequired reports whether the showing currently needs a signed
// agreement before it can progress. Derived from live state, never stored:
// the showing sits in an agreement-gated status, an agent is assigned, and no
// signed agreement exists yet.
func AgreementRequired(status models.ShowingStatus, agentAssigned, agreementSigned bool) bool {
	if status != models.StatusAgentConfirmed && status != models.StatusAwaitingAgreement {
		return false
	}
	return agentAssigned && !agreementSigned
}
