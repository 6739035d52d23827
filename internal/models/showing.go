package models

import (
	"time"
)

// ShowingStatus tracks a tour request through its lifecycle.
type ShowingStatus string

const (
	StatusPending           ShowingStatus = "pending"
	StatusSubmitted         ShowingStatus = "submitted"
	StatusUnderReview       ShowingStatus = "under_review"
	StatusAgentAssigned     ShowingStatus = "agent_assigned"
	StatusAgentConfirmed    ShowingStatus = "agent_confirmed"
	StatusAwaitingAgreement ShowingStatus = "awaiting_agreement"
	StatusConfirmed         ShowingStatus = "confirmed"
	StatusScheduled         ShowingStatus = "scheduled"
	StatusInProgress        ShowingStatus = "in_progress"
	StatusCompleted         ShowingStatus = "completed"
	StatusCancelled         ShowingStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed from the status.
func (s ShowingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// AssignedAgent holds the contact details captured when an agent accepts a request.
type AssignedAgent struct {
	AgentID string `bson:"agent_id" json:"agent_id"`
	Name    string `bson:"name" json:"name"`
	Phone   string `bson:"phone,omitempty" json:"phone,omitempty"`
	Email   string `bson:"email,omitempty" json:"email,omitempty"`
}

// ShowingRequest is one buyer's request to tour one property.
type ShowingRequest struct {
	ID              string        `bson:"_id,omitempty" json:"id,omitempty"`
	UserID          string        `bson:"user_id" json:"user_id"`
	PropertyAddress string        `bson:"property_address" json:"property_address"`
	MlsID           string        `bson:"mls_id,omitempty" json:"mls_id,omitempty"`
	PreferredDate   string        `bson:"preferred_date,omitempty" json:"preferred_date,omitempty"` // YYYY-MM-DD
	PreferredTime   string        `bson:"preferred_time,omitempty" json:"preferred_time,omitempty"` // HH:MM
	Message         string        `bson:"message,omitempty" json:"message,omitempty"`
	Status          ShowingStatus `bson:"status" json:"status"`

	Agent                 *AssignedAgent `bson:"agent,omitempty" json:"agent,omitempty"`
	AgreementRequired     bool           `bson:"agreement_required" json:"agreement_required"`
	BuyerConsentToContact bool           `bson:"buyer_consents_to_contact" json:"buyer_consents_to_contact"`

	StatusUpdatedAt           time.Time  `bson:"status_updated_at" json:"status_updated_at"`
	EstimatedConfirmationDate *time.Time `bson:"estimated_confirmation_date,omitempty" json:"estimated_confirmation_date,omitempty"`
	CompletedAt               *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CancelledAt               *time.Time `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
	// Set once the tour:completed webhook task has been enqueued for this showing.
	CompletionNotified bool `bson:"completion_notified" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// AgentID returns the assigned agent's id or "" when none is assigned.
func (r *ShowingRequest) AgentID() string {
	if r.Agent == nil {
		return ""
	}
	return r.Agent.AgentID
}

// TourAgreement is the per-showing non-exclusive buyer/agent tour agreement.
// Created when an agent confirms; signed at most once, never revoked.
type TourAgreement struct {
	ID               string     `bson:"_id,omitempty" json:"id,omitempty"`
	ShowingRequestID string     `bson:"showing_request_id" json:"showing_request_id"`
	BuyerID          string     `bson:"buyer_id" json:"buyer_id"`
	AgentID          string     `bson:"agent_id" json:"agent_id"`
	AgreementType    string     `bson:"agreement_type" json:"agreement_type"` // e.g. "single_tour_non_exclusive"
	Signed           bool       `bson:"signed" json:"signed"`
	SignerName       string     `bson:"signer_name,omitempty" json:"signer_name,omitempty"`
	SignedAt         *time.Time `bson:"signed_at,omitempty" json:"signed_at,omitempty"`
	DocumentKey      string     `bson:"document_key,omitempty" json:"document_key,omitempty"` // S3 key of the uploaded signed copy
	CreatedAt        time.Time  `bson:"created_at" json:"created_at"`
}
