package models

import (
	"time"
)

// PostShowingActionType identifies a discrete thing a buyer did after a completed tour.
type PostShowingActionType string

const (
	ActionFavorited          PostShowingActionType = "favorited"
	ActionMadeOffer          PostShowingActionType = "made_offer"
	ActionHiredAgent         PostShowingActionType = "hired_agent"
	ActionScheduledMoreTours PostShowingActionType = "scheduled_more_tours"
	// Silent contact-attempt variants, recorded best-effort for interest scoring.
	ActionAttemptedContactSms   PostShowingActionType = "attempted_contact_sms"
	ActionAttemptedContactCall  PostShowingActionType = "attempted_contact_call"
	ActionAttemptedContactEmail PostShowingActionType = "attempted_contact_email"
)

// IsReversible reports whether the action type supports undo.
// Reversible types keep at most one active record per showing.
func (t PostShowingActionType) IsReversible() bool {
	return t == ActionFavorited || t == ActionHiredAgent
}

// IsContactAttempt reports whether the type is a silent contact-attempt variant.
func (t PostShowingActionType) IsContactAttempt() bool {
	switch t {
	case ActionAttemptedContactSms, ActionAttemptedContactCall, ActionAttemptedContactEmail:
		return true
	}
	return false
}

// ActionDetails is a free-form context snapshot captured at the time of the action.
type ActionDetails struct {
	PropertyAddress string `bson:"property_address,omitempty" json:"property_address,omitempty"`
	AgentID         string `bson:"agent_id,omitempty" json:"agent_id,omitempty"`
	AgentName       string `bson:"agent_name,omitempty" json:"agent_name,omitempty"`
	OfferAmount     string `bson:"offer_amount,omitempty" json:"offer_amount,omitempty"`
	Method          string `bson:"method,omitempty" json:"method,omitempty"` // contact attempts: sms|call|email
}

// PostShowingAction records one buyer action tied to a completed showing.
// Reversible actions are removed on undo; append-only types are retained forever.
type PostShowingAction struct {
	ID               string                `bson:"_id,omitempty" json:"id,omitempty"`
	ShowingRequestID string                `bson:"showing_request_id" json:"showing_request_id"`
	BuyerID          string                `bson:"buyer_id" json:"buyer_id"`
	ActionType       PostShowingActionType `bson:"action_type" json:"action_type"`
	Details          *ActionDetails        `bson:"details,omitempty" json:"details,omitempty"`
	CreatedAt        time.Time             `bson:"created_at" json:"created_at"`
}

// ActionPresence is the boolean completion-checklist view of a showing's actions.
type ActionPresence struct {
	Favorited          bool `json:"favorited"`
	MadeOffer          bool `json:"made_offer"`
	HiredAgent         bool `json:"hired_agent"`
	ScheduledMoreTours bool `json:"scheduled_more_tours"`
}

// Count returns the number of distinct completed action types.
func (p ActionPresence) Count() int {
	n := 0
	for _, b := range []bool{p.Favorited, p.MadeOffer, p.HiredAgent, p.ScheduledMoreTours} {
		if b {
			n++
		}
	}
	return n
}
