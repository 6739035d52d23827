package services

import (
	"hometour/portal/internal/models"
)

// InterestLevel buckets a buyer's post-showing engagement for agent-facing
// prioritization.
type InterestLevel string

const (
	InterestHigh   InterestLevel = "high"
	InterestMedium InterestLevel = "medium"
	InterestLow    InterestLevel = "low"
	// InterestNone suppresses the indicator entirely.
	InterestNone InterestLevel = "none"
)

// Scoring weights and classification thresholds.
const (
	weightFavorited          = 2
	weightMadeOffer          = 3
	weightHiredAgent         = 4
	weightScheduledMoreTours = 2
	weightHighRating         = 2
	highRatingFloor          = 4

	highThreshold   = 6
	mediumThreshold = 3
)

// InterestSignals is everything the score is computed from. Presence-based:
// repeated contact attempts through the same method still count once.
type InterestSignals struct {
	Favorited          bool
	MadeOffer          bool
	HiredAgent         bool
	ScheduledMoreTours bool
	ContactSms         bool
	ContactCall        bool
	ContactEmail       bool
	AskedQuestions     int
	PropertyRating     int // 0 when unrated
}

// SignalsFromActions collapses a showing's action rows into presence signals.
func SignalsFromActions(actions []models.PostShowingAction) InterestSignals {
	var sig InterestSignals
	for _, a := range actions {
		switch a.ActionType {
		case models.ActionFavorited:
			sig.Favorited = true
		case models.ActionMadeOffer:
			sig.MadeOffer = true
		case models.ActionHiredAgent:
			sig.HiredAgent = true
		case models.ActionScheduledMoreTours:
			sig.ScheduledMoreTours = true
		case models.ActionAttemptedContactSms:
			sig.ContactSms = true
		case models.ActionAttemptedContactCall:
			sig.ContactCall = true
		case models.ActionAttemptedContactEmail:
			sig.ContactEmail = true
		}
	}
	return sig
}

// Score computes the weighted interest score.
func (s InterestSignals) Score() int {
	score := 0
	if s.Favorited {
		score += weightFavorited
	}
	if s.MadeOffer {
		score += weightMadeOffer
	}
	if s.HiredAgent {
		score += weightHiredAgent
	}
	if s.ScheduledMoreTours {
		score += weightScheduledMoreTours
	}
	if s.ContactSms {
		score++
	}
	if s.ContactCall {
		score++
	}
	if s.ContactEmail {
		score++
	}
	score += s.AskedQuestions
	if s.PropertyRating >= highRatingFloor {
		score += weightHighRating
	}
	return score
}

// ClassifyInterest maps a score onto its level.
func ClassifyInterest(score int) InterestLevel {
	switch {
	case score >= highThreshold:
		return InterestHigh
	case score >= mediumThreshold:
		return InterestMedium
	case score > 0:
		return InterestLow
	default:
		return InterestNone
	}
}
