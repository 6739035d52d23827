package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hometour/portal/internal/models"
)

func TestInterestScore_WeightedSums(t *testing.T) {
	// favorited + made_offer = 2 + 3 = 5
	sig := InterestSignals{Favorited: true, MadeOffer: true}
	assert.Equal(t, 5, sig.Score())
	assert.Equal(t, InterestMedium, ClassifyInterest(sig.Score()))

	// hired_agent + made_offer + scheduled_more_tours = 4 + 3 + 2 = 9
	sig = InterestSignals{HiredAgent: true, MadeOffer: true, ScheduledMoreTours: true}
	assert.Equal(t, 9, sig.Score())
	assert.Equal(t, InterestHigh, ClassifyInterest(sig.Score()))

	// Nothing recorded suppresses the indicator.
	sig = InterestSignals{}
	assert.Equal(t, 0, sig.Score())
	assert.Equal(t, InterestNone, ClassifyInterest(sig.Score()))
}

func TestInterestScore_ContactAndRatingSignals(t *testing.T) {
	sig := InterestSignals{ContactSms: true, ContactCall: true, ContactEmail: true}
	assert.Equal(t, 3, sig.Score())
	assert.Equal(t, InterestMedium, ClassifyInterest(sig.Score()))

	// A single contact method alone is low interest.
	sig = InterestSignals{ContactCall: true}
	assert.Equal(t, 1, sig.Score())
	assert.Equal(t, InterestLow, ClassifyInterest(sig.Score()))

	// Ratings of 4+ add two points; lower ratings add nothing.
	sig = InterestSignals{PropertyRating: 4}
	assert.Equal(t, 2, sig.Score())
	sig = InterestSignals{PropertyRating: 3}
	assert.Equal(t, 0, sig.Score())

	// Questions count one each.
	sig = InterestSignals{AskedQuestions: 2, Favorited: true}
	assert.Equal(t, 4, sig.Score())
}

func TestClassifyInterest_Boundaries(t *testing.T) {
	assert.Equal(t, InterestNone, ClassifyInterest(0))
	assert.Equal(t, InterestLow, ClassifyInterest(1))
	assert.Equal(t, InterestLow, ClassifyInterest(2))
	assert.Equal(t, InterestMedium, ClassifyInterest(3))
	assert.Equal(t, InterestMedium, ClassifyInterest(5))
	assert.Equal(t, InterestHigh, ClassifyInterest(6))
	assert.Equal(t, InterestHigh, ClassifyInterest(11))
}

func TestSignalsFromActions_PresenceBased(t *testing.T) {
	actions := []models.PostShowingAction{
		{ActionType: models.ActionFavorited},
		{ActionType: models.ActionAttemptedContactSms},
		{ActionType: models.ActionAttemptedContactSms}, // repeat, still one point
		{ActionType: models.ActionMadeOffer},
		{ActionType: models.ActionMadeOffer},
	}
	sig := SignalsFromActions(actions)
	assert.True(t, sig.Favorited)
	assert.True(t, sig.ContactSms)
	assert.True(t, sig.MadeOffer)
	assert.False(t, sig.HiredAgent)
	assert.Equal(t, 2+3+1, sig.Score())
}
