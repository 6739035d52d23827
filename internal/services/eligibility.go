package services

import (
	"time"

	"hometour/portal/internal/models"
)

// Layouts accepted for buyer-proposed slots.
const (
	slotDateLayout = "2006-01-02"
	slotTimeLayout = "15:04"
)

// IsTimeSlotAvailable decides whether a buyer of the given tier may book the
// candidate (date, timeSlot) pair as of now. Pure function of its inputs, no
// storage access.
//
// Free (and guest) buyers may not book anything on the current calendar day:
// the earliest allowed date is tomorrow, compared date-only in now's location.
// Paid buyers may book any slot at least paidLead ahead of the current
// wall-clock time. A paid buyer may leave the time open; the date-only
// request is then evaluated against the end of that day, since any slot up
// to 23:59 could still satisfy it.
//
// Malformed date or time input is never bookable.
func IsTimeSlotAvailable(now time.Time, tier models.BuyerTier, date, timeSlot string, paidLead time.Duration) bool {
	slotDate, err := time.ParseInLocation(slotDateLayout, date, now.Location())
	if err != nil {
		return false
	}

	if tier != models.TierPaid {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return slotDate.After(today)
	}

	slotAt := time.Date(slotDate.Year(), slotDate.Month(), slotDate.Day(),
		23, 59, 0, 0, now.Location())
	if timeSlot != "" {
		slotTime, err := time.Parse(slotTimeLayout, timeSlot)
		if err != nil {
			return false
		}
		slotAt = time.Date(slotDate.Year(), slotDate.Month(), slotDate.Day(),
			slotTime.Hour(), slotTime.Minute(), 0, 0, now.Location())
	}

	return !slotAt.Before(now.Add(paidLead))
}
