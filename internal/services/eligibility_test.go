package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hometour/portal/internal/models"
)

const testPaidLead = 2 * time.Hour

func TestIsTimeSlotAvailable_FreeBuyerTomorrowOnly(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	// Tomorrow is bookable at any listed time.
	assert.True(t, IsTimeSlotAvailable(now, models.TierFree, "2025-06-11", "09:00", testPaidLead))
	assert.True(t, IsTimeSlotAvailable(now, models.TierFree, "2025-06-11", "23:30", testPaidLead))

	// Today is never bookable for a free buyer, regardless of the time.
	assert.False(t, IsTimeSlotAvailable(now, models.TierFree, "2025-06-10", "09:00", testPaidLead))
	assert.False(t, IsTimeSlotAvailable(now, models.TierFree, "2025-06-10", "23:59", testPaidLead))

	// Neither is the past.
	assert.False(t, IsTimeSlotAvailable(now, models.TierFree, "2025-06-09", "12:00", testPaidLead))
}

func TestIsTimeSlotAvailable_FreeBuyerDateOnlyComparison(t *testing.T) {
	// Late in the evening, tomorrow morning is still fine for a free buyer
	// even though it is less than two hours away.
	now := time.Date(2025, 6, 10, 23, 30, 0, 0, time.UTC)
	assert.True(t, IsTimeSlotAvailable(now, models.TierFree, "2025-06-11", "00:30", testPaidLead))
}

func TestIsTimeSlotAvailable_PaidBuyerLeadTime(t *testing.T) {
	// Current time 14:00.
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	// 16:30 today is >= 2h ahead.
	assert.True(t, IsTimeSlotAvailable(now, models.TierPaid, "2025-06-10", "16:30", testPaidLead))
	// 16:00 is exactly 2h ahead, still allowed.
	assert.True(t, IsTimeSlotAvailable(now, models.TierPaid, "2025-06-10", "16:00", testPaidLead))
	// 15:30 today is < 2h ahead.
	assert.False(t, IsTimeSlotAvailable(now, models.TierPaid, "2025-06-10", "15:30", testPaidLead))
	// Any slot tomorrow clears the lead.
	assert.True(t, IsTimeSlotAvailable(now, models.TierPaid, "2025-06-11", "08:00", testPaidLead))
	// A past slot does not.
	assert.False(t, IsTimeSlotAvailable(now, models.TierPaid, "2025-06-10", "13:00", testPaidLead))
}

func TestIsTimeSlotAvailable_PaidBuyerDateOnly(t *testing.T) {
	// Current time 14:00. A date with the time left open counts as the end
	// of that day for the lead check.
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	assert.True(t, IsTimeSlotAvailable(now, models.TierPaid, "2025-06-10", "", testPaidLead))
	assert.True(t, IsTimeSlotAvailable(now, models.TierPaid, "2025-06-11", "", testPaidLead))
	// Yesterday is gone even with the time open.
	assert.False(t, IsTimeSlotAvailable(now, models.TierPaid, "2025-06-09", "", testPaidLead))

	// So close to midnight that even 23:59 today is inside the lead window.
	lateNow := time.Date(2025, 6, 10, 23, 0, 0, 0, time.UTC)
	assert.False(t, IsTimeSlotAvailable(lateNow, models.TierPaid, "2025-06-10", "", testPaidLead))
}

func TestIsTimeSlotAvailable_MalformedInput(t *testing.T) {
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	assert.False(t, IsTimeSlotAvailable(now, models.TierFree, "tomorrow", "09:00", testPaidLead))
	assert.False(t, IsTimeSlotAvailable(now, models.TierPaid, "2025-06-10", "half past four", testPaidLead))
	assert.False(t, IsTimeSlotAvailable(now, models.TierPaid, "", "", testPaidLead))
}
