package services

import (
	"sort"

	"hometour/portal/internal/models"
)

// conversationKey groups a message into its thread.
func conversationKey(m *models.Message) string {
	if m.ShowingRequestID == "" {
		return models.SupportConversationKey
	}
	return m.ShowingRequestID
}

// BuildConversations groups a flat message stream into per-showing threads for
// one viewer. Messages within a thread are ordered ascending by created_at
// with same-timestamp messages kept in input order, so repeated calls over the
// same stream never reorder them. Threads are ordered by last activity,
// newest first.
//
// Participants come from the showing record when one is known (buyer plus
// assigned agent); the message-scan fallback only applies to support threads
// and showings with no agent yet.
func BuildConversations(viewerID string, msgs []models.Message, showings map[string]*models.ShowingRequest) []models.Conversation {
	grouped := make(map[string][]models.Message)
	var keys []string
	for _, m := range msgs {
		key := conversationKey(&m)
		if _, seen := grouped[key]; !seen {
			keys = append(keys, key)
		}
		grouped[key] = append(grouped[key], m)
	}

	conversations := make([]models.Conversation, 0, len(keys))
	for _, key := range keys {
		thread := grouped[key]
		sort.SliceStable(thread, func(i, j int) bool {
			return thread[i].CreatedAt.Before(thread[j].CreatedAt)
		})

		conv := models.Conversation{
			Key:      key,
			Messages: thread,
		}
		conv.LastMessageAt = thread[len(thread)-1].CreatedAt
		for i := range thread {
			if thread[i].ReceiverID == viewerID && !thread[i].IsRead() {
				conv.UnreadCount++
			}
		}

		if showing, ok := showings[key]; ok && showing != nil {
			conv.PropertyAddress = showing.PropertyAddress
			conv.ShowingStatus = showing.Status
			conv.ParticipantA = showing.UserID
			conv.ParticipantB = showing.AgentID()
		}
		if conv.ParticipantA == "" && conv.ParticipantB == "" {
			conv.ParticipantA, conv.ParticipantB = scanParticipants(viewerID, thread)
		}

		conversations = append(conversations, conv)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastMessageAt.After(conversations[j].LastMessageAt)
	})
	return conversations
}

// scanParticipants derives the viewer and counterparty from message history:
// the first sender other than the viewer, or failing that the first receiver
// other than the viewer.
func scanParticipants(viewerID string, thread []models.Message) (a, b string) {
	a = viewerID
	for i := range thread {
		if thread[i].SenderID != viewerID {
			return a, thread[i].SenderID
		}
	}
	for i := range thread {
		if thread[i].ReceiverID != viewerID {
			return a, thread[i].ReceiverID
		}
	}
	return a, ""
}

// CountUnread totals, across every thread, the messages addressed to the
// viewer that have not been read.
func CountUnread(viewerID string, msgs []models.Message) int {
	n := 0
	for i := range msgs {
		if msgs[i].ReceiverID == viewerID && !msgs[i].IsRead() {
			n++
		}
	}
	return n
}
