package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hometour/portal/internal/models"
)

func msgAt(t time.Time, showingID, sender, receiver, content string) models.Message {
	return models.Message{
		ShowingRequestID: showingID,
		SenderID:         sender,
		ReceiverID:       receiver,
		Content:          content,
		CreatedAt:        t,
	}
}

func TestBuildConversations_OrderingAndUnread(t *testing.T) {
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	buyer, agent := "buyer-1", "agent-1"

	// A(t=1, buyer->agent), B(t=2, agent->buyer), C(t=3, buyer->agent), all unread.
	msgs := []models.Message{
		msgAt(base.Add(1*time.Minute), "show-1", buyer, agent, "A"),
		msgAt(base.Add(2*time.Minute), "show-1", agent, buyer, "B"),
		msgAt(base.Add(3*time.Minute), "show-1", buyer, agent, "C"),
	}
	showings := map[string]*models.ShowingRequest{
		"show-1": {
			ID:              "show-1",
			UserID:          buyer,
			PropertyAddress: "12 Oak St",
			Status:          models.StatusConfirmed,
			Agent:           &models.AssignedAgent{AgentID: agent, Name: "Pat"},
		},
	}

	convs := BuildConversations(agent, msgs, showings)
	require.Len(t, convs, 1)

	conv := convs[0]
	assert.Equal(t, "show-1", conv.Key)
	assert.Equal(t, "12 Oak St", conv.PropertyAddress)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, "A", conv.Messages[0].Content)
	assert.Equal(t, "B", conv.Messages[1].Content)
	assert.Equal(t, "C", conv.Messages[2].Content)
	assert.Equal(t, base.Add(3*time.Minute), conv.LastMessageAt)

	// Only A and C are addressed to the agent.
	assert.Equal(t, 2, conv.UnreadCount)

	// The buyer's view of the same thread counts only B.
	convs = BuildConversations(buyer, msgs, showings)
	require.Len(t, convs, 1)
	assert.Equal(t, 1, convs[0].UnreadCount)
}

func TestBuildConversations_StableSameTimestampOrder(t *testing.T) {
	at := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		msgAt(at, "show-1", "buyer-1", "agent-1", "first"),
		msgAt(at, "show-1", "buyer-1", "agent-1", "second"),
		msgAt(at, "show-1", "agent-1", "buyer-1", "third"),
	}

	for i := 0; i < 3; i++ {
		convs := BuildConversations("agent-1", msgs, nil)
		require.Len(t, convs, 1)
		require.Len(t, convs[0].Messages, 3)
		assert.Equal(t, "first", convs[0].Messages[0].Content)
		assert.Equal(t, "second", convs[0].Messages[1].Content)
		assert.Equal(t, "third", convs[0].Messages[2].Content)
	}
}

func TestBuildConversations_ThreadsNewestFirst(t *testing.T) {
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		msgAt(base.Add(1*time.Hour), "show-old", "buyer-1", "agent-1", "old thread"),
		msgAt(base.Add(2*time.Hour), "show-new", "buyer-1", "agent-1", "new thread"),
		msgAt(base.Add(30*time.Minute), "show-old", "agent-1", "buyer-1", "older still"),
	}

	convs := BuildConversations("buyer-1", msgs, nil)
	require.Len(t, convs, 2)
	assert.Equal(t, "show-new", convs[0].Key)
	assert.Equal(t, "show-old", convs[1].Key)
}

func TestBuildConversations_SupportThreadAndScanFallback(t *testing.T) {
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		msgAt(base, "", "buyer-1", "support-1", "help"),
		msgAt(base.Add(time.Minute), "", "support-1", "buyer-1", "hi there"),
	}

	convs := BuildConversations("buyer-1", msgs, nil)
	require.Len(t, convs, 1)
	assert.Equal(t, models.SupportConversationKey, convs[0].Key)
	assert.Equal(t, "buyer-1", convs[0].ParticipantA)
	assert.Equal(t, "support-1", convs[0].ParticipantB)
	assert.Equal(t, "support-1", convs[0].Counterparty("buyer-1"))
}

func TestBuildConversations_SingleViewerMessageFallsBackToReceiver(t *testing.T) {
	// One message sent by the viewer: no foreign sender exists, so the
	// counterparty comes from the receiver scan.
	msgs := []models.Message{
		msgAt(time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC), "", "buyer-1", "support-1", "anyone there?"),
	}
	convs := BuildConversations("buyer-1", msgs, nil)
	require.Len(t, convs, 1)
	assert.Equal(t, "support-1", convs[0].ParticipantB)
}

func TestCountUnread(t *testing.T) {
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	read := base.Add(5 * time.Minute)
	msgs := []models.Message{
		msgAt(base, "show-1", "buyer-1", "agent-1", "one"),
		msgAt(base, "show-2", "buyer-1", "agent-1", "two"),
		msgAt(base, "show-1", "agent-1", "buyer-1", "three"),
		{ShowingRequestID: "show-1", SenderID: "buyer-1", ReceiverID: "agent-1", Content: "four", CreatedAt: base, ReadAt: &read},
	}

	assert.Equal(t, 2, CountUnread("agent-1", msgs))
	assert.Equal(t, 1, CountUnread("buyer-1", msgs))
	assert.Equal(t, 0, CountUnread("someone-else", msgs))
}
