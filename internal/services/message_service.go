package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hometour/portal/internal/models"
)

// IMessageService defines the interface for conversations.
type IMessageService interface {
	SendMessage(ctx context.Context, senderID, showingID, receiverID, content string) (*models.Message, error)
	GetConversations(ctx context.Context, viewerID string) ([]models.Conversation, error)
	MarkMessagesAsRead(ctx context.Context, showingID, viewerID string) error
	UnreadCount(ctx context.Context, viewerID string) (int, error)
}

const messagesCollection = "messages"

// messageService implements IMessageService.
type messageService struct {
	db             *mongo.Database
	showingService IShowingService
}

// NewMessageService creates a new MessageService.
func NewMessageService(db *mongo.Database, showingService IShowingService) IMessageService {
	return &messageService{db: db, showingService: showingService}
}

// SendMessage validates and persists one directed message. Failures here are
// always surfaced so the caller can keep the unsent draft: empty content,
// a cancelled showing's frozen thread and an unresolvable counterparty all
// reject before any insert.
func (s *messageService) SendMessage(ctx context.Context, senderID, showingID, receiverID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, validationErrorf("message content is empty")
	}

	if showingID != "" {
		showing, err := s.showingService.FindByID(ctx, showingID)
		if err != nil {
			return nil, err
		}
		if showing.Status == models.StatusCancelled {
			return nil, fmt.Errorf("showing %s is cancelled: %w", showingID, ErrMessagingFrozen)
		}
		if showing.UserID != senderID && showing.AgentID() != senderID {
			return nil, validationErrorf("sender %s is not a participant of showing %s", senderID, showingID)
		}
		if receiverID == "" {
			receiverID = s.resolveCounterparty(ctx, showing, senderID)
		}
	}
	if receiverID == "" {
		return nil, validationErrorf("no counterparty could be determined for this conversation")
	}
	if receiverID == senderID {
		return nil, validationErrorf("cannot send a message to yourself")
	}

	msg := &models.Message{
		ID:               uuid.NewString(),
		ShowingRequestID: showingID,
		SenderID:         senderID,
		ReceiverID:       receiverID,
		Content:          content,
		CreatedAt:        time.Now().UTC(),
	}
	if _, err := s.db.Collection(messagesCollection).InsertOne(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send message on showing %q: %w", showingID, err)
	}
	return msg, nil
}

// resolveCounterparty picks the other participant from the showing record:
// the assigned agent when the buyer sends, the buyer when the agent sends.
// Falls back to a message-history scan when no agent is assigned yet.
func (s *messageService) resolveCounterparty(ctx context.Context, showing *models.ShowingRequest, senderID string) string {
	if senderID == showing.UserID && showing.AgentID() != "" {
		return showing.AgentID()
	}
	if showing.AgentID() != "" && senderID == showing.AgentID() {
		return showing.UserID
	}

	cursor, err := s.db.Collection(messagesCollection).Find(ctx,
		bson.M{"showing_request_id": showing.ID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return ""
	}
	defer cursor.Close(ctx)

	var thread []models.Message
	if err := cursor.All(ctx, &thread); err != nil {
		return ""
	}
	_, counterparty := scanParticipants(senderID, thread)
	return counterparty
}

// GetConversations returns the viewer's threads grouped by showing, newest
// activity first, with per-thread unread counts.
func (s *messageService) GetConversations(ctx context.Context, viewerID string) ([]models.Conversation, error) {
	filter := bson.M{"$or": []bson.M{{"sender_id": viewerID}, {"receiver_id": viewerID}}}
	// Secondary _id sort pins same-timestamp messages to insertion order.
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.db.Collection(messagesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying messages for viewer %s: %w", viewerID, err)
	}
	defer cursor.Close(ctx)

	var msgs []models.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("error decoding messages for viewer %s: %w", viewerID, err)
	}

	showings := make(map[string]*models.ShowingRequest)
	for i := range msgs {
		key := msgs[i].ShowingRequestID
		if key == "" {
			continue
		}
		if _, seen := showings[key]; seen {
			continue
		}
		showing, err := s.showingService.FindByID(ctx, key)
		if err != nil {
			if !errors.Is(err, mongo.ErrNoDocuments) {
				return nil, err
			}
			showing = nil
		}
		showings[key] = showing
	}

	return BuildConversations(viewerID, msgs, showings), nil
}

// MarkMessagesAsRead stamps a read receipt on every message in the thread
// addressed to the viewer. Idempotent, and storage failures are swallowed:
// a broken receipt write never breaks opening the thread.
func (s *messageService) MarkMessagesAsRead(ctx context.Context, showingID, viewerID string) error {
	filter := bson.M{
		"receiver_id": viewerID,
		"read_at":     nil,
	}
	if showingID == models.SupportConversationKey || showingID == "" {
		filter["showing_request_id"] = bson.M{"$in": []interface{}{nil, ""}}
	} else {
		filter["showing_request_id"] = showingID
	}

	_, err := s.db.Collection(messagesCollection).UpdateMany(ctx, filter,
		bson.M{"$set": bson.M{"read_at": time.Now().UTC()}})
	if err != nil {
		log.Printf("WARN: failed to mark messages read for viewer %s on %q: %v", viewerID, showingID, err)
	}
	return nil
}

// UnreadCount totals unread messages addressed to the viewer across every thread.
func (s *messageService) UnreadCount(ctx context.Context, viewerID string) (int, error) {
	count, err := s.db.Collection(messagesCollection).CountDocuments(ctx, bson.M{
		"receiver_id": viewerID,
		"read_at":     nil,
	})
	if err != nil {
		return 0, fmt.Errorf("error counting unread messages for viewer %s: %w", viewerID, err)
	}
	return int(count), nil
}
