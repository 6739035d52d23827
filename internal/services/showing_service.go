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

	"hometour/portal/internal/config"
	"hometour/portal/internal/db"
	"hometour/portal/internal/models"
)

// IShowingService defines the interface for the showing lifecycle.
type IShowingService interface {
	Submit(ctx context.Context, buyer *models.User, propertyAddress, mlsID, preferredDate, preferredTime, message string, consentToContact bool) (*models.ShowingRequest, error)
	FindByID(ctx context.Context, showingID string) (*models.ShowingRequest, error)
	ListForBuyer(ctx context.Context, buyerID string) ([]models.ShowingRequest, error)
	ListForAgent(ctx context.Context, agentID string) ([]models.ShowingRequest, error)
	ListAssignable(ctx context.Context) ([]models.ShowingRequest, error)
	AssignAgent(ctx context.Context, showingID string, agent models.AssignedAgent) error
	AgentConfirm(ctx context.Context, showingID, agentID string) error
	SignAgreement(ctx context.Context, showingID, buyerID, signerName, documentKey string) error
	BuyerConfirm(ctx context.Context, showingID, buyerID string) error
	Cancel(ctx context.Context, showingID, userID string) error
	Reschedule(ctx context.Context, showing *models.ShowingRequest, buyer *models.User, newDate, newTime, reason string) error
	Complete(ctx context.Context, showingID, agentID string) error
	FindAgreement(ctx context.Context, showingID string) (*models.TourAgreement, error)
	ClaimCompletionNotice(ctx context.Context, showingID string) (bool, error)
	ReleaseCompletionNotice(ctx context.Context, showingID string) error
	ListUnnotifiedCompleted(ctx context.Context, limit int64) ([]models.ShowingRequest, error)
	ListAwaitingConfirmationSince(ctx context.Context, cutoff time.Time) ([]models.ShowingRequest, error)
}

const (
	showingsCollection   = "showing_requests"
	agreementsCollection = "tour_agreements"
)

// showingService implements IShowingService.
type showingService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewShowingService creates a new ShowingService.
func NewShowingService(db *mongo.Database, cfg *config.Config) IShowingService {
	return &showingService{db: db, cfg: cfg}
}

// Submit creates a new showing request in the pending state.
func (s *showingService) Submit(ctx context.Context, buyer *models.User, propertyAddress, mlsID, preferredDate, preferredTime, message string, consentToContact bool) (*models.ShowingRequest, error) {
	if strings.TrimSpace(propertyAddress) == "" {
		return nil, validationErrorf("property address is required")
	}
	if preferredDate != "" {
		if !IsTimeSlotAvailable(time.Now(), buyer.Tier, preferredDate, preferredTime, s.cfg.PaidBookingLeadTime) {
			return nil, validationErrorf("slot %s %s is not bookable for a %s buyer", preferredDate, preferredTime, buyer.Tier)
		}
	}

	collection := s.db.Collection(showingsCollection)
	now := time.Now().UTC()
	estConfirm := now.AddDate(0, 0, s.cfg.EstimatedConfirmDays)

	var showing *models.ShowingRequest
	operation := func() error {
		showing = &models.ShowingRequest{
			ID:                        uuid.NewString(),
			UserID:                    buyer.ID,
			PropertyAddress:           strings.TrimSpace(propertyAddress),
			MlsID:                     mlsID,
			PreferredDate:             preferredDate,
			PreferredTime:             preferredTime,
			Message:                   message,
			Status:                    models.StatusPending,
			AgreementRequired:         s.cfg.AgreementRequired,
			BuyerConsentToContact:     consentToContact,
			StatusUpdatedAt:           now,
			EstimatedConfirmationDate: &estConfirm,
			CreatedAt:                 now,
			UpdatedAt:                 now,
		}
		_, insertErr := collection.InsertOne(ctx, showing)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert showing request for buyer %s: %w", buyer.ID, err)
	}
	return showing, nil
}

// FindByID finds a showing request by its ID.
func (s *showingService) FindByID(ctx context.Context, showingID string) (*models.ShowingRequest, error) {
	var showing models.ShowingRequest
	err := s.db.Collection(showingsCollection).FindOne(ctx, bson.M{"_id": showingID}).Decode(&showing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding showing %s: %w", showingID, err)
	}
	return &showing, nil
}

func (s *showingService) listShowings(ctx context.Context, filter bson.M) ([]models.ShowingRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(showingsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying showings: %w", err)
	}
	defer cursor.Close(ctx)

	var showings []models.ShowingRequest
	if err := cursor.All(ctx, &showings); err != nil {
		return nil, fmt.Errorf("error decoding showings: %w", err)
	}
	return showings, nil
}

// ListForBuyer returns all of a buyer's showing requests, newest first.
func (s *showingService) ListForBuyer(ctx context.Context, buyerID string) ([]models.ShowingRequest, error) {
	return s.listShowings(ctx, bson.M{"user_id": buyerID})
}

// ListForAgent returns all showings assigned to an agent, newest first.
func (s *showingService) ListForAgent(ctx context.Context, agentID string) ([]models.ShowingRequest, error) {
	return s.listShowings(ctx, bson.M{"agent.agent_id": agentID})
}

// ListAssignable returns showings no agent has claimed yet.
func (s *showingService) ListAssignable(ctx context.Context) ([]models.ShowingRequest, error) {
	return s.listShowings(ctx, bson.M{"status": bson.M{"$in": assignableStatuses}})
}

// AssignAgent claims a showing for an agent with a conditional update: the
// write only matches while the stored status is still assignable, so two
// agents racing for the same request cannot both win. The loser gets
// ErrAlreadyAssigned.
func (s *showingService) AssignAgent(ctx context.Context, showingID string, agent models.AssignedAgent) error {
	collection := s.db.Collection(showingsCollection)
	now := time.Now().UTC()

	filter := bson.M{
		"_id":    showingID,
		"status": bson.M{"$in": assignableStatuses},
	}
	update := bson.M{
		"$set": bson.M{
			"status":            models.StatusAgentAssigned,
			"agent":             agent,
			"status_updated_at": now,
			"updated_at":        now,
		},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error assigning agent %s to showing %s: %w", agent.AgentID, showingID, err)
	}
	if result.MatchedCount == 0 {
		// Diagnose why the conditional write missed.
		var showing models.ShowingRequest
		checkErr := collection.FindOne(ctx, bson.M{"_id": showingID}).Decode(&showing)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return mongo.ErrNoDocuments
		}
		if checkErr != nil {
			return fmt.Errorf("db error checking showing %s after failed assignment: %w", showingID, checkErr)
		}
		if showing.Agent != nil {
			return fmt.Errorf("showing %s was claimed by agent %s: %w", showingID, showing.AgentID(), ErrAlreadyAssigned)
		}
		return fmt.Errorf("showing %s is %s: %w", showingID, showing.Status, ErrInvalidTransition)
	}
	return nil
}

// AgentConfirm moves an assigned showing to agent_confirmed, or straight to
// awaiting_agreement when the showing needs a signed agreement. A pending
// TourAgreement record is created at the same time.
func (s *showingService) AgentConfirm(ctx context.Context, showingID, agentID string) error {
	showing, err := s.FindByID(ctx, showingID)
	if err != nil {
		return err
	}
	if showing.AgentID() != agentID {
		return validationErrorf("showing %s is not assigned to agent %s", showingID, agentID)
	}

	target := models.StatusAgentConfirmed
	if showing.AgreementRequired {
		target = models.StatusAwaitingAgreement
	}
	if err := s.transition(ctx, showingID, models.StatusAgentAssigned, target, nil); err != nil {
		return err
	}

	if showing.AgreementRequired {
		if err := s.createAgreement(ctx, showing); err != nil {
			// The transition already happened; the agreement row is created
			// lazily on sign if this insert failed.
			log.Printf("WARN: failed to create tour agreement for showing %s: %v", showingID, err)
		}
	}
	return nil
}

// createAgreement inserts the 1:1 unsigned agreement row. A duplicate-key
// error means one already exists, which is fine.
func (s *showingService) createAgreement(ctx context.Context, showing *models.ShowingRequest) error {
	_, err := s.db.Collection(agreementsCollection).InsertOne(ctx, &models.TourAgreement{
		ID:               uuid.NewString(),
		ShowingRequestID: showing.ID,
		BuyerID:          showing.UserID,
		AgentID:          showing.AgentID(),
		AgreementType:    "single_tour_non_exclusive",
		Signed:           false,
		CreatedAt:        time.Now().UTC(),
	})
	if err != nil && db.IsMongoDuplicateKeyError(err) {
		return nil
	}
	return err
}

// FindAgreement returns the agreement row for a showing, or mongo.ErrNoDocuments.
func (s *showingService) FindAgreement(ctx context.Context, showingID string) (*models.TourAgreement, error) {
	var agreement models.TourAgreement
	err := s.db.Collection(agreementsCollection).FindOne(ctx, bson.M{"showing_request_id": showingID}).Decode(&agreement)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding agreement for showing %s: %w", showingID, err)
	}
	return &agreement, nil
}

// SignAgreement records the one-time sign event and moves the showing to
// confirmed. Valid only from agent_confirmed/awaiting_agreement with an
// unsigned agreement in place.
func (s *showingService) SignAgreement(ctx context.Context, showingID, buyerID, signerName, documentKey string) error {
	if strings.TrimSpace(signerName) == "" {
		return validationErrorf("signer name is required")
	}

	showing, err := s.FindByID(ctx, showingID)
	if err != nil {
		return err
	}
	if showing.UserID != buyerID {
		return validationErrorf("showing %s does not belong to buyer %s", showingID, buyerID)
	}
	if showing.Status != models.StatusAgentConfirmed && showing.Status != models.StatusAwaitingAgreement {
		return fmt.Errorf("cannot sign agreement while showing %s is %s: %w", showingID, showing.Status, ErrInvalidTransition)
	}

	// Recover from a lost agreement insert during AgentConfirm.
	if _, err := s.FindAgreement(ctx, showingID); errors.Is(err, mongo.ErrNoDocuments) {
		if err := s.createAgreement(ctx, showing); err != nil {
			return fmt.Errorf("failed to create agreement for showing %s before signing: %w", showingID, err)
		}
	} else if err != nil {
		return err
	}

	now := time.Now().UTC()
	set := bson.M{
		"signed":      true,
		"signer_name": strings.TrimSpace(signerName),
		"signed_at":   now,
	}
	if documentKey != "" {
		set["document_key"] = documentKey
	}
	result, err := s.db.Collection(agreementsCollection).UpdateOne(ctx,
		bson.M{"showing_request_id": showingID, "signed": false},
		bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("db error signing agreement for showing %s: %w", showingID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("agreement for showing %s is already signed: %w", showingID, ErrInvalidTransition)
	}

	return s.transition(ctx, showingID, showing.Status, models.StatusConfirmed, nil)
}

// BuyerConfirm moves agent_confirmed to confirmed for showings with no
// agreement requirement.
func (s *showingService) BuyerConfirm(ctx context.Context, showingID, buyerID string) error {
	showing, err := s.FindByID(ctx, showingID)
	if err != nil {
		return err
	}
	if showing.UserID != buyerID {
		return validationErrorf("showing %s does not belong to buyer %s", showingID, buyerID)
	}
	if showing.AgreementRequired {
		agreement, err := s.FindAgreement(ctx, showingID)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}
		if agreement == nil || !agreement.Signed {
			return fmt.Errorf("showing %s still needs a signed agreement: %w", showingID, ErrInvalidTransition)
		}
	}
	return s.transition(ctx, showingID, models.StatusAgentConfirmed, models.StatusConfirmed, nil)
}

// Cancel moves any non-terminal showing to cancelled and freezes its messaging.
func (s *showingService) Cancel(ctx context.Context, showingID, userID string) error {
	showing, err := s.FindByID(ctx, showingID)
	if err != nil {
		return err
	}
	if showing.UserID != userID && showing.AgentID() != userID {
		return validationErrorf("user %s is not a participant of showing %s", userID, showingID)
	}
	if showing.Status.IsTerminal() {
		return fmt.Errorf("showing %s is already %s: %w", showingID, showing.Status, ErrInvalidTransition)
	}
	now := time.Now().UTC()
	return s.transition(ctx, showingID, showing.Status, models.StatusCancelled, bson.M{"cancelled_at": now})
}

// Reschedule resets a non-terminal, not-yet-started showing back to pending
// with a new buyer-proposed slot. The prior agent assignment is retained on
// the record but the request re-enters the assignable pool via its status.
func (s *showingService) Reschedule(ctx context.Context, showing *models.ShowingRequest, buyer *models.User, newDate, newTime, reason string) error {
	if showing.UserID != buyer.ID {
		return validationErrorf("showing %s does not belong to buyer %s", showing.ID, buyer.ID)
	}
	if newDate == "" {
		return validationErrorf("new preferred date is required")
	}
	if !IsTimeSlotAvailable(time.Now(), buyer.Tier, newDate, newTime, s.cfg.PaidBookingLeadTime) {
		return validationErrorf("slot %s %s is not bookable for a %s buyer", newDate, newTime, buyer.Tier)
	}

	extra := bson.M{
		"preferred_date": newDate,
		"preferred_time": newTime,
	}
	if reason != "" {
		extra["message"] = reason
	}

	// A still-pending showing keeps its status; only the slot changes.
	if showing.Status == models.StatusPending {
		now := time.Now().UTC()
		extra["updated_at"] = now
		_, err := s.db.Collection(showingsCollection).UpdateOne(ctx,
			bson.M{"_id": showing.ID, "status": models.StatusPending},
			bson.M{"$set": extra})
		if err != nil {
			return fmt.Errorf("db error rescheduling pending showing %s: %w", showing.ID, err)
		}
		return nil
	}
	return s.transition(ctx, showing.ID, showing.Status, models.StatusPending, extra)
}

// Complete finishes a tour. Only the assigned agent may complete, and only
// from confirmed/scheduled/in_progress.
func (s *showingService) Complete(ctx context.Context, showingID, agentID string) error {
	showing, err := s.FindByID(ctx, showingID)
	if err != nil {
		return err
	}
	if showing.AgentID() != agentID {
		return validationErrorf("showing %s is not assigned to agent %s", showingID, agentID)
	}
	switch showing.Status {
	case models.StatusConfirmed, models.StatusScheduled, models.StatusInProgress:
	default:
		return fmt.Errorf("cannot complete showing %s from %s: %w", showingID, showing.Status, ErrInvalidTransition)
	}

	now := time.Now().UTC()
	return s.transition(ctx, showingID, showing.Status, models.StatusCompleted, bson.M{"completed_at": now})
}

// transition performs a conditional status update: the filter pins the
// expected pre-state so a concurrent mutation makes the write miss instead of
// clobbering it.
func (s *showingService) transition(ctx context.Context, showingID string, from, to models.ShowingStatus, extraSet bson.M) error {
	if err := ValidateTransition(from, to); err != nil {
		return err
	}

	now := time.Now().UTC()
	set := bson.M{
		"status":            to,
		"status_updated_at": now,
		"updated_at":        now,
	}
	for k, v := range extraSet {
		set[k] = v
	}

	collection := s.db.Collection(showingsCollection)
	result, err := collection.UpdateOne(ctx, bson.M{"_id": showingID, "status": from}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("db error moving showing %s from %s to %s: %w", showingID, from, to, err)
	}
	if result.MatchedCount == 0 {
		var showing models.ShowingRequest
		checkErr := collection.FindOne(ctx, bson.M{"_id": showingID}).Decode(&showing)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return mongo.ErrNoDocuments
		}
		if checkErr != nil {
			return fmt.Errorf("db error checking showing %s after failed transition: %w", showingID, checkErr)
		}
		return fmt.Errorf("showing %s moved to %s concurrently, expected %s: %w", showingID, showing.Status, from, ErrInvalidTransition)
	}
	return nil
}

// ClaimCompletionNotice flips completion_notified for a completed showing.
// Returns true for exactly one caller per showing; the completion webhook is
// only enqueued by whoever wins the claim.
func (s *showingService) ClaimCompletionNotice(ctx context.Context, showingID string) (bool, error) {
	result, err := s.db.Collection(showingsCollection).UpdateOne(ctx,
		bson.M{"_id": showingID, "status": models.StatusCompleted, "completion_notified": false},
		bson.M{"$set": bson.M{"completion_notified": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		return false, fmt.Errorf("db error claiming completion notice for showing %s: %w", showingID, err)
	}
	return result.MatchedCount > 0, nil
}

// ReleaseCompletionNotice undoes a claim whose enqueue failed, so the hourly
// sweep picks the showing up again.
func (s *showingService) ReleaseCompletionNotice(ctx context.Context, showingID string) error {
	_, err := s.db.Collection(showingsCollection).UpdateOne(ctx,
		bson.M{"_id": showingID, "status": models.StatusCompleted},
		bson.M{"$set": bson.M{"completion_notified": false, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("db error releasing completion notice for showing %s: %w", showingID, err)
	}
	return nil
}

// ListUnnotifiedCompleted returns completed showings whose webhook enqueue
// never happened (crash between transition and enqueue).
func (s *showingService) ListUnnotifiedCompleted(ctx context.Context, limit int64) ([]models.ShowingRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "completed_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := s.db.Collection(showingsCollection).Find(ctx,
		bson.M{"status": models.StatusCompleted, "completion_notified": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying unnotified completed showings: %w", err)
	}
	defer cursor.Close(ctx)

	var showings []models.ShowingRequest
	if err := cursor.All(ctx, &showings); err != nil {
		return nil, fmt.Errorf("error decoding unnotified completed showings: %w", err)
	}
	return showings, nil
}

// ListAwaitingConfirmationSince returns pending-side showings whose estimated
// confirmation date has passed, for the reminder sweep.
func (s *showingService) ListAwaitingConfirmationSince(ctx context.Context, cutoff time.Time) ([]models.ShowingRequest, error) {
	filter := bson.M{
		"status":                      bson.M{"$in": assignableStatuses},
		"estimated_confirmation_date": bson.M{"$lte": cutoff},
	}
	return s.listShowings(ctx, filter)
}
