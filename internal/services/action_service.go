package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hometour/portal/internal/db"
	"hometour/portal/internal/models"
)

// IActionService defines the interface for the post-showing action tracker.
type IActionService interface {
	RecordAction(ctx context.Context, showingID, buyerID string, actionType models.PostShowingActionType, details *models.ActionDetails) error
	RemoveAction(ctx context.Context, showingID, buyerID string, actionType models.PostShowingActionType) error
	GetActionsForShowing(ctx context.Context, showingID string) (models.ActionPresence, error)
	GetActionCount(ctx context.Context, showingID string) (int, error)
	RecordContactAttempt(ctx context.Context, showingID, buyerID, method string, details *models.ActionDetails)
	InterestForShowing(ctx context.Context, showingID string) (InterestLevel, int, error)
}

const actionsCollection = "post_showing_actions"

// actionService implements IActionService.
type actionService struct {
	db              *mongo.Database
	showingService  IShowingService
	favoriteService IFavoriteService
}

// NewActionService creates a new ActionService.
func NewActionService(db *mongo.Database, showingService IShowingService, favoriteService IFavoriteService) IActionService {
	return &actionService{db: db, showingService: showingService, favoriteService: favoriteService}
}

// checkCompletedAndOwned verifies the showing exists, belongs to the buyer and
// has finished its tour. Post-showing actions only unlock on completion.
func (s *actionService) checkCompletedAndOwned(ctx context.Context, showingID, buyerID string) (*models.ShowingRequest, error) {
	showing, err := s.showingService.FindByID(ctx, showingID)
	if err != nil {
		return nil, err
	}
	if showing.UserID != buyerID {
		return nil, validationErrorf("showing %s does not belong to buyer %s", showingID, buyerID)
	}
	if showing.Status != models.StatusCompleted {
		return nil, fmt.Errorf("showing %s is %s, post-showing actions require a completed tour: %w",
			showingID, showing.Status, ErrInvalidTransition)
	}
	return showing, nil
}

// RecordAction records one buyer action against a completed showing.
// Reversible types (favorited, hired_agent) are idempotent: a second record
// while one is active is a success no-op, enforced by the partial unique index
// rather than a read-then-write. Append-only types always insert a fresh row.
func (s *actionService) RecordAction(ctx context.Context, showingID, buyerID string, actionType models.PostShowingActionType, details *models.ActionDetails) error {
	switch actionType {
	case models.ActionFavorited, models.ActionMadeOffer, models.ActionHiredAgent, models.ActionScheduledMoreTours:
	default:
		return validationErrorf("unknown action type %q", actionType)
	}

	showing, err := s.checkCompletedAndOwned(ctx, showingID, buyerID)
	if err != nil {
		return err
	}

	_, err = s.db.Collection(actionsCollection).InsertOne(ctx, &models.PostShowingAction{
		ID:               uuid.NewString(),
		ShowingRequestID: showingID,
		BuyerID:          buyerID,
		ActionType:       actionType,
		Details:          details,
		CreatedAt:        time.Now().UTC(),
	})
	if err != nil {
		if actionType.IsReversible() && db.IsMongoDuplicateKeyError(err) {
			// Already active, which is what the caller asked for.
			return nil
		}
		return fmt.Errorf("failed to record %s for showing %s: %w", actionType, showingID, err)
	}

	if actionType == models.ActionFavorited && s.favoriteService != nil {
		// Mirror the action into the buyer's favorites list. Best-effort: the
		// action row is the source of truth for the checklist.
		if _, favErr := s.favoriteService.Add(ctx, buyerID, showing.PropertyAddress, showing.MlsID, "", showingID); favErr != nil {
			log.Printf("WARN: failed to mirror favorited action into favorites for showing %s: %v", showingID, favErr)
		}
	}
	return nil
}

// RemoveAction undoes a reversible action. Removing an action that is not
// active is a success no-op; undoing an append-only type is ErrNotReversible.
func (s *actionService) RemoveAction(ctx context.Context, showingID, buyerID string, actionType models.PostShowingActionType) error {
	if !actionType.IsReversible() {
		return fmt.Errorf("action %s on showing %s: %w", actionType, showingID, ErrNotReversible)
	}

	result, err := s.db.Collection(actionsCollection).DeleteOne(ctx, bson.M{
		"showing_request_id": showingID,
		"buyer_id":           buyerID,
		"action_type":        actionType,
	})
	if err != nil {
		return fmt.Errorf("failed to remove %s for showing %s: %w", actionType, showingID, err)
	}

	if actionType == models.ActionFavorited && result.DeletedCount > 0 && s.favoriteService != nil {
		// Undo the mirrored favorites-list entry too. Best-effort, same as
		// the mirroring on record.
		if favErr := s.favoriteService.RemoveForShowing(ctx, buyerID, showingID); favErr != nil {
			log.Printf("WARN: failed to remove mirrored favorite for showing %s: %v", showingID, favErr)
		}
	}
	// DeletedCount == 0 means nothing was active; still a success.
	return nil
}

// loadActions returns every action row for a showing.
func (s *actionService) loadActions(ctx context.Context, showingID string) ([]models.PostShowingAction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(actionsCollection).Find(ctx, bson.M{"showing_request_id": showingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying actions for showing %s: %w", showingID, err)
	}
	defer cursor.Close(ctx)

	var actions []models.PostShowingAction
	if err := cursor.All(ctx, &actions); err != nil {
		return nil, fmt.Errorf("error decoding actions for showing %s: %w", showingID, err)
	}
	return actions, nil
}

// GetActionsForShowing returns the boolean presence map for the completion checklist.
func (s *actionService) GetActionsForShowing(ctx context.Context, showingID string) (models.ActionPresence, error) {
	actions, err := s.loadActions(ctx, showingID)
	if err != nil {
		return models.ActionPresence{}, err
	}
	var presence models.ActionPresence
	for _, a := range actions {
		switch a.ActionType {
		case models.ActionFavorited:
			presence.Favorited = true
		case models.ActionMadeOffer:
			presence.MadeOffer = true
		case models.ActionHiredAgent:
			presence.HiredAgent = true
		case models.ActionScheduledMoreTours:
			presence.ScheduledMoreTours = true
		}
	}
	return presence, nil
}

// GetActionCount returns the number of distinct completed action types, not
// the row count.
func (s *actionService) GetActionCount(ctx context.Context, showingID string) (int, error) {
	presence, err := s.GetActionsForShowing(ctx, showingID)
	if err != nil {
		return 0, err
	}
	return presence.Count(), nil
}

// contactAttemptTypes maps the UI's contact method onto its action type.
var contactAttemptTypes = map[string]models.PostShowingActionType{
	"sms":   models.ActionAttemptedContactSms,
	"call":  models.ActionAttemptedContactCall,
	"email": models.ActionAttemptedContactEmail,
}

// RecordContactAttempt logs a tap-to-contact event. Strictly best-effort
// telemetry: every failure is swallowed after logging so a slow or broken
// write can never surface into the buyer's contact flow.
func (s *actionService) RecordContactAttempt(ctx context.Context, showingID, buyerID, method string, details *models.ActionDetails) {
	actionType, ok := contactAttemptTypes[method]
	if !ok {
		log.Printf("WARN: dropping contact attempt with unknown method %q for showing %s", method, showingID)
		return
	}

	_, err := s.db.Collection(actionsCollection).InsertOne(ctx, &models.PostShowingAction{
		ID:               uuid.NewString(),
		ShowingRequestID: showingID,
		BuyerID:          buyerID,
		ActionType:       actionType,
		Details:          details,
		CreatedAt:        time.Now().UTC(),
	})
	if err != nil {
		log.Printf("WARN: failed to record %s attempt for showing %s: %v", method, showingID, err)
	}
}

// InterestForShowing computes the agent-facing interest level from the
// showing's recorded actions.
func (s *actionService) InterestForShowing(ctx context.Context, showingID string) (InterestLevel, int, error) {
	actions, err := s.loadActions(ctx, showingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return InterestNone, 0, nil
		}
		return InterestNone, 0, err
	}
	score := SignalsFromActions(actions).Score()
	return ClassifyInterest(score), score, nil
}
