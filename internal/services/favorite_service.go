package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hometour/portal/internal/db"
	"hometour/portal/internal/models"
)

// IFavoriteService defines the interface for a buyer's saved properties.
type IFavoriteService interface {
	Add(ctx context.Context, buyerID, propertyAddress, mlsID, notes, showingRequestID string) (*models.FavoriteProperty, error)
	Remove(ctx context.Context, buyerID, favoriteID string) error
	RemoveForShowing(ctx context.Context, buyerID, showingRequestID string) error
	UpdateNotes(ctx context.Context, buyerID, favoriteID, notes string) error
	ListForBuyer(ctx context.Context, buyerID string) ([]models.FavoriteProperty, error)
}

const favoritesCollection = "favorite_properties"

// favoriteService implements IFavoriteService.
type favoriteService struct {
	db *mongo.Database
}

// NewFavoriteService creates a new FavoriteService.
func NewFavoriteService(db *mongo.Database) IFavoriteService {
	return &favoriteService{db: db}
}

// Add saves a property to the buyer's favorites. Saving the same MLS listing
// twice returns the existing record, enforced by the partial unique index on
// (buyer_id, mls_id).
func (s *favoriteService) Add(ctx context.Context, buyerID, propertyAddress, mlsID, notes, showingRequestID string) (*models.FavoriteProperty, error) {
	if strings.TrimSpace(propertyAddress) == "" {
		return nil, validationErrorf("property address is required")
	}

	collection := s.db.Collection(favoritesCollection)
	now := time.Now().UTC()
	favorite := &models.FavoriteProperty{
		ID:               uuid.NewString(),
		BuyerID:          buyerID,
		PropertyAddress:  strings.TrimSpace(propertyAddress),
		MlsID:            mlsID,
		Notes:            notes,
		ShowingRequestID: showingRequestID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	_, err := collection.InsertOne(ctx, favorite)
	if err != nil {
		if mlsID != "" && db.IsMongoDuplicateKeyError(err) {
			var existing models.FavoriteProperty
			findErr := collection.FindOne(ctx, bson.M{"buyer_id": buyerID, "mls_id": mlsID}).Decode(&existing)
			if findErr != nil {
				return nil, fmt.Errorf("favorite for buyer %s mls %s exists but could not be read back: %w", buyerID, mlsID, findErr)
			}
			return &existing, nil
		}
		return nil, fmt.Errorf("failed to save favorite for buyer %s: %w", buyerID, err)
	}
	return favorite, nil
}

// Remove deletes one of the buyer's favorites.
func (s *favoriteService) Remove(ctx context.Context, buyerID, favoriteID string) error {
	result, err := s.db.Collection(favoritesCollection).DeleteOne(ctx, bson.M{"_id": favoriteID, "buyer_id": buyerID})
	if err != nil {
		return fmt.Errorf("failed to remove favorite %s for buyer %s: %w", favoriteID, buyerID, err)
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// RemoveForShowing deletes the favorite that was mirrored from a showing's
// favorited action. Nothing to delete is a success no-op, matching the
// action tracker's undo semantics.
func (s *favoriteService) RemoveForShowing(ctx context.Context, buyerID, showingRequestID string) error {
	_, err := s.db.Collection(favoritesCollection).DeleteOne(ctx,
		bson.M{"buyer_id": buyerID, "showing_request_id": showingRequestID})
	if err != nil {
		return fmt.Errorf("failed to remove favorite for showing %s, buyer %s: %w", showingRequestID, buyerID, err)
	}
	return nil
}

// UpdateNotes replaces the free-text notes on a favorite.
func (s *favoriteService) UpdateNotes(ctx context.Context, buyerID, favoriteID, notes string) error {
	result, err := s.db.Collection(favoritesCollection).UpdateOne(ctx,
		bson.M{"_id": favoriteID, "buyer_id": buyerID},
		bson.M{"$set": bson.M{"notes": notes, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("failed to update notes on favorite %s for buyer %s: %w", favoriteID, buyerID, err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListForBuyer returns the buyer's favorites, newest first.
func (s *favoriteService) ListForBuyer(ctx context.Context, buyerID string) ([]models.FavoriteProperty, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(favoritesCollection).Find(ctx, bson.M{"buyer_id": buyerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying favorites for buyer %s: %w", buyerID, err)
	}
	defer cursor.Close(ctx)

	var favorites []models.FavoriteProperty
	if err := cursor.All(ctx, &favorites); err != nil {
		return nil, fmt.Errorf("error decoding favorites for buyer %s: %w", buyerID, err)
	}
	return favorites, nil
}
