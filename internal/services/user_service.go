package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"hometour/portal/internal/auth"
	"hometour/portal/internal/db"
	"hometour/portal/internal/models"
)

// ErrEmailExists is returned when an attempt is made to register an email
// that already has an account.
var ErrEmailExists = errors.New("email already in use by another account")

// ErrInvalidCredentials is returned for bad email/password combinations.
// Deliberately indistinguishable between unknown email and wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// IUserService defines the interface for user accounts.
type IUserService interface {
	Register(ctx context.Context, name, email, password, phone string, role models.UserRole) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindByID(ctx context.Context, userID string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetTier(ctx context.Context, userID string, tier models.BuyerTier) error
}

const usersCollection = "users"

// userService implements IUserService.
type userService struct {
	db *mongo.Database
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database) IUserService {
	return &userService{db: db}
}

// Register creates a new buyer or agent account. Buyers start on the free tier.
func (s *userService) Register(ctx context.Context, name, email, password, phone string, role models.UserRole) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, validationErrorf("a valid email is required")
	}
	if len(password) < 8 {
		return nil, validationErrorf("password must be at least 8 characters")
	}
	if role != models.RoleBuyer && role != models.RoleAgent {
		return nil, validationErrorf("unknown role %q", role)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password for %s: %w", email, err)
	}

	collection := s.db.Collection(usersCollection)
	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Phone:        phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if role == models.RoleBuyer {
		user.Tier = models.TierFree
	}

	if _, err := collection.InsertOne(ctx, user); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("error inserting new user %s: %w", email, err)
	}
	return user, nil
}

// Authenticate verifies an email/password pair against the stored hash.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// FindByID finds a non-deleted user by their ID.
func (s *userService) FindByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": userID, "deleted": false}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user %s: %w", userID, err)
	}
	return &user, nil
}

// FindByEmail finds a non-deleted user by their email address.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"email": email, "deleted": false}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// SetTier switches a buyer between the free and paid booking tiers.
func (s *userService) SetTier(ctx context.Context, userID string, tier models.BuyerTier) error {
	if tier != models.TierFree && tier != models.TierPaid {
		return validationErrorf("unknown tier %q", tier)
	}
	result, err := s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"_id": userID, "role": models.RoleBuyer, "deleted": false},
		bson.M{"$set": bson.M{"tier": tier, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("error setting tier for user %s: %w", userID, err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
