package models

import (
	"time"
)

// UserRole distinguishes the two actor types in the portal.
type UserRole string

const (
	RoleBuyer UserRole = "buyer"
	RoleAgent UserRole = "agent"
)

// BuyerTier gates same-day booking eligibility.
type BuyerTier string

const (
	TierFree BuyerTier = "free"
	TierPaid BuyerTier = "paid"
)

// User represents a buyer or an agent account.
type User struct {
	ID           string    `bson:"_id,omitempty" json:"id,omitempty"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password" json:"-"`
	Role         UserRole  `bson:"role" json:"role"`
	Tier         BuyerTier `bson:"tier,omitempty" json:"tier,omitempty"` // buyers only
	Phone        string    `bson:"phone,omitempty" json:"phone,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
	Deleted      bool      `bson:"deleted" json:"-"` // Soft delete flag
}
