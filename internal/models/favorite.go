package models

import (
	"time"
)

// FavoriteProperty is a buyer's saved property, optionally linked back to the
// showing that produced it. Unique per (buyer_id, mls_id) when an MLS id is present.
type FavoriteProperty struct {
	ID               string    `bson:"_id,omitempty" json:"id,omitempty"`
	BuyerID          string    `bson:"buyer_id" json:"buyer_id"`
	PropertyAddress  string    `bson:"property_address" json:"property_address"`
	MlsID            string    `bson:"mls_id,omitempty" json:"mls_id,omitempty"`
	Notes            string    `bson:"notes,omitempty" json:"notes,omitempty"`
	ShowingRequestID string    `bson:"showing_request_id,omitempty" json:"showing_request_id,omitempty"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
}
