package models

import (
	"time"
)

// PropertyRecord is best-effort cached listing metadata from the upstream
// property lookup service. Absence of a record never blocks a workflow
// operation; it only degrades what the UI can display.
type PropertyRecord struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	MlsID     string     `bson:"mls_id,omitempty" json:"mls_id,omitempty"`
	Address   string     `bson:"address" json:"address"`
	Price     *float64   `bson:"price,omitempty" json:"price,omitempty"`
	Beds      *int       `bson:"beds,omitempty" json:"beds,omitempty"`
	Baths     *float64   `bson:"baths,omitempty" json:"baths,omitempty"`
	Sqft      *int       `bson:"sqft,omitempty" json:"sqft,omitempty"`
	ImageURLs []string   `bson:"image_urls,omitempty" json:"image_urls,omitempty"`
	ImageKeys []string   `bson:"image_keys,omitempty" json:"image_keys,omitempty"` // S3 keys of cached thumbnails
	FetchedAt *time.Time `bson:"fetched_at,omitempty" json:"fetched_at,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}
