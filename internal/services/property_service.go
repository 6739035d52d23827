package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hometour/portal/internal/config"
	"hometour/portal/internal/db"
	"hometour/portal/internal/models"
	"hometour/portal/internal/search"
)

// IPropertyService defines the interface for best-effort listing enrichment.
// Nothing here is ever allowed to block a workflow operation: lookups degrade
// to nil, refreshes happen in the background.
type IPropertyService interface {
	Lookup(ctx context.Context, address, mlsID string) (*models.PropertyRecord, error)
	Search(ctx context.Context, query string, limit int64) ([]models.PropertyRecord, error)
	Refresh(ctx context.Context, address, mlsID string) (*models.PropertyRecord, error)
	AddImageKey(ctx context.Context, recordID, imageKey string) error
}

const propertiesCollection = "properties"

const propertyCacheKeyPrefix = "property:"

// propertyService implements IPropertyService.
type propertyService struct {
	db    *mongo.Database
	rdb   *redis.Client
	cfg   *config.Config
	index search.IPropertyIndex
	http  *http.Client
}

// NewPropertyService creates a new PropertyService.
func NewPropertyService(db *mongo.Database, rdb *redis.Client, cfg *config.Config, index search.IPropertyIndex) IPropertyService {
	return &propertyService{
		db:    db,
		rdb:   rdb,
		cfg:   cfg,
		index: index,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

func cacheKey(address, mlsID string) string {
	if mlsID != "" {
		return propertyCacheKeyPrefix + "mls:" + mlsID
	}
	return propertyCacheKeyPrefix + "addr:" + strings.ToLower(strings.TrimSpace(address))
}

// Lookup returns cached metadata for a listing: Redis first, then Mongo, then
// a synchronous upstream fetch as last resort. A nil record with nil error
// means nothing is known, which callers must tolerate.
func (s *propertyService) Lookup(ctx context.Context, address, mlsID string) (*models.PropertyRecord, error) {
	key := cacheKey(address, mlsID)

	if s.rdb != nil {
		cached, err := s.rdb.Get(ctx, key).Result()
		if err == nil {
			var record models.PropertyRecord
			if jsonErr := json.Unmarshal([]byte(cached), &record); jsonErr == nil {
				return &record, nil
			}
			// Corrupt cache entry; fall through to Mongo.
			s.rdb.Del(ctx, key)
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("WARN: redis error reading %s: %v", key, err)
		}
	}

	record, err := s.findStored(ctx, address, mlsID)
	if err != nil {
		return nil, err
	}
	if record != nil && !s.isStale(record) {
		s.cacheRecord(ctx, key, record)
		return record, nil
	}

	fresh, err := s.Refresh(ctx, address, mlsID)
	if err != nil {
		// Upstream failure degrades to whatever was stored, stale or not.
		log.Printf("WARN: property refresh failed for %q/%q: %v", address, mlsID, err)
		return record, nil
	}
	return fresh, nil
}

func (s *propertyService) findStored(ctx context.Context, address, mlsID string) (*models.PropertyRecord, error) {
	filter := bson.M{"address": strings.TrimSpace(address)}
	if mlsID != "" {
		filter = bson.M{"mls_id": mlsID}
	}
	var record models.PropertyRecord
	err := s.db.Collection(propertiesCollection).FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding property record: %w", err)
	}
	return &record, nil
}

func (s *propertyService) isStale(record *models.PropertyRecord) bool {
	if record.FetchedAt == nil {
		return true
	}
	return time.Since(*record.FetchedAt) > s.cfg.PropertyCacheTTL
}

func (s *propertyService) cacheRecord(ctx context.Context, key string, record *models.PropertyRecord) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, data, s.cfg.PropertyCacheTTL).Err(); err != nil {
		log.Printf("WARN: redis error caching %s: %v", key, err)
	}
}

// upstreamProperty is the lookup service's response shape.
type upstreamProperty struct {
	MlsID     string   `json:"mls_id"`
	Address   string   `json:"address"`
	Price     *float64 `json:"price"`
	Beds      *int     `json:"beds"`
	Baths     *float64 `json:"baths"`
	Sqft      *int     `json:"sqft"`
	ImageURLs []string `json:"image_urls"`
}

// Refresh fetches listing metadata from the upstream lookup service and
// stores it in Mongo, Redis and the search index.
func (s *propertyService) Refresh(ctx context.Context, address, mlsID string) (*models.PropertyRecord, error) {
	if s.cfg.PropertyLookupBaseURL == "" {
		return nil, errors.New("property lookup service is not configured")
	}

	query := url.Values{}
	if mlsID != "" {
		query.Set("mls_id", mlsID)
	} else {
		query.Set("address", strings.TrimSpace(address))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.cfg.PropertyLookupBaseURL+"/v1/listings?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build property lookup request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("property lookup request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("property lookup returned status %d", resp.StatusCode)
	}

	var upstream upstreamProperty
	if err := json.NewDecoder(resp.Body).Decode(&upstream); err != nil {
		return nil, fmt.Errorf("failed to decode property lookup response: %w", err)
	}

	record, err := s.store(ctx, &upstream)
	if err != nil {
		return nil, err
	}

	s.cacheRecord(ctx, cacheKey(record.Address, record.MlsID), record)
	if s.index != nil {
		if idxErr := s.index.IndexProperty(record); idxErr != nil {
			log.Printf("WARN: failed to index property %s: %v", record.Address, idxErr)
		}
	}
	return record, nil
}

// store upserts the fetched metadata keyed by MLS id when present, address
// otherwise.
func (s *propertyService) store(ctx context.Context, upstream *upstreamProperty) (*models.PropertyRecord, error) {
	collection := s.db.Collection(propertiesCollection)
	now := time.Now().UTC()

	filter := bson.M{"address": upstream.Address}
	if upstream.MlsID != "" {
		filter = bson.M{"mls_id": upstream.MlsID}
	}

	set := bson.M{
		"mls_id":     upstream.MlsID,
		"address":    upstream.Address,
		"price":      upstream.Price,
		"beds":       upstream.Beds,
		"baths":      upstream.Baths,
		"sqft":       upstream.Sqft,
		"image_urls": upstream.ImageURLs,
		"fetched_at": now,
		"updated_at": now,
	}
	onInsert := bson.M{"_id": uuid.NewString(), "created_at": now}

	operation := func() error {
		_, err := collection.UpdateOne(ctx, filter,
			bson.M{"$set": set, "$setOnInsert": onInsert},
			options.Update().SetUpsert(true))
		return err
	}
	// Concurrent upserts of the same listing can both race past the match and
	// collide on the unique mls index; retrying lets the loser become an update.
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to store property record for %q: %w", upstream.Address, err)
	}

	var record models.PropertyRecord
	if err := collection.FindOne(ctx, filter).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to read back property record for %q: %w", upstream.Address, err)
	}
	return &record, nil
}

// Search autocompletes addresses from the search index.
func (s *propertyService) Search(ctx context.Context, query string, limit int64) ([]models.PropertyRecord, error) {
	if s.index == nil {
		return nil, nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	return s.index.SearchAddresses(query, limit)
}

// AddImageKey appends a cached-thumbnail S3 key to a property record.
func (s *propertyService) AddImageKey(ctx context.Context, recordID, imageKey string) error {
	result, err := s.db.Collection(propertiesCollection).UpdateOne(ctx,
		bson.M{"_id": recordID},
		bson.M{
			"$addToSet": bson.M{"image_keys": imageKey},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return fmt.Errorf("failed to add image key to property %s: %w", recordID, err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
