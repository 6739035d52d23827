package search

import (
	"fmt"

	"github.com/meilisearch/meilisearch-go"

	"hometour/portal/internal/models"
)

// IPropertyIndex is the search surface the property service depends on.
type IPropertyIndex interface {
	InitIndex() error
	IndexProperty(record *models.PropertyRecord) error
	SearchAddresses(query string, limit int64) ([]models.PropertyRecord, error)
}

// PropertyIndex wraps the Meilisearch index used for address autocomplete.
type PropertyIndex struct {
	client *meilisearch.Client
	index  string
}

// NewPropertyIndex creates a Meilisearch-backed property index.
func NewPropertyIndex(host, apiKey, index string) *PropertyIndex {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})
	return &PropertyIndex{client: client, index: index}
}

// InitIndex creates the index and configures its attributes. Safe to call on
// every startup.
func (p *PropertyIndex) InitIndex() error {
	_, err := p.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        p.index,
		PrimaryKey: "id",
	})
	if err != nil && err.Error() != "index already exists" {
		return fmt.Errorf("failed to create index %s: %w", p.index, err)
	}

	if _, err := p.client.Index(p.index).UpdateSearchableAttributes(&[]string{
		"address",
		"mls_id",
	}); err != nil {
		return fmt.Errorf("failed to configure searchable attributes: %w", err)
	}

	if _, err := p.client.Index(p.index).UpdateFilterableAttributes(&[]string{
		"price",
		"beds",
		"baths",
	}); err != nil {
		return fmt.Errorf("failed to configure filterable attributes: %w", err)
	}
	return nil
}

// IndexProperty adds or replaces one property document.
func (p *PropertyIndex) IndexProperty(record *models.PropertyRecord) error {
	_, err := p.client.Index(p.index).AddDocuments([]models.PropertyRecord{*record})
	return err
}

// SearchAddresses runs a prefix search over the cached listings.
func (p *PropertyIndex) SearchAddresses(query string, limit int64) ([]models.PropertyRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	res, err := p.client.Index(p.index).Search(query, &meilisearch.SearchRequest{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("address search failed for %q: %w", query, err)
	}

	records := make([]models.PropertyRecord, 0, len(res.Hits))
	for _, hit := range res.Hits {
		records = append(records, recordFromHit(hit))
	}
	return records, nil
}

func recordFromHit(hit interface{}) models.PropertyRecord {
	hitMap, ok := hit.(map[string]interface{})
	if !ok {
		return models.PropertyRecord{}
	}
	record := models.PropertyRecord{
		ID:      getString(hitMap, "id"),
		MlsID:   getString(hitMap, "mls_id"),
		Address: getString(hitMap, "address"),
	}
	if price, ok := hitMap["price"].(float64); ok {
		record.Price = &price
	}
	if beds, ok := hitMap["beds"].(float64); ok {
		n := int(beds)
		record.Beds = &n
	}
	if baths, ok := hitMap["baths"].(float64); ok {
		record.Baths = &baths
	}
	if sqft, ok := hitMap["sqft"].(float64); ok {
		n := int(sqft)
		record.Sqft = &n
	}
	return record
}

func getString(m map[string]interface{}, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}
