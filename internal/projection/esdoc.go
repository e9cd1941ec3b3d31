// File: internal/projection/esdoc.go
package projection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace_backend/internal/platform/elasticsearch"
)

// IndexName is the search index mirroring live public listings.
const IndexName = "public_listings"

// document is the search-side shape of one projection row.
type document struct {
	ListingID     string    `json:"listing_id"`
	LocationID    string    `json:"location_id"`
	HostID        string    `json:"host_id"`
	Title         string    `json:"title"`
	CoverImageURL string    `json:"cover_image_url"`
	ThumbnailURL  string    `json:"thumbnail_url"`
	AmenityKeys   []string  `json:"amenity_keys"`
	HostVerified  bool      `json:"host_verified"`
	SlotExpiresAt time.Time `json:"slot_expires_at"`
}

// Mirror keeps the search index loosely in sync with the projection tables.
// Every operation is best effort: failures are logged and the relational
// rows stay authoritative.
type Mirror struct {
	es     *elasticsearch.ESClientWrapper
	logger *zap.Logger
}

// NewMirror creates a new search mirror.
func NewMirror(es *elasticsearch.ESClientWrapper, logger *zap.Logger) *Mirror {
	return &Mirror{es: es, logger: logger.Named("search_mirror")}
}

// indexMapping defines the search index. Keyword fields back exact filters;
// only the title is analyzed for free text.
const indexMapping = `{
  "mappings": {
    "properties": {
      "listing_id":      { "type": "keyword" },
      "location_id":     { "type": "keyword" },
      "host_id":         { "type": "keyword" },
      "title":           { "type": "text" },
      "cover_image_url": { "type": "keyword", "index": false },
      "thumbnail_url":   { "type": "keyword", "index": false },
      "amenity_keys":    { "type": "keyword" },
      "host_verified":   { "type": "boolean" },
      "slot_expires_at": { "type": "date" }
    }
  }
}`

// EnsureIndex creates the search index with its mapping when it does not
// exist yet. Called once at startup.
func (m *Mirror) EnsureIndex(ctx context.Context) error {
	if m.es == nil {
		return nil
	}

	res, err := m.es.Indices.Exists([]string{IndexName}, m.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("checking index %s: %w", IndexName, err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	createRes, err := m.es.Indices.Create(IndexName,
		m.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
		m.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("creating index %s: %w", IndexName, err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return fmt.Errorf("creating index %s: %s", IndexName, createRes.Status())
	}

	m.logger.Info("Search index created", zap.String("index", IndexName))
	return nil
}

// IndexRows writes one document per projection row, keyed by listing and
// location so republishing overwrites in place.
func (m *Mirror) IndexRows(ctx context.Context, rows []PublicListing) {
	if m.es == nil {
		return
	}
	for _, row := range rows {
		doc := document{
			ListingID:     row.ListingID.String(),
			LocationID:    row.LocationID,
			HostID:        row.HostID.String(),
			Title:         row.Title,
			CoverImageURL: row.CoverImageURL,
			ThumbnailURL:  row.ThumbnailURL,
			AmenityKeys:   row.AmenityKeys,
			HostVerified:  row.HostVerified,
			SlotExpiresAt: row.SlotExpiresAt,
		}

		body, err := json.Marshal(doc)
		if err != nil {
			m.logger.Error("Failed to marshal search document", zap.Error(err))
			continue
		}

		docID := fmt.Sprintf("%s_%s", doc.ListingID, doc.LocationID)
		res, err := m.es.Index(IndexName, bytes.NewReader(body),
			m.es.Index.WithDocumentID(docID),
			m.es.Index.WithContext(ctx),
		)
		if err != nil {
			m.logger.Warn("Search index write failed",
				zap.String("doc_id", docID), zap.Error(err))
			continue
		}
		if res.IsError() {
			m.logger.Warn("Search index write rejected",
				zap.String("doc_id", docID), zap.String("status", res.Status()))
		}
		res.Body.Close()
	}
}

// BulkIndex writes a batch of projection rows with one bulk request. Used by
// the reindex command; item-level failures are counted, not returned.
func (m *Mirror) BulkIndex(ctx context.Context, rows []PublicListing) (synced, failed int, err error) {
	if m.es == nil || len(rows) == 0 {
		return 0, 0, nil
	}

	var body bytes.Buffer
	for _, row := range rows {
		doc := document{
			ListingID:     row.ListingID.String(),
			LocationID:    row.LocationID,
			HostID:        row.HostID.String(),
			Title:         row.Title,
			CoverImageURL: row.CoverImageURL,
			ThumbnailURL:  row.ThumbnailURL,
			AmenityKeys:   row.AmenityKeys,
			HostVerified:  row.HostVerified,
			SlotExpiresAt: row.SlotExpiresAt,
		}
		docJSON, merr := json.Marshal(doc)
		if merr != nil {
			m.logger.Error("Failed to marshal document for bulk index", zap.Error(merr))
			failed++
			continue
		}
		fmt.Fprintf(&body, `{ "index" : { "_index" : "%s", "_id" : "%s_%s" } }%s`,
			IndexName, doc.ListingID, doc.LocationID, "\n")
		body.Write(docJSON)
		body.WriteByte('\n')
	}
	if body.Len() == 0 {
		return 0, failed, nil
	}

	req := esapi.BulkRequest{Body: bytes.NewReader(body.Bytes())}
	res, err := req.Do(ctx, m.es.Client)
	if err != nil {
		return 0, failed, fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	var bulkResponse struct {
		Errors bool `json:"errors"`
		Items  []struct {
			Index struct {
				ID     string                 `json:"_id"`
				Status int                    `json:"status"`
				Error  map[string]interface{} `json:"error,omitempty"`
			} `json:"index"`
		} `json:"items"`
	}
	if derr := json.NewDecoder(res.Body).Decode(&bulkResponse); derr != nil {
		return 0, failed, fmt.Errorf("parsing bulk response: %w", derr)
	}

	for _, item := range bulkResponse.Items {
		if item.Index.Error != nil {
			m.logger.Error("Failed to index document in bulk batch",
				zap.String("doc_id", item.Index.ID),
				zap.Int("status", item.Index.Status),
				zap.Any("error", item.Index.Error))
			failed++
		} else {
			synced++
		}
	}
	return synced, failed, nil
}

// RemoveListing drops every document of a listing from the index.
func (m *Mirror) RemoveListing(ctx context.Context, listingID uuid.UUID) {
	if m.es == nil {
		return
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"listing_id": listingID.String(),
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		m.logger.Error("Failed to marshal delete-by-query body", zap.Error(err))
		return
	}

	res, err := m.es.DeleteByQuery([]string{IndexName}, bytes.NewReader(body),
		m.es.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		m.logger.Warn("Search index delete failed",
			zap.String("listing_id", listingID.String()), zap.Error(err))
		return
	}
	if res.IsError() {
		m.logger.Warn("Search index delete rejected",
			zap.String("listing_id", listingID.String()), zap.String("status", res.Status()))
	}
	res.Body.Close()
}
