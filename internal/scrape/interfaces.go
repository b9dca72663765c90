package scrape

import (
	"context"
	"time"
)

// Fetcher retrieves a single document. Implementations must honor ctx and
// return an error only for transport-level failures; HTTP error statuses come
// back as a FetchResponse.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Extractor attempts to pull a Posting out of a fetched document. It returns
// ErrInsufficient when the document does not contain enough usable content
// for this method; the caller falls through to the next extractor.
type Extractor interface {
	Name() string
	Extract(pageURL string, body []byte) (Extraction, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints identifiers for records and events.
type IDGenerator interface {
	NewID() (string, error)
}

// RecordStore persists per-item scrape outcomes.
type RecordStore interface {
	StoreRecord(ctx context.Context, record ScrapeRecord) error
	RecentRecords(ctx context.Context, limit int) ([]ScrapeRecord, error)
	Close()
}

// BlobStore archives raw fetched documents and returns a stable URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher emits completion events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher fingerprints canonical targets into cache keys.
type Hasher interface {
	Hash(data []byte) string
}
