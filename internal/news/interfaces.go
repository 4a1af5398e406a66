package news

import (
	"context"
	"time"
)

// Source searches a third-party news index.
type Source interface {
	Search(ctx context.Context, req SearchRequest) (SearchResult, error)
}

// RecordStore persists news records.
type RecordStore interface {
	ScanByField(ctx context.Context, field string) ([]Record, error)
	PutRecord(ctx context.Context, rec Record) error
	QueryByIndex(ctx context.Context, q IndexQuery) (Page, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// BlobSink writes objects and maps their keys to public URLs.
type BlobSink interface {
	Put(ctx context.Context, blob Blob) error
	PublicURL(key string) string
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Limiter throttles outbound requests per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Hasher computes digests used in storage keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs and run event IDs.
type IDGenerator interface {
	NewID() (string, error)
	NewEventID() (string, error)
}
