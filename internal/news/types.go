package news

import (
	"net/http"
	"time"
)

const (
	// ContentTypeNews tags every record produced by the collector.
	ContentTypeNews = "news"
	// SourceNaver identifies records collected from the Naver search API.
	SourceNaver = "naver_api"

	// FieldPublishedAt is the scan field holding the source publication timestamp.
	FieldPublishedAt = "published_at"
	// IndexContentTypeCollectedAt orders records of one content type by ingestion time.
	IndexContentTypeCollectedAt = "content_type-collected_at"
)

// Image references a representative article image re-hosted behind the CDN.
type Image struct {
	SourceURL  string `json:"image_url" bson:"source_url"`
	CDNURL     string `json:"cdn_image_url" bson:"cdn_url"`
	StorageKey string `json:"storage_key,omitempty" bson:"storage_key"`
}

// Record is one stored news article.
type Record struct {
	ID           string    `json:"id" bson:"_id"`
	Title        string    `json:"title" bson:"title"`
	Description  string    `json:"description" bson:"description"`
	Keyword      string    `json:"keyword" bson:"keyword"`
	PublishedAt  string    `json:"pub_date" bson:"published_at"`
	OriginalURL  string    `json:"original_link" bson:"original_link"`
	CanonicalURL string    `json:"link" bson:"link"`
	CollectedAt  time.Time `json:"collected_at" bson:"collected_at"`
	Image        *Image    `json:"image,omitempty" bson:"image,omitempty"`
	ContentType  string    `json:"content_type" bson:"content_type"`
	SourceName   string    `json:"source" bson:"source"`
}

// Summary is the compact view of a saved record returned to callers.
type Summary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SourceItem is a raw search hit as returned by the news search API.
type SourceItem struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

// SearchRequest parameterizes one search call.
type SearchRequest struct {
	Query   string
	Display int
	Start   int
	Sort    string
}

// SearchResult holds a page of search hits.
type SearchResult struct {
	Total int
	Items []SourceItem
}

// IndexQuery selects records from a secondary index, newest first when Descending is set.
type IndexQuery struct {
	Index      string
	Partition  string
	Descending bool
	Limit      int
	Cursor     string
	Keyword    string
}

// Page is one slice of an index query.
type Page struct {
	Items      []Record
	NextCursor string
}

// Blob is an object written to blob storage.
type Blob struct {
	Key          string
	Data         []byte
	ContentType  string
	CacheControl string
	Metadata     map[string]string
}

// FetchRequest describes a single HTTP GET.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse captures the fetched body and metadata.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// CollectionEvent is published after each successful collection run.
type CollectionEvent struct {
	EventID     string    `json:"event_id"`
	Query       string    `json:"query"`
	Fetched     int       `json:"total_fetched"`
	New         int       `json:"new_count"`
	Enriched    int       `json:"images_enriched"`
	Saved       int       `json:"saved_count"`
	Failed      int       `json:"failed_count"`
	RecordIDs   []string  `json:"record_ids"`
	CollectedAt time.Time `json:"collected_at"`
}

// EventTypeCollectionCompleted tags CollectionEvent messages.
const EventTypeCollectionCompleted = "news.collection.completed"

// Attributes returns the message attributes published alongside the event.
func (e CollectionEvent) Attributes() map[string]string {
	return map[string]string{
		"event_type": EventTypeCollectionCompleted,
		"event_id":   e.EventID,
		"query":      e.Query,
		"source":     SourceNaver,
	}
}
