// Package catalog serves stored news records to readers.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

const (
	// DefaultLimit is the page size used when a caller does not pick one.
	DefaultLimit = 10
	// MaxLimit caps a single listing page.
	MaxLimit = 100
	// MaxOffset bounds how deep offset paging may reach into the index.
	MaxOffset = 10000

	defaultStatsSample   = 100
	defaultStorePageSize = 50
	unknownBucket        = "Unknown"
)

// Config tunes how the catalog reads the store.
type Config struct {
	// StorePageSize is the index page size requested per store round trip.
	StorePageSize int
	// StatsSampleSize is how many of the newest records Stats inspects.
	StatsSampleSize int
}

// ErrInvalidQuery reports out-of-range listing parameters.
var ErrInvalidQuery = errors.New("invalid listing query")

// ListQuery selects one offset page of news.
type ListQuery struct {
	Limit   int
	Offset  int
	Keyword string
}

// ListResult is the page returned by List.
type ListResult struct {
	Items      []news.Record `json:"news_items"`
	TotalItems int           `json:"total_items"`
	HasMore    bool          `json:"has_more"`
	Limit      int           `json:"limit"`
	Offset     int           `json:"offset"`
	Keyword    string        `json:"keyword,omitempty"`
}

// Bucket is one entry of a distribution, ordered by count.
type Bucket struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats summarizes what is stored.
type Stats struct {
	TotalItems int64    `json:"total_items"`
	SampleSize int      `json:"sample_size"`
	Keywords   []Bucket `json:"keyword_distribution"`
	Sources    []Bucket `json:"source_distribution"`
	IndexUsed  string   `json:"index_used"`
}

// Service lists records newest first from the content_type-collected_at index.
type Service struct {
	cfg    Config
	store  news.RecordStore
	logger *zap.Logger
}

// New builds a Service over store.
func New(cfg Config, store news.RecordStore, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("catalog store is required")
	}
	if cfg.StorePageSize <= 0 {
		cfg.StorePageSize = defaultStorePageSize
	}
	if cfg.StatsSampleSize <= 0 {
		cfg.StatsSampleSize = defaultStatsSample
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, store: store, logger: logger}, nil
}

// List pulls index pages until offset+limit+1 matches are buffered, then slices the window.
func (s *Service) List(ctx context.Context, q ListQuery) (ListResult, error) {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return ListResult{}, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidQuery, MaxLimit)
	}
	if q.Offset < 0 || q.Offset > MaxOffset {
		return ListResult{}, fmt.Errorf("%w: offset must be between 0 and %d", ErrInvalidQuery, MaxOffset)
	}
	q.Keyword = strings.TrimSpace(q.Keyword)

	want := q.Offset + q.Limit + 1
	buf, err := s.pull(ctx, q.Keyword, want)
	if err != nil {
		return ListResult{}, err
	}

	res := ListResult{Limit: q.Limit, Offset: q.Offset, Keyword: q.Keyword, Items: []news.Record{}}
	if q.Offset < len(buf) {
		end := min(q.Offset+q.Limit, len(buf))
		res.Items = buf[q.Offset:end]
		res.HasMore = len(buf) > end
	}
	res.TotalItems = len(res.Items)
	s.logger.Debug("news listed",
		zap.Int("returned", res.TotalItems),
		zap.Int("buffered", len(buf)),
		zap.String("keyword", q.Keyword),
	)
	return res, nil
}

// Stats reports the stored total and the keyword/source mix of the newest records.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	total, err := s.store.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count news: %w", err)
	}
	sample, err := s.pull(ctx, "", s.cfg.StatsSampleSize)
	if err != nil {
		return Stats{}, err
	}
	keywords := map[string]int{}
	sources := map[string]int{}
	for _, rec := range sample {
		keywords[orUnknown(rec.Keyword)]++
		sources[orUnknown(rec.SourceName)]++
	}
	return Stats{
		TotalItems: total,
		SampleSize: len(sample),
		Keywords:   buckets(keywords),
		Sources:    buckets(sources),
		IndexUsed:  news.IndexContentTypeCollectedAt,
	}, nil
}

func (s *Service) pull(ctx context.Context, keyword string, want int) ([]news.Record, error) {
	q := news.IndexQuery{
		Index:      news.IndexContentTypeCollectedAt,
		Partition:  news.ContentTypeNews,
		Descending: true,
		Keyword:    keyword,
		Limit:      min(want, s.cfg.StorePageSize),
	}
	out := make([]news.Record, 0, q.Limit)
	for len(out) < want {
		page, err := s.store.QueryByIndex(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Index, err)
		}
		out = append(out, page.Items...)
		if page.NextCursor == "" {
			break
		}
		q.Cursor = page.NextCursor
	}
	if len(out) > want {
		out = out[:want]
	}
	return out, nil
}

func orUnknown(v string) string {
	if v == "" {
		return unknownBucket
	}
	return v
}

func buckets(counts map[string]int) []Bucket {
	out := make([]Bucket, 0, len(counts))
	for name, n := range counts {
		out = append(out, Bucket{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
