package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

const defaultPageLimit = 10

// RecordStore is an in-memory news.RecordStore. The first write of an id wins.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]news.Record
}

var _ news.RecordStore = (*RecordStore)(nil)

// NewRecordStore constructs an empty RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]news.Record)}
}

// PutRecord stores rec unless its id is already present.
func (s *RecordStore) PutRecord(_ context.Context, rec news.Record) error {
	if rec.ID == "" {
		return errors.New("record id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return nil
	}
	if rec.Image != nil {
		img := *rec.Image
		rec.Image = &img
	}
	s.records[rec.ID] = rec
	return nil
}

// ScanByField returns every record projected to id and the requested field.
func (s *RecordStore) ScanByField(_ context.Context, field string) ([]news.Record, error) {
	if field != news.FieldPublishedAt {
		return nil, fmt.Errorf("%w: %s", news.ErrUnsupportedField, field)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]news.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, news.Record{ID: rec.ID, PublishedAt: rec.PublishedAt})
	}
	return out, nil
}

// QueryByIndex pages through one content type ordered by (collected_at, id).
func (s *RecordStore) QueryByIndex(_ context.Context, q news.IndexQuery) (news.Page, error) {
	if q.Index != news.IndexContentTypeCollectedAt {
		return news.Page{}, fmt.Errorf("%w: %s", news.ErrUnsupportedIndex, q.Index)
	}
	var (
		hasCursor bool
		cursorAt  time.Time
		cursorID  string
	)
	if q.Cursor != "" {
		at, id, err := news.DecodeCursor(q.Cursor)
		if err != nil {
			return news.Page{}, err
		}
		hasCursor, cursorAt, cursorID = true, at, id
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	s.mu.RLock()
	matched := make([]news.Record, 0, len(s.records))
	for _, rec := range s.records {
		if rec.ContentType != q.Partition || !rec.MatchesKeyword(q.Keyword) {
			continue
		}
		if hasCursor && !afterCursor(rec, cursorAt, cursorID, q.Descending) {
			continue
		}
		matched = append(matched, rec)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if q.Descending {
			return matched[j].Before(matched[i].CollectedAt, matched[i].ID)
		}
		return matched[i].Before(matched[j].CollectedAt, matched[j].ID)
	})

	page := news.Page{Items: matched}
	if len(matched) > limit {
		page.Items = matched[:limit]
		page.NextCursor = news.EncodeCursor(page.Items[limit-1])
	}
	return page, nil
}

// afterCursor reports whether rec comes after the cursor position in scan order.
func afterCursor(rec news.Record, at time.Time, id string, descending bool) bool {
	if descending {
		return rec.Before(at, id)
	}
	return !rec.Before(at, id) && !(rec.CollectedAt.Equal(at) && rec.ID == id)
}

// Count returns the number of stored records.
func (s *RecordStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Close is a no-op.
func (s *RecordStore) Close() error {
	return nil
}
