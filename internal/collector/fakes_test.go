package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JakeFAU/realtime-news-collector/internal/enrich"
	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

type fakeSource struct {
	mu       sync.Mutex
	results  map[string]news.SearchResult
	errs     map[string]error
	requests []news.SearchRequest
	calls    atomic.Int32

	// entered and release let a test hold a call open.
	entered chan struct{}
	release chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{results: map[string]news.SearchResult{}, errs: map[string]error{}}
}

func (s *fakeSource) Search(ctx context.Context, req news.SearchRequest) (news.SearchResult, error) {
	s.calls.Add(1)
	if s.entered != nil {
		s.entered <- struct{}{}
		select {
		case <-s.release:
		case <-ctx.Done():
			return news.SearchResult{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if err := s.errs[req.Query]; err != nil {
		return news.SearchResult{}, err
	}
	return s.results[req.Query], nil
}

func (s *fakeSource) lastRequest() news.SearchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

type fakeStore struct {
	mu        sync.Mutex
	records   []news.Record
	scanErr   error
	countErr  error
	failTitle map[string]bool
	scans     atomic.Int32
	puts      atomic.Int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{failTitle: map[string]bool{}}
}

func (s *fakeStore) ScanByField(_ context.Context, field string) ([]news.Record, error) {
	s.scans.Add(1)
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	if field != news.FieldPublishedAt {
		return nil, news.ErrUnsupportedField
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]news.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *fakeStore) PutRecord(_ context.Context, rec news.Record) error {
	s.puts.Add(1)
	if s.failTitle[rec.Title] {
		return errors.New("write rejected")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeStore) QueryByIndex(context.Context, news.IndexQuery) (news.Page, error) {
	return news.Page{}, nil
}

func (s *fakeStore) Count(context.Context) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.records)), nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) saved() []news.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]news.Record, len(s.records))
	copy(out, s.records)
	return out
}

type fakeEnricher struct {
	calls atomic.Int32
}

func (e *fakeEnricher) Enrich(_ context.Context, records []news.Record) enrich.Report {
	e.calls.Add(1)
	out := make([]news.Record, len(records))
	copy(out, records)
	enriched := 0
	for i := range out {
		if i%2 == 0 {
			out[i].Image = &news.Image{
				SourceURL:  "https://img.example.com/" + out[i].ID + ".jpg",
				CDNURL:     "https://cdn.example.net/" + out[i].ID + "/images/abc.jpg",
				StorageKey: out[i].ID + "/images/abc.jpg",
			}
			enriched++
		}
	}
	return enrich.Report{Records: out, Enriched: enriched}
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	topics []string
	events []news.CollectionEvent
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, payload.(news.CollectionEvent))
	return fmt.Sprintf("msg-%d", len(p.events)), nil
}

type seqIDs struct {
	n atomic.Int32
}

func (g *seqIDs) NewID() (string, error) {
	return fmt.Sprintf("20240909_053000_%08x", g.n.Add(1)), nil
}

func (g *seqIDs) NewEventID() (string, error) {
	return fmt.Sprintf("event-%d", g.n.Add(1)), nil
}

type failingIDs struct{}

func (failingIDs) NewID() (string, error) {
	return "", errors.New("entropy exhausted")
}

func (failingIDs) NewEventID() (string, error) {
	return "", errors.New("entropy exhausted")
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func item(title, pubDate string) news.SourceItem {
	return news.SourceItem{
		Title:        title,
		OriginalLink: "https://press.example.com/" + title,
		Link:         "https://n.news.naver.com/" + title,
		Description:  "about " + title,
		PubDate:      pubDate,
	}
}
