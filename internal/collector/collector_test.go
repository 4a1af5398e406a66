package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

var testNow = time.Date(2024, 9, 9, 5, 30, 0, 0, time.UTC)

type harness struct {
	source    *fakeSource
	store     *fakeStore
	enricher  *fakeEnricher
	publisher *fakePublisher
	collector *Collector
}

func newHarness(cfg Config) *harness {
	h := &harness{
		source:    newFakeSource(),
		store:     newFakeStore(),
		enricher:  &fakeEnricher{},
		publisher: &fakePublisher{},
	}
	h.collector = New(cfg, Deps{
		Source:    h.source,
		Store:     h.store,
		Enricher:  h.enricher,
		Publisher: h.publisher,
		IDs:       &seqIDs{},
		Clock:     fixedClock{now: testNow},
	}, zap.NewNop())
	return h
}

func TestCollectFirstRunSavesEverything(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{DefaultQuery: "AI", Topic: "news-collected"})
	h.source.results["AI"] = news.SearchResult{Total: 250, Items: []news.SourceItem{
		item("<b>first</b>", "Mon, 09 Sep 2024 14:30:00 +0900"),
		item("second &amp; more", "Mon, 09 Sep 2024 14:00:00 +0900"),
	}}

	res, err := h.collector.Collect(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, "AI", res.Query)
	assert.True(t, res.FirstRun)
	assert.Equal(t, 250, res.TotalAvailable)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 2, res.New)
	assert.Equal(t, 2, res.Saved)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 0, res.Enriched)
	assert.Equal(t, testNow, res.CollectedAt)
	assert.Equal(t, "saved 2 of 2 new articles", res.Message)
	require.Len(t, res.SavedItems, 2)
	assert.Equal(t, "first", res.SavedItems[0].Title)
	assert.Equal(t, "second & more", res.SavedItems[1].Title)

	req := h.source.lastRequest()
	assert.Equal(t, news.SearchRequest{Query: "AI", Display: 10, Start: 1, Sort: "date"}, req)

	saved := h.store.saved()
	require.Len(t, saved, 2)
	for _, rec := range saved {
		assert.Regexp(t, `^20240909_053000_[0-9a-f]{8}$`, rec.ID)
		assert.Equal(t, "AI", rec.Keyword)
		assert.Equal(t, news.ContentTypeNews, rec.ContentType)
		assert.Equal(t, news.SourceNaver, rec.SourceName)
		assert.Nil(t, rec.Image)
	}
	assert.Equal(t, int32(0), h.enricher.calls.Load())

	status := h.collector.Status()
	assert.False(t, status.IsRunning)
	assert.Equal(t, "AI", status.LastQuery)
	assert.Empty(t, status.LastError)
	assert.Equal(t, int64(2), status.TotalCollected)
	require.NotNil(t, status.LastRunAt)
	assert.Equal(t, testNow, *status.LastRunAt)

	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, "news-collected", h.publisher.topics[0])
	ev := h.publisher.events[0]
	assert.Equal(t, "event-3", ev.EventID)
	assert.Equal(t, "AI", ev.Query)
	assert.Equal(t, 2, ev.Saved)
	assert.Equal(t, []string{saved[0].ID, saved[1].ID}, ev.RecordIDs)
}

func TestCollectSecondRunSkipsSeenArticles(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{DefaultQuery: "AI"})
	h.source.results["AI"] = news.SearchResult{Items: []news.SourceItem{
		item("older", "Mon, 09 Sep 2024 14:00:00 +0900"),
		item("newer", "Mon, 09 Sep 2024 14:30:00 +0900"),
	}}

	_, err := h.collector.Collect(context.Background(), Request{})
	require.NoError(t, err)
	putsAfterFirst := h.store.puts.Load()

	res, err := h.collector.Collect(context.Background(), Request{})
	require.NoError(t, err)
	assert.False(t, res.FirstRun)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 0, res.New)
	assert.Equal(t, 0, res.Saved)
	assert.Equal(t, "Mon, 09 Sep 2024 14:30:00 +0900", res.Watermark)
	assert.Equal(t, "no new articles since Mon, 09 Sep 2024 14:30:00 +0900", res.Message)
	assert.Empty(t, res.SavedItems)
	assert.Equal(t, putsAfterFirst, h.store.puts.Load())
	assert.Equal(t, int64(2), h.collector.Status().TotalCollected)

	h.source.mu.Lock()
	h.source.results["AI"] = news.SearchResult{Items: []news.SourceItem{
		item("breaking", "Mon, 09 Sep 2024 06:00:00 +0000"),
		item("newer", "Mon, 09 Sep 2024 14:30:00 +0900"),
	}}
	h.source.mu.Unlock()

	res, err = h.collector.Collect(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.New)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, "breaking", res.SavedItems[0].Title)
	assert.Equal(t, int64(3), h.collector.Status().TotalCollected)
}

func TestCollectEmptySearch(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{})
	res, err := h.collector.Collect(context.Background(), Request{Query: "nothing"})
	require.NoError(t, err)
	assert.Equal(t, "no articles available", res.Message)
	assert.Equal(t, 0, res.Fetched)
	assert.NotNil(t, h.collector.Status().LastRunAt)
	assert.Empty(t, h.publisher.events)
}

func TestCollectRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{DefaultQuery: "AI"})
	h.source.entered = make(chan struct{}, 1)
	h.source.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.collector.Collect(context.Background(), Request{})
		done <- err
	}()
	<-h.source.entered

	assert.True(t, h.collector.Status().IsRunning)
	_, err := h.collector.Collect(context.Background(), Request{})
	require.ErrorIs(t, err, ErrAlreadyRunning)
	err = h.collector.Start(context.Background(), Request{})
	require.ErrorIs(t, err, ErrAlreadyRunning)
	_, err = h.collector.CollectBatch(context.Background(), BatchRequest{Queries: []string{"AI"}})
	require.ErrorIs(t, err, ErrAlreadyRunning)

	assert.Equal(t, int32(1), h.source.calls.Load())
	assert.Equal(t, int32(1), h.store.scans.Load())

	close(h.source.release)
	require.NoError(t, <-done)
	assert.False(t, h.collector.Status().IsRunning)
}

func TestCollectSourceFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{DefaultQuery: "AI"})
	h.source.errs["AI"] = fmt.Errorf("%w: status 500", news.ErrSourceUnavailable)

	_, err := h.collector.Collect(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCollectionFailed)
	assert.ErrorIs(t, err, news.ErrSourceUnavailable)

	status := h.collector.Status()
	assert.False(t, status.IsRunning)
	assert.Contains(t, status.LastError, "status 500")
	assert.Nil(t, status.LastRunAt)
	assert.Equal(t, int32(0), h.store.puts.Load())

	h.source.mu.Lock()
	delete(h.source.errs, "AI")
	h.source.mu.Unlock()
	_, err = h.collector.Collect(context.Background(), Request{})
	require.NoError(t, err)
	assert.Empty(t, h.collector.Status().LastError, "a new run clears the previous error")
}

func TestCollectIDFailure(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.results["AI"] = news.SearchResult{Items: []news.SourceItem{item("x", "")}}
	c := New(Config{}, Deps{Source: source, Store: newFakeStore(), IDs: failingIDs{}}, nil)

	_, err := c.Collect(context.Background(), Request{Query: "AI"})
	assert.ErrorIs(t, err, ErrCollectionFailed)
}

func TestCollectStoreReadFailureProceedsUnfiltered(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{DefaultQuery: "AI"})
	h.store.records = []news.Record{{ID: "old", PublishedAt: "Tue, 10 Sep 2024 00:00:00 +0900"}}
	h.store.scanErr = errors.New("permission denied")
	h.source.results["AI"] = news.SearchResult{Items: []news.SourceItem{
		item("a", "Mon, 09 Sep 2024 14:00:00 +0900"),
	}}

	res, err := h.collector.Collect(context.Background(), Request{})
	require.NoError(t, err)
	assert.True(t, res.FirstRun)
	assert.Equal(t, 1, res.Saved)
}

func TestCollectPersistFailuresAreCounted(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{DefaultQuery: "AI"})
	h.store.failTitle["b"] = true
	h.source.results["AI"] = news.SearchResult{Items: []news.SourceItem{
		item("a", ""), item("b", ""), item("c", ""),
	}}

	res, err := h.collector.Collect(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.New)
	assert.Equal(t, 2, res.Saved)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, int64(2), h.collector.Status().TotalCollected)
}

func TestCollectWithImages(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{DefaultQuery: "AI", IncludeImages: true})
	h.source.results["AI"] = news.SearchResult{Items: []news.SourceItem{
		item("a", ""), item("b", ""), item("c", ""),
	}}

	res, err := h.collector.Collect(context.Background(), h.collector.Defaults())
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.enricher.calls.Load())
	assert.Equal(t, 2, res.Enriched)
	assert.Equal(t, 3, res.Saved)

	saved := h.store.saved()
	require.NotNil(t, saved[0].Image)
	assert.Nil(t, saved[1].Image)
	require.NotNil(t, saved[2].Image)
	assert.Equal(t, saved[0].ID+"/images/abc.jpg", saved[0].Image.StorageKey)
}

func TestCollectPublishFailureIsAbsorbed(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{DefaultQuery: "AI", Topic: "news-collected"})
	h.publisher.err = errors.New("topic not found")
	h.source.results["AI"] = news.SearchResult{Items: []news.SourceItem{item("a", "")}}

	res, err := h.collector.Collect(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
}

func TestCollectRequestValidation(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{PageSize: 20, Sort: "sim"})
	_, err := h.collector.Collect(context.Background(), Request{Query: "   "})
	require.ErrorIs(t, err, ErrEmptyQuery)
	assert.Equal(t, int32(0), h.source.calls.Load())

	_, err = h.collector.Collect(context.Background(), Request{Query: " AI ", PageSize: 500, Start: 5000})
	require.NoError(t, err)
	assert.Equal(t, news.SearchRequest{Query: "AI", Display: 20, Start: 1, Sort: "sim"}, h.source.lastRequest())

	_, err = h.collector.Collect(context.Background(), Request{Query: "AI", PageSize: 50, Start: 11, Sort: "date"})
	require.NoError(t, err)
	assert.Equal(t, news.SearchRequest{Query: "AI", Display: 50, Start: 11, Sort: "date"}, h.source.lastRequest())
}

func TestStartRunsInBackground(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{DefaultQuery: "AI"})
	h.source.results["AI"] = news.SearchResult{Items: []news.SourceItem{item("a", "")}}

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.collector.Start(ctx, Request{}))
	cancel()
	h.collector.Wait()

	status := h.collector.Status()
	assert.False(t, status.IsRunning)
	assert.Equal(t, int64(1), status.TotalCollected)
	assert.Len(t, h.store.saved(), 1)
}

func TestCollectBatch(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{})
	h.source.results["AI"] = news.SearchResult{Items: []news.SourceItem{item("a", ""), item("b", "")}}
	h.source.errs["broken"] = fmt.Errorf("%w: timeout", news.ErrSourceUnavailable)
	h.source.results["fintech"] = news.SearchResult{Items: []news.SourceItem{item("c", "")}}

	res, err := h.collector.CollectBatch(context.Background(), BatchRequest{
		Queries:  []string{"AI", "", "broken", "fintech"},
		PageSize: 5,
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 3)
	assert.Equal(t, 3, res.TotalSaved)
	assert.Equal(t, 1, res.Failed)

	assert.Equal(t, "AI", res.Results[0].Query)
	require.NotNil(t, res.Results[0].Result)
	assert.Equal(t, 2, res.Results[0].Result.Saved)
	assert.Equal(t, "broken", res.Results[1].Query)
	assert.Nil(t, res.Results[1].Result)
	assert.Contains(t, res.Results[1].Error, "timeout")
	assert.Equal(t, 1, res.Results[2].Result.Saved)
	assert.Equal(t, 5, h.source.lastRequest().Display)

	status := h.collector.Status()
	assert.False(t, status.IsRunning)
	assert.Equal(t, "fintech", status.LastQuery)
	assert.Equal(t, int64(3), status.TotalCollected)
}

func TestCollectBatchHonorsCancellation(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{BatchDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var (
		res BatchResult
		err error
	)
	go func() {
		defer close(done)
		res, err = h.collector.CollectBatch(ctx, BatchRequest{Queries: []string{"a", "b"}})
	}()
	require.Eventually(t, func() bool { return h.source.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Results, 1)
	assert.False(t, h.collector.Status().IsRunning)
}

func TestCollectBatchRequiresQueries(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{})
	_, err := h.collector.CollectBatch(context.Background(), BatchRequest{Queries: []string{" ", ""}})
	require.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSeed(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{})
	h.store.records = make([]news.Record, 42)
	require.NoError(t, h.collector.Seed(context.Background()))
	assert.Equal(t, int64(42), h.collector.Status().TotalCollected)

	h.store.countErr = errors.New("unreachable")
	assert.Error(t, h.collector.Seed(context.Background()))
}

func TestStartMarksRunBeforeReturning(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{DefaultQuery: "AI"})
	h.source.errs["broken"] = fmt.Errorf("%w: 401", news.ErrSourceUnavailable)
	_, err := h.collector.Collect(context.Background(), Request{Query: "broken"})
	require.Error(t, err)
	require.NotEmpty(t, h.collector.Status().LastError)

	h.source.entered = make(chan struct{}, 1)
	h.source.release = make(chan struct{})
	require.NoError(t, h.collector.Start(context.Background(), Request{Query: "AI"}))

	status := h.collector.Status()
	assert.True(t, status.IsRunning)
	assert.Equal(t, "AI", status.LastQuery)
	assert.Empty(t, status.LastError)

	<-h.source.entered
	close(h.source.release)
	h.collector.Wait()
	assert.False(t, h.collector.Status().IsRunning)
}

func TestCollectAppliesStoredWatermark(t *testing.T) {
	t.Parallel()

	h := newHarness(Config{DefaultQuery: "AI"})
	h.store.records = []news.Record{{ID: "stored", PublishedAt: "Mon, 09 Sep 2024 10:00:00 +0900"}}
	h.source.results["AI"] = news.SearchResult{Items: []news.SourceItem{
		item("noon", "Mon, 09 Sep 2024 12:00:00 +0900"),
		item("morning", "Mon, 09 Sep 2024 09:00:00 +0900"),
		item("undated", ""),
	}}

	res, err := h.collector.Collect(context.Background(), Request{})
	require.NoError(t, err)
	assert.False(t, res.FirstRun)
	assert.Equal(t, "Mon, 09 Sep 2024 10:00:00 +0900", res.Watermark)
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 2, res.New)
	assert.Equal(t, 2, res.Saved)
	require.Len(t, res.SavedItems, 2)
	assert.Equal(t, "noon", res.SavedItems[0].Title)
	assert.Equal(t, "undated", res.SavedItems[1].Title)

	saved := h.store.saved()
	require.Len(t, saved, 3)
	assert.Equal(t, "noon", saved[1].Title)
	assert.Equal(t, "undated", saved[2].Title)
}
