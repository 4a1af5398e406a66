// Package collector runs incremental news collection: it searches the source,
// drops what an earlier run already saw, optionally attaches images, and
// persists the rest. At most one run is active per Collector.
package collector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-collector/internal/enrich"
	"github.com/JakeFAU/realtime-news-collector/internal/metrics"
	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

const (
	defaultPageSize = 10
	defaultSort     = "date"

	// MaxPageSize is the largest page the search source accepts.
	MaxPageSize = 100
	// MaxStart is the largest result offset the search source accepts.
	MaxStart = 1000
)

// Config holds collector defaults.
type Config struct {
	DefaultQuery  string
	PageSize      int
	Sort          string
	IncludeImages bool
	BatchDelay    time.Duration
	// Topic receives a CollectionEvent after each successful run. Empty disables publishing.
	Topic string
}

// Request parameterizes one collection run. Zero values fall back to Config.
type Request struct {
	Query         string
	PageSize      int
	Start         int
	Sort          string
	IncludeImages bool
}

// Result describes a finished run.
type Result struct {
	Query          string         `json:"query"`
	TotalAvailable int            `json:"total_available"`
	Fetched        int            `json:"total_fetched"`
	New            int            `json:"new_count"`
	Enriched       int            `json:"images_enriched"`
	Saved          int            `json:"saved_count"`
	Failed         int            `json:"failed_count"`
	SavedItems     []news.Summary `json:"saved_items"`
	Watermark      string         `json:"watermark,omitempty"`
	FirstRun       bool           `json:"first_run"`
	Message        string         `json:"message"`
	CollectedAt    time.Time      `json:"collected_at"`
	DurationMS     int64          `json:"duration_ms"`
}

// Enricher attaches images to records.
type Enricher interface {
	Enrich(ctx context.Context, records []news.Record) enrich.Report
}

// Deps are the collector's collaborators. Enricher and Publisher are optional.
type Deps struct {
	Source    news.Source
	Store     news.RecordStore
	Enricher  Enricher
	Publisher news.Publisher
	IDs       news.IDGenerator
	Clock     news.Clock
}

// Collector orchestrates collection runs.
type Collector struct {
	cfg    Config
	deps   Deps
	writer *Writer
	logger *zap.Logger
	state  runState
	wg     sync.WaitGroup
}

// New builds a Collector.
func New(cfg Config, deps Deps, logger *zap.Logger) *Collector {
	if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		cfg.PageSize = defaultPageSize
	}
	if cfg.Sort == "" {
		cfg.Sort = defaultSort
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		cfg:    cfg,
		deps:   deps,
		writer: NewWriter(deps.Store, logger),
		logger: logger,
	}
}

// Defaults returns a Request populated from the collector config.
func (c *Collector) Defaults() Request {
	return Request{
		Query:         c.cfg.DefaultQuery,
		PageSize:      c.cfg.PageSize,
		Start:         1,
		Sort:          c.cfg.Sort,
		IncludeImages: c.cfg.IncludeImages,
	}
}

// Collect runs one collection synchronously. It returns ErrAlreadyRunning
// without touching any collaborator when another run is active.
func (c *Collector) Collect(ctx context.Context, req Request) (Result, error) {
	req, err := c.normalize(req)
	if err != nil {
		return Result{}, err
	}
	if !c.state.acquire() {
		metrics.ObserveRun("rejected", 0)
		return Result{}, ErrAlreadyRunning
	}
	defer c.state.release()
	c.state.begin(req.Query)
	return c.run(ctx, req)
}

// Start launches a collection in the background and returns once the run
// holds the single-flight flag. The run outlives ctx cancellation.
func (c *Collector) Start(ctx context.Context, req Request) error {
	req, err := c.normalize(req)
	if err != nil {
		return err
	}
	if !c.state.acquire() {
		metrics.ObserveRun("rejected", 0)
		return ErrAlreadyRunning
	}
	c.state.begin(req.Query)
	bg := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.state.release()
		if _, err := c.run(bg, req); err != nil {
			c.logger.Error("background collection failed", zap.String("query", req.Query), zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every background run started with Start has returned.
func (c *Collector) Wait() {
	c.wg.Wait()
}

// Status returns a snapshot of the run state.
func (c *Collector) Status() RunState {
	return c.state.snapshot()
}

// Seed initializes the collected total from the store's record count.
func (c *Collector) Seed(ctx context.Context) error {
	n, err := c.deps.Store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count stored records: %w", err)
	}
	c.state.seed(n)
	return nil
}

func (c *Collector) normalize(req Request) (Request, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		req.Query = strings.TrimSpace(c.cfg.DefaultQuery)
	}
	if req.Query == "" {
		return req, ErrEmptyQuery
	}
	if req.PageSize <= 0 || req.PageSize > MaxPageSize {
		req.PageSize = c.cfg.PageSize
	}
	if req.Start <= 0 || req.Start > MaxStart {
		req.Start = 1
	}
	if req.Sort == "" {
		req.Sort = c.cfg.Sort
	}
	return req, nil
}

func (c *Collector) now() time.Time {
	if c.deps.Clock != nil {
		return c.deps.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

// run executes the collection sequence. The caller holds the flag and has
// already marked the run as begun.
func (c *Collector) run(ctx context.Context, req Request) (Result, error) {
	started := time.Now()
	logger := c.logger.With(zap.String("query", req.Query))

	wm, hasWatermark := ResolveWatermark(ctx, c.deps.Store, logger)

	found, err := c.deps.Source.Search(ctx, news.SearchRequest{
		Query:   req.Query,
		Display: req.PageSize,
		Start:   req.Start,
		Sort:    req.Sort,
	})
	if err != nil {
		return c.fail(logger, started, fmt.Errorf("%w: search %q: %w", ErrCollectionFailed, req.Query, err))
	}

	collectedAt := c.now()
	batch := make([]news.Record, 0, len(found.Items))
	for _, item := range found.Items {
		id, err := c.deps.IDs.NewID()
		if err != nil {
			return c.fail(logger, started, fmt.Errorf("%w: generate record id: %w", ErrCollectionFailed, err))
		}
		batch = append(batch, news.NewRecord(item, req.Query, id, collectedAt))
	}

	fresh := Filter(batch, wm, hasWatermark)
	result := Result{
		Query:          req.Query,
		TotalAvailable: found.Total,
		Fetched:        len(batch),
		New:            len(fresh),
		SavedItems:     []news.Summary{},
		FirstRun:       !hasWatermark,
		CollectedAt:    collectedAt,
	}
	if hasWatermark {
		result.Watermark = wm.Raw
	}
	logger.Info("search complete",
		zap.Int("fetched", result.Fetched),
		zap.Int("new", result.New),
		zap.String("watermark", result.Watermark),
	)

	if len(fresh) == 0 {
		result.Message = "no articles available"
		if hasWatermark && len(batch) > 0 {
			result.Message = "no new articles since " + wm.Raw
		}
		c.state.succeed(c.now(), 0)
		return c.finish(started, result), nil
	}

	if req.IncludeImages && c.deps.Enricher != nil {
		report := c.deps.Enricher.Enrich(ctx, fresh)
		fresh = report.Records
		result.Enriched = report.Enriched
	} else {
		for i := range fresh {
			fresh[i].Image = nil
		}
	}

	written := c.writer.WriteAll(ctx, fresh)
	result.Saved = written.Saved
	result.Failed = written.Failed
	result.SavedItems = written.Summaries
	result.Message = fmt.Sprintf("saved %d of %d new articles", written.Saved, len(fresh))
	c.state.succeed(c.now(), written.Saved)

	c.publish(ctx, logger, result)
	return c.finish(started, result), nil
}

func (c *Collector) finish(started time.Time, result Result) Result {
	elapsed := time.Since(started)
	result.DurationMS = elapsed.Milliseconds()
	metrics.ObserveRun("success", elapsed)
	metrics.ObserveRecords("fetched", result.Fetched)
	metrics.ObserveRecords("new", result.New)
	metrics.ObserveRecords("enriched", result.Enriched)
	metrics.ObserveRecords("saved", result.Saved)
	metrics.ObserveRecords("failed", result.Failed)
	return result
}

func (c *Collector) fail(logger *zap.Logger, started time.Time, err error) (Result, error) {
	c.state.fail(err)
	metrics.ObserveRun("failed", time.Since(started))
	logger.Error("collection failed", zap.Error(err))
	return Result{}, err
}

// publish emits the completion event. Failures are logged and absorbed.
func (c *Collector) publish(ctx context.Context, logger *zap.Logger, result Result) {
	if c.deps.Publisher == nil || c.cfg.Topic == "" {
		return
	}
	ids := make([]string, 0, len(result.SavedItems))
	for _, s := range result.SavedItems {
		ids = append(ids, s.ID)
	}
	eventID, err := c.deps.IDs.NewEventID()
	if err != nil {
		logger.Warn("event id generation failed", zap.Error(err))
	}
	msgID, err := c.deps.Publisher.Publish(ctx, c.cfg.Topic, news.CollectionEvent{
		EventID:     eventID,
		Query:       result.Query,
		Fetched:     result.Fetched,
		New:         result.New,
		Enriched:    result.Enriched,
		Saved:       result.Saved,
		Failed:      result.Failed,
		RecordIDs:   ids,
		CollectedAt: result.CollectedAt,
	})
	if err != nil {
		metrics.ObserveDegraded(degradedPublish)
		logger.Warn(degradedPublish, zap.String("topic", c.cfg.Topic), zap.Error(err))
		return
	}
	logger.Debug("collection event published", zap.String("message_id", msgID))
}
