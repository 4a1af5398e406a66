package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-collector/internal/metrics"
)

// BatchRequest runs several queries under one single-flight acquisition.
type BatchRequest struct {
	Queries       []string
	PageSize      int
	IncludeImages bool
}

// BatchEntry is the outcome of one query in a batch.
type BatchEntry struct {
	Query  string  `json:"query"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// BatchResult aggregates a batch run.
type BatchResult struct {
	Results    []BatchEntry `json:"results"`
	TotalSaved int          `json:"total_saved"`
	Failed     int          `json:"failed_queries"`
}

// CollectBatch runs the queries sequentially, pausing BatchDelay between
// them. A failing query is recorded in its entry and the batch moves on.
// Cancelling ctx stops the batch between queries.
func (c *Collector) CollectBatch(ctx context.Context, req BatchRequest) (BatchResult, error) {
	queries := make([]Request, 0, len(req.Queries))
	for _, q := range req.Queries {
		r, err := c.normalize(Request{Query: q, PageSize: req.PageSize, IncludeImages: req.IncludeImages})
		if errors.Is(err, ErrEmptyQuery) {
			continue
		}
		queries = append(queries, r)
	}
	if len(queries) == 0 {
		return BatchResult{}, ErrEmptyQuery
	}
	if !c.state.acquire() {
		metrics.ObserveRun("rejected", 0)
		return BatchResult{}, ErrAlreadyRunning
	}
	defer c.state.release()

	out := BatchResult{Results: make([]BatchEntry, 0, len(queries))}
	for i, r := range queries {
		if i > 0 {
			if err := sleep(ctx, c.cfg.BatchDelay); err != nil {
				return out, fmt.Errorf("batch interrupted after %d of %d queries: %w", i, len(queries), err)
			}
		}
		entry := BatchEntry{Query: r.Query}
		c.state.begin(r.Query)
		res, err := c.run(ctx, r)
		if err != nil {
			entry.Error = err.Error()
			out.Failed++
		} else {
			entry.Result = &res
			out.TotalSaved += res.Saved
		}
		out.Results = append(out.Results, entry)
	}
	c.logger.Info("batch collection complete",
		zap.Int("queries", len(queries)),
		zap.Int("failed", out.Failed),
		zap.Int("saved", out.TotalSaved),
	)
	return out, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
