package collector

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-collector/internal/metrics"
	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

// WriteResult summarizes one persistence pass.
type WriteResult struct {
	Saved     int
	Failed    int
	Summaries []news.Summary
}

// Writer stores records one by one. A failed write is counted and logged
// but never stops the remaining writes.
type Writer struct {
	store  news.RecordStore
	logger *zap.Logger
}

// NewWriter builds a Writer over store.
func NewWriter(store news.RecordStore, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, logger: logger}
}

// WriteAll persists every record and reports the outcome.
func (w *Writer) WriteAll(ctx context.Context, records []news.Record) WriteResult {
	res := WriteResult{Summaries: make([]news.Summary, 0, len(records))}
	for _, rec := range records {
		if err := w.store.PutRecord(ctx, rec); err != nil {
			res.Failed++
			metrics.ObserveDegraded(degradedPersist)
			w.logger.Warn(degradedPersist,
				zap.String("id", rec.ID),
				zap.String("title", rec.Title),
				zap.Error(err),
			)
			continue
		}
		res.Saved++
		res.Summaries = append(res.Summaries, rec.Summarize())
	}
	return res
}
