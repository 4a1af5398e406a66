package collector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-collector/internal/metrics"
	"github.com/JakeFAU/realtime-news-collector/internal/news"
	"github.com/JakeFAU/realtime-news-collector/internal/pubdate"
)

// Watermark is the latest publication timestamp already persisted.
type Watermark struct {
	Raw string
	At  time.Time
}

// ResolveWatermark scans stored publication timestamps and returns the
// latest parsable one. It reports false when nothing qualifies or when the
// store cannot be read; a read failure is logged and the run proceeds
// unfiltered.
func ResolveWatermark(ctx context.Context, store news.RecordStore, logger *zap.Logger) (Watermark, bool) {
	if logger == nil {
		logger = zap.NewNop()
	}
	records, err := store.ScanByField(ctx, news.FieldPublishedAt)
	if err != nil {
		metrics.ObserveDegraded(degradedStoreRead)
		logger.Warn(degradedStoreRead, zap.Error(err))
		return Watermark{}, false
	}

	var (
		wm    Watermark
		found bool
	)
	for _, rec := range records {
		if rec.PublishedAt == "" {
			continue
		}
		at, err := pubdate.Parse(rec.PublishedAt)
		if err != nil {
			logger.Debug("skipping unparsable published_at",
				zap.String("id", rec.ID),
				zap.String("published_at", rec.PublishedAt),
			)
			continue
		}
		if !found || at.After(wm.At) {
			wm = Watermark{Raw: rec.PublishedAt, At: at}
			found = true
		}
	}
	return wm, found
}
