package collector

import (
	"github.com/JakeFAU/realtime-news-collector/internal/news"
	"github.com/JakeFAU/realtime-news-collector/internal/pubdate"
)

// Filter keeps the records published strictly after the watermark, in
// their original order. Without a watermark the batch is returned as is.
// Records with no publication timestamp are always kept.
func Filter(batch []news.Record, wm Watermark, ok bool) []news.Record {
	if !ok {
		return batch
	}
	kept := make([]news.Record, 0, len(batch))
	for _, rec := range batch {
		if rec.PublishedAt == "" || pubdate.IsNewer(rec.PublishedAt, wm.Raw) {
			kept = append(kept, rec)
		}
	}
	return kept
}
