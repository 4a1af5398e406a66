// Package enrich attaches a representative, CDN-hosted image to freshly
// collected news records. Each record runs through its own pipeline inside a
// fixed worker pool; any failure leaves that record untouched.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-collector/internal/metrics"
	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

const (
	defaultConcurrency   = 3
	defaultMaxImageBytes = 10 << 20
	defaultCacheControl  = "max-age=31536000"
	defaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

var (
	errDisabled   = errors.New("image enrichment disabled")
	errMissingID  = errors.New("record id is empty")
	errMissingURL = errors.New("record has no original url")
	errNoImage    = errors.New("no image candidate on page")
)

// Config tunes the enrichment engine.
type Config struct {
	Enabled       bool
	Concurrency   int
	MaxImageBytes int64
	CacheControl  string
	UserAgent     string
	Environment   string
}

// Deps are the collaborators used by the engine. Pages and Images are
// separate fetchers so each carries its own timeout. Limiter is optional.
type Deps struct {
	Pages   news.Fetcher
	Images  news.Fetcher
	Sink    news.BlobSink
	Hasher  news.Hasher
	Clock   news.Clock
	Limiter news.Limiter
}

// Outcome records how one record left the pipeline. FailedAt is the step
// that was running when a pass-through record gave up.
type Outcome struct {
	ID       string
	State    State
	FailedAt State
	ImageURL string
	Err      error
}

// Report is the engine's output: records in input order, one outcome per
// record, and the number of records that gained an image.
type Report struct {
	Records  []news.Record
	Outcomes []Outcome
	Enriched int
}

// Engine runs the enrichment pipeline.
type Engine struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
}

// New builds an Engine, filling in defaults for zero config values.
func New(cfg Config, deps Deps, logger *zap.Logger) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = defaultMaxImageBytes
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = defaultCacheControl
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, deps: deps, logger: logger}
}

// Active reports whether enrichment will touch the network.
func (e *Engine) Active() bool {
	return e != nil && e.cfg.Enabled && e.deps.Sink != nil &&
		e.deps.Pages != nil && e.deps.Images != nil && e.deps.Hasher != nil
}

// Enrich processes records with at most Concurrency in flight. It never
// fails: records that cannot be enriched are returned without an image.
func (e *Engine) Enrich(ctx context.Context, records []news.Record) Report {
	out := make([]news.Record, len(records))
	copy(out, records)
	outcomes := make([]Outcome, len(records))

	if !e.Active() {
		for i := range out {
			out[i].Image = nil
			outcomes[i] = Outcome{ID: out[i].ID, State: StatePassThrough, FailedAt: StatePending, Err: errDisabled}
		}
		return Report{Records: out, Outcomes: outcomes}
	}

	workers := e.cfg.Concurrency
	if workers > len(out) {
		workers = len(out)
	}
	indices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				outcomes[i] = e.process(ctx, &out[i])
			}
		}()
	}
	for i := range out {
		indices <- i
	}
	close(indices)
	wg.Wait()

	enriched := 0
	for _, o := range outcomes {
		metrics.ObserveEnrichment(o.State.String())
		if o.State == StateEnriched {
			enriched++
		}
	}
	return Report{Records: out, Outcomes: outcomes, Enriched: enriched}
}

// process owns rec for the duration of the call; no other worker touches it.
func (e *Engine) process(ctx context.Context, rec *news.Record) (outcome Outcome) {
	outcome = Outcome{ID: rec.ID, State: StatePending}
	defer func() {
		if r := recover(); r != nil {
			rec.Image = nil
			outcome.FailedAt = outcome.State
			outcome.State = StatePassThrough
			outcome.Err = fmt.Errorf("enrichment panic: %v", r)
		}
		if outcome.State == StatePassThrough {
			e.logger.Debug("image enrichment skipped",
				zap.String("id", outcome.ID),
				zap.String("failed_at", outcome.FailedAt.String()),
				zap.Error(outcome.Err),
			)
		}
	}()

	img, err := e.run(ctx, *rec, &outcome)
	if err != nil {
		rec.Image = nil
		outcome.FailedAt = outcome.State
		outcome.State = StatePassThrough
		outcome.Err = err
		return outcome
	}
	rec.Image = &img
	outcome.State = StateEnriched
	outcome.ImageURL = img.SourceURL
	return outcome
}

// run walks the pipeline, advancing outcome.State before each step so a
// failure can be attributed to it.
func (e *Engine) run(ctx context.Context, rec news.Record, outcome *Outcome) (news.Image, error) {
	outcome.State = StateExtracting
	if rec.ID == "" {
		return news.Image{}, errMissingID
	}
	if rec.OriginalURL == "" {
		return news.Image{}, errMissingURL
	}
	page, err := e.fetchPage(ctx, rec.OriginalURL)
	if err != nil {
		return news.Image{}, err
	}
	imageURL, ok := FindImage(page.URL, page.Body)
	if !ok {
		outcome.State = StateNoImageFound
		return news.Image{}, errNoImage
	}
	outcome.State = StateImageFound
	outcome.ImageURL = imageURL

	outcome.State = StateDownloading
	img, err := e.download(ctx, imageURL)
	if err != nil {
		outcome.State = StateDownloadFailed
		return news.Image{}, err
	}
	outcome.State = StateValidated

	key, err := e.storageKey(rec.ID, imageURL, img.ext)
	if err != nil {
		return news.Image{}, err
	}

	outcome.State = StateUploading
	if err := e.upload(ctx, rec, key, imageURL, img); err != nil {
		return news.Image{}, err
	}
	return news.Image{
		SourceURL:  imageURL,
		CDNURL:     e.deps.Sink.PublicURL(key),
		StorageKey: key,
	}, nil
}

func (e *Engine) fetchPage(ctx context.Context, pageURL string) (news.FetchResponse, error) {
	if e.deps.Limiter != nil {
		if err := e.deps.Limiter.Wait(ctx, pageURL); err != nil {
			return news.FetchResponse{}, fmt.Errorf("wait for page slot: %w", err)
		}
	}
	resp, err := e.deps.Pages.Fetch(ctx, news.FetchRequest{
		URL:     pageURL,
		Headers: e.headers("text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"),
	})
	if err != nil {
		return news.FetchResponse{}, fmt.Errorf("fetch article page: %w", err)
	}
	if resp.StatusCode != 0 && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return news.FetchResponse{}, fmt.Errorf("fetch article page: status %d", resp.StatusCode)
	}
	if resp.URL == "" {
		resp.URL = pageURL
	}
	return resp, nil
}

func (e *Engine) storageKey(id, imageURL, ext string) (string, error) {
	digest, err := e.deps.Hasher.Hash([]byte(imageURL))
	if err != nil {
		return "", fmt.Errorf("hash image url: %w", err)
	}
	return fmt.Sprintf("%s/images/%s%s", id, digest, ext), nil
}

func (e *Engine) upload(ctx context.Context, rec news.Record, key, imageURL string, img downloaded) error {
	uploadedAt := time.Now().UTC()
	if e.deps.Clock != nil {
		uploadedAt = e.deps.Clock.Now()
	}
	err := e.deps.Sink.Put(ctx, news.Blob{
		Key:          key,
		Data:         img.data,
		ContentType:  img.contentType,
		CacheControl: e.cfg.CacheControl,
		Metadata: map[string]string{
			"original_url": imageURL,
			"news_id":      rec.ID,
			"uploaded_at":  uploadedAt.Format(time.RFC3339),
			"environment":  e.cfg.Environment,
		},
	})
	if err != nil {
		return fmt.Errorf("upload image %s: %w", key, err)
	}
	return nil
}
