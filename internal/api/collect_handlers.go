package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-collector/internal/collector"
)

const (
	defaultBatchDisplay = 5
	maxBatchDisplay     = 50
)

type startResponse struct {
	Message string `json:"message"`
	Query   string `json:"query"`
	Display int    `json:"display"`
	Sort    string `json:"sort"`
}

type statusResponse struct {
	Collector   collector.RunState `json:"crawl_status"`
	StoredItems *int64             `json:"stored_items,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

type batchResponse struct {
	collector.BatchResult
	TotalKeywords   int     `json:"total_keywords"`
	DurationSeconds float64 `json:"duration_seconds"`
}

func (s *Server) collectRequest(r *http.Request) (collector.Request, error) {
	req := s.deps.Collector.Defaults()
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("query")); v != "" {
		req.Query = v
	}
	var err error
	if req.PageSize, err = intParam(q, "display", req.PageSize, 1, collector.MaxPageSize); err != nil {
		return req, err
	}
	if req.Start, err = intParam(q, "start", 1, 1, collector.MaxStart); err != nil {
		return req, err
	}
	if req.Sort, err = sortParam(q, req.Sort); err != nil {
		return req, err
	}
	if req.IncludeImages, err = boolParam(q, "images", req.IncludeImages); err != nil {
		return req, err
	}
	return req, nil
}

func (s *Server) startCollection(w http.ResponseWriter, r *http.Request) {
	req, err := s.collectRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Collector.Start(r.Context(), req); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, startResponse{
		Message: "collection started for " + req.Query,
		Query:   req.Query,
		Display: req.PageSize,
		Sort:    req.Sort,
	})
}

// collectNow runs a collection inline. A client disconnect does not cancel the run.
func (s *Server) collectNow(w http.ResponseWriter, r *http.Request) {
	req, err := s.collectRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.deps.Collector.Collect(context.WithoutCancel(r.Context()), req)
	if err != nil {
		s.logger.Warn("collection failed", zap.String("query", req.Query), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) collectBatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	queries := q["query"]
	if len(queries) == 0 {
		queries = s.opts.BatchQueries
	}
	display, err := intParam(q, "display", defaultBatchDisplay, 1, maxBatchDisplay)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	images, err := boolParam(q, "images", s.deps.Collector.Defaults().IncludeImages)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	started := time.Now()
	res, err := s.deps.Collector.CollectBatch(context.WithoutCancel(r.Context()), collector.BatchRequest{
		Queries:       queries,
		PageSize:      display,
		IncludeImages: images,
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{
		BatchResult:     res,
		TotalKeywords:   len(res.Results),
		DurationSeconds: time.Since(started).Seconds(),
	})
}

func (s *Server) collectionStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Collector: s.deps.Collector.Status(), Timestamp: time.Now().UTC()}
	if s.deps.Store != nil {
		n, err := s.deps.Store.Count(r.Context())
		if err != nil {
			s.logger.Warn("store count failed", zap.Error(err))
		} else {
			resp.StoredItems = &n
			resp.Collector.TotalCollected = n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
