package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-collector/internal/catalog"
)

func (s *Server) listNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q, "limit", catalog.DefaultLimit, 1, catalog.MaxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := intParam(q, "offset", 0, 0, catalog.MaxOffset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.deps.Catalog.List(r.Context(), catalog.ListQuery{
		Limit:   limit,
		Offset:  offset,
		Keyword: q.Get("keyword"),
	})
	if err != nil {
		s.logger.Error("news query failed", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) newsStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Catalog.Stats(r.Context())
	if err != nil {
		s.logger.Error("news stats failed", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
