package api

import (
	"context"
	"net/http"
	"strconv"

	"git.home.luguber.info/inful/pipelib/internal/eventstore"
)

// HistorySource lists recorded runs.
type HistorySource interface {
	History(ctx context.Context, branch string, limit int) ([]*eventstore.RunSummary, error)
}

// StoreHistory adapts an event store to HistorySource.
type StoreHistory struct {
	Store eventstore.Store
}

// History implements HistorySource.
func (h StoreHistory) History(ctx context.Context, branch string, limit int) ([]*eventstore.RunSummary, error) {
	return eventstore.History(ctx, h.Store, branch, limit)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.Error(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := s.history.History(r.Context(), r.URL.Query().Get("branch"), limit)
	if err != nil {
		s.Error(w, r, http.StatusInternalServerError, errorMessage(err))
		return
	}
	s.Success(w, http.StatusOK, runs)
}
