package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/user/ghevents/internal/metrics"
	"github.com/user/ghevents/internal/storage"
	"github.com/user/ghevents/pkg/logger"
)

// errorResponse mirrors the request parameters so callers can see which
// combination had no data.
type errorResponse struct {
	RepositoryName string `json:"repository_name"`
	Action         string `json:"action"`
	EventType      string `json:"event_type,omitempty"`
	Message        string `json:"message"`
}

const notEnoughDataMessage = "Not enough data for desired combination of input parameters in order to calculate the metric."

func (s *Server) handleAvgTime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind, ok := parseKind(q.Get("event_type"), storage.KindPullRequest)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			RepositoryName: orAll(q.Get("repository_name")),
			Action:         orAll(q.Get("action")),
			EventType:      q.Get("event_type"),
			Message:        "Unknown event_type.",
		})
		return
	}

	res, err := s.ctrl.AvgTimeBetweenEvents(r.Context(), kind, q.Get("repository_name"), q.Get("action"))
	if err != nil {
		s.writeMetricError(w, r, err, string(kind))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	offset, err := strconv.Atoi(q.Get("offset"))
	if err != nil || offset < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			RepositoryName: orAll(q.Get("repository_name")),
			Action:         orAll(q.Get("action")),
			Message:        "offset must be a non-negative number of seconds.",
		})
		return
	}

	res, err := s.ctrl.TotalEventCounts(r.Context(), offset, q.Get("repository_name"), q.Get("action"))
	if err != nil {
		s.writeMetricError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRepositories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind, ok := parseKind(q.Get("event_type"), storage.KindWatch)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			RepositoryName: "all",
			Action:         "all",
			EventType:      q.Get("event_type"),
			Message:        "Unknown event_type.",
		})
		return
	}

	minEvents := 2
	if v := q.Get("min_events"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				RepositoryName: "all",
				Action:         "all",
				EventType:      string(kind),
				Message:        "min_events must be a positive number.",
			})
			return
		}
		minEvents = n
	}

	res, err := s.ctrl.ActiveRepositories(r.Context(), kind, minEvents)
	if err != nil {
		s.writeMetricError(w, r, err, string(kind))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeMetricError(w http.ResponseWriter, r *http.Request, err error, eventType string) {
	q := r.URL.Query()

	if errors.Is(err, metrics.ErrNotEnoughData) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			RepositoryName: orAll(q.Get("repository_name")),
			Action:         orAll(q.Get("action")),
			EventType:      eventType,
			Message:        notEnoughDataMessage,
		})
		return
	}

	logger.Error().Err(err).Str("path", r.URL.Path).Msg("Metric query failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
}

// parseKind resolves the event_type parameter, falling back to a default for
// an empty value.
func parseKind(s string, def storage.EventKind) (storage.EventKind, bool) {
	if s == "" {
		return def, true
	}
	return storage.ParseEventKind(s)
}

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return s
}
