// Package httpapi is the HTTP framing around the hedge coordinator:
// route parsing, deadline extraction, admission gating, and response
// rendering. None of the race logic lives here.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/aponysus/hedgeproxy/internal/admission"
	"github.com/aponysus/hedgeproxy/internal/hedge"
	"github.com/aponysus/hedgeproxy/internal/observe"
	"github.com/aponysus/hedgeproxy/internal/policykey"
)

// Server wires the admission gate and hedge coordinator to a
// gorilla/mux router. It is safe for concurrent requests.
type Server struct {
	UpstreamURL string
	Gate        *admission.Gate
	Coordinator *hedge.Coordinator
	Observer    observe.Observer
	Key         policykey.Key
	Logger      *zap.Logger
}

// NewRouter builds the mux.Router exposing /api/smart and
// /api/smart/{timeout} per spec.md §4.4 and §6.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/smart", s.handleSmart).Methods(http.MethodGet)
	r.HandleFunc("/api/smart/{timeout}", s.handleSmart).Methods(http.MethodGet)
	return r
}

func (s *Server) handleSmart(w http.ResponseWriter, r *http.Request) {
	hasDeadline, deadline, ok := parseDeadline(r)
	if !ok {
		http.Error(w, "malformed timeout", http.StatusBadRequest)
		return
	}

	if s.UpstreamURL == "" {
		http.Error(w, "upstream not configured", http.StatusInternalServerError)
		return
	}

	decision := s.Gate.Enter()
	if s.Observer != nil {
		s.Observer.OnBudgetDecision(r.Context(), observe.BudgetDecisionEvent{
			Key:     s.Key,
			Allowed: decision.Allowed,
			Reason:  decision.Reason,
		})
	}
	if !decision.Allowed {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	defer decision.Release()

	body, result, reason := s.Coordinator.Race(r.Context(), s.Key, s.UpstreamURL, hasDeadline, deadline)

	if result != observe.RaceWon {
		if s.Logger != nil {
			fields := []zap.Field{zap.String("result", string(result)), zap.String("reason", reason)}
			if hasDeadline {
				fields = append(fields, zap.Duration("deadline", deadline))
			}
			s.Logger.Warn("smart request failed", fields...)
		}
		http.Error(w, "upstream unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// parseDeadline reads the request deadline per spec.md §4.4: the path
// parameter wins over the query parameter, and both are interpreted as
// a whole number of milliseconds (spec.md §9 adopts millisecond
// semantics uniformly rather than the original's inconsistent units).
// A value that is not an integer is malformed; a zero or negative value
// is accepted and reaches the coordinator as an already-expired deadline.
func parseDeadline(r *http.Request) (hasDeadline bool, deadline time.Duration, ok bool) {
	vars := mux.Vars(r)
	raw := vars["timeout"]
	if raw == "" {
		raw = r.URL.Query().Get("timeout")
	}
	if raw == "" {
		return false, 0, true
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, 0, false
	}
	return true, time.Duration(ms) * time.Millisecond, true
}
