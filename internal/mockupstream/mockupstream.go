// Package mockupstream is a scriptable stand-in for the flaky JSON
// upstream the hedge coordinator fronts. It backs the standalone
// cmd/mockupstream binary; its scripted steps have the same
// (body, status, delay) shape as the scenarios in spec.md §8. The
// coordinator's own scenario tests use an in-process scripted client
// instead of this server.
//
// Adapted from original_source/tools/mockserver.py: the same three
// routes (serve the next scripted response, report request
// timestamps, and load a new scenario), reimplemented over
// net/http + gorilla/mux instead of aiohttp.
package mockupstream

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// Step is one scripted upstream response: the raw body, the HTTP
// status to return, and how long to sleep before responding.
type Step struct {
	Body  string
	Status int
	Delay time.Duration
}

// Handler serves scripted responses in order, falling back to a
// randomized "flaky" profile once the scenario is exhausted.
type Handler struct {
	mu        sync.Mutex
	scenario  []Step
	served    int
	requests  []time.Duration
	startTime time.Time
	rand      *rand.Rand
}

// NewHandler builds a Handler with an empty scenario (fully random
// responses until SetScenario is called).
func NewHandler() *Handler {
	return &Handler{
		startTime: time.Now(),
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetScenario installs a new ordered scenario and resets request
// history, matching mockserver.py's set_scenario.
func (h *Handler) SetScenario(steps []Step) {
	h.mu.Lock()
	h.scenario = steps
	h.served = 0
	h.requests = nil
	h.startTime = time.Now()
	h.mu.Unlock()
}

// Router returns the mux.Router exposing GET /, GET /requests, and
// POST /setscenario.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/requests", h.handleRequests).Methods(http.MethodGet)
	r.HandleFunc("/setscenario", h.handleSetScenario).Methods(http.MethodPost)
	return r
}

func (h *Handler) nextStep() Step {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.requests = append(h.requests, time.Since(h.startTime))

	if h.served < len(h.scenario) {
		step := h.scenario[h.served]
		h.served++
		return step
	}

	return h.randomStep()
}

// randomStep reproduces mockserver.py's default flaky profile when no
// (or no more) scripted steps remain. Caller must hold h.mu.
func (h *Handler) randomStep() Step {
	delay := time.Duration(100+h.rand.Intn(500)) * time.Millisecond
	mode := h.rand.Intn(11)

	switch {
	case mode > 9:
		return Step{Body: "", Status: 0, Delay: 10 * time.Second}
	case mode > 8:
		return Step{Body: "Not a valid JSON", Status: http.StatusOK, Delay: delay}
	case mode > 7:
		return Step{Body: "Not a valid JSON", Status: http.StatusInternalServerError, Delay: delay}
	default:
		body, _ := json.Marshal(map[string]int64{"time": delay.Milliseconds()})
		return Step{Body: string(body), Status: http.StatusOK, Delay: delay}
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	step := h.nextStep()

	timer := time.NewTimer(step.Delay)
	defer timer.Stop()
	select {
	case <-r.Context().Done():
		return
	case <-timer.C:
	}

	if step.Status == 0 {
		// Simulate a transport failure: close the connection without
		// a response rather than returning any status.
		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "mock upstream failure", http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(step.Status)
	_, _ = w.Write([]byte(step.Body))
}

func (h *Handler) handleRequests(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	out := make([]float64, len(h.requests))
	for i, d := range h.requests {
		out[i] = d.Seconds()
	}
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) handleSetScenario(w http.ResponseWriter, r *http.Request) {
	var raw []struct {
		Body   string `json:"body"`
		Status int    `json:"status"`
		DelayMs int64 `json:"delay_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "invalid scenario", http.StatusBadRequest)
		return
	}

	steps := make([]Step, len(raw))
	for i, s := range raw {
		steps[i] = Step{Body: s.Body, Status: s.Status, Delay: time.Duration(s.DelayMs) * time.Millisecond}
	}
	h.SetScenario(steps)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
