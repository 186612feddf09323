package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/golang/glog"

	"github.com/san-kum/servosteer/internal/dynamo"
	"github.com/san-kum/servosteer/internal/steer"
)

const tuneBacklog = 16

// ParamChange is the body of POST /api/params.
type ParamChange struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Server exposes the running loop over HTTP. It is also a steer.Reporter:
// parameter changes posted by clients are queued and applied from Report, so
// the regulator is only touched on the loop's goroutine.
type Server struct {
	hub    *Hub
	gauges *Gauges
	tuner  dynamo.Configurable
	tune   chan ParamChange

	mu     sync.RWMutex
	last   *steer.Report
	params map[string]float64
}

func NewServer(tuner dynamo.Configurable) *Server {
	s := &Server{
		hub:    NewHub(),
		gauges: NewGauges(),
		tuner:  tuner,
		tune:   make(chan ParamChange, tuneBacklog),
	}
	if tuner != nil {
		s.params = tuner.GetParams()
	}
	return s
}

func (s *Server) Hub() *Hub       { return s.hub }
func (s *Server) Gauges() *Gauges { return s.gauges }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.gauges.Handler())
	mux.Handle("/ws", s.hub)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/params", s.handleParams)
	return mux
}

func (s *Server) Report(ctx context.Context, r steer.Report) error {
	s.applyPending()

	s.mu.Lock()
	s.last = &r
	if s.tuner != nil {
		s.params = s.tuner.GetParams()
	}
	s.mu.Unlock()

	s.gauges.Report(ctx, r)
	return s.hub.Report(ctx, r)
}

func (s *Server) applyPending() {
	for {
		select {
		case c := <-s.tune:
			if err := s.tuner.SetParam(c.Name, c.Value); err != nil {
				glog.Warningf("telemetry: set %s: %v", c.Name, err)
				continue
			}
			glog.Infof("telemetry: %s set to %g", c.Name, c.Value)
		default:
			return
		}
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	if last == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.RLock()
		defer s.mu.RUnlock()
		writeJSON(w, http.StatusOK, s.params)

	case http.MethodPost:
		if s.tuner == nil {
			http.Error(w, "tuning not available", http.StatusNotImplemented)
			return
		}
		var c ParamChange
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.RLock()
		_, known := s.params[c.Name]
		s.mu.RUnlock()
		if !known {
			http.Error(w, "unknown parameter "+c.Name, http.StatusBadRequest)
			return
		}
		select {
		case s.tune <- c:
			w.WriteHeader(http.StatusAccepted)
		default:
			http.Error(w, "too many pending changes", http.StatusServiceUnavailable)
		}

	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Warningf("telemetry: write response: %v", err)
	}
}
