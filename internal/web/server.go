// Package web provides an HTTP status server for the keypad daemon.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/sweeney/keypad-driver/internal/status"
)

// HeldSource reports the keys currently held down, in key map order.
type HeldSource interface {
	Held() []byte
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	held       HeldSource
}

// HeldJSON is the body of /held.json.
type HeldJSON struct {
	Held     []string `json:"held"`
	Buffered int      `json:"buffered"`
	Free     int      `json:"free"`
	State    string   `json:"state"`
}

// New creates a Server that reads state from the given tracker. held may
// be nil, in which case no keys are ever reported held.
func New(addr string, tracker *status.Tracker, held HeldSource) *Server {
	s := &Server{tracker: tracker, held: held}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/held.json", s.handleHeld)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.heldKeys())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleHeld(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	resp := HeldJSON{
		Held:     []string{},
		Buffered: snap.Buffered,
		State:    snap.HandlerState,
	}
	for _, k := range s.heldKeys() {
		resp.Held = append(resp.Held, string(rune(k)))
	}
	// One slot of the ring is always kept empty.
	if free := snap.Config.Capacity - 1 - snap.Buffered; free > 0 {
		resp.Free = free
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) heldKeys() []byte {
	if s.held == nil {
		return nil
	}
	return s.held.Held()
}
