// Package server exposes the thin HTTP surface around the scan engine:
// trigger a check, attach to the event stream, and manage push tokens.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bassamadnan/leavewatch/notify"
	"github.com/bassamadnan/leavewatch/watch"
)

// runner is the part of the agent the HTTP layer drives.
type runner interface {
	RunOnce(ctx context.Context) watch.Result
}

// Server wires HTTP routes to one agent instance. Web and Registry are
// optional; their routes are only mounted when the matching channel is
// configured.
type Server struct {
	agent    runner
	notifier notify.Notifier
	web      *notify.Web
	registry *notify.Registry
}

func New(agent runner, notifier notify.Notifier, web *notify.Web, registry *notify.Registry) *Server {
	return &Server{agent: agent, notifier: notifier, web: web, registry: registry}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/check", s.handleCheck).Methods(http.MethodPost)
	r.HandleFunc("/test", s.handleTest).Methods(http.MethodPost)
	if s.registry != nil {
		r.HandleFunc("/tokens", s.handleRegisterToken).Methods(http.MethodPost)
		r.HandleFunc("/tokens/{token}", s.handleUnregisterToken).Methods(http.MethodDelete)
	}
	if s.web != nil {
		r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	res := s.agent.RunOnce(r.Context())
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	ok := s.notifier.NotifyTest(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"sent": ok})
}

func (s *Server) handleRegisterToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}
	s.registry.Register(body.Token)
	writeJSON(w, http.StatusOK, map[string]int{"registered": s.registry.Len()})
}

func (s *Server) handleUnregisterToken(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	s.registry.Unregister(token)
	writeJSON(w, http.StatusOK, map[string]int{"registered": s.registry.Len()})
}

// handleEvents serves the server-sent event stream: recent history first,
// then live records until the client goes away or the listener is
// detached for falling behind.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for _, rec := range s.web.Recent() {
		if err := writeEvent(w, rec); err != nil {
			return
		}
	}
	flusher.Flush()

	ch := s.web.Subscribe()
	defer s.web.Unsubscribe(ch)
	for {
		select {
		case <-r.Context().Done():
			return
		case rec, open := <-ch:
			if !open {
				return
			}
			if err := writeEvent(w, rec); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, rec notify.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Server: failed to encode response: %v", err)
	}
}
