// Package api serves the JSON control surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/pion/logging"

	"github.com/satindergrewal/pt3play/internal/history"
	"github.com/satindergrewal/pt3play/internal/playback"
	"github.com/satindergrewal/pt3play/internal/spectrum"
)

// History is the read side of the play log.
type History interface {
	Recent(limit int) ([]history.Entry, error)
	Top(kind string, limit int) ([]history.Count, error)
}

// Server holds the handlers' dependencies. History and Listeners are
// optional.
type Server struct {
	ctrl  *playback.Controller
	sess  *playback.Session
	store *spectrum.Store
	log   logging.LeveledLogger

	History   History
	Listeners func() int
}

// New creates an API server.
func New(ctrl *playback.Controller, sess *playback.Session, store *spectrum.Store, log logging.LeveledLogger) *Server {
	return &Server{ctrl: ctrl, sess: sess, store: store, log: log}
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", s.status)
	mux.HandleFunc("/api/spectrum", s.spectrum)
	mux.HandleFunc("/api/songs", s.songs)
	mux.HandleFunc("/api/history", s.history)

	mux.HandleFunc("/api/play", s.post(s.play))
	mux.HandleFunc("/api/stop", s.post(func(r *http.Request) error {
		s.ctrl.Stop()
		return nil
	}))
	mux.HandleFunc("/api/next", s.post(func(r *http.Request) error {
		return s.ctrl.NextSong(r.Context())
	}))
	mux.HandleFunc("/api/prev", s.post(func(r *http.Request) error {
		return s.ctrl.PreviousSong(r.Context())
	}))
	mux.HandleFunc("/api/sfx", s.post(s.playEffect))
	mux.HandleFunc("/api/sfx/next", s.post(func(r *http.Request) error {
		return s.ctrl.NextEffect(r.Context())
	}))
	mux.HandleFunc("/api/sfx/prev", s.post(func(r *http.Request) error {
		return s.ctrl.PreviousEffect(r.Context())
	}))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps controller errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, playback.ErrSuperseded),
		errors.Is(err, playback.ErrNoEffectBank),
		errors.Is(err, playback.ErrEmptyCatalog):
		return http.StatusConflict
	case errors.Is(err, playback.ErrAssetLoad):
		return http.StatusBadGateway
	case errors.Is(err, playback.ErrSessionClosed), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("invalid request")

// post wraps an action as a POST-only handler answering with the status.
func (s *Server) post(action func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		if err := action(r); err != nil {
			code := statusFor(err)
			if code >= 500 {
				s.log.Warnf("%s: %v", r.URL.Path, err)
			}
			writeJSON(w, code, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": s.ctrl.Status()})
	}
}

type indexRequest struct {
	Index *int `json:"index"`
}

// decodeIndex reads an optional {"index": n} body.
func decodeIndex(r *http.Request) (*int, error) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		return nil, errBadRequest
	}
	return req.Index, nil
}

func (s *Server) play(r *http.Request) error {
	i, err := decodeIndex(r)
	if err != nil {
		return err
	}
	if i == nil {
		return s.ctrl.PlaySelected(r.Context())
	}
	return s.ctrl.Play(r.Context(), *i)
}

func (s *Server) playEffect(r *http.Request) error {
	i, err := decodeIndex(r)
	if err != nil {
		return err
	}
	if i == nil {
		return s.ctrl.PlaySelectedEffect(r.Context())
	}
	return s.ctrl.PlayEffect(r.Context(), *i)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"player":  s.ctrl.Status(),
		"session": s.sess.Stats(),
	}
	if s.Listeners != nil {
		resp["listeners"] = s.Listeners()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) spectrum(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Load())
}

func (s *Server) songs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"songs": s.ctrl.Songs()})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "limit must be 1-1000", http.StatusBadRequest)
			return
		}
		limit = n
	}
	recent, err := s.History.Recent(limit)
	if err != nil {
		s.log.Errorf("History: %v", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	top, err := s.History.Top("song", 10)
	if err != nil {
		s.log.Errorf("History: %v", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recent": recent, "top": top})
}
