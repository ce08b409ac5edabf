// Package server exposes a read-only HTTP API over stored runs,
// playlists, and the decision log.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/skylark-radio/playlist-cli/internal/decision"
	"github.com/skylark-radio/playlist-cli/internal/model"
	"github.com/skylark-radio/playlist-cli/internal/store"
)

// Server serves the query API. It never mutates store state.
type Server struct {
	store        store.Store
	decisionPath string
	router       chi.Router
}

// New builds the server and its routes.
func New(st store.Store, decisionPath string) *Server {
	s := &Server{
		store:        st,
		decisionPath: decisionPath,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/playlists", s.handleRunPlaylists)
		r.Get("/playlists/{daypart}", s.handleLatestPlaylist)
		r.Get("/decisions", s.handleDecisions)
	})

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Status: model.RunStatus(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.store.ListPlaylists(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if playlists == nil {
		playlists = []model.Playlist{}
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (s *Server) handleLatestPlaylist(w http.ResponseWriter, r *http.Request) {
	pl, err := s.store.LatestPlaylist(r.Context(), chi.URLParam(r, "daypart"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if pl == nil {
		http.Error(w, `{"error":"playlist not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	daypart := r.URL.Query().Get("daypart")
	n := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}

	records, err := decision.Tail(s.decisionPath, daypart, n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []decision.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
