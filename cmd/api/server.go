package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/sayhar/wiki-know/internal/batch"
	"github.com/sayhar/wiki-know/internal/diag"
	"github.com/sayhar/wiki-know/internal/report"
	"github.com/sayhar/wiki-know/internal/results"
)

type server struct {
	svc   *results.Service
	index *batch.Index
	diags *diag.Resolver
	hub   *watchHub
}

func newServer(svc *results.Service, index *batch.Index, diags *diag.Resolver, hub *watchHub) *server {
	return &server{svc: svc, index: index, diags: diags, hub: hub}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})
	mux.HandleFunc("/api/tests", s.handleTests)
	mux.HandleFunc("/api/test", s.handleTest)
	mux.HandleFunc("/api/ask", s.handleAsk)
	mux.HandleFunc("/api/nav", s.handleNav)
	mux.HandleFunc("/api/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("/api/directory", s.handleDirectory)
	mux.HandleFunc("/api/watch", s.hub.handle)
	return mux
}

// handleTests lists the ordered members of a batch, building it on first use.
func (s *server) handleTests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	batchName := strings.TrimSpace(r.URL.Query().Get("batch"))
	if batchName == "" {
		http.Error(w, "batch is required", http.StatusBadRequest)
		return
	}
	ids, err := s.index.Tests(r.Context(), batchName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"batch": batchName, "tests": ids})
}

// handleTest serves the full result view of one test. A guess query parameter
// switches the page into guess-result mode.
func (s *server) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	batchName := strings.TrimSpace(q.Get("batch"))
	testID := strings.TrimSpace(q.Get("test"))
	if batchName == "" || testID == "" {
		http.Error(w, "batch and test are required", http.StatusBadRequest)
		return
	}
	guess, hasGuess := "", false
	if q.Has("guess") {
		guess, hasGuess = q.Get("guess"), true
	}
	page, err := s.svc.ResultPage(r.Context(), testID, batchName, guess, hasGuess)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, page)
}

// handleAsk serves the pre-guess view: screenshots and description, no winner.
func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	batchName := strings.TrimSpace(q.Get("batch"))
	testID := strings.TrimSpace(q.Get("test"))
	if batchName == "" || testID == "" {
		http.Error(w, "batch and test are required", http.StatusBadRequest)
		return
	}
	page, err := s.svc.AskPage(r.Context(), testID, batchName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, page)
}

// handleNav steps to a test's neighbor within a batch.
func (s *server) handleNav(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	batchName := strings.TrimSpace(q.Get("batch"))
	testID := strings.TrimSpace(q.Get("test"))
	dir := strings.TrimSpace(q.Get("dir"))
	if batchName == "" {
		http.Error(w, "batch is required", http.StatusBadRequest)
		return
	}

	var (
		neighbor string
		status   batch.NavStatus
		err      error
	)
	switch dir {
	case "first", "random":
		var ok bool
		if dir == "first" {
			neighbor, ok, err = s.index.First(r.Context(), batchName)
		} else {
			neighbor, ok, err = s.index.RandomTest(r.Context(), batchName)
		}
		status = batch.NavOK
		if !ok {
			status = batch.NavEnd
		}
	case "next", "prev":
		if testID == "" {
			http.Error(w, "test is required", http.StatusBadRequest)
			return
		}
		if dir == "next" {
			neighbor, status, err = s.index.Next(r.Context(), testID, batchName)
		} else {
			neighbor, status, err = s.index.Prev(r.Context(), testID, batchName)
		}
	default:
		http.Error(w, "dir must be next, prev, first, or random", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"batch":  batchName,
		"test":   neighbor,
		"status": navStatusLabel(status),
	})
}

func navStatusLabel(status batch.NavStatus) string {
	switch status {
	case batch.NavOK:
		return "ok"
	case batch.NavEnd:
		return "end"
	case batch.NavNone:
		return "none"
	default:
		return "not_in_batch"
	}
}

// handleDiagnostics resolves the diagnostic graph descriptors of a test.
func (s *server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	testID := strings.TrimSpace(r.URL.Query().Get("test"))
	if testID == "" {
		http.Error(w, "test is required", http.StatusBadRequest)
		return
	}
	descs, err := s.diags.Descriptors(r.Context(), testID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"test": testID, "diagnostic_graphs": descs})
}

// handleDirectory serves the full test listing for chronological or reverse.
func (s *server) handleDirectory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	batchName := strings.TrimSpace(r.URL.Query().Get("batch"))
	if batchName == "" {
		batchName = batch.Chronological
	}
	dir, err := s.svc.Directory(r.Context(), batchName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, dir)
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, report.ErrNotFound), errors.Is(err, results.ErrNotInBatch):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, report.ErrMalformed), errors.Is(err, results.ErrUnsupportedBatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("api: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// withCORS wraps a handler with the permissive CORS policy the report viewers
// expect.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
