package tablehttp

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MJE43/roulette-table-go/internal/spinstore"
)

// Server runs a read-only local HTTP API over the spin store so external
// tools can observe the running table. It binds loopback only; play always
// goes through the GUI bindings.
type Server struct {
	store        *spinstore.Store
	token        string
	addr         string // e.g. "127.0.0.1:17889"
	httpServer   *http.Server
	writeTimeout time.Duration
	readTimeout  time.Duration
}

// NewServer creates a table HTTP server bound to loopback at the given
// port. token may be empty to disable token checks.
func NewServer(store *spinstore.Store, port int, token string) *Server {
	if port <= 0 {
		port = 17889
	}
	return &Server{
		store:        store,
		token:        token,
		addr:         fmt.Sprintf("127.0.0.1:%d", port),
		writeTimeout: 10 * time.Second,
		readTimeout:  10 * time.Second,
	}
}

// Start begins listening in a goroutine. It returns once the socket is
// bound.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Routes(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	go func() {
		_ = s.httpServer.Serve(ln)
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Routes builds the router. Exposed for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(logRequest)
	r.Use(s.tokenCheck)

	r.Route("/table/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleSessionDetail)
			r.Put("/", s.handleSessionUpdate)
			r.Delete("/", s.handleSessionDelete)
			r.Get("/spins", s.handleSessionSpins)
			r.Get("/tail", s.handleSessionTail)
			r.Get("/export.csv", s.handleSessionExport)
		})
	})

	return r
}

// tokenCheck rejects requests lacking the X-Table-Token header when a token
// is configured.
func (s *Server) tokenCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("X-Table-Token") != s.token {
			writeJSON(w, http.StatusUnauthorized, errObj("UNAUTHORIZED", "missing or invalid X-Table-Token", ""))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ========== Handlers ==========

// GET /table/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(qInt(r, "limit", 100), 1, 500)
	offset := clampInt(qInt(r, "offset", 0), 0, 1_000_000)

	items, err := s.store.ListSessions(r.Context(), limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errObj("SERVER_ERROR", "failed to list sessions", ""))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": items,
		"count":    len(items),
	})
}

// GET /table/sessions/{id}
func (s *Server) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathSessionID(w, r)
	if !ok {
		return
	}
	item, err := s.store.GetSession(r.Context(), sessionID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "session not found", "id"))
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errObj("SERVER_ERROR", "failed to fetch session", ""))
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// PUT /table/sessions/{id}
func (s *Server) handleSessionUpdate(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathSessionID(w, r)
	if !ok {
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errObj("VALIDATION_ERROR", "invalid JSON", ""))
		return
	}
	if err := s.store.UpdateNotes(r.Context(), sessionID, body.Notes); err != nil {
		writeJSON(w, http.StatusInternalServerError, errObj("SERVER_ERROR", "failed to update notes", ""))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DELETE /table/sessions/{id}
func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathSessionID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteSession(r.Context(), sessionID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errObj("SERVER_ERROR", "failed to delete session", ""))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /table/sessions/{id}/spins?limit=&offset=&order=
func (s *Server) handleSessionSpins(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathSessionID(w, r)
	if !ok {
		return
	}
	limit := clampInt(qInt(r, "limit", 500), 1, 10000)
	offset := clampInt(qInt(r, "offset", 0), 0, 1_000_000)
	order := "asc"
	if strings.EqualFold(r.URL.Query().Get("order"), "desc") {
		order = "desc"
	}

	rows, total, err := s.store.ListSpins(r.Context(), sessionID, order, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errObj("SERVER_ERROR", "failed to list spins", ""))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total": total,
		"rows":  rows,
	})
}

// GET /table/sessions/{id}/tail?since_id=&limit=
func (s *Server) handleSessionTail(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathSessionID(w, r)
	if !ok {
		return
	}
	sinceID := qInt64(r, "since_id", 0)
	limit := clampInt(qInt(r, "limit", 1000), 1, 5000)

	rows, err := s.store.TailSpins(r.Context(), sessionID, sinceID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errObj("SERVER_ERROR", "failed to tail spins", ""))
		return
	}
	lastID := sinceID
	if len(rows) > 0 {
		lastID = rows[len(rows)-1].ID
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":   rows,
		"lastID": lastID,
	})
}

// GET /table/sessions/{id}/export.csv
func (s *Server) handleSessionExport(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathSessionID(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="session_spins.csv"`)

	if err := s.store.ExportCSV(r.Context(), w, sessionID); err != nil {
		// Headers are already sent; log and stop.
		log.Printf("[tablehttp] csv export failed: %v", err)
	}
}

// ========== helpers ==========

func pathSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errObj("VALIDATION_ERROR", "invalid session id", "id"))
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errObj(code, msg, field string) map[string]any {
	e := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if field != "" {
		e["error"].(map[string]any)["field"] = field
	}
	return e
}

func qInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func qInt64(r *http.Request, key string, def int64) int64 {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return i
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func logRequest(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		dur := time.Since(start)
		log.Printf("[tablehttp] %s %s %dms", r.Method, r.URL.Path, dur.Milliseconds())
	}
	return http.HandlerFunc(fn)
}
