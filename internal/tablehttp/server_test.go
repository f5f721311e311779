package tablehttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MJE43/roulette-table-go/internal/spinstore"
)

var testDBCounter int

func newTestServer(t *testing.T, token string) (*Server, *spinstore.Store) {
	t.Helper()
	testDBCounter++
	dsn := fmt.Sprintf("file:tablehttp_test_%d?mode=memory&cache=shared", testDBCounter)
	store, err := spinstore.New(dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewServer(store, 0, token), store
}

func seedSession(t *testing.T, store *spinstore.Store, spins int) string {
	t.Helper()
	ctx := context.Background()
	id, err := store.CreateSession(ctx, "hash", "seed", 100)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	for n := 1; n <= spins; n++ {
		if err := store.RecordSpin(ctx, id, spinstore.Spin{Nonce: int64(n), Pocket: n, Bet: 10}); err != nil {
			t.Fatalf("RecordSpin: %v", err)
		}
	}
	return id.String()
}

func TestListSessions(t *testing.T) {
	srv, store := newTestServer(t, "")
	seedSession(t, store, 2)

	req := httptest.NewRequest(http.MethodGet, "/table/sessions", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Count    int               `json:"count"`
		Sessions []json.RawMessage `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || len(body.Sessions) != 1 {
		t.Errorf("count = %d, sessions = %d, want 1/1", body.Count, len(body.Sessions))
	}
}

func TestSessionDetail(t *testing.T) {
	srv, store := newTestServer(t, "")
	id := seedSession(t, store, 3)

	req := httptest.NewRequest(http.MethodGet, "/table/sessions/"+id, nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var sess spinstore.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.TotalSpins != 3 {
		t.Errorf("total spins = %d, want 3", sess.TotalSpins)
	}
	if sess.TotalWagered != 30 {
		t.Errorf("total wagered = %d, want 30", sess.TotalWagered)
	}
}

func TestSessionDetailNotFound(t *testing.T) {
	srv, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/table/sessions/00000000-0000-0000-0000-000000000001", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSessionDetailBadID(t *testing.T) {
	srv, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/table/sessions/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSessionSpinsPaging(t *testing.T) {
	srv, store := newTestServer(t, "")
	id := seedSession(t, store, 5)

	req := httptest.NewRequest(http.MethodGet, "/table/sessions/"+id+"/spins?limit=2&order=desc", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Total int64            `json:"total"`
		Rows  []spinstore.Spin `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 5 {
		t.Errorf("total = %d, want 5", body.Total)
	}
	if len(body.Rows) != 2 || body.Rows[0].Nonce != 5 {
		t.Errorf("rows wrong: %+v", body.Rows)
	}
}

func TestSessionTail(t *testing.T) {
	srv, store := newTestServer(t, "")
	id := seedSession(t, store, 4)

	req := httptest.NewRequest(http.MethodGet, "/table/sessions/"+id+"/tail?since_id=0", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	var body struct {
		Rows   []spinstore.Spin `json:"rows"`
		LastID int64            `json:"lastID"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(body.Rows))
	}
	if body.LastID != body.Rows[3].ID {
		t.Errorf("lastID = %d, want %d", body.LastID, body.Rows[3].ID)
	}
}

func TestSessionExportCSV(t *testing.T) {
	srv, store := newTestServer(t, "")
	id := seedSession(t, store, 2)

	req := httptest.NewRequest(http.MethodGet, "/table/sessions/"+id+"/export.csv", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q, want text/csv", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 3 {
		t.Errorf("expected header + 2 rows, got %d lines", len(lines))
	}
}

func TestTokenCheck(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/table/sessions", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/table/sessions", nil)
	req.Header.Set("X-Table-Token", "secret")
	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want 200", rec.Code)
	}
}

func TestUpdateNotesEndpoint(t *testing.T) {
	srv, store := newTestServer(t, "")
	id := seedSession(t, store, 0)

	req := httptest.NewRequest(http.MethodPut, "/table/sessions/"+id, strings.NewReader(`{"notes":"double street run"}`))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/table/sessions/"+id, nil)
	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	var sess spinstore.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.Notes != "double street run" {
		t.Errorf("notes = %q", sess.Notes)
	}
}

func TestDeleteSessionEndpoint(t *testing.T) {
	srv, store := newTestServer(t, "")
	id := seedSession(t, store, 1)

	req := httptest.NewRequest(http.MethodDelete, "/table/sessions/"+id, nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/table/sessions/"+id, nil)
	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 after delete", rec.Code)
	}
}
