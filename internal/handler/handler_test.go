package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"notely-server/internal/config"
	"notely-server/internal/domain"
	"notely-server/internal/identity"
	"notely-server/internal/middleware"
	"notely-server/internal/repository"
	"notely-server/internal/service"
	"notely-server/pkg/jwt"
	"notely-server/pkg/response"
)

const testSecret = "handler-test-secret"

type countingNotes struct {
	repository.NoteRepository
	calls *atomic.Int64
}

func (c countingNotes) Create(ctx context.Context, n *domain.Note) (*domain.Note, error) {
	c.calls.Add(1)
	return c.NoteRepository.Create(ctx, n)
}

func (c countingNotes) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	c.calls.Add(1)
	return c.NoteRepository.FindByID(ctx, id)
}

func (c countingNotes) FindByOwner(ctx context.Context, userID string) ([]*domain.Note, error) {
	c.calls.Add(1)
	return c.NoteRepository.FindByOwner(ctx, userID)
}

type countingUsers struct {
	repository.UserRepository
	calls *atomic.Int64
}

func (c countingUsers) FindByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	c.calls.Add(1)
	return c.UserRepository.FindByExternalID(ctx, externalID)
}

func (c countingUsers) Create(ctx context.Context, u *domain.NewUser) (*domain.User, error) {
	c.calls.Add(1)
	return c.UserRepository.Create(ctx, u)
}

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(ctx context.Context) error {
	return s.err
}

type testServer struct {
	handler    http.Handler
	storeCalls *atomic.Int64
}

func newTestServer(t *testing.T, pinger Pinger) *testServer {
	t.Helper()

	store := repository.NewMemoryStore()
	calls := &atomic.Int64{}

	if pinger == nil {
		pinger = store
	}

	cfg := &config.Config{
		Identity: config.IdentityConfig{Provider: config.ProviderJWT, JWTSecret: testSecret, Timeout: time.Second},
		CORS: config.CORSConfig{
			AllowedOrigins: "*",
			AllowedMethods: "GET,POST,PUT,DELETE,PATCH,OPTIONS",
			AllowedHeaders: "Content-Type,Authorization",
		},
	}

	router := NewRouter(Deps{
		Notes:    service.NewNoteService(countingNotes{NoteRepository: store.Notes(), calls: calls}),
		Users:    service.NewUserService(countingUsers{UserRepository: store.Users(), calls: calls}),
		Resolver: identity.NewJWTResolver(testSecret, ""),
		Store:    pinger,
		Config:   cfg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return &testServer{handler: router, storeCalls: calls}
}

func tokenFor(t *testing.T, subject string) string {
	t.Helper()
	token, err := jwt.GenerateToken(subject, jwt.Profile{Email: subject + "@example.com", Name: subject}, time.Hour, testSecret)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (s *testServer) createNote(t *testing.T, token, title, content string) *domain.Note {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/notes", token, map[string]string{"title": title, "content": content})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create note status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return decode[domain.NoteResponse](t, rec).Note
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decode[HealthResponse](t, rec)
	if body.Status != "OK" {
		t.Errorf("status = %q, want OK", body.Status)
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC 3339: %v", body.Timestamp, err)
	}
}

func TestReady(t *testing.T) {
	if rec := newTestServer(t, nil).do(t, http.MethodGet, "/ready", "", nil); rec.Code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", rec.Code)
	}

	s := newTestServer(t, stubPinger{err: errors.New("connection refused")})
	rec := s.do(t, http.MethodGet, "/ready", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready status = %d, want 503", rec.Code)
	}
	if body := decode[response.ErrorBody](t, rec); body.Error != "Store unavailable" {
		t.Errorf("error = %q, want %q", body.Error, "Store unavailable")
	}
}

func TestNotes_RequireAuthentication(t *testing.T) {
	s := newTestServer(t, nil)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/notes"},
		{http.MethodPost, "/api/notes"},
		{http.MethodGet, "/api/notes/abc"},
		{http.MethodPut, "/api/notes/abc"},
		{http.MethodDelete, "/api/notes/abc"},
		{http.MethodPatch, "/api/notes/abc/archive"},
		{http.MethodGet, "/api/users/me"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := s.do(t, rt.method, rt.path, "", nil)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if body := decode[map[string]string](t, rec); body["error"] == "" {
				t.Error("missing error message")
			}
		})
	}

	if n := s.storeCalls.Load(); n != 0 {
		t.Errorf("store calls = %d, want 0", n)
	}

	rec := s.do(t, http.MethodGet, "/api/notes", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("invalid token status = %d, want 401", rec.Code)
	}
	if n := s.storeCalls.Load(); n != 0 {
		t.Errorf("store calls after invalid token = %d, want 0", n)
	}
}

func TestNotes_PreflightSkipsAuth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodOptions, "/api/notes/abc", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("missing CORS headers on preflight")
	}
}

func TestNotes_CreateAndList(t *testing.T) {
	s := newTestServer(t, nil)
	alice := tokenFor(t, "alice")
	bob := tokenFor(t, "bob")

	first := s.createNote(t, alice, "first", "1")
	second := s.createNote(t, alice, "second", "2")
	s.createNote(t, bob, "bob's", "b")

	if first.UserID == "" || first.IsArchived {
		t.Errorf("created note = %+v", first)
	}

	if rec := s.do(t, http.MethodPut, "/api/notes/"+first.ID, alice, map[string]string{"title": "first", "content": "1 edited"}); rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/notes", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}

	notes := decode[domain.NoteListResponse](t, rec).Notes
	if len(notes) != 2 {
		t.Fatalf("list len = %d, want 2", len(notes))
	}
	if notes[0].ID != first.ID || notes[1].ID != second.ID {
		t.Errorf("list order = [%s, %s], want [%s, %s]", notes[0].ID, notes[1].ID, first.ID, second.ID)
	}
	for _, n := range notes {
		if n.UserID != first.UserID {
			t.Errorf("list returned foreign note %s", n.ID)
		}
	}
}

func TestNotes_ListEmpty(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/notes", tokenFor(t, "newcomer"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"notes":[]`) {
		t.Errorf("body = %s, want empty notes array", rec.Body.String())
	}
}

func TestNotes_CreateValidation(t *testing.T) {
	s := newTestServer(t, nil)
	alice := tokenFor(t, "alice")

	tests := []struct {
		name string
		body any
	}{
		{"missing content", map[string]string{"title": "t"}},
		{"missing title", map[string]string{"content": "c"}},
		{"whitespace title", map[string]string{"title": "   ", "content": "c"}},
		{"whitespace content", map[string]string{"title": "t", "content": "\n"}},
		{"malformed json", "{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/notes", alice, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestNotes_Ownership(t *testing.T) {
	s := newTestServer(t, nil)
	alice := tokenFor(t, "alice")
	bob := tokenFor(t, "bob")

	note := s.createNote(t, alice, "Shopping", "milk, eggs")
	path := "/api/notes/" + note.ID

	rec := s.do(t, http.MethodGet, path, alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner get status = %d", rec.Code)
	}
	if got := decode[domain.NoteResponse](t, rec).Note; got.Title != "Shopping" || got.Content != "milk, eggs" {
		t.Errorf("owner got %+v", got)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"get", http.MethodGet, path, nil},
		{"update", http.MethodPut, path, map[string]string{"title": "hijacked", "content": "x"}},
		{"delete", http.MethodDelete, path, nil},
		{"archive", http.MethodPatch, path + "/archive", map[string]bool{"isArchived": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, bob, tt.body)
			if rec.Code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", rec.Code)
			}
			body := rec.Body.String()
			if strings.Contains(body, "Shopping") || strings.Contains(body, "milk") {
				t.Errorf("403 body leaks note: %s", body)
			}
		})
	}

	rec = s.do(t, http.MethodGet, path, alice, nil)
	got := decode[domain.NoteResponse](t, rec).Note
	if got.Title != "Shopping" || got.IsArchived {
		t.Errorf("note changed by non-owner: %+v", got)
	}
}

func TestNotes_NotFoundBeforeForbidden(t *testing.T) {
	s := newTestServer(t, nil)
	alice := tokenFor(t, "alice")
	bob := tokenFor(t, "bob")
	s.createNote(t, alice, "title", "content")

	for _, token := range []string{alice, bob} {
		rec := s.do(t, http.MethodGet, "/api/notes/does-not-exist", token, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	}
}

func TestNotes_UpdateValidationLeavesNoteUnchanged(t *testing.T) {
	s := newTestServer(t, nil)
	alice := tokenFor(t, "alice")
	note := s.createNote(t, alice, "Shopping", "milk, eggs")
	path := "/api/notes/" + note.ID

	for _, body := range []map[string]string{
		{"title": "", "content": "x"},
		{"title": "x"},
		{"title": "  ", "content": "x"},
	} {
		rec := s.do(t, http.MethodPut, path, alice, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("PUT %v status = %d, want 400", body, rec.Code)
		}
	}

	got := decode[domain.NoteResponse](t, s.do(t, http.MethodGet, path, alice, nil)).Note
	if got.Title != "Shopping" || got.Content != "milk, eggs" {
		t.Errorf("note changed: %+v", got)
	}
}

func TestNotes_Update(t *testing.T) {
	s := newTestServer(t, nil)
	alice := tokenFor(t, "alice")
	note := s.createNote(t, alice, "old", "old")

	rec := s.do(t, http.MethodPut, "/api/notes/"+note.ID, alice, map[string]string{"title": "new", "content": "body"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	got := decode[domain.NoteResponse](t, rec).Note
	if got.Title != "new" || got.Content != "body" || got.UserID != note.UserID {
		t.Errorf("updated note = %+v", got)
	}

	if rec := s.do(t, http.MethodPut, "/api/notes/missing", alice, map[string]string{"title": "a", "content": "b"}); rec.Code != http.StatusNotFound {
		t.Errorf("update missing status = %d, want 404", rec.Code)
	}
}

func TestNotes_Delete(t *testing.T) {
	s := newTestServer(t, nil)
	alice := tokenFor(t, "alice")
	note := s.createNote(t, alice, "title", "content")
	path := "/api/notes/" + note.ID

	rec := s.do(t, http.MethodDelete, path, alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["message"] == "" {
		t.Error("delete response missing message")
	}

	if rec := s.do(t, http.MethodGet, path, alice, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
	if rec := s.do(t, http.MethodDelete, path, alice, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestNotes_Archive(t *testing.T) {
	s := newTestServer(t, nil)
	alice := tokenFor(t, "alice")
	note := s.createNote(t, alice, "title", "content")
	path := "/api/notes/" + note.ID + "/archive"

	tests := []struct {
		name         string
		body         any
		wantStatus   int
		wantArchived bool
	}{
		{"string flag", `{"isArchived":"yes"}`, http.StatusBadRequest, false},
		{"missing flag", `{}`, http.StatusBadRequest, false},
		{"null flag", `{"isArchived":null}`, http.StatusBadRequest, false},
		{"archive", map[string]bool{"isArchived": true}, http.StatusOK, true},
		{"archive again", map[string]bool{"isArchived": true}, http.StatusOK, true},
		{"restore", map[string]bool{"isArchived": false}, http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPatch, path, alice, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if got := decode[domain.NoteResponse](t, rec).Note; got.IsArchived != tt.wantArchived {
				t.Errorf("isArchived = %v, want %v", got.IsArchived, tt.wantArchived)
			}
		})
	}

	if rec := s.do(t, http.MethodPatch, "/api/notes/missing/archive", alice, map[string]bool{"isArchived": true}); rec.Code != http.StatusNotFound {
		t.Errorf("archive missing status = %d, want 404", rec.Code)
	}
}

func TestNotes_SameIdentitySameUser(t *testing.T) {
	s := newTestServer(t, nil)
	alice := tokenFor(t, "alice")

	first := s.createNote(t, alice, "a", "a")
	second := s.createNote(t, alice, "b", "b")

	if first.UserID != second.UserID {
		t.Errorf("same identity mapped to two users: %s, %s", first.UserID, second.UserID)
	}
}

func TestUsers_Me(t *testing.T) {
	s := newTestServer(t, nil)
	alice := tokenFor(t, "alice")

	rec := s.do(t, http.MethodGet, "/api/users/me", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get me status = %d", rec.Code)
	}
	me := decode[domain.UserResponse](t, rec).User
	if me.ExternalID != "alice" || me.Email != "alice@example.com" {
		t.Errorf("me = %+v", me)
	}

	rec = s.do(t, http.MethodPatch, "/api/users/me", alice, map[string]string{"name": "Alice Liddell"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch me status = %d", rec.Code)
	}
	if updated := decode[domain.UserResponse](t, rec).User; updated.Name != "Alice Liddell" || updated.Email != me.Email {
		t.Errorf("patched me = %+v", updated)
	}

	if rec := s.do(t, http.MethodPatch, "/api/users/me", alice, map[string]string{"email": "not-an-email"}); rec.Code != http.StatusBadRequest {
		t.Errorf("patch invalid email status = %d, want 400", rec.Code)
	}
}

func TestUsers_DeleteMeCascades(t *testing.T) {
	s := newTestServer(t, nil)
	alice := tokenFor(t, "alice")
	note := s.createNote(t, alice, "title", "content")

	rec := s.do(t, http.MethodDelete, "/api/users/me", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete me status = %d", rec.Code)
	}

	// The next request signs in again as a brand new local user.
	rec = s.do(t, http.MethodGet, "/api/notes", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if notes := decode[domain.NoteListResponse](t, rec).Notes; len(notes) != 0 {
		t.Errorf("notes survived account deletion: %d", len(notes))
	}

	if rec := s.do(t, http.MethodGet, "/api/notes/"+note.ID, alice, nil); rec.Code != http.StatusNotFound {
		t.Errorf("deleted note status = %d, want 404", rec.Code)
	}
}

func TestNotes_CreateForVanishedOwner(t *testing.T) {
	store := repository.NewMemoryStore()
	h := NewNoteHandler(service.NewNoteService(store.Notes()), slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodPost, "/api/notes", strings.NewReader(`{"title":"t","content":"c"}`))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, "deleted-user"))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body := decode[response.ErrorBody](t, rec); body.Error != userNotFound {
		t.Errorf("error = %q, want %q", body.Error, userNotFound)
	}
}
