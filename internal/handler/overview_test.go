package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/entrasecure/entrasecure/internal/domain"
	"github.com/entrasecure/entrasecure/internal/security/auth"
	"github.com/entrasecure/entrasecure/internal/security/middleware"
)

type fakeSnapshots struct {
	latest  *domain.SecurityOverview
	history []*domain.SecurityOverview
	saved   *domain.SecurityOverview
	err     error
}

func (f *fakeSnapshots) SaveLatest(o *domain.SecurityOverview) error {
	f.saved = o
	return f.err
}

func (f *fakeSnapshots) GetLatest() (*domain.SecurityOverview, error) {
	return f.latest, f.err
}

func (f *fakeSnapshots) History(limit int) ([]*domain.SecurityOverview, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.history) {
		return f.history[:limit], nil
	}
	return f.history, nil
}

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) AccessToken(ctx context.Context, principalID string) (string, error) {
	return f.token, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withClaims(r *http.Request, userID string) *http.Request {
	claims := &auth.Claims{UserID: userID}
	ctx := context.WithValue(r.Context(), middleware.ClaimsContextKey{}, claims)
	return r.WithContext(ctx)
}

func TestOverviewServesCachedSnapshot(t *testing.T) {
	stored := &domain.SecurityOverview{GeneratedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	snapshots := &fakeSnapshots{latest: stored}
	h := NewOverviewHandler(nil, snapshots, &fakeTokens{token: "t"}, discardLogger(), time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/security/overview?cached=1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withClaims(req, "u1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got domain.SecurityOverview
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !got.GeneratedAt.Equal(stored.GeneratedAt) {
		t.Errorf("expected stored snapshot, got generatedAt %v", got.GeneratedAt)
	}
}

func TestOverviewRequiresSession(t *testing.T) {
	h := NewOverviewHandler(nil, &fakeSnapshots{}, &fakeTokens{token: "t"}, discardLogger(), time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/security/overview", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session claims, got %d", rec.Code)
	}
}

func TestOverviewTokenFailureIsUnauthorized(t *testing.T) {
	tokens := &fakeTokens{err: &auth.AuthError{Reason: "session expired"}}
	h := NewOverviewHandler(nil, &fakeSnapshots{}, tokens, discardLogger(), time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/security/overview", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withClaims(req, "u1"))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on token failure, got %d", rec.Code)
	}
}

func TestOverviewHistoryLimit(t *testing.T) {
	snapshots := &fakeSnapshots{history: []*domain.SecurityOverview{{}, {}, {}}}
	h := NewOverviewHistoryHandler(snapshots, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/security/overview/history?limit=2", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withClaims(req, "u1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Snapshots []json.RawMessage `json:"snapshots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Snapshots) != 2 {
		t.Errorf("expected 2 snapshots, got %d", len(body.Snapshots))
	}
}
