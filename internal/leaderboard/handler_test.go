package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/openmuse/aesthete/internal/core/domain"
)

type fakeRepo struct {
	scores    []domain.PublishedScore
	health    domain.PipelineHealth
	err       error
	gotLimit  int
	gotOffset int
}

func (f *fakeRepo) Leaderboard(_ context.Context, limit, offset int) ([]domain.PublishedScore, error) {
	f.gotLimit = limit
	f.gotOffset = offset

	return f.scores, f.err
}

func (f *fakeRepo) PipelineHealth(_ context.Context) (domain.PipelineHealth, error) {
	return f.health, f.err
}

func newTestHandler(repo *fakeRepo) *Handler {
	logger := zerolog.Nop()

	return NewHandler(repo, &logger)
}

func TestHandler_ServeHTTP_Leaderboard(t *testing.T) {
	repo := &fakeRepo{
		scores: []domain.PublishedScore{
			{ItemID: "11111111-1111-1111-1111-111111111111", Score: 87.5, Confidence: 64.2},
			{ItemID: "22222222-2222-2222-2222-222222222222", Score: 61.0, Confidence: 40.0},
		},
	}
	handler := newTestHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/leaderboard?limit=10&offset=5", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	if !strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		t.Error("expected JSON content-type")
	}

	if repo.gotLimit != 10 || repo.gotOffset != 5 {
		t.Errorf("repo called with limit=%d offset=%d, want 10/5", repo.gotLimit, repo.gotOffset)
	}

	var rows []scoreRow
	if err := json.NewDecoder(rec.Body).Decode(&rows); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	if rows[0].ItemID != repo.scores[0].ItemID || rows[0].Score != 87.5 {
		t.Errorf("first row = %+v, want item %s score 87.5", rows[0], repo.scores[0].ItemID)
	}
}

func TestHandler_ServeHTTP_LeaderboardBadParams(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "non-numeric limit", path: "/leaderboard?limit=abc"},
		{name: "negative offset", path: "/leaderboard?offset=-1"},
		{name: "non-numeric offset", path: "/leaderboard?offset=x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(&fakeRepo{})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("got status %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandler_ServeHTTP_Pipeline(t *testing.T) {
	repo := &fakeRepo{
		health: domain.PipelineHealth{
			DirtyCount:       12,
			OldestDirtyAge:   90 * time.Second,
			PublishedCount:   340,
			ProvisionalCount: 25,
		},
	}
	handler := newTestHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/pipeline", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	var view pipelineView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if view.DirtyCount != 12 || view.OldestDirtyAgeSeconds != 90 || view.ProvisionalCount != 25 {
		t.Errorf("pipeline view = %+v", view)
	}
}

func TestHandler_ServeHTTP_MethodNotAllowed(t *testing.T) {
	handler := newTestHandler(&fakeRepo{})

	counter := HitsTotal.WithLabelValues(endpointLeaderboard, StatusMethodNotAllowed)
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodPost, "/leaderboard", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("hit counter for status %s moved by %v, want 1", StatusMethodNotAllowed, got)
	}
}

func TestHandler_ServeHTTP_UnknownPath(t *testing.T) {
	handler := newTestHandler(&fakeRepo{})

	req := httptest.NewRequest(http.MethodGet, "/scores", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandler_ServeHTTP_RepoError(t *testing.T) {
	handler := newTestHandler(&fakeRepo{err: errors.New("db down")})

	req := httptest.NewRequest(http.MethodGet, "/leaderboard", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestHandler_ServeHTTP_RateLimiting(t *testing.T) {
	handler := newTestHandler(&fakeRepo{})

	// Make more requests than the burst limit allows
	rateLimitHit := false

	for i := 0; i < 100; i++ {
		req := httptest.NewRequest(http.MethodGet, "/pipeline", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code == http.StatusTooManyRequests {
			rateLimitHit = true

			break
		}
	}

	if !rateLimitHit {
		t.Error("expected rate limiting to kick in after many requests")
	}
}

func TestHandler_ServeHTTP_RateLimitPerIP(t *testing.T) {
	handler := newTestHandler(&fakeRepo{})

	// Exhaust one IP's limiter
	for i := 0; i < 100; i++ {
		req := httptest.NewRequest(http.MethodGet, "/pipeline", nil)
		req.RemoteAddr = "10.0.0.1:1000"

		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	// A different IP still gets through
	req := httptest.NewRequest(http.MethodGet, "/pipeline", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.2")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("fresh IP got status %d, want %d", rec.Code, http.StatusOK)
	}
}
