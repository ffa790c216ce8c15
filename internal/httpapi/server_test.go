package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/DeividasMat/deal-website-sub000/internal/db"
	"github.com/DeividasMat/deal-website-sub000/internal/deal"
	"github.com/DeividasMat/deal-website-sub000/internal/globaltime"
	"github.com/DeividasMat/deal-website-sub000/internal/ingest"
)

type fakeCoordinator struct {
	busy        bool
	launched    []time.Time
	sweeps      int
	status      ingest.Status
	launchError error
}

func (f *fakeCoordinator) Launch(_ context.Context, targetDate time.Time) (string, error) {
	if f.busy {
		return "", ingest.ErrBusy
	}
	if f.launchError != nil {
		return "", f.launchError
	}
	f.launched = append(f.launched, targetDate)
	return "run-1", nil
}

func (f *fakeCoordinator) LaunchSweep(context.Context) error {
	if f.busy {
		return ingest.ErrBusy
	}
	f.sweeps++
	return nil
}

func (f *fakeCoordinator) Status() ingest.Status {
	return f.status
}

type fakeStore struct {
	pingErr  error
	articles map[string][]deal.Article
	runs     []db.IngestRunRecord
	limit    int
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) GetByDate(_ context.Context, date time.Time) ([]deal.Article, error) {
	return f.articles[date.Format(time.DateOnly)], nil
}

func (f *fakeStore) ListIngestRuns(_ context.Context, limit int) ([]db.IngestRunRecord, error) {
	f.limit = limit
	return f.runs, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, s *Server, method, target, body string) (int, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

func TestStartRunAcceptsDate(t *testing.T) {
	t.Parallel()

	coord := &fakeCoordinator{}
	s := NewServer(coord, &fakeStore{}, zerolog.Nop(), Options{})

	code, env := serve(t, s, http.MethodPost, "/api/v1/runs", `{"date":"2025-03-14"}`)
	if code != http.StatusAccepted || env.Status != "success" {
		t.Fatalf("expected 202 success, got %d %+v", code, env)
	}
	if len(coord.launched) != 1 || !coord.launched[0].Equal(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected launched dates: %v", coord.launched)
	}
	if !strings.Contains(string(env.Data), `"run_uuid":"run-1"`) {
		t.Fatalf("expected run uuid in data, got %s", env.Data)
	}
}

func TestStartRunDefaultsToToday(t *testing.T) {
	globaltime.SetMockTime(time.Date(2025, 6, 1, 15, 4, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	coord := &fakeCoordinator{}
	s := NewServer(coord, &fakeStore{}, zerolog.Nop(), Options{})

	if code, _ := serve(t, s, http.MethodPost, "/api/v1/runs", ""); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if len(coord.launched) != 1 || !coord.launched[0].Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected today's date, got %v", coord.launched)
	}
}

func TestStartRunRejectsBadDate(t *testing.T) {
	t.Parallel()

	coord := &fakeCoordinator{}
	s := NewServer(coord, &fakeStore{}, zerolog.Nop(), Options{})

	code, env := serve(t, s, http.MethodPost, "/api/v1/runs", `{"date":"14/03/2025"}`)
	if code != http.StatusBadRequest || env.Status != "fail" {
		t.Fatalf("expected 400 fail, got %d %+v", code, env)
	}
	if len(coord.launched) != 0 {
		t.Fatalf("run must not start on validation failure")
	}
}

func TestBusyCoordinatorReturnsConflict(t *testing.T) {
	t.Parallel()

	coord := &fakeCoordinator{busy: true, status: ingest.Status{State: ingest.StateExtracting, Running: true, CurrentRun: "run-0"}}
	s := NewServer(coord, &fakeStore{}, zerolog.Nop(), Options{})

	code, env := serve(t, s, http.MethodPost, "/api/v1/runs", `{"date":"2025-03-14"}`)
	if code != http.StatusConflict || env.Status != "fail" {
		t.Fatalf("expected 409 for run, got %d %+v", code, env)
	}
	if !strings.Contains(string(env.Data), `"current_run":"run-0"`) {
		t.Fatalf("expected current status in conflict body, got %s", env.Data)
	}
	if code, _ := serve(t, s, http.MethodPost, "/api/v1/sweeps", ""); code != http.StatusConflict {
		t.Fatalf("expected 409 for sweep, got %d", code)
	}
}

func TestStartRunInternalError(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeCoordinator{launchError: errors.New("lock backend down")}, &fakeStore{}, zerolog.Nop(), Options{})
	code, env := serve(t, s, http.MethodPost, "/api/v1/runs", "")
	if code != http.StatusInternalServerError || env.Status != "error" {
		t.Fatalf("expected 500 error, got %d %+v", code, env)
	}
}

func TestArticlesByDate(t *testing.T) {
	t.Parallel()

	store := &fakeStore{articles: map[string][]deal.Article{
		"2025-03-14": {{ID: 7, Title: "Apollo Provides $500M Credit Facility to TechCorp", Category: deal.CategoryCreditFacility}},
	}}
	s := NewServer(&fakeCoordinator{}, store, zerolog.Nop(), Options{})

	code, env := serve(t, s, http.MethodGet, "/api/v1/articles?date=2025-03-14", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var data struct {
		Date  string         `json:"date"`
		Items []deal.Article `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Date != "2025-03-14" || len(data.Items) != 1 || data.Items[0].ID != 7 {
		t.Fatalf("unexpected articles payload: %+v", data)
	}

	code, env = serve(t, s, http.MethodGet, "/api/v1/articles?date=2025-03-15", "")
	if code != http.StatusOK || !strings.Contains(string(env.Data), `"items":[]`) {
		t.Fatalf("expected empty list, got %d %s", code, env.Data)
	}
}

func TestListRunsValidatesLimit(t *testing.T) {
	t.Parallel()

	store := &fakeStore{runs: []db.IngestRunRecord{{RunUUID: "run-1", Status: ingest.RunStatusCompleted}}}
	s := NewServer(&fakeCoordinator{}, store, zerolog.Nop(), Options{})

	if code, _ := serve(t, s, http.MethodGet, "/api/v1/runs?limit=0", ""); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit=0, got %d", code)
	}
	code, env := serve(t, s, http.MethodGet, "/api/v1/runs?limit=5", "")
	if code != http.StatusOK || store.limit != 5 || !strings.Contains(string(env.Data), `"run_uuid":"run-1"`) {
		t.Fatalf("unexpected runs response: %d %s limit=%d", code, env.Data, store.limit)
	}
}

func TestHealthReportsDatabaseOutage(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeCoordinator{}, &fakeStore{pingErr: errors.New("down")}, zerolog.Nop(), Options{})
	if code, env := serve(t, s, http.MethodGet, "/api/v1/health", ""); code != http.StatusServiceUnavailable || env.Status != "error" {
		t.Fatalf("expected 503 error, got %d %+v", code, env)
	}

	healthy := NewServer(&fakeCoordinator{}, &fakeStore{}, zerolog.Nop(), Options{})
	if code, _ := serve(t, healthy, http.MethodGet, "/api/v1/health", ""); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestUnknownRouteUsesJSendFail(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeCoordinator{}, &fakeStore{}, zerolog.Nop(), Options{})
	code, env := serve(t, s, http.MethodGet, "/api/v1/nope", "")
	if code != http.StatusNotFound || env.Status != "fail" {
		t.Fatalf("expected 404 fail, got %d %+v", code, env)
	}
}
