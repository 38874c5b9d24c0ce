package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/repo"
	"github.com/shaiso/rpabot/internal/steps"
	"github.com/shaiso/rpabot/internal/telemetry"
)

type fakeStatus struct {
	run   *domain.Run
	table *steps.Table
}

func (f *fakeStatus) Snapshot() *domain.Run { return f.run }
func (f *fakeStatus) Table() *steps.Table   { return f.table }

type fakeHistory struct {
	entries []repo.HistoryEntry
	err     error
	limit   int
}

func (f *fakeHistory) List(_ context.Context, limit int) ([]repo.HistoryEntry, error) {
	f.limit = limit
	return f.entries, f.err
}

func newTestServer(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func noop(*steps.Env) (steps.Step, error) { return nil, nil }

// --- Status Tests ---

func TestGetStatus(t *testing.T) {
	run := domain.NewRun("P001", "DEV", 2, 4)
	run.MarkRunning()
	srv := newTestServer(t, NewHandler(Config{Status: &fakeStatus{run: run}}))

	resp, err := http.Get(srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Data RunResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Status != "RUNNING" || body.Data.StepIndex != 2 || body.Data.TotalStates != 4 {
		t.Errorf("unexpected status: %+v", body.Data)
	}
}

func TestGetStatus_NotStarted(t *testing.T) {
	srv := newTestServer(t, NewHandler(Config{Status: &fakeStatus{}}))

	resp, err := http.Get(srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestListStates(t *testing.T) {
	table := steps.NewTable()
	table.MustRegister(1, "first", noop)
	table.MustRegister(3, "third", noop)
	srv := newTestServer(t, NewHandler(Config{Status: &fakeStatus{table: table}}))

	resp, err := http.Get(srv.URL + "/api/v1/states")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Data  []StateResponse `json:"data"`
		Total int             `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 2 || body.Data[1].Index != 3 || body.Data[1].Name != "third" {
		t.Errorf("unexpected states: %+v", body)
	}
}

// --- History Tests ---

func TestListHistory_Limit(t *testing.T) {
	history := &fakeHistory{entries: []repo.HistoryEntry{{RunID: "a", Status: domain.RunStatusSuccess}}}
	srv := newTestServer(t, NewHandler(Config{History: history}))

	resp, err := http.Get(srv.URL + "/api/v1/history?limit=1000")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if history.limit != maxHistoryLimit {
		t.Errorf("limit should be capped, got %d", history.limit)
	}

	resp, err = http.Get(srv.URL + "/api/v1/history?limit=abc")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListHistory_Error(t *testing.T) {
	srv := newTestServer(t, NewHandler(Config{History: &fakeHistory{err: errors.New("disk")}}))

	resp, err := http.Get(srv.URL + "/api/v1/history")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
}

// --- Stop Tests ---

func TestStop_SetsRequested(t *testing.T) {
	h := NewHandler(Config{})
	srv := newTestServer(t, h)

	if ok, _ := h.Requested(context.Background()); ok {
		t.Fatal("stop must not be requested initially")
	}
	resp, err := http.Post(srv.URL+"/api/v1/stop", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected 202, got %d", resp.StatusCode)
	}
	if ok, _ := h.Requested(context.Background()); !ok {
		t.Error("stop should be requested")
	}
}

// --- Middleware Tests ---

func TestRecovery(t *testing.T) {
	handler := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestRunContext_AddsRunAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	run := domain.NewRun("P001", "DEV", 2, 3)
	run.StepName = "fetch_api_data"
	status := &fakeStatus{run: run}

	handler := Chain(RunContext(logger, status), Recovery(), Logging())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v (%s)", err, buf.String())
	}
	if entry["run_id"] != run.ID.String() || entry["step_name"] != "fetch_api_data" {
		t.Errorf("run context missing: %v", entry)
	}
	if entry["step"] != float64(2) || entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestRunContext_NoRunYet(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var got *slog.Logger
	handler := RunContext(logger, &fakeStatus{})(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = telemetry.FromContext(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got != logger {
		t.Error("expected base logger before run starts")
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, NewHandler(Config{}))

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
