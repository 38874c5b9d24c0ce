package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/rpabot/internal/config"
	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/steps"
	"github.com/shaiso/rpabot/internal/telemetry"
)

type fakeReporter struct {
	mu         sync.Mutex
	reported   []*domain.Run
	monitoring int
}

func (r *fakeReporter) Report(_ context.Context, run *domain.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reported = append(r.reported, run)
}

func (r *fakeReporter) Monitoring(context.Context, domain.RunSummary, string, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.monitoring++
	return nil
}

type fakeHistory struct {
	mu       sync.Mutex
	attempts []domain.StepAttempt
	runs     []domain.RunSummary
}

func (h *fakeHistory) AddAttempt(_ context.Context, a domain.StepAttempt) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts = append(h.attempts, a)
	return nil
}

func (h *fakeHistory) AddRun(_ context.Context, _ *domain.Run, s domain.RunSummary) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, s)
	return nil
}

type fakeRuns struct {
	saved    int
	attempts int
}

func (r *fakeRuns) Save(_ context.Context, _ *domain.Run, _ domain.RunSummary, attempts []domain.StepAttempt) error {
	r.saved++
	r.attempts = len(attempts)
	return nil
}

type fakeEvents struct {
	started, finished, attempts atomic.Int32
}

func (e *fakeEvents) PublishRunStarted(context.Context, *domain.Run) error {
	e.started.Add(1)
	return nil
}

func (e *fakeEvents) PublishRunFinished(context.Context, *domain.Run) error {
	e.finished.Add(1)
	return nil
}

func (e *fakeEvents) PublishAttempt(context.Context, string, domain.StepAttempt) error {
	e.attempts.Add(1)
	return nil
}

type fakeUploader struct {
	files []string
}

func (u *fakeUploader) Upload(_ context.Context, _, _ string, _ time.Time, files ...string) ([]string, error) {
	u.files = append(u.files, files...)
	return files, nil
}

type fakeKiller struct{ calls atomic.Int32 }

func (k *fakeKiller) Kill(context.Context, []string) error {
	k.calls.Add(1)
	return errors.New("access denied")
}

// scratchKiller запоминает, был ли файл в scratch на момент каждого вызова.
type scratchKiller struct {
	path string
	seen []bool
}

func (k *scratchKiller) Kill(context.Context, []string) error {
	_, err := os.Stat(k.path)
	k.seen = append(k.seen, err == nil)
	return nil
}

type panicSource struct{}

func (panicSource) Name() string { return "panic" }

func (panicSource) Requested(context.Context) (bool, error) { panic("stop source exploded") }

type flagSource struct{ set atomic.Bool }

func (f *flagSource) Name() string { return "flag" }

func (f *flagSource) Requested(context.Context) (bool, error) { return f.set.Load(), nil }

func testConfig(t *testing.T, env, extra string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Parse([]byte(`
metadata:
  process_code: P001
  environment: `+env+`
framework:
  process_data: `+filepath.Join(dir, "process_data")+`
  output: `+filepath.Join(dir, "output")+`
  log_folder: `+filepath.Join(dir, "logs")+`
  max_tries: 2
`+extra+`
environments:
  DEV: {}
  QAS: {}
  PRD: {}
`), dir)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func table(fns ...func(context.Context) error) *steps.Table {
	t := steps.NewTable()
	for i, fn := range fns {
		t.MustRegister(i+1, "step", func(*steps.Env) (steps.Step, error) {
			return steps.StepFunc{StepName: "step", Fn: fn}, nil
		})
	}
	return t
}

func ok(context.Context) error { return nil }

// --- Supervisor Tests ---

func TestNew_RequiresConfigAndTable(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoConfig) {
		t.Errorf("expected ErrNoConfig, got %v", err)
	}
	if _, err := New(Config{Config: testConfig(t, "DEV", "")}); !errors.Is(err, ErrNoTable) {
		t.Errorf("expected ErrNoTable, got %v", err)
	}
}

func TestSupervisor_Success(t *testing.T) {
	cfg := testConfig(t, "DEV", "")
	reporter := &fakeReporter{}
	history := &fakeHistory{}
	events := &fakeEvents{}
	runs := &fakeRuns{}

	s, err := New(Config{
		Config:   cfg,
		Table:    table(ok, ok, ok),
		Reporter: reporter,
		History:  history,
		Events:   events,
		Runs:     runs,
		Metrics:  telemetry.NewMetrics(),
	})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	res, err := s.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run() err=%v", err)
	}
	if res.Run.Status != domain.RunStatusSuccess {
		t.Errorf("expected SUCCESS, got %s", res.Run.Status)
	}
	if res.Summary.ProcessedStates != 3 || res.Summary.TotalStates != 3 {
		t.Errorf("unexpected summary: %s", res.Summary.StatesLabel())
	}
	if len(reporter.reported) != 1 {
		t.Errorf("expected reporter invoked once, got %d", len(reporter.reported))
	}
	if len(history.attempts) != 3 || len(history.runs) != 1 {
		t.Errorf("unexpected history: attempts=%d runs=%d", len(history.attempts), len(history.runs))
	}
	if events.started.Load() != 1 || events.finished.Load() != 1 || events.attempts.Load() != 3 {
		t.Errorf("unexpected events: started=%d finished=%d attempts=%d",
			events.started.Load(), events.finished.Load(), events.attempts.Load())
	}
	if runs.saved != 0 {
		t.Error("monitoring db should not be used in DEV")
	}
	if _, err := os.Stat(res.SummaryFile); err != nil {
		t.Errorf("summary file not written: %v", err)
	}
}

func TestSupervisor_FailedAfterMaxTries(t *testing.T) {
	cfg := testConfig(t, "DEV", "")
	var calls atomic.Int32
	failing := func(context.Context) error {
		calls.Add(1)
		return steps.Systemf("boom")
	}

	s, _ := New(Config{Config: cfg, Table: table(ok, failing, ok)})
	res, err := s.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run() err=%v", err)
	}
	if res.Run.Status != domain.RunStatusFailed {
		t.Fatalf("expected FAILED, got %s", res.Run.Status)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
	if res.Summary.ProcessedStates != 2 {
		t.Errorf("expected 2 processed states, got %d", res.Summary.ProcessedStates)
	}
	if res.Run.Failure == nil || res.Run.Failure.StepIndex != 2 {
		t.Errorf("unexpected failure: %+v", res.Run.Failure)
	}
}

func TestSupervisor_StopSource(t *testing.T) {
	cfg := testConfig(t, "DEV", "  cancel_poll: true\n  poll_interval: 5ms\n")
	src := &flagSource{}
	release := make(chan struct{})
	blocking := func(context.Context) error {
		src.set.Store(true)
		<-release
		return nil
	}

	s, _ := New(Config{Config: cfg, Table: table(blocking, ok), StopSources: []StopSource{src}})

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	res, err := s.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run() err=%v", err)
	}
	if res.Run.Status != domain.RunStatusStopped {
		t.Errorf("expected STOPPED, got %s", res.Run.Status)
	}
	if res.Run.StepIndex != 2 {
		t.Errorf("in-flight step should complete, got index %d", res.Run.StepIndex)
	}
}

func TestSupervisor_ContextCancel(t *testing.T) {
	cfg := testConfig(t, "DEV", "")
	ctx, cancel := context.WithCancel(context.Background())
	step := func(context.Context) error {
		cancel()
		return nil
	}

	s, _ := New(Config{Config: cfg, Table: table(step, ok)})
	res, _ := s.Run(ctx, 1)
	if res.Run.Status != domain.RunStatusStopped {
		t.Errorf("expected STOPPED, got %s", res.Run.Status)
	}
}

func TestSupervisor_PrepareCleansScratch(t *testing.T) {
	cfg := testConfig(t, "DEV", "  kill_processes: true\n  kill_process_list: [excel.exe]\n")
	stale := filepath.Join(cfg.Framework.ProcessData, "stale.txt")
	if err := os.MkdirAll(cfg.Framework.ProcessData, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	killer := &fakeKiller{}

	s, _ := New(Config{Config: cfg, Table: table(ok), Killer: killer})
	res, err := s.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run() err=%v", err)
	}
	if res.Run.Status != domain.RunStatusSuccess {
		t.Errorf("kill errors must not fail the run, got %s", res.Run.Status)
	}
	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Error("scratch folder should be recreated")
	}
	if _, err := os.Stat(cfg.Framework.Output); err != nil {
		t.Errorf("output folder not created: %v", err)
	}
	// до запуска и при teardown
	if killer.calls.Load() != 2 {
		t.Errorf("expected 2 kill calls, got %d", killer.calls.Load())
	}
}

func TestSupervisor_PrepareKillsBeforeCleanup(t *testing.T) {
	cfg := testConfig(t, "DEV", "  kill_processes: true\n  kill_process_list: [excel.exe]\n")
	locked := filepath.Join(cfg.Framework.ProcessData, "locked.xlsx")
	if err := os.MkdirAll(cfg.Framework.ProcessData, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(locked, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	killer := &scratchKiller{path: locked}

	s, _ := New(Config{Config: cfg, Table: table(ok), Killer: killer})
	if _, err := s.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run() err=%v", err)
	}
	if len(killer.seen) == 0 || !killer.seen[0] {
		t.Errorf("pre-run kill must happen before scratch cleanup, seen=%v", killer.seen)
	}
	if _, err := os.Stat(locked); !errors.Is(err, os.ErrNotExist) {
		t.Error("scratch folder should be cleaned after kill")
	}
}

func TestSupervisor_PanicStillTearsDown(t *testing.T) {
	cfg := testConfig(t, "DEV", "  cancel_poll: true\n  poll_interval: 5ms\n")
	reporter := &fakeReporter{}
	history := &fakeHistory{}
	slow := func(context.Context) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}

	s, _ := New(Config{
		Config:      cfg,
		Table:       table(slow, ok),
		Reporter:    reporter,
		History:     history,
		StopSources: []StopSource{panicSource{}},
	})
	res, err := s.Run(context.Background(), 1)
	if !errors.Is(err, ErrSupervisorPanic) {
		t.Fatalf("expected ErrSupervisorPanic, got %v", err)
	}
	if res == nil || !res.Run.IsFinished() {
		t.Fatalf("expected terminal run, got %+v", res)
	}
	if len(reporter.reported) != 1 {
		t.Errorf("reporter should run after panic, got %d calls", len(reporter.reported))
	}
	if len(history.runs) != 1 {
		t.Errorf("run should be recorded after panic, got %d", len(history.runs))
	}
}

func TestSupervisor_PrepareErrorStillTearsDown(t *testing.T) {
	cfg := testConfig(t, "DEV", "")
	// output — файл, MkdirAll завершится ошибкой
	if err := os.MkdirAll(filepath.Dir(cfg.Framework.Output), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Framework.Output, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	reporter := &fakeReporter{}

	s, _ := New(Config{Config: cfg, Table: table(ok), Reporter: reporter})
	res, err := s.Run(context.Background(), 1)
	if !errors.Is(err, ErrPrepare) {
		t.Fatalf("expected ErrPrepare, got %v", err)
	}
	if res == nil || res.Run.Status != domain.RunStatusFailed {
		t.Fatalf("expected FAILED result, got %+v", res)
	}
	if len(reporter.reported) != 1 {
		t.Error("reporter should run after prepare error")
	}
}

func TestSupervisor_ProductionPublishes(t *testing.T) {
	cfg := testConfig(t, "PRD", "")
	reporter := &fakeReporter{}
	runs := &fakeRuns{}
	uploader := &fakeUploader{}
	logFile := filepath.Join(t.TempDir(), "run.log")

	s, _ := New(Config{
		Config:   cfg,
		Table:    table(ok, ok),
		Reporter: reporter,
		Runs:     runs,
		Uploader: uploader,
		LogFile:  logFile,
	})
	res, err := s.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run() err=%v", err)
	}
	if runs.saved != 1 || runs.attempts != 2 {
		t.Errorf("unexpected monitoring db save: saved=%d attempts=%d", runs.saved, runs.attempts)
	}
	if len(uploader.files) != 2 || uploader.files[0] != logFile || uploader.files[1] != res.SummaryFile {
		t.Errorf("unexpected uploads: %v", uploader.files)
	}
	if reporter.monitoring != 1 {
		t.Errorf("expected monitoring mail in PRD, got %d", reporter.monitoring)
	}
}

func TestSupervisor_StartBeyondLast(t *testing.T) {
	cfg := testConfig(t, "DEV", "")
	s, _ := New(Config{Config: cfg, Table: table(ok, ok)})
	res, _ := s.Run(context.Background(), 5)
	if res.Run.Status != domain.RunStatusSuccess {
		t.Errorf("expected SUCCESS, got %s", res.Run.Status)
	}
	if res.Summary.ProcessedStates != 2 {
		t.Errorf("processed states must be capped, got %d", res.Summary.ProcessedStates)
	}
}

// --- StopSource Tests ---

func TestStopFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "STOP")
	src := StopFile{Path: path}

	if ok, err := src.Requested(context.Background()); ok || err != nil {
		t.Fatalf("expected no stop, got %v %v", ok, err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if ok, _ := src.Requested(context.Background()); !ok {
		t.Error("expected stop after file created")
	}
	if err := src.Acknowledge(context.Background()); err != nil {
		t.Fatalf("Acknowledge() err=%v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("stop file should be removed")
	}
	if ok, _ := (StopFile{}).Requested(context.Background()); ok {
		t.Error("empty path never requests stop")
	}
}

func TestRedisStop_Key(t *testing.T) {
	s := NewRedisStop(nil, "P001", 0)
	if s.Key() != "rpabot:stop:P001" {
		t.Errorf("unexpected key: %s", s.Key())
	}
	if s.every != defaultRedisCheckEvery {
		t.Errorf("unexpected interval: %v", s.every)
	}
}
