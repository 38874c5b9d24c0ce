package steps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/unicode"

	"github.com/shaiso/rpabot/internal/config"
	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/excel"
	"github.com/shaiso/rpabot/internal/mail"
)

// fakeMailer запоминает запросы и вызывает hook при отправке.
type fakeMailer struct {
	sent []mail.Request
	hook func(req mail.Request)
	err  error
}

func (m *fakeMailer) Send(_ context.Context, req mail.Request) error {
	m.sent = append(m.sent, req)
	if m.hook != nil {
		m.hook(req)
	}
	return m.err
}

func testEnv(t *testing.T, extra string) *Env {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Parse([]byte(`
metadata:
  process_code: P001
  process_name: Planning bot
framework:
  process_data: `+filepath.Join(dir, "process_data")+`
  output: `+filepath.Join(dir, "output")+`
email:
  exe_report:
    subject: "Report {0} {1}"
    body_file: `+filepath.Join(dir, "body.html")+`
environments:
  DEV:
    input_file: `+filepath.Join(dir, "input.xlsx")+`
    worktray_file: "{PROCESS_DATA}/worktray.xlsx"
`+extra), dir)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return &Env{Config: cfg, Mailer: &fakeMailer{}}
}

// --- Table Tests ---

func TestTable_Register(t *testing.T) {
	tbl := NewTable()
	noop := func(*Env) (Step, error) { return StepFunc{StepName: "noop", Fn: func(context.Context) error { return nil }}, nil }

	if err := tbl.Register(1, "a", noop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tbl.Register(3, "c", noop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tbl.Register(1, "dup", noop); !errors.Is(err, ErrDuplicateStep) {
		t.Errorf("expected ErrDuplicateStep, got %v", err)
	}
	if err := tbl.Register(0, "zero", noop); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("expected ErrInvalidIndex, got %v", err)
	}
	if err := tbl.Register(5, "nil", nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	if tbl.Count() != 2 || tbl.Last() != 3 {
		t.Errorf("expected 2 entries up to 3, got %d/%d", tbl.Count(), tbl.Last())
	}
	if tbl.Has(2) {
		t.Error("index 2 should be a gap")
	}
	entries := tbl.Entries()
	if entries[0].Name != "a" || entries[1].Name != "c" {
		t.Errorf("entries not ordered: %+v", entries)
	}
}

func TestDefaultTable(t *testing.T) {
	tbl := DefaultTable()
	want := []string{GenerateWorktrayName, FetchAPIDataName, DelegatedFlowName, SendExeReportName}
	for i, name := range want {
		e, ok := tbl.Get(i + 1)
		if !ok || e.Name != name {
			t.Errorf("index %d: expected %s, got %+v", i+1, name, e)
		}
	}
}

// --- Error Classification Tests ---

func TestClassify(t *testing.T) {
	be := NewBusinessError("no input", domain.BusinessPayload{Subject: "s"})
	if Classify(be) != domain.FailureBusiness {
		t.Error("business error should be BUSINESS")
	}
	if Classify(errors.New("boom")) != domain.FailureSystem {
		t.Error("plain error should be SYSTEM")
	}
	wrapped := AsSystem(be)
	if Classify(wrapped) != domain.FailureBusiness {
		t.Error("AsSystem must keep business errors")
	}
}

func TestFailure(t *testing.T) {
	be := NewBusinessError("no input", domain.BusinessPayload{Subject: "s", MailType: "BE"})
	rec := Failure(be, 2, "x", 1)
	if rec.Kind != domain.FailureBusiness || rec.Business == nil || rec.Business.MailType != "BE" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Message != "no input" {
		t.Errorf("expected raw message, got %q", rec.Message)
	}

	se := Systemf("disk %s", "full")
	rec = Failure(se, 3, "y", 3)
	if rec.Kind != domain.FailureSystem || rec.Trace == "" || rec.Attempts != 3 {
		t.Errorf("unexpected record: %+v", rec)
	}

	pe := FromPanic("nil map", []byte("goroutine 1 [running]:"))
	if !strings.Contains(pe.Error(), "panic: nil map") {
		t.Errorf("unexpected panic error: %v", pe)
	}
}

// --- GenerateWorktray Tests ---

func writeInput(t *testing.T, path string, header []string, rows ...[]string) {
	t.Helper()
	if err := excel.Write(path, "Sheet1", &excel.Table{Header: header, Rows: rows}); err != nil {
		t.Fatalf("write input: %v", err)
	}
}

func TestGenerateWorktray_MissingInputIsBusiness(t *testing.T) {
	env := testEnv(t, "")
	step, _ := NewGenerateWorktray(env)

	err := step.Execute(context.Background())
	var be *BusinessError
	if !errors.As(err, &be) {
		t.Fatalf("expected BusinessError, got %v", err)
	}
	if be.Payload.MailType != "BUSINESS_EXCEPTION" || !strings.Contains(be.Payload.Subject, "P001") {
		t.Errorf("unexpected payload: %+v", be.Payload)
	}
}

func TestGenerateWorktray_WrongColumnCount(t *testing.T) {
	env := testEnv(t, "    input_columns: 3\n")
	writeInput(t, env.Config.Env().InputFile, []string{"project_id", "project_finished"}, []string{"A", "FALSE"})

	step, _ := NewGenerateWorktray(env)
	if Classify(step.Execute(context.Background())) != domain.FailureBusiness {
		t.Error("column mismatch should be a business failure")
	}
}

func TestGenerateWorktray_FiltersFinished(t *testing.T) {
	env := testEnv(t, "")
	writeInput(t, env.Config.Env().InputFile, []string{"project_id", "project_finished"},
		[]string{"A", "FALSE"},
		[]string{"B", "TRUE"},
		[]string{"C", "FALSO"},
	)

	step, _ := NewGenerateWorktray(env)
	if err := step.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wt, err := excel.Read(env.Config.Env().WorktrayFile, worktraySheet)
	if err != nil {
		t.Fatalf("read worktray: %v", err)
	}
	if len(wt.Rows) != 2 {
		t.Fatalf("expected 2 pending rows, got %d", len(wt.Rows))
	}
	if wt.Value(wt.Rows[1], "project_id") != "C" {
		t.Errorf("unexpected row: %v", wt.Rows[1])
	}
	if wt.Column(worktrayExecution) < 0 || wt.Column(worktrayNotes) < 0 {
		t.Errorf("missing derived columns: %v", wt.Header)
	}
}

// --- FetchAPIData Tests ---

func TestFetchAPIData_SavesResponse(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tasks":[{"id":"1","name":"A - kickoff"},{"id":"2","name":"B - design"}]}`))
	}))
	defer srv.Close()

	env := testEnv(t, "    api_base_url: "+srv.URL+"\n    api_list_id: L1\n    api_token: tok\n")
	if err := excel.Write(env.Config.Env().WorktrayFile, worktraySheet,
		&excel.Table{Header: []string{"project_id"}, Rows: [][]string{{"A"}}}); err != nil {
		t.Fatalf("write worktray: %v", err)
	}

	step, _ := NewFetchAPIData(env)
	if err := step.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "tok" || gotPath != "/list/L1/task" {
		t.Errorf("unexpected request: auth=%q path=%q", gotAuth, gotPath)
	}

	dir := filepath.Join(env.Config.Framework.ProcessData, "api")
	if _, err := os.Stat(filepath.Join(dir, "L1_tasks.json")); err != nil {
		t.Errorf("raw response not saved: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "A.json"))
	if err != nil {
		t.Fatalf("project file not saved: %v", err)
	}
	if !strings.Contains(string(data), "kickoff") || strings.Contains(string(data), "design") {
		t.Errorf("unexpected project tasks: %s", data)
	}
}

func TestFetchAPIData_HTTPErrorIsSystem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	env := testEnv(t, "    api_base_url: "+srv.URL+"\n    api_list_id: L1\n")
	step, _ := NewFetchAPIData(env)

	err := step.Execute(context.Background())
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected HTTPError 502, got %v", err)
	}
	if Classify(err) != domain.FailureSystem {
		t.Error("HTTP errors should be SYSTEM")
	}
	var se *SystemError
	if !errors.As(err, &se) || !strings.Contains(string(se.Stack), "internal/steps/fetch.go") {
		t.Errorf("expected stack captured in fetch step, got %v", err)
	}
}

// --- DelegatedFlow Tests ---

func writeUTF16(t *testing.T, path, content string) {
	t.Helper()
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	s, err := enc.String(content)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(path, []byte(s), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newDelegated(t *testing.T, log string) (*DelegatedFlow, *fakeMailer) {
	t.Helper()
	env := testEnv(t, "")
	m := &fakeMailer{}
	env.Mailer = m

	s, err := NewDelegatedFlow(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flow := s.(*DelegatedFlow)
	flow.every = 5 * time.Millisecond
	flow.timeout = 500 * time.Millisecond
	if log != "" {
		m.hook = func(mail.Request) { writeUTF16(t, flow.FlagFile(), log) }
	}
	return flow, m
}

func TestDelegatedFlow_Success(t *testing.T) {
	flow, m := newDelegated(t, "start\r\nstep ok\r\nend\r\n")

	if err := flow.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("expected 1 trigger mail, got %d", len(m.sent))
	}
	if m.sent[0].Subject != "EJECUTAR PROCESO [P001]" {
		t.Errorf("unexpected subject: %q", m.sent[0].Subject)
	}
	if _, err := os.Stat(filepath.Join(flow.folder, padConfigFile)); err != nil {
		t.Errorf("pad config not written: %v", err)
	}
}

func TestDelegatedFlow_BusinessLine(t *testing.T) {
	flow, _ := newDelegated(t, "start\n[BE] project A has no owner\n[ERROR] click failed\n")

	err := flow.Execute(context.Background())
	var be *BusinessError
	if !errors.As(err, &be) {
		t.Fatalf("expected BusinessError, got %v", err)
	}
	if !strings.Contains(be.Message, "project A has no owner") {
		t.Errorf("unexpected message: %q", be.Message)
	}
}

func TestDelegatedFlow_ErrorLine(t *testing.T) {
	flow, _ := newDelegated(t, "[ERROR] click failed\n")

	err := flow.Execute(context.Background())
	if err == nil || Classify(err) != domain.FailureSystem {
		t.Fatalf("expected system failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "errors found in pad flow: 1") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDelegatedFlow_Timeout(t *testing.T) {
	flow, _ := newDelegated(t, "")
	flow.timeout = 30 * time.Millisecond

	err := flow.Execute(context.Background())
	if !errors.Is(err, ErrStepTimeout) {
		t.Fatalf("expected ErrStepTimeout, got %v", err)
	}
	var se *SystemError
	if !errors.As(err, &se) || len(se.Stack) == 0 {
		t.Error("timeout should be a SystemError with stack")
	}
}

// --- SendExeReport Tests ---

func TestSendExeReport(t *testing.T) {
	env := testEnv(t, "")
	m := env.Mailer.(*fakeMailer)

	s, err := NewSendExeReport(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	step := s.(*SendExeReport)
	step.now = func() time.Time { return time.Date(2024, 3, 5, 0, 0, 0, 0, time.Local) }

	if err := step.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := m.sent[0]
	if req.Subject != "Report P001 05-03-24" {
		t.Errorf("unexpected subject: %q", req.Subject)
	}
	if req.MailType != defaultExeReportType || len(req.Attachments) != 1 {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestSendExeReport_RequiresMailer(t *testing.T) {
	env := testEnv(t, "")
	env.Mailer = nil
	if _, err := NewSendExeReport(env); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
