package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/rpabot/internal/config"
	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/mail"
	"github.com/shaiso/rpabot/internal/steps"
)

type fakeSender struct {
	sent  []mail.Request
	err   error
	panic bool
}

func (f *fakeSender) Send(_ context.Context, req mail.Request) error {
	if f.panic {
		panic("smtp exploded")
	}
	f.sent = append(f.sent, req)
	return f.err
}

func systemFailure() error {
	return steps.Systemf("disk full")
}

func testConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
metadata:
  process_code: P001
  process_name: Planning bot
email:
  sys_exc_report:
    subject: "SysExc {0} {1}"
    body_file: sys.html
`+extra+`
environments:
  DEV: {}
`), t.TempDir())
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func finishedRun(status domain.RunStatus, f *domain.FailureRecord) *domain.Run {
	run := domain.NewRun("P001", "DEV", 1, 4)
	run.MarkRunning()
	run.Finish(status, f)
	return run
}

// --- Trace Tests ---

func TestParseTrace_SystemError(t *testing.T) {
	var se *steps.SystemError
	if !errors.As(systemFailure(), &se) {
		t.Fatal("expected SystemError")
	}

	frames, err := ParseTrace(string(se.Stack))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	top := frames[0]
	if !strings.HasSuffix(top.Function, "report.systemFailure") {
		t.Errorf("expected systemFailure on top, got %s", top.Function)
	}
	if filepath.Base(top.File) != "report_test.go" || top.Line == 0 {
		t.Errorf("unexpected location: %s:%d", top.File, top.Line)
	}
	if top.Code != `return steps.Systemf("disk full")` {
		t.Errorf("unexpected code: %q", top.Code)
	}
	if !strings.HasSuffix(Source(frames), "report_test.go:"+strconv.Itoa(top.Line)) {
		t.Errorf("unexpected source: %s", Source(frames))
	}
}

func TestParseTrace_Garbage(t *testing.T) {
	if _, err := ParseTrace("not a stack"); !errors.Is(err, ErrNoFrames) {
		t.Errorf("expected ErrNoFrames, got %v", err)
	}
	if Source(nil) != CheckLogs {
		t.Error("empty frames should point to logs")
	}
}

func TestParseTrace_Synthetic(t *testing.T) {
	stack := "goroutine 7 [running]:\n" +
		"runtime/debug.Stack()\n\t/go/src/runtime/debug/stack.go:26 +0x5e\n" +
		"github.com/acme/bot/internal/steps.(*DelegatedFlow).wait(0xc000010000, {0x1, 0x2})\n\t/src/steps/delegated.go:140 +0x1d\n" +
		"main.main()\n\t/src/main.go:9 +0x25\n" +
		"created by main.start in goroutine 1\n\t/src/main.go:3 +0x1\n"

	frames, err := ParseTrace(stack)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %+v", frames)
	}
	if frames[0].Function != "github.com/acme/bot/internal/steps.(*DelegatedFlow).wait" || frames[0].Line != 140 {
		t.Errorf("unexpected frame: %+v", frames[0])
	}
	if frames[1].Function != "main.main" || frames[1].File != "/src/main.go" {
		t.Errorf("unexpected frame: %+v", frames[1])
	}
}

func TestParseTrace_SkipsSequencerFrames(t *testing.T) {
	stack := "goroutine 9 [running]:\n" +
		"runtime/debug.Stack()\n\t/go/src/runtime/debug/stack.go:26 +0x5e\n" +
		"github.com/shaiso/rpabot/internal/steps.AsSystem({0x1, 0x2})\n\t/src/internal/steps/errors.go:75 +0x1d\n" +
		"github.com/shaiso/rpabot/internal/worker.(*Worker).executeAttempt(0xc0, {0x1, 0x2})\n\t/src/internal/worker/handlers.go:140 +0x1d\n" +
		"github.com/shaiso/rpabot/internal/worker.(*Worker).execute(0xc0)\n\t/src/internal/worker/handlers.go:60 +0x1d\n" +
		"created by github.com/shaiso/rpabot/internal/worker.(*Worker).Start in goroutine 1\n\t/src/internal/worker/worker.go:123 +0x1\n"

	frames, err := ParseTrace(stack)
	if !errors.Is(err, ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v (%+v)", err, frames)
	}
	if Source(frames) != CheckLogs {
		t.Errorf("expected %q, got %s", CheckLogs, Source(frames))
	}
}

// --- Table Tests ---

func TestTable_EscapesValues(t *testing.T) {
	html := Table([]string{"a"}, [][]string{{"<script>x</script>"}, {"ok"}})
	if strings.Contains(html, "<script>") {
		t.Error("values must be escaped")
	}
	if !strings.Contains(html, "#D5D5D5") || !strings.Contains(html, "<th style='text-align:left'>a</th>") {
		t.Errorf("unexpected table: %s", html)
	}
}

// --- Summary Tests ---

func TestWriteSummary(t *testing.T) {
	run := finishedRun(domain.RunStatusSuccess, nil)
	run.StepIndex = 5
	start := time.Date(2024, 3, 5, 9, 0, 0, 0, time.Local)
	s := domain.NewRunSummary(run, domain.Metadata{ProcessCode: "P001", Environment: "PRD"}, "host1", start, start.Add(time.Minute))

	path := SummaryPath(t.TempDir(), start)
	if filepath.Base(path) != "20240305_090000_exe_report.json" {
		t.Errorf("unexpected name: %s", path)
	}
	if err := WriteSummary(path, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(path)
	var rec map[string]string
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec["EXECUTION_STATUS"] != "SUCCESS" || rec["PROCESSED_STATES"] != "4" || rec["TOTAL_STATES"] != "4" {
		t.Errorf("unexpected record: %v", rec)
	}
	if rec["START_TIME"] != "2024-03-05 09:00:00" {
		t.Errorf("unexpected start: %s", rec["START_TIME"])
	}
}

// --- Reporter Tests ---

func TestReport_SuccessSendsNothing(t *testing.T) {
	f := &fakeSender{}
	New(testConfig(t, ""), f, nil).Report(context.Background(), finishedRun(domain.RunStatusSuccess, nil))
	New(testConfig(t, ""), f, nil).Report(context.Background(), finishedRun(domain.RunStatusStopped, nil))
	if len(f.sent) != 0 {
		t.Errorf("expected no mail, got %d", len(f.sent))
	}
}

func TestReport_BusinessForwardedVerbatim(t *testing.T) {
	payload := &domain.BusinessPayload{
		BodyFile:    "be.html",
		Subject:     "Input missing",
		MailType:    "BE_INPUT",
		Attachments: []string{"a.xlsx"},
		BodyFields:  []string{"x", `<table class="dataframe" border="1"><tr><td><a href="file:///C:/in.xlsx">input</a></td></tr></table>`},
	}
	f := &fakeSender{}
	run := finishedRun(domain.RunStatusWarning, &domain.FailureRecord{Kind: domain.FailureBusiness, Business: payload})

	New(testConfig(t, ""), f, nil).Report(context.Background(), run)

	if len(f.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(f.sent))
	}
	req := f.sent[0]
	if req.Subject != "Input missing" || req.BodyFile != "be.html" || req.MailType != "BE_INPUT" {
		t.Errorf("payload not forwarded: %+v", req)
	}
	if len(req.BodyFields) != 2 || req.BodyFields[1].Value != payload.BodyFields[1] || req.Attachments[0] != "a.xlsx" {
		t.Errorf("fields not forwarded: %+v", req)
	}

	body := filepath.Join(t.TempDir(), "be.html")
	if err := os.WriteFile(body, []byte("<p>{0}</p>{1}"), 0o644); err != nil {
		t.Fatal(err)
	}
	html, err := mail.Compose(body, req.BodyFields, "", nil)
	if err != nil {
		t.Fatalf("Compose() err=%v", err)
	}
	if want := "<p>x</p>" + payload.BodyFields[1]; html != want {
		t.Errorf("body changed:\n got %s\nwant %s", html, want)
	}
}

func TestReport_SystemWithTrace(t *testing.T) {
	err := systemFailure()
	run := finishedRun(domain.RunStatusFailed, steps.Failure(err, 2, "fetch_api_data", 3))
	f := &fakeSender{}

	r := New(testConfig(t, ""), f, nil)
	r.now = func() time.Time { return time.Date(2024, 3, 5, 0, 0, 0, 0, time.Local) }
	r.Report(context.Background(), run)

	if len(f.sent) != 1 {
		t.Fatalf("expected 1 mail (user mail disabled), got %d", len(f.sent))
	}
	req := f.sent[0]
	if req.Subject != "SysExc P001 05-03-24" || req.MailType != MailSysExc {
		t.Errorf("unexpected request: %+v", req)
	}
	if !strings.Contains(req.BodyFields[2].Value, "report_test.go") {
		t.Errorf("unexpected source: %s", req.BodyFields[2].Value)
	}
	if !req.BodyFields[3].Trusted || !strings.Contains(req.BodyFields[3].Value, "systemFailure") {
		t.Error("trace table should be a trusted html field")
	}
}

func TestReport_DegradedWhenTraceMissing(t *testing.T) {
	run := finishedRun(domain.RunStatusFailed, &domain.FailureRecord{Kind: domain.FailureSystem, Message: "boom"})
	f := &fakeSender{}

	New(testConfig(t, "  enable_client_sys_exc: true\n"), f, nil).Report(context.Background(), run)

	if len(f.sent) != 2 {
		t.Fatalf("expected system and user mails, got %d", len(f.sent))
	}
	if f.sent[0].BodyFields[2].Value != CheckLogs {
		t.Errorf("expected CHECK LOGS, got %s", f.sent[0].BodyFields[2].Value)
	}
	if !strings.Contains(f.sent[0].BodyFields[1].Value, "boom") {
		t.Error("raw message should be reported")
	}
	if f.sent[1].MailType != MailSysExcUser {
		t.Errorf("unexpected user mail type: %s", f.sent[1].MailType)
	}
}

func TestReport_NeverPanics(t *testing.T) {
	run := finishedRun(domain.RunStatusFailed, &domain.FailureRecord{Kind: domain.FailureSystem})

	New(testConfig(t, ""), &fakeSender{panic: true}, nil).Report(context.Background(), run)
	New(testConfig(t, ""), &fakeSender{err: errors.New("smtp down")}, nil).Report(context.Background(), run)
	New(testConfig(t, ""), nil, nil).Report(context.Background(), run)
	New(testConfig(t, ""), &fakeSender{}, nil).Report(context.Background(), nil)
}

func TestMonitoring(t *testing.T) {
	run := finishedRun(domain.RunStatusSuccess, nil)
	s := domain.NewRunSummary(run, domain.Metadata{ProcessCode: "P001"}, "h", time.Now(), time.Now())
	f := &fakeSender{}

	r := New(testConfig(t, ""), f, nil)
	r.now = func() time.Time { return time.Date(2024, 3, 5, 10, 30, 0, 0, time.Local) }
	if err := r.Monitoring(context.Background(), s, "sum.json", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := f.sent[0]
	if req.Subject != "Monitoring P001 20240305_103000" {
		t.Errorf("unexpected subject: %q", req.Subject)
	}
	if len(req.Attachments) != 1 || req.MailType != MailMonitoring {
		t.Errorf("unexpected request: %+v", req)
	}
	if _, err := uuid.Parse(s.RunID); err != nil {
		t.Errorf("summary should carry run id: %v", err)
	}
}
