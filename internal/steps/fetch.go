package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shaiso/rpabot/internal/excel"
)

// FetchAPIDataName — имя шага выгрузки данных проектов из API.
const FetchAPIDataName = "fetch_api_data"

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// FetchAPIData выгружает задачи списка из API трекера проектов
// и сохраняет ответ в process_data/api.
//
// Запрос:
//
//	GET {api_base_url}/list/{api_list_id}/task
//	Authorization: {api_token}
//
// Ответ сохраняется как есть в <process_data>/api/<list>_tasks.json.
// Если worktray существует, для каждого проекта из него дополнительно
// сохраняются его задачи (совпадение по имени задачи).
type FetchAPIData struct {
	env    *Env
	client *http.Client
}

// NewFetchAPIData — Factory шага fetch_api_data.
func NewFetchAPIData(env *Env) (Step, error) {
	if env == nil || env.Config == nil {
		return nil, fmt.Errorf("%w: %s: env is required", ErrInvalidConfig, FetchAPIDataName)
	}
	client := env.HTTP
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &FetchAPIData{env: env, client: client}, nil
}

func (s *FetchAPIData) Name() string { return FetchAPIDataName }

// apiTask — задача в ответе API.
type apiTask struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status struct {
		Status string `json:"status"`
	} `json:"status"`
	TimeEstimate int64 `json:"time_estimate"`
	TimeSpent    int64 `json:"time_spent"`
}

type apiTasks struct {
	Tasks []json.RawMessage `json:"tasks"`
}

func (s *FetchAPIData) Execute(ctx context.Context) error {
	log := s.env.log(FetchAPIDataName)
	log.Info("--- CONNECTING INTO THE PROJECTS API ---")

	e := s.env.Config.Env()
	if e.APIBaseURL == "" || e.APIListID == "" {
		return Systemf("%w: api_base_url and api_list_id are required", ErrInvalidConfig)
	}

	url := strings.TrimRight(e.APIBaseURL, "/") + "/list/" + e.APIListID + "/task"
	body, err := s.get(ctx, url, e.APIToken)
	if err != nil {
		return err
	}

	var resp apiTasks
	if err := json.Unmarshal(body, &resp); err != nil {
		return Systemf("decode api response: %w", err)
	}
	log.Info("tasks received", "list", e.APIListID, "count", len(resp.Tasks))

	dir := filepath.Join(s.env.Config.Framework.ProcessData, "api")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Systemf("create api dir: %w", err)
	}
	path := filepath.Join(dir, e.APIListID+"_tasks.json")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return Systemf("save api data: %w", err)
	}

	if err := s.splitByProject(dir, resp.Tasks); err != nil {
		return err
	}

	log.Info("projects data extraction finished", "path", path)
	return nil
}

// splitByProject сохраняет задачи каждого проекта worktray в отдельный файл.
func (s *FetchAPIData) splitByProject(dir string, raw []json.RawMessage) error {
	path := s.env.Config.Env().WorktrayFile
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	wt, err := excel.Read(path, worktraySheet)
	if err != nil {
		return Systemf("read worktray: %w", err)
	}

	tasks := make([]apiTask, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &tasks[i]); err != nil {
			return Systemf("decode task %d: %w", i, err)
		}
	}

	idCol := "project_id"
	if wt.Column(idCol) < 0 && len(wt.Header) > 0 {
		idCol = wt.Header[0]
	}
	for _, row := range wt.Rows {
		project := strings.TrimSpace(wt.Value(row, idCol))
		if project == "" {
			continue
		}
		var matched []apiTask
		for _, t := range tasks {
			if strings.Contains(strings.ToUpper(t.Name), strings.ToUpper(project)) {
				matched = append(matched, t)
			}
		}
		data, err := json.MarshalIndent(matched, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, project+".json"), data, 0o644); err != nil {
			return Systemf("save project %s: %w", project, err)
		}
	}
	return nil
}

func (s *FetchAPIData) get(ctx context.Context, url, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, Systemf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, Systemf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, Systemf("read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, Systemf("%w", &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)})
	}
	return body, nil
}

// HTTPError — ответ API со статусом >= 400.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}
