package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shaiso/rpabot/internal/domain"
)

// SummaryFileLayout — метка времени в имени файла сводки.
const SummaryFileLayout = "20060102_150405"

// SummaryPath возвращает путь файла сводки для момента now.
func SummaryPath(dir string, now time.Time) string {
	return filepath.Join(dir, now.Format(SummaryFileLayout)+"_exe_report.json")
}

// WriteSummary сохраняет сводку run в JSON с отсортированными ключами.
func WriteSummary(path string, s domain.RunSummary) error {
	data, err := json.MarshalIndent(s.Record(), "", "    ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create summary dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
