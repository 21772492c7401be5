package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/LyzardKing/llm-owl/internal/runlog"
)

// Marshal encodes the report as indented JSON.
func Marshal(r *Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal report")
	}
	return append(data, '\n'), nil
}

// WriteFile writes the report to path atomically: readers see either the
// previous file or the complete new one.
func WriteFile(path string, r *Report) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create report directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write report")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync report")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close report")
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return errors.Wrap(err, "chmod report")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(err, "rename report")
	}

	success = true
	return nil
}

// AttemptPath is where the report of a given cycle is kept inside dir.
func AttemptPath(dir string, attempt int) string {
	return filepath.Join(dir, fmt.Sprintf("validation_report.attempt-%d.json", attempt))
}

// Publish writes the report to path, when path is set, and returns the
// rendered text. The text is produced even when the write fails; the write
// error is logged and returned alongside it.
func Publish(log *runlog.Log, path string, r *Report) (string, error) {
	text := Render(r)
	if path == "" {
		return text, nil
	}
	if err := WriteFile(path, r); err != nil {
		log.Fail(runlog.StageReportWritten, err, zap.String(runlog.FieldPath, path))
		return text, errors.Wrapf(err, "write report to %s", path)
	}
	log.Emit(runlog.StageReportWritten, zap.String(runlog.FieldPath, path))
	return text, nil
}
