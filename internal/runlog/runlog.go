// Package runlog writes the structured validation log: one JSON object per
// line, each carrying a UTC timestamp and the stage that produced it.
//
// A Log is created once per run, handed to every component that reports
// progress, and closed when the run ends. There is no package-level logger.
package runlog

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Stage names written as the "stage" key of each record.
const (
	StageTTLValid           = "ttl_valid"
	StageTTLInvalid         = "ttl_invalid"
	StageConsistencyOK      = "consistency_ok"
	StageConsistencyError   = "consistency_error"
	StageConsistencyIssues  = "consistency_issues"
	StageCQStart            = "CQ_validation_start"
	StageCompetencyQuestion = "competency_question"
	StageQuestionError      = "competency_question_error"
	StageCQEnd              = "CQ_validation_end"

	StageCycleStart    = "cycle_start"
	StageCycleEnd      = "cycle_end"
	StageProducerCall  = "producer_call"
	StageProducerError = "producer_error"
	StageReportWritten = "report_written"

	StageLLMCall    = "llm_call"
	StageDraftSaved = "draft_saved"
)

// Common field keys.
const (
	FieldRunID   = "run_id"
	FieldAttempt = "attempt"
	FieldPath    = "path"
	FieldError   = "error"
)

// Log is an append-only sink of stage records. The zero value is not usable;
// use Open, New or Nop.
type Log struct {
	z     *zap.Logger
	close func() error
}

// EncoderConfig is the record layout: {"timestamp", "level", "stage", ...}.
func EncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "stage",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     utcTime,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
}

func utcTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339Nano))
}

// Open appends records to the file at path, creating it and its parent
// directory if needed.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create log directory %s", dir)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open run log %s", path)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(EncoderConfig()), zapcore.Lock(f), zap.DebugLevel)
	z := zap.New(core)
	return &Log{
		z: z,
		close: func() error {
			_ = z.Sync()
			return f.Close()
		},
	}, nil
}

// New wraps an existing logger. Closing the Log only syncs it.
func New(z *zap.Logger) *Log {
	return &Log{z: z, close: func() error {
		_ = z.Sync()
		return nil
	}}
}

// Nop discards every record.
func Nop() *Log {
	return New(zap.NewNop())
}

// Emit writes an informational record for stage.
func (l *Log) Emit(stage string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.z.Info(stage, fields...)
}

// Fail writes a record for a stage that reports a failure.
func (l *Log) Fail(stage string, err error, fields ...zap.Field) {
	if l == nil {
		return
	}
	if err != nil {
		fields = append(fields, zap.String(FieldError, err.Error()))
	}
	l.z.Warn(stage, fields...)
}

// With returns a Log whose records all carry fields. It shares the
// underlying sink; only the parent should be closed.
func (l *Log) With(fields ...zap.Field) *Log {
	if l == nil {
		return nil
	}
	return &Log{z: l.z.With(fields...), close: func() error { return nil }}
}

// Close flushes buffered records and releases the file.
func (l *Log) Close() error {
	if l == nil || l.close == nil {
		return nil
	}
	c := l.close
	l.close = nil
	return c()
}
