package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func newBufferedLogger(level LogLevel) (*StructuredLogger, *bytes.Buffer) {
	logger := NewStructuredLogger("test-service", "0.0.0", level)
	buf := &bytes.Buffer{}
	logger.SetOutput(buf)
	return logger, buf
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) LogEntry {
	t.Helper()

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log entry: %v", err)
	}
	return entry
}

func TestLogEntryShape(t *testing.T) {
	logger, buf := newBufferedLogger(InfoLevel)

	logger.Info(context.Background(), "[TEST_EVENT] Something happened", Fields{
		"site_id": "11266500",
	})

	entry := decodeEntry(t, buf)
	if entry.Level != "INFO" {
		t.Errorf("expected level INFO, got %s", entry.Level)
	}
	if entry.Service != "test-service" {
		t.Errorf("expected service test-service, got %s", entry.Service)
	}
	if entry.Message != "[TEST_EVENT] Something happened" {
		t.Errorf("unexpected message: %s", entry.Message)
	}
	if entry.Fields["site_id"] != "11266500" {
		t.Errorf("expected site_id field, got %v", entry.Fields)
	}
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferedLogger(WarnLevel)

	logger.Debug(context.Background(), "dropped", Fields{})
	logger.Info(context.Background(), "dropped", Fields{})

	if buf.Len() != 0 {
		t.Errorf("expected no output below warn level, got %q", buf.String())
	}

	logger.Warn(context.Background(), "kept", Fields{})
	if buf.Len() == 0 {
		t.Error("expected warn entry to be written")
	}
}

func TestBatchIDFromContext(t *testing.T) {
	logger, buf := newBufferedLogger(InfoLevel)

	ctx := WithBatchID(context.Background(), "batch-1700000000")
	logger.Info(ctx, "batch event", Fields{})

	entry := decodeEntry(t, buf)
	if entry.BatchID != "batch-1700000000" {
		t.Errorf("expected batch id in entry, got %q", entry.BatchID)
	}
}

func TestErrorEntryCarriesCaller(t *testing.T) {
	logger, buf := newBufferedLogger(ErrorLevel)

	logger.Error(context.Background(), "failure", Fields{}, errors.New("boom"))

	entry := decodeEntry(t, buf)
	if entry.Error != "boom" {
		t.Errorf("expected error string, got %q", entry.Error)
	}
	if entry.File == "" || entry.Line == 0 {
		t.Error("expected caller information on error entries")
	}
}

func TestWithFieldsMerging(t *testing.T) {
	logger, buf := newBufferedLogger(InfoLevel)

	contextLogger := logger.WithFields(Fields{"region_code": "CA", "stage": "base"})
	contextLogger.Info(context.Background(), "merged", Fields{"stage": "override"})

	entry := decodeEntry(t, buf)
	if entry.Fields["region_code"] != "CA" {
		t.Errorf("expected base field to survive, got %v", entry.Fields)
	}
	if entry.Fields["stage"] != "override" {
		t.Errorf("expected call fields to win, got %v", entry.Fields)
	}
}
