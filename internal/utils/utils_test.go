package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseBackendTime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-05-01T10:00:00Z", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01T10:00:00.123456", time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)},
		{"2024-05-01T10:00:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseBackendTime(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("parse %q: want %v, got %v", tc.in, tc.want, got)
		}
	}

	if _, err := ParseBackendTime(""); err == nil {
		t.Fatalf("expected error for empty value")
	}
	if _, err := ParseBackendTime("yesterday"); err == nil {
		t.Fatalf("expected error for unsupported value")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	transport := fmt.Errorf("fetch health: %w", NewTransportError("GET /health", errors.New("connection refused")))
	if KindOf(transport) != KindTransport || !IsRetryable(transport) {
		t.Fatalf("expected wrapped transport error to be retryable, got kind %q", KindOf(transport))
	}

	backend := NewBackendError("run-experiment", "invalid strategy for cluster size")
	if KindOf(backend) != KindBackend || IsRetryable(backend) {
		t.Fatalf("backend error must not be retryable")
	}
	if backend.Error() != "run-experiment: invalid strategy for cluster size" {
		t.Fatalf("backend message not verbatim: %q", backend.Error())
	}

	conflict := NewConflictError("submit")
	if !errors.Is(conflict, ErrExperimentRunning) || KindOf(conflict) != KindConflict {
		t.Fatalf("conflict error must wrap ErrExperimentRunning")
	}

	validation := NewValidationError("replicationFactor", "must be one of 2, 3, 5")
	var appErr *AppError
	if !errors.As(validation, &appErr) || appErr.Field != "replicationFactor" {
		t.Fatalf("validation error must name the field: %v", validation)
	}

	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no kind")
	}
}

func TestComponentLoggerLevelsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(newLogger(&buf, "warn", true), "poller")

	logger.Info("hidden")
	logger.Warn("health fetch failed", slog.Uint64("tick", 7))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record emitted at warn level: %s", out)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &record); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", out, err)
	}
	if record["component"] != "poller" || record["tick"] != float64(7) {
		t.Fatalf("unexpected record: %v", record)
	}
}
