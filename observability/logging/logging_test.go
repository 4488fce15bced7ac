package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func logLine(t *testing.T, service, env, message string) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(jsonHandler(&buf).WithAttrs(serviceLabels(service, env)))
	logger.Info(message, "loanId", 7)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	return line
}

func TestHandlerRenamesBuiltinKeys(t *testing.T) {
	line := logLine(t, "lendd", "staging", "loan filled")

	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("missing timestamp key: %v", line)
	}
	if got := line["severity"]; got != "INFO" {
		t.Fatalf("severity = %v", got)
	}
	if got := line["message"]; got != "loan filled" {
		t.Fatalf("message = %v", got)
	}
	for _, stale := range []string{"time", "level", "msg"} {
		if _, ok := line[stale]; ok {
			t.Fatalf("built-in key %q leaked through: %v", stale, line)
		}
	}
	if got := line["loanId"]; got != float64(7) {
		t.Fatalf("loanId = %v", got)
	}
}

func TestServiceLabels(t *testing.T) {
	line := logLine(t, "  custom  ", "prod", "x")
	if got := line["service"]; got != "custom" {
		t.Fatalf("service = %v", got)
	}
	if got := line["env"]; got != "prod" {
		t.Fatalf("env = %v", got)
	}

	line = logLine(t, "", "", "x")
	if got := line["service"]; got != "lendd" {
		t.Fatalf("default service = %v", got)
	}
	if _, ok := line["env"]; ok {
		t.Fatalf("blank env must be omitted: %v", line)
	}
}
