package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"TRACE", LevelTrace, false},
		{"debug", LevelDebug, false},
		{"Info", LevelInfo, false},
		{"WARNING", LevelWarning, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tc := range testCases {
		got, err := ParseLevel(tc.input)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestSetOutput(t *testing.T) {
	if otelActive {
		t.Skip("OTEL logging ignores SetOutput")
	}

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	prev := GetLevel()
	SetLevel(LevelInfo)
	defer SetLevel(prev)

	Info("Rule index loaded", "tenant", "acme", "tables", 3)
	Debug("hidden at info level")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "Rule index loaded" || entry["tenant"] != "acme" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestCounters(t *testing.T) {
	before := Counters()

	NoMatch()
	Ambiguous()
	ParseErrors(3)
	LoadFailure()
	WarnHttp4xx()
	ErrorHttp5xx()

	after := Counters()
	want := map[string]int64{
		"no_match":      1,
		"ambiguous":     1,
		"parse_errors":  3,
		"load_failures": 1,
		"http_4xx":      1,
		"http_5xx":      1,
		"warnings":      1,
		"errors":        1,
	}
	for k, d := range want {
		if after[k]-before[k] != d {
			t.Errorf("%s grew by %d, want %d", k, after[k]-before[k], d)
		}
	}
}

func TestSetLevelFromEnv(t *testing.T) {
	prev := GetLevel()
	defer SetLevel(prev)

	testCases := []struct {
		value string
		want  slog.Level
	}{
		{"debug", LevelDebug},
		{"TRACE", LevelTrace},
		{"", LevelWarning},
		{"loud", LevelWarning},
	}

	for _, tc := range testCases {
		t.Setenv("DMN_TEST_LEVEL", tc.value)
		SetLevelFromEnv("DMN_TEST_LEVEL", LevelWarning)
		if got := GetLevel(); got != tc.want {
			t.Errorf("SetLevelFromEnv(%q) level = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestTrace(t *testing.T) {
	if otelActive {
		t.Skip("OTEL logging ignores SetOutput")
	}

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	prev := GetLevel()
	defer SetLevel(prev)

	SetLevel(LevelDebug)
	Trace("Evaluating candidate table", "table", "loanRiskTable")
	if buf.Len() != 0 {
		t.Fatalf("trace should be hidden at debug level, got %q", buf.String())
	}

	SetLevel(LevelTrace)
	Trace("Evaluating candidate table", "table", "loanRiskTable")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["table"] != "loanRiskTable" || entry["level"] != "DEBUG-4" {
		t.Errorf("unexpected entry: %v", entry)
	}
}
