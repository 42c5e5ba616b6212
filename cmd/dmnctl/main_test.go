package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/processgpt/dmnrules/internal/logger"
)

const riskDMN = `<definitions xmlns="https://www.omg.org/spec/DMN/20191111/MODEL/" id="loan" name="Loans">
  <decision id="loanRisk" name="Loan Risk">
    <decisionTable id="loanRiskTable" hitPolicy="UNIQUE">
      <input label="Credit Score"><inputExpression typeRef="number"><text>creditScore</text></inputExpression></input>
      <output name="risk"/>
      <rule id="low"><inputEntry><text>&gt;= 700</text></inputEntry><outputEntry><text>"low"</text></outputEntry></rule>
      <rule id="high"><inputEntry><text>&lt; 700</text></inputEntry><outputEntry><text>"high"</text></outputEntry></rule>
    </decisionTable>
  </decision>
</definitions>`

// setupModelDir writes riskDMN for acme/alice and points the file backend at it
func setupModelDir(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	scope := filepath.Join(dir, "acme", "alice")
	if err := os.MkdirAll(scope, 0o755); err != nil {
		t.Fatalf("MkdirAll() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(scope, "loans.dmn"), []byte(riskDMN), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	for _, key := range []string{"DATABASE_URL", "DMN_WATCH", "DMN_RETRY_ATTEMPTS", "DMN_RELOAD_TIMEOUT",
		"DMN_REFRESH_SCHEDULE", "DMN_CACHE_TTL", "DMN_MIN_SCORE"} {
		t.Setenv(key, "")
	}
	t.Setenv("DMN_STORE", "file")
	t.Setenv("DMN_MODEL_DIR", dir)
}

// execute runs dmnctl with args and returns what it wrote to stdout and stderr
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestQueryJSONOutput(t *testing.T) {
	setupModelDir(t)

	stdout, stderr, err := execute(t, "query", "--config", "", "--tenant", "acme", "--owner", "alice",
		"--facts", "", "--format", "json", "loan risk for creditScore 720")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	dec := json.NewDecoder(strings.NewReader(stdout))
	var result map[string]any
	if err := dec.Decode(&result); err != nil {
		t.Fatalf("stdout is not a JSON document: %v\n%s", err, stdout)
	}
	if _, err := dec.Token(); err != io.EOF {
		t.Errorf("stdout has data after the result document:\n%s", stdout)
	}
	if result["Outcome"] != "rule_applied" {
		t.Errorf("Outcome = %v, want rule_applied", result["Outcome"])
	}

	if !strings.Contains(stderr, "Rule index loaded") {
		t.Errorf("logs should go to stderr, got %q", stderr)
	}
}

func TestQueryTextOutput(t *testing.T) {
	setupModelDir(t)

	stdout, _, err := execute(t, "query", "--config", "", "--tenant", "acme", "--owner", "alice",
		"--facts", `{"creditScore": 640}`, "--format", "text", "loan risk")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	for _, want := range []string{"outcome: rule_applied", "- risk: high"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, `"msg"`) {
		t.Errorf("stdout contains log lines:\n%s", stdout)
	}
}

func TestQueryRequiresScope(t *testing.T) {
	setupModelDir(t)

	_, _, err := execute(t, "query", "--config", "", "--tenant", "", "--owner", "", "--facts", "", "anything")
	if err == nil || !strings.Contains(err.Error(), "--tenant and --owner are required") {
		t.Errorf("error = %v, want the missing scope error", err)
	}
}
