// ABOUTME: Tests for the .env loader: parsing rules, quoting, and no-clobber behavior.
package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	return path
}

func TestApplyEnvFileBasic(t *testing.T) {
	path := writeEnvFile(t, `
# comment line
PLAIN=value
QUOTED="quoted value"
SINGLE='single value'
export EXPORTED=exported
WITH_EQUALS=a=b=c
`)
	for _, key := range []string{"PLAIN", "QUOTED", "SINGLE", "EXPORTED", "WITH_EQUALS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	applyEnvFile(path)

	cases := map[string]string{
		"PLAIN":       "value",
		"QUOTED":      "quoted value",
		"SINGLE":      "single value",
		"EXPORTED":    "exported",
		"WITH_EQUALS": "a=b=c",
	}
	for key, want := range cases {
		if got := os.Getenv(key); got != want {
			t.Errorf("%s: expected %q, got %q", key, want, got)
		}
	}
}

func TestApplyEnvFileDoesNotClobber(t *testing.T) {
	path := writeEnvFile(t, "ALREADY_SET=from-file\n")
	t.Setenv("ALREADY_SET", "from-env")

	applyEnvFile(path)

	if got := os.Getenv("ALREADY_SET"); got != "from-env" {
		t.Errorf("existing env must win, got %q", got)
	}
}

func TestApplyEnvFileMissingFileIsSilent(t *testing.T) {
	applyEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}

func TestApplyEnvFileSkipsMalformedLines(t *testing.T) {
	path := writeEnvFile(t, "JUSTAWORD\nGOOD_KEY=ok\n")
	t.Setenv("GOOD_KEY", "")
	os.Unsetenv("GOOD_KEY")

	applyEnvFile(path)

	if got := os.Getenv("GOOD_KEY"); got != "ok" {
		t.Errorf("expected later lines parsed after a malformed one, got %q", got)
	}
}

func TestLoadEnvExplicitFile(t *testing.T) {
	path := writeEnvFile(t, "FROM_EXPLICIT_FILE=yes\n")
	t.Setenv("NICHESCOUT_ENV_FILE", path)
	t.Setenv("FROM_EXPLICIT_FILE", "")
	os.Unsetenv("FROM_EXPLICIT_FILE")

	loadEnv()

	if got := os.Getenv("FROM_EXPLICIT_FILE"); got != "yes" {
		t.Errorf("expected NICHESCOUT_ENV_FILE to be loaded, got %q", got)
	}
}

func TestParseEnvLine(t *testing.T) {
	cases := []struct {
		line       string
		key, value string
		ok         bool
	}{
		{"KEY=value", "KEY", "value", true},
		{"  KEY = value ", "KEY", "value", true},
		{`KEY="a b"`, "KEY", "a b", true},
		{"export KEY=v", "KEY", "v", true},
		{"# KEY=v", "", "", false},
		{"", "", "", false},
		{"noequals", "", "", false},
		{"=value", "", "", false},
	}
	for _, tc := range cases {
		key, value, ok := parseEnvLine(tc.line)
		if key != tc.key || value != tc.value || ok != tc.ok {
			t.Errorf("parseEnvLine(%q) = (%q, %q, %v), expected (%q, %q, %v)",
				tc.line, key, value, ok, tc.key, tc.value, tc.ok)
		}
	}
}
