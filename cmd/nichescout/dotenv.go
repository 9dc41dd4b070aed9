// ABOUTME: Seeds the process environment from a .env file before flags are parsed.
// ABOUTME: File values never override variables already set by the caller.
package main

import (
	"bufio"
	"os"
	"strings"
)

// loadEnv applies .env from the working directory, plus an explicit file
// named by NICHESCOUT_ENV_FILE when set. The real environment always wins.
func loadEnv() {
	if extra := os.Getenv("NICHESCOUT_ENV_FILE"); extra != "" {
		applyEnvFile(extra)
	}
	applyEnvFile(".env")
}

// applyEnvFile parses a dotenv-style file and sets each variable that is
// not already present. A missing or unreadable file is not an error.
func applyEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := parseEnvLine(sc.Text())
		if !ok {
			continue
		}
		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, value)
		}
	}
}

// parseEnvLine handles KEY=VALUE with an optional "export " prefix,
// surrounding quotes on the value, blank lines, and # comments.
func parseEnvLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, unquoteEnvValue(strings.TrimSpace(value)), true
}

func unquoteEnvValue(v string) string {
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if first == last && (first == '"' || first == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
