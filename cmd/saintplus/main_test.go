package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupEnv(t *testing.T, apiURL string) string {
	t.Helper()
	logFile := filepath.Join(t.TempDir(), "cli.log")
	t.Setenv("SAINTPLUS_PROFILE", "")
	t.Setenv("SAINTPLUS_API_URL", apiURL)
	t.Setenv("SAINTPLUS_SESSION_STORE", "memory")
	t.Setenv("SAINTPLUS_LOG_FILE", logFile)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OTEL_ENABLED", "false")
	return logFile
}

func TestRealMainExitCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	setupEnv(t, srv.URL)

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, exitUsage},
		{"unknown command", []string{"bogus"}, exitUsage},
		{"bad subcommand flag", []string{"save", "-nope"}, exitError},
		{"validation error", []string{"save", "-code", "CSE3013"}, exitError},
		{"signed out call", []string{"saved"}, exitAuth},
		{"logout", []string{"logout"}, exitOK},
		{"metrics flag", []string{"-metrics", "logout"}, exitOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := realMain(tc.args); got != tc.want {
				t.Fatalf("realMain(%v) = %d, want %d", tc.args, got, tc.want)
			}
		})
	}
}

func TestRealMainFlushesLogsBeforeReturning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	logFile := setupEnv(t, srv.URL)

	if got := realMain([]string{"saved"}); got != exitAuth {
		t.Fatalf("expected auth exit code, got %d", got)
	}
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "bootstrap.ready") {
		t.Fatalf("expected startup entry in log, got:\n%s", data)
	}
}
