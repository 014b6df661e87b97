//go:build integration || database

// Package integration contains end-to-end tests of the issuetrend binary.
// These tests are excluded from normal test runs due to build tags.
// To run these tests: go test -tags integration ./integration
// The database tests need Docker: go test -tags database ./integration
package integration

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
)

var (
	// sharedBinaryPath holds the path to an issuetrend binary built once for all tests.
	sharedBinaryPath string

	// buildOnce ensures we only build the binary once.
	buildOnce sync.Once

	// tempDir holds the temp directory for cleanup.
	tempDir string
)

// TestMain handles setup and cleanup for all integration tests.
func TestMain(m *testing.M) {
	code := m.Run()

	// Cleanup the shared binary after all tests
	if tempDir != "" {
		_ = os.RemoveAll(tempDir)
	}
	os.Exit(code)
}

// getBinary returns the path to the issuetrend binary, building it once if needed.
func getBinary() string {
	buildOnce.Do(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "issuetrend-integration-*")
		if err != nil {
			panic(fmt.Sprintf("failed to create temp dir: %v", err))
		}

		binaryPath := filepath.Join(tempDir, "issuetrend")
		buildCmd := exec.Command("go", "build", "-o", binaryPath, ".")
		buildCmd.Dir = ".." // Build from parent directory (project root)
		if out, err := buildCmd.CombinedOutput(); err != nil {
			panic(fmt.Sprintf("failed to build issuetrend: %v\n%s", err, out))
		}
		sharedBinaryPath = binaryPath
	})
	return sharedBinaryPath
}

// runIssuetrend runs the binary in an isolated HOME with the extra environment
// and returns its stdout.
func runIssuetrend(t *testing.T, home string, env map[string]string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(getBinary(), args...)
	cmd.Dir = home
	cmd.Env = append(os.Environ(), "HOME="+home, "GITHUB_TOKEN=")
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		t.Logf("Command failed: %s\nStdout: %s\nStderr: %s", cmd.String(), stdout.String(), stderr.String())
	}
	return stdout.String(), err
}

const fakeIssues = `[
	{"number": 1, "state": "open", "created_at": "2024-01-01T10:00:00Z", "closed_at": null},
	{"number": 2, "state": "closed", "created_at": "2024-01-02T10:00:00Z", "closed_at": "2024-01-03T09:00:00Z", "pull_request": {"url": "x"}},
	{"number": 3, "state": "closed", "created_at": "2024-01-02T11:00:00Z", "closed_at": "2024-01-05T08:00:00Z"}
]`

const fakeEvents = `[
	{"id": 10, "event": "closed", "created_at": "2024-01-03T09:00:00Z", "issue": {"number": 2}},
	{"id": 11, "event": "labeled", "created_at": "2024-01-01T10:00:00Z", "label": {"name": "bug"}, "issue": {"number": 1}},
	{"id": 12, "event": "labeled", "created_at": "2024-01-02T11:00:00Z", "label": {"name": "bug"}, "issue": {"number": 3}}
]`

// newFakeGitHub serves a single page of issues and events for acme/widgets.
func newFakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", `"`+r.URL.Path+`"`)
		switch r.URL.Path {
		case "/repos/acme/widgets/issues":
			_, _ = w.Write([]byte(fakeIssues))
		case "/repos/acme/widgets/issues/events":
			_, _ = w.Write([]byte(fakeEvents))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}
