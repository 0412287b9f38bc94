package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// captureOutput runs fn with os.Stdout redirected and returns what it
// printed.
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	oldStdout := os.Stdout
	os.Stdout = w

	outc := make(chan string)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r)
		outc <- buf.String()
	}()

	fnErr := fn()

	os.Stdout = oldStdout
	w.Close()
	return <-outc, fnErr
}

// setFlag sets a package-level flag variable for the duration of the test.
func setFlag[T any](t *testing.T, p *T, v T) {
	t.Helper()
	old := *p
	*p = v
	t.Cleanup(func() { *p = old })
}

// setupProject initializes a chain project in a temp dir, with the example
// prompt, and points the commands at it.
func setupProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	setFlag(t, &workDir, dir)
	setFlag(t, &noColor, true)

	if _, err := captureOutput(t, func() error { return runInit(initCmd, nil) }); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}
	return dir
}

// testConfig drives runs through the simulator with fast retries.
const testConfig = `version = "1"

[executor]
send_retries = 1
send_retry_delay = "1ms"
response_timeout = "5s"

[host]
kind = "sim"

[logging]
level = "debug"
`

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// setupRunProject is setupProject plus a simulator config answering with
// behavior.
func setupRunProject(t *testing.T, behavior string) string {
	t.Helper()
	dir := setupProject(t)
	writeFile(t, filepath.Join(dir, ".chain", "config.toml"), testConfig)
	simPath := writeFile(t, filepath.Join(dir, "sim.yaml"), "timing:\n  response_delay: 5ms\n"+behavior)
	setFlag(t, &runSimConfig, simPath)
	return dir
}
