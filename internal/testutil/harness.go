// Package testutil holds the harness shared by the integration tests: an
// on-disk Android project, a fake SDK and a runner for the command line.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/specialistvlad/droidbuild/internal/cli"
	"github.com/specialistvlad/droidbuild/internal/extcmd/extcmdtest"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// DefaultManifest declares com.example.app with code.
const DefaultManifest = `<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android"
    package="com.example.app">
  <application android:label="Example"/>
</manifest>
`

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	Dir       string
	Output    string
	LogOutput string
	Err       error
	ExitCode  int
}

// NewProject writes files into a fresh project directory. An SDK directory
// is created under sdk/ and referenced from local.properties, and a default
// manifest is added unless files provides one.
func NewProject(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sdk", "platforms", "android-8"), 0o755))

	all := map[string]string{
		"AndroidManifest.xml": DefaultManifest,
		"local.properties":    "sdk.dir=sdk\n",
	}
	for name, content := range files {
		all[name] = content
	}
	for name, content := range all {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// RunIntegrationTest lays out a project from files and runs the command
// line against it with the fake SDK. args must not include --project-dir.
func RunIntegrationTest(t *testing.T, files map[string]string, sdk *extcmdtest.Recorder, args ...string) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, files, sdk, args...)
}

// RunIntegrationTestWithContext is RunIntegrationTest with a caller context.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, files map[string]string, sdk *extcmdtest.Recorder, args ...string) *HarnessResult {
	t.Helper()

	dir := NewProject(t, files)
	out, logs := &SafeBuffer{}, &SafeBuffer{}

	err := cli.Execute(ctx, append([]string{"--project-dir", dir}, args...), cli.Options{
		Out:      out,
		Err:      logs,
		Executor: sdk,
	})
	return &HarnessResult{
		Dir:       dir,
		Output:    out.String(),
		LogOutput: logs.String(),
		Err:       err,
		ExitCode:  cli.ExitCode(err),
	}
}
