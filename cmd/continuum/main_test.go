package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/continuum/internal/adapters"
	"github.com/fyrsmithlabs/continuum/internal/config"
)

const sessionLog = `{"type":"user","timestamp":"2025-11-09T14:00:00Z","message":{"role":"user","content":"Fix the failing upload test"}}
{"type":"assistant","timestamp":"2025-11-09T14:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"Let me check."}]}}
{"type":"user","timestamp":"2025-11-09T14:00:06Z","message":{"role":"user","content":"thanks"}}
{"type":"assistant","timestamp":"2025-11-09T14:00:09Z","message":{"role":"assistant","content":[{"type":"text","text":"The retry loop never reset its backoff."}]}}
`

type env struct {
	home     string
	projects string
	archive  string
}

// setupEnv isolates HOME and points the adapters and archive at temp dirs.
func setupEnv(t *testing.T) env {
	t.Helper()
	e := env{home: t.TempDir(), projects: t.TempDir()}
	e.archive = filepath.Join(t.TempDir(), "archive")
	t.Setenv("HOME", e.home)
	t.Setenv(config.EnvPrefix+"ARCHIVE_DIR", e.archive)
	t.Setenv(config.EnvPrefix+"ADAPTERS_CLAUDE_PROJECTS_DIR", e.projects)
	t.Setenv(config.EnvPrefix+"LOGGING_LEVEL", "error")
	return e
}

func (e env) writeSession(t *testing.T, id string) string {
	t.Helper()
	path := filepath.Join(e.projects, "-home-dev-project", id+".jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(sessionLog), 0o644))
	return path
}

func execute(ctx context.Context, args ...string) (string, string, error) {
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Subset(t, names, []string{"import", "analyze", "stats", "watch"})

	for _, name := range []string{"config", "log-level", "log-format"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

func TestRootCmd_Version(t *testing.T) {
	stdout, _, err := execute(context.Background(), "--version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "dev (none)")
}

func TestImportCmd(t *testing.T) {
	e := setupEnv(t)
	e.writeSession(t, "sess-1")

	stdout, stderr, err := execute(context.Background(), "import", "--assistant", "claude-code")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Imported 2 messages from claude-code session sess-1")
	assert.Empty(t, stderr, "no loop banner for a short session")

	dir := filepath.Join(e.archive, "claude-code", "2025-11-09", "sess-1")
	assert.Equal(t, "closed", sessionStatus(t, dir))
	assert.FileExists(t, filepath.Join(dir, "messages.jsonl"))
}

func TestImportCmd_OutputAndMetrics(t *testing.T) {
	e := setupEnv(t)
	path := e.writeSession(t, "sess-2")
	output := filepath.Join(t.TempDir(), "elsewhere")
	metricsFile := filepath.Join(t.TempDir(), "continuum.prom")

	_, _, err := execute(context.Background(), "import", "-a", "claude-code",
		"--session", path, "--output", output, "--metrics-file", metricsFile)
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(output, "claude-code", "2025-11-09", "sess-2"))
	assert.NoDirExists(t, e.archive)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `continuum_imports_total{assistant="claude-code",result="success"} 1`)
}

func TestImportCmd_Errors(t *testing.T) {
	setupEnv(t)
	ctx := context.Background()

	_, _, err := execute(ctx, "import")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "assistant" not set`)

	_, _, err = execute(ctx, "import", "-a", "cursor")
	assert.ErrorIs(t, err, adapters.ErrUnknownAssistant)

	_, _, err = execute(ctx, "import", "-a", "claude-code")
	assert.ErrorIs(t, err, adapters.ErrNoSessions)

	_, _, err = execute(ctx, "import", "-a", "claude-code", "--log-level", "loud")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestAnalyzeCmd_JSON(t *testing.T) {
	e := setupEnv(t)
	e.writeSession(t, "sess-1")

	stdout, _, err := execute(context.Background(), "analyze", "-a", "claude-code", "--json")
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "sess-1", report["session_id"])
	assert.Equal(t, true, report["dry_run"])
	assert.Equal(t, float64(4), report["original_messages"])
	assert.Equal(t, float64(2), report["kept_messages"])
	assert.Equal(t, []any{}, report["findings"])

	assert.NoDirExists(t, e.archive, "analyze writes nothing")
}

func TestAnalyzeCmd_Text(t *testing.T) {
	e := setupEnv(t)
	e.writeSession(t, "sess-1")

	stdout, _, err := execute(context.Background(), "analyze", "-a", "claude-code")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Analysis of claude-code session sess-1")
	assert.Contains(t, stdout, "dry run, nothing written")
}

func TestStatsCmd(t *testing.T) {
	e := setupEnv(t)

	stdout, _, err := execute(context.Background(), "stats")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No sessions archived")

	e.writeSession(t, "sess-1")
	_, _, err = execute(context.Background(), "import", "-a", "claude-code")
	require.NoError(t, err)

	stdout, _, err = execute(context.Background(), "stats")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ASSISTANT")
	assert.Contains(t, stdout, "claude-code")
	assert.Contains(t, stdout, "2025-11-09")
	assert.Contains(t, stdout, "Archive: "+e.archive)

	var total string
	for _, line := range strings.Split(stdout, "\n") {
		if strings.Contains(line, "total") {
			total = line
		}
	}
	assert.Regexp(t, `total\s+\S*\s*1\s+\S*\s*2\b`, total)
}

func TestWatchCmd_ReimportsOnChange(t *testing.T) {
	e := setupEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		_, _, err := execute(ctx, "watch", "-a", "claude-code", "--debounce", "50ms")
		errc <- err
	}()

	// Give the watcher time to register the projects tree.
	time.Sleep(300 * time.Millisecond)
	e.writeSession(t, "live")

	dir := filepath.Join(e.archive, "claude-code", "2025-11-09", "live")
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "messages.jsonl"))
		return err == nil
	}, 10*time.Second, 50*time.Millisecond)
	assert.Equal(t, "active", sessionStatus(t, dir), "watched sessions stay active")

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Equal(t, "closed", sessionStatus(t, dir))
}

func sessionStatus(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "session.json"))
	require.NoError(t, err)
	var meta struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(data, &meta))
	return meta.Status
}

func TestWatchCmd_InvalidDebounce(t *testing.T) {
	setupEnv(t)
	_, _, err := execute(context.Background(), "watch", "-a", "claude-code", "--debounce", "soon")
	assert.Error(t, err)
}
