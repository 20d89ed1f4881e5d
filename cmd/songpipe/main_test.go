package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(dir, "songpipe.db"))
	t.Setenv("AUDIO_DIR", filepath.Join(dir, "audio"))
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx := newCommandContext()
	t.Cleanup(ctx.close)
	cmd := newRootCommand(ctx)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEnqueueShowRequeue(t *testing.T) {
	dir := setupEnv(t)
	lyricsPath := filepath.Join(dir, "lyrics.txt")
	require.NoError(t, os.WriteFile(lyricsPath, []byte("line one\nline two\n"), 0o644))

	out, err := execute(t, "enqueue", "--track-id", "t1", "--isrc", "usrc11902726", "--title", "Song", "--lyrics-file", lyricsPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Track t1 is at discovered")

	out, err = execute(t, "show", "t1")
	require.NoError(t, err)
	assert.Contains(t, out, "USRC11902726")
	assert.Contains(t, out, "No processing log entries.")

	out, err = execute(t, "requeue", "t1", "--stage", "metadata_resolved")
	require.NoError(t, err)
	assert.Contains(t, out, "requeued at metadata_resolved (reset 1)")

	out, err = execute(t, "list", "--stage", "metadata_resolved")
	require.NoError(t, err)
	assert.Contains(t, out, "t1")
	out, err = execute(t, "list", "--stage", "discovered", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	_, err = execute(t, "requeue", "t1", "--stage", "failed")
	assert.Error(t, err)
	_, err = execute(t, "requeue", "t1", "--stage", "nowhere")
	assert.Error(t, err)
}

func TestEnqueueRequiresTrackID(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "enqueue", "--title", "Song")
	assert.Error(t, err)
}

func TestReport(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "enqueue", "--track-id", "t1", "--title", "Song")
	require.NoError(t, err)

	out, err := execute(t, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "Stage funnel")

	out, err = execute(t, "report", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"total": 1`)
}

func TestMigrate(t *testing.T) {
	setupEnv(t)
	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema ready (sqlite")
}

func TestRun(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "run", "--step", "no-such-step")
	assert.ErrorContains(t, err, "unknown step")

	_, err = execute(t, "run", "--step", "resolve-iswc", "--all")
	assert.Error(t, err, "--step and --all are exclusive")

	out, err := execute(t, "run", "--step", "resolve-iswc")
	require.NoError(t, err)
	assert.Contains(t, out, "resolve-iswc")
}

func TestRunRequiresCredentialsForSelectedSteps(t *testing.T) {
	setupEnv(t)
	t.Setenv("GEMINI_API_KEY", "")
	_, err := execute(t, "run", "--step", "translate-lyrics")
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}

func TestInvalidConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("LOG_LEVEL", "loud")
	_, err := execute(t, "migrate")
	assert.ErrorContains(t, err, "LOG_LEVEL")
}
