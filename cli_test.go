package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fishlog/logbook"
	"fishlog/store"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"FISHLOG_CONFIG", "DB_PATH", "LOG_DIR", "TZ_NAME", "BACKUP_DIR"} {
		t.Setenv(key, "")
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMoonCmd(t *testing.T) {
	isolateEnv(t)

	out, err := runCLI(t, "moon", "--millis", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Last Quarter (43%)")

	out, err = runCLI(t, "moon", "--at", "2000-01-06T14:24:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "New Moon (0%)")

	_, err = runCLI(t, "moon", "--at", "yesterday")
	assert.Error(t, err)
}

func TestTripCmd(t *testing.T) {
	isolateEnv(t)
	db := filepath.Join(t.TempDir(), "cli.db")

	out, err := runCLI(t, "--db", db, "trip", "start", "Dawn", "session", "--waterway", "Lake Eildon")
	require.NoError(t, err)
	assert.Contains(t, out, "Trip #1 started\nDawn session\nLake Eildon")

	_, err = runCLI(t, "--db", db, "trip", "start")
	assert.ErrorIs(t, err, logbook.ErrTripActive)

	out, err = runCLI(t, "--db", db, "trip", "end")
	require.NoError(t, err)
	assert.Contains(t, out, "Trip #1 ended")

	_, err = runCLI(t, "--db", db, "trip", "end")
	assert.ErrorIs(t, err, logbook.ErrNoActiveTrip)
}

func TestCatchCmds(t *testing.T) {
	isolateEnv(t)
	db := filepath.Join(t.TempDir(), "cli.db")

	out, err := runCLI(t, "--db", db, "catch", "add", "Murray", "cod",
		"--length", "72.5", "--lure", "Spinnerbait",
		"--lat=-36.1", "--lon=146.9", "--no-weather",
		"--at", "2000-01-06T14:24:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "#1 Murray cod")
	assert.Contains(t, out, "72.5cm")
	assert.Contains(t, out, "New Moon (0%)")

	_, err = runCLI(t, "--db", db, "catch", "add", "Carp", "--lat", "1")
	assert.Error(t, err)
	_, err = runCLI(t, "--db", db, "catch", "add", "   ", "--no-weather")
	assert.ErrorIs(t, err, store.ErrInvalidCatch)

	out, err = runCLI(t, "--db", db, "catch", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "#1 Murray cod")

	out, err = runCLI(t, "--db", db, "catch", "show", "#1")
	require.NoError(t, err)
	assert.Contains(t, out, "https://maps.google.com/?q=-36.1,146.9")
	assert.Contains(t, out, "Lure/Bait: Spinnerbait")

	out, err = runCLI(t, "--db", db, "catch", "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Catch #1 deleted")

	_, err = runCLI(t, "--db", db, "catch", "show", "1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	out, err = runCLI(t, "--db", db, "catch", "list")
	require.NoError(t, err)
	assert.Contains(t, out, noCatchesMessage)
}

func TestExportCmd(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "cli.db")

	_, err := runCLI(t, "--db", db, "catch", "add", "Carp", "--lat=-36.1", "--lon=146.9", "--no-weather")
	require.NoError(t, err)

	out, err := runCLI(t, "--db", db, "export", "csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "type,id,tripId,timestamp,species"))

	geo := filepath.Join(dir, "catches.geojson")
	_, err = runCLI(t, "--db", db, "export", "geojson", "-o", geo)
	require.NoError(t, err)
	data, err := os.ReadFile(geo)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)

	pdf := filepath.Join(dir, "logbook.pdf")
	_, err = runCLI(t, "--db", db, "export", "pdf", "--output", pdf)
	require.NoError(t, err)
	data, err = os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	_, err = runCLI(t, "--db", db, "export", "xml")
	assert.Error(t, err)
}

func TestBackupAndRestoreCmds(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "cli.db")
	archive := filepath.Join(dir, "snapshot.zip")

	_, err := runCLI(t, "--db", db, "catch", "add", "Golden", "perch", "--no-weather")
	require.NoError(t, err)

	out, err := runCLI(t, "--db", db, "backup", "-o", archive)
	require.NoError(t, err)
	assert.Contains(t, out, archive)

	_, err = runCLI(t, "--db", db, "catch", "add", "Carp", "--no-weather")
	require.NoError(t, err)

	out, err = runCLI(t, "--db", db, "restore", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "Restored")

	out, err = runCLI(t, "--db", db, "catch", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Golden perch")
	assert.NotContains(t, out, "Carp")
}

func TestBackupCmdDefaultsToBackupDir(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	t.Setenv("BACKUP_DIR", filepath.Join(dir, "backups"))

	_, err := runCLI(t, "--db", filepath.Join(dir, "cli.db"), "backup")
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(dir, "backups", "fishing_logbook_backup_*.zip"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
