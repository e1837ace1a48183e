package main

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggingWritesRotatingFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	require.NoError(t, setupLogging(dir))
	log.Println("INFO: first cast")

	data, err := os.ReadFile(filepath.Join(dir, "fishlog.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "INFO: first cast")
}

func TestSetupLoggingWithoutDir(t *testing.T) {
	assert.NoError(t, setupLogging(""))
}
