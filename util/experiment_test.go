package util

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoggerAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hparams.log")
	lg := NewFileLogger(path)

	require.NoError(t, lg.LogHyperparams(map[string]interface{}{"seed": 42}))
	require.NoError(t, lg.LogHyperparams(map[string]interface{}{"seed": 43}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestTrackerLogger(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	lg := NewTrackerLogger(srv.URL, "run-1")
	require.NoError(t, lg.LogHyperparams(map[string]interface{}{"seed": 42}))
	require.NoError(t, lg.Finish())
	// Finish is idempotent
	require.NoError(t, lg.Finish())

	assert.Equal(t, []string{"/runs/run-1/hparams", "/runs/run-1/finish"}, paths)
}

func TestFinishFinalizesTrackers(t *testing.T) {
	var finishes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/runs/sweep-3/finish" {
			finishes++
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	loggers := []ExperimentLogger{
		NewFileLogger(filepath.Join(t.TempDir(), "hparams.log")),
		NewTrackerLogger(srv.URL, "sweep-3"),
	}
	Finish(loggers, NewRankedLogger(0))
	assert.Equal(t, 1, finishes)
}
