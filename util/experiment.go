package util

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// ExperimentLogger is the attachment point for experiment tracking backends.
type ExperimentLogger interface {
	Name() string
	LogHyperparams(hparams map[string]interface{}) error
}

// FileLogger appends hyperparameter records as JSON lines to a local file.
type FileLogger struct {
	path string
}

func NewFileLogger(path string) *FileLogger {
	return &FileLogger{path: path}
}

func (l *FileLogger) Name() string { return "file:" + l.path }

func (l *FileLogger) LogHyperparams(hparams map[string]interface{}) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "cannot open hparams file")
	}
	defer f.Close()
	return errors.Wrap(json.NewEncoder(f).Encode(hparams), "cannot write hparams")
}

// TrackerLogger talks to a cloud experiment tracker over HTTP. Sweeps crash
// when a run is left open on the tracker side, so Finish must be called once
// the run ends; util.Finish does that for every attached tracker.
type TrackerLogger struct {
	endpoint string
	run      string
	client   *http.Client
	finished bool
}

func NewTrackerLogger(endpoint, run string) *TrackerLogger {
	return &TrackerLogger{
		endpoint: endpoint,
		run:      run,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TrackerLogger) Name() string { return "tracker:" + t.run }

func (t *TrackerLogger) LogHyperparams(hparams map[string]interface{}) error {
	body, err := json.Marshal(hparams)
	if err != nil {
		return errors.Wrap(err, "cannot encode hparams")
	}
	return t.post("/runs/"+t.run+"/hparams", body)
}

// Finish ends the remote tracking session. It is idempotent.
func (t *TrackerLogger) Finish() error {
	if t.finished {
		return nil
	}
	if err := t.post("/runs/"+t.run+"/finish", nil); err != nil {
		return err
	}
	t.finished = true
	return nil
}

func (t *TrackerLogger) post(path string, body []byte) error {
	op := func() error {
		resp, err := t.client.Post(t.endpoint+path, "application/json", bytes.NewReader(body))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return errors.Errorf("tracker returned %s", resp.Status)
		}
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
	return errors.Wrapf(backoff.Retry(op, policy), "tracker post %s failed", path)
}

// Finish makes sure everything closed properly: any tracker session among
// the attached loggers is finalized explicitly.
func Finish(loggers []ExperimentLogger, log *RankedLogger) {
	for _, lg := range loggers {
		tracker, ok := lg.(*TrackerLogger)
		if !ok {
			continue
		}
		if err := tracker.Finish(); err != nil {
			log.Exception(err, "could not finalize ", tracker.Name())
		}
	}
}
