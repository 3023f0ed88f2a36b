// Package fakeworker is a test double for the external worker process
// that internal/remote.Client talks to. It is only ever wired up via
// httptest.NewServer inside tests — never started in production.
package fakeworker

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"sync"

	"github.com/haldane/jobstore/internal/remote"
)

// job tracks one started job's fake lifecycle.
type job struct {
	archive  []byte
	status   remote.Status
	result   remote.Result
	message  string
	logLines []string
	stopped  bool
}

// Worker serves the start/poll/stop protocol against an in-memory job
// table. FinishWith lets a test script the eventual outcome of a
// started job before polling it.
type Worker struct {
	mux sync.Mutex
	jobs map[string]*job

	// OnStart, if set, is invoked synchronously when a job's archive
	// finishes uploading, letting a test inspect the received bytes.
	OnStart func(jobName string, archive []byte)
}

// New constructs an empty Worker.
func New() *Worker {
	return &Worker{jobs: make(map[string]*job)}
}

// Handler returns the http.Handler to pass to httptest.NewServer.
func (w *Worker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", w.route)
	return mux
}

func (w *Worker) route(rw http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost:
		w.handleStart(rw, r, path[1:])
	case r.Method == http.MethodGet:
		w.handlePoll(rw, path)
	case r.Method == http.MethodDelete:
		w.handleStop(rw, path)
	default:
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (w *Worker) handleStart(rw http.ResponseWriter, r *http.Request, jobName string) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		http.Error(rw, "expected multipart/form-data", http.StatusBadRequest)
		return
	}

	mr := multipart.NewReader(r.Body, params["boundary"])
	part, err := mr.NextPart()
	if err != nil {
		http.Error(rw, fmt.Sprintf("read part: %v", err), http.StatusBadRequest)
		return
	}
	data, err := io.ReadAll(part)
	if err != nil {
		http.Error(rw, fmt.Sprintf("read archive: %v", err), http.StatusBadRequest)
		return
	}

	w.mux.Lock()
	w.jobs[jobName] = &job{archive: data, status: remote.Running}
	w.mux.Unlock()

	if w.OnStart != nil {
		w.OnStart(jobName, data)
	}

	rw.Header().Set("Location", "/status/"+jobName)
	rw.WriteHeader(http.StatusCreated)
}

func (w *Worker) handlePoll(rw http.ResponseWriter, path string) {
	jobName, ok := jobNameFromStatusPath(path)
	if !ok {
		http.NotFound(rw, nil)
		return
	}

	w.mux.Lock()
	j, ok := w.jobs[jobName]
	w.mux.Unlock()
	if !ok {
		http.NotFound(rw, nil)
		return
	}

	result := remote.PollResult{
		Status:   j.status,
		Result:   j.result,
		Message:  j.message,
		LogLines: j.logLines,
	}
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(result)
}

func (w *Worker) handleStop(rw http.ResponseWriter, path string) {
	jobName, ok := jobNameFromStatusPath(path)
	if !ok {
		http.NotFound(rw, nil)
		return
	}

	w.mux.Lock()
	j, ok := w.jobs[jobName]
	if ok {
		j.stopped = true
	}
	w.mux.Unlock()

	if !ok {
		rw.WriteHeader(http.StatusNotFound)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

// FinishWith marks a started job finished with the given result,
// message, and log lines, as if the worker had completed it.
func (w *Worker) FinishWith(jobName string, result remote.Result, message string, logLines []string) {
	w.mux.Lock()
	defer w.mux.Unlock()
	j, ok := w.jobs[jobName]
	if !ok {
		j = &job{}
		w.jobs[jobName] = j
	}
	j.status = remote.Finished
	j.result = result
	j.message = message
	j.logLines = logLines
}

// AppendLogLine simulates the worker accumulating output on a running job.
func (w *Worker) AppendLogLine(jobName, line string) {
	w.mux.Lock()
	defer w.mux.Unlock()
	if j, ok := w.jobs[jobName]; ok {
		j.logLines = append(j.logLines, line)
	}
}

// Stopped reports whether Stop was called for jobName.
func (w *Worker) Stopped(jobName string) bool {
	w.mux.Lock()
	defer w.mux.Unlock()
	j, ok := w.jobs[jobName]
	return ok && j.stopped
}

func jobNameFromStatusPath(path string) (string, bool) {
	const prefix = "/status/"
	if len(path) <= len(prefix) || path[:len(prefix)] != prefix {
		return "", false
	}
	return path[len(prefix):], true
}
