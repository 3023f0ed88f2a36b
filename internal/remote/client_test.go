package remote_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/haldane/jobstore/internal/remote"
	"github.com/haldane/jobstore/internal/remote/fakeworker"
)

func newTestServer(t *testing.T, worker *fakeworker.Worker) (*remote.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(worker.Handler())
	t.Cleanup(srv.Close)
	return remote.NewClient(srv.URL, 5*time.Second), srv
}

func TestClientStartStreamsArchiveAndReturnsStatusURL(t *testing.T) {
	worker := fakeworker.New()
	var received []byte
	worker.OnStart = func(jobName string, archive []byte) {
		received = archive
	}
	client, _ := newTestServer(t, worker)

	archive := []byte("fake-tar-gz-bytes")
	statusURL, err := client.Start(context.Background(), "nightly-export", bytes.NewReader(archive))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if statusURL == "" {
		t.Fatal("Start() returned empty status URL")
	}
	if !bytes.Equal(received, archive) {
		t.Errorf("worker received archive %q, want %q", received, archive)
	}
}

func TestClientPollReturnsFinishedResult(t *testing.T) {
	worker := fakeworker.New()
	client, srv := newTestServer(t, worker)

	statusURL, err := client.Start(context.Background(), "report", bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	worker.FinishWith("report", remote.Successful, "done", []string{"line1", "line2"})

	result, err := client.Poll(context.Background(), srv.URL+statusURL)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if result.Status != remote.Finished {
		t.Errorf("Status = %v, want Finished", result.Status)
	}
	if result.Result != remote.Successful {
		t.Errorf("Result = %v, want Successful", result.Result)
	}
	if len(result.LogLines) != 2 {
		t.Errorf("LogLines = %v, want 2 entries", result.LogLines)
	}
}

func TestClientPollUnknownJobReturnsError(t *testing.T) {
	worker := fakeworker.New()
	client, srv := newTestServer(t, worker)

	_, err := client.Poll(context.Background(), srv.URL+"/status/nonexistent")
	if err == nil {
		t.Fatal("Poll() error = nil, want error for unknown job")
	}
}

func TestClientStopMarksJobStopped(t *testing.T) {
	worker := fakeworker.New()
	client, srv := newTestServer(t, worker)

	statusURL, err := client.Start(context.Background(), "cleanup", bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := client.Stop(context.Background(), srv.URL+statusURL); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !worker.Stopped("cleanup") {
		t.Error("worker did not record job as stopped")
	}
}

func TestClientStopIsIdempotentOnMissingJob(t *testing.T) {
	worker := fakeworker.New()
	client, srv := newTestServer(t, worker)

	if err := client.Stop(context.Background(), srv.URL+"/status/never-started"); err != nil {
		t.Errorf("Stop() on missing job error = %v, want nil", err)
	}
}
