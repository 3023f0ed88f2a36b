package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// ErrStartFailed is returned by Start when the worker responds with
// anything other than 201 Created or 303 See Other.
var ErrStartFailed = errors.New("remote: worker returned an unexpected status starting the job")

// Client is the HTTP client for the start/poll/stop protocol against
// an external worker process.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client against baseURL with the given per-request
// timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Start begins remote execution of jobName, streaming archive as a
// single multipart form part without buffering it in memory: a
// goroutine writes into an io.Pipe while the HTTP request reads from
// the other end concurrently.
func (c *Client) Start(ctx context.Context, jobName string, archive io.Reader) (statusURL string, err error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("archive", jobName+".tar.gz")
		if err != nil {
			pw.CloseWithError(fmt.Errorf("create form part: %w", err))
			return
		}
		if _, err := io.Copy(part, archive); err != nil {
			pw.CloseWithError(fmt.Errorf("stream archive: %w", err))
			return
		}
		if err := mw.Close(); err != nil {
			pw.CloseWithError(fmt.Errorf("close multipart writer: %w", err))
			return
		}
		pw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+jobName, pr)
	if err != nil {
		return "", fmt.Errorf("build start request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("start request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusSeeOther:
		location := resp.Header.Get("Location")
		if location == "" {
			return "", fmt.Errorf("%w: missing Location header (status %d)", ErrStartFailed, resp.StatusCode)
		}
		return location, nil
	default:
		return "", fmt.Errorf("%w: status %d", ErrStartFailed, resp.StatusCode)
	}
}

// Poll fetches the current status of a started job.
func (c *Client) Poll(ctx context.Context, statusURL string) (*PollResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build poll request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll %s: unexpected status %d", statusURL, resp.StatusCode)
	}

	var result PollResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	return &result, nil
}

// Stop requests cancellation of a started job. Idempotent: repeated
// calls against an already-stopped job are not an error.
func (c *Client) Stop(ctx context.Context, statusURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, statusURL, nil)
	if err != nil {
		return fmt.Errorf("build stop request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stop request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("stop %s: unexpected status %d", statusURL, resp.StatusCode)
	}
	return nil
}
