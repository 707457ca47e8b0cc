package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running darkroomd over its HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the daemon listening at bind, an
// address of the form host:port.
func NewClient(bind string) *Client {
	base := bind
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// RequestArchive asks the daemon for an archive of the gallery.
func (c *Client) RequestArchive(ctx context.Context, req RequestArchiveRequest) (*RequestArchiveResponse, error) {
	var resp RequestArchiveResponse
	if err := c.do(ctx, http.MethodPost, "/api/archives/request", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetArchive fetches one archive by id.
func (c *Client) GetArchive(ctx context.Context, id int64) (*ArchiveView, error) {
	var resp ArchiveResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/archives/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Archive, nil
}

// ListArchives fetches archives, optionally for one gallery.
func (c *Client) ListArchives(ctx context.Context, galleryID string) ([]ArchiveView, error) {
	path := "/api/archives"
	if galleryID != "" {
		path += "?gallery=" + url.QueryEscape(galleryID)
	}
	var resp ArchiveListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Archives, nil
}

// GetJob fetches one job by id.
func (c *Client) GetJob(ctx context.Context, id int64) (*JobView, error) {
	var resp JobResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/jobs/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// ListJobs fetches jobs, optionally filtered to the given statuses.
func (c *Client) ListJobs(ctx context.Context, statuses ...string) ([]JobView, error) {
	path := "/api/jobs"
	if len(statuses) > 0 {
		path += "?status=" + url.QueryEscape(strings.Join(statuses, ","))
	}
	var resp JobListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Status fetches daemon runtime state.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("daemon: HTTP %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
