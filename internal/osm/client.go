package osm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/atp2osm/atp2osm-import/internal/config"
)

// API is the changeset surface the upload orchestrator depends on.
type API interface {
	OpenChangeset(ctx context.Context, meta ChangesetMeta) (int64, error)
	UploadChanges(ctx context.Context, changesetID int64, nodes, relations []Element) error
	CloseChangeset(ctx context.Context, changesetID int64) error
}

// APIError is a non-success response from the remote API. The status code is
// what the audit trail records for failed changesets.
type APIError struct {
	Status int
	Op     string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: api status %d: %s", e.Op, e.Status, e.Body)
}

// Client talks to the OSM API v0.6 over HTTP with OAuth bearer auth.
// Transient failures (network, 5xx) are retried with bounded backoff; any
// other non-success response surfaces as *APIError.
type Client struct {
	cfg    config.OSMConfig
	client *http.Client
}

// NewClient creates an API client for cfg.
func NewClient(cfg config.OSMConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

// OpenChangeset opens a changeset carrying meta and returns its identifier.
func (c *Client) OpenChangeset(ctx context.Context, meta ChangesetMeta) (int64, error) {
	body, err := encodeChangeset(meta)
	if err != nil {
		return 0, fmt.Errorf("failed to encode changeset metadata: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, "/api/0.6/changeset/create", body)
	if err != nil {
		return 0, err
	}

	id, err := strconv.ParseInt(strings.TrimSpace(string(resp)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected changeset create response %q: %w", resp, err)
	}
	return id, nil
}

// UploadChanges atomically uploads every modify operation of an open
// changeset in one call: both kind-homogeneous operation lists travel in a
// single osmChange document. A non-success response means the whole
// changeset content is rejected; no partial commit is assumed.
func (c *Client) UploadChanges(ctx context.Context, changesetID int64, nodes, relations []Element) error {
	if len(nodes)+len(relations) == 0 {
		return nil
	}

	body, err := encodeChange(c.cfg.CreatedBy, changesetID, nodes, relations)
	if err != nil {
		return fmt.Errorf("failed to encode change batch: %w", err)
	}

	path := fmt.Sprintf("/api/0.6/changeset/%d/upload", changesetID)
	if _, err := c.do(ctx, http.MethodPost, path, body); err != nil {
		return err
	}
	return nil
}

// CloseChangeset closes an open changeset. Changesets are terminal once
// closed; a failed close is reported but the identifier stays valid.
func (c *Client) CloseChangeset(ctx context.Context, changesetID int64) error {
	path := fmt.Sprintf("/api/0.6/changeset/%d/close", changesetID)
	_, err := c.do(ctx, http.MethodPut, path, nil)
	return err
}

// ChangesetURL returns the human-facing URL of a changeset, for logs.
func (c *Client) ChangesetURL(changesetID int64) string {
	return fmt.Sprintf("%s/changeset/%d", strings.TrimSuffix(c.cfg.APIHost, "/"), changesetID)
}

// do issues one API request with auth and bounded retry on transient
// failures. 4xx responses are permanent: retrying a rejected changeset call
// within the run is never wanted.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	url := strings.TrimSuffix(c.cfg.APIHost, "/") + path

	var out []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "text/xml; charset=utf-8")
		req.Header.Set("User-Agent", c.cfg.CreatedBy)
		if c.cfg.OAuthToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.OAuthToken)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			out = data
			return nil
		case resp.StatusCode >= 500:
			return &APIError{Status: resp.StatusCode, Op: method + " " + path, Body: strings.TrimSpace(string(data))}
		default:
			return backoff.Permanent(&APIError{Status: resp.StatusCode, Op: method + " " + path, Body: strings.TrimSpace(string(data))})
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return out, nil
}
