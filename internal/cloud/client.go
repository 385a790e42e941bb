// Package cloud fetches fleet-wide defaults from the hosted worker
// service: the baseline device configuration, NVS provisioning
// defaults, the firmware release feed and timezone data. The gateway
// fetches once at startup and serves the snapshot from memory; a
// failed fetch is not fatal, the default-backed routes just come up
// empty.
package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ardenhall/voicegw/internal/infrastructure/logging"
)

const maxResponseSize = 4 << 20 // 4 MiB per document

// Defaults is the snapshot of cloud-served documents, kept raw so the
// API can relay them without reshaping.
type Defaults struct {
	Config   json.RawMessage
	NVS      json.RawMessage
	Releases json.RawMessage
	TZ       json.RawMessage
}

// Client talks to the worker service over plain HTTPS.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logging.Logger
}

// NewClient creates a cloud client for the given worker base URL.
func NewClient(baseURL string, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "cloud"),
	}
}

// FetchDefaults retrieves all four default documents. Any single
// failure fails the whole fetch; callers treat that as a degraded start
// rather than an error.
func (c *Client) FetchDefaults(ctx context.Context) (*Defaults, error) {
	config, err := c.get(ctx, "/api/config?type=config")
	if err != nil {
		return nil, fmt.Errorf("fetching default config: %w", err)
	}
	nvs, err := c.get(ctx, "/api/config?type=nvs")
	if err != nil {
		return nil, fmt.Errorf("fetching default nvs: %w", err)
	}
	releases, err := c.get(ctx, "/api/release?format=was")
	if err != nil {
		return nil, fmt.Errorf("fetching releases: %w", err)
	}
	tz, err := c.get(ctx, "/api/asset?type=tz")
	if err != nil {
		return nil, fmt.Errorf("fetching tz data: %w", err)
	}

	c.logger.Info("fetched cloud defaults", "base_url", c.baseURL)
	return &Defaults{Config: config, NVS: nvs, Releases: releases, TZ: tz}, nil
}

// get performs one GET and returns the body after validating it parses
// as JSON, so a worker outage page never gets cached as a document.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body cleanup

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: reading body: %w", path, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s: response is not valid JSON", path)
	}
	return body, nil
}
