// Package fleet talks to the remote fleet endpoint that serves recorded
// routes. Listing pagination is the endpoint's concern; the client consumes
// whatever one listing call returns.
package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client handles communication with the fleet endpoint
type Client interface {
	// ListRoutes returns the routes the endpoint currently offers.
	ListRoutes(ctx context.Context) ([]RouteListing, error)

	// Download fetches url into destPath. The file appears at destPath
	// only after the body was fully written.
	Download(ctx context.Context, url, destPath string) error
}

// fleetClient implements Client using HTTP
type fleetClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new HTTP fleet client
func NewClient(baseURL, token string, timeout time.Duration) Client {
	return &fleetClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListRoutes returns the routes the endpoint currently offers.
func (c *fleetClient) ListRoutes(ctx context.Context) ([]RouteListing, error) {
	url := fmt.Sprintf("%s/v1/routes", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fleet endpoint returned status %d", resp.StatusCode)
	}

	var listings []RouteListing
	if err := json.NewDecoder(resp.Body).Decode(&listings); err != nil {
		return nil, fmt.Errorf("failed to decode route listing: %w", err)
	}

	return listings, nil
}

// Download fetches url into destPath via a temporary .part file.
func (c *fleetClient) Download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fleet endpoint returned status %d", resp.StatusCode)
	}

	partPath := destPath + ".part"
	file, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", partPath, err)
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(partPath)
		return fmt.Errorf("failed to write %s: %w", partPath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(partPath)
		return fmt.Errorf("failed to close %s: %w", partPath, err)
	}

	// A partially written file must never look like a finished download.
	if err := os.Rename(partPath, destPath); err != nil {
		os.Remove(partPath)
		return fmt.Errorf("failed to finalize %s: %w", destPath, err)
	}

	return nil
}
