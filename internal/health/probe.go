package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Readiness endpoints exposed by each service's REST API
const (
	QdrantReadyPath   = "/readyz"
	ChromaReadyPath   = "/api/v2/heartbeat"
	WeaviateReadyPath = "/v1/.well-known/ready"
)

// Prober checks HTTP readiness endpoints
type Prober struct {
	client *http.Client
}

// NewProber creates a prober whose single requests time out after timeout
func NewProber(timeout time.Duration) *Prober {
	return &Prober{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Check performs one GET and requires a 200 response
func (p *Prober) Check(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// WaitReady polls url every interval until it answers 200 or ctx ends.
// It returns the last check error when ctx ends first.
func (p *Prober) WaitReady(ctx context.Context, url string, interval time.Duration) error {
	for {
		err := p.Check(ctx, url)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not ready: %w", url, err)
		case <-time.After(interval):
		}
	}
}

// URL joins a base URL and a readiness path
func URL(base, path string) string {
	return strings.TrimSuffix(base, "/") + path
}
