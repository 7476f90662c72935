// Package renderer calls the external render engine.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cuongbtq/courtbot/internal/domain"
)

// RenderSpec is the request body understood by the render engine.
type RenderSpec struct {
	OutputPath      string         `json:"output_path"`
	Music           string         `json:"music"`
	ResolutionScale int            `json:"resolution_scale"`
	Frames          []domain.Frame `json:"frames"`
}

// HTTPClient renders clips through the engine's HTTP endpoint.
type HTTPClient struct {
	baseURL         string
	resolutionScale int
	client          *http.Client
}

// NewHTTPClient creates a render engine client. A zero timeout means the
// render call is never cut short.
func NewHTTPClient(baseURL string, timeout time.Duration, resolutionScale int) *HTTPClient {
	if resolutionScale <= 0 {
		resolutionScale = 2
	}
	return &HTTPClient{
		baseURL:         strings.TrimRight(baseURL, "/"),
		resolutionScale: resolutionScale,
		client:          &http.Client{Timeout: timeout},
	}
}

// RenderClip asks the engine to render frames into outputPath and blocks
// until it answers.
func (c *HTTPClient) RenderClip(ctx context.Context, frames []domain.Frame, outputPath, music string) error {
	body, err := json.Marshal(RenderSpec{
		OutputPath:      outputPath,
		Music:           music,
		ResolutionScale: c.resolutionScale,
		Frames:          frames,
	})
	if err != nil {
		return fmt.Errorf("failed to encode render spec: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("render engine unreachable: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("render engine http %d: %s", res.StatusCode, strings.TrimSpace(string(excerpt)))
	}
	return nil
}
