package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"attendance-guard/internal/liveness"
	"attendance-guard/internal/models"
)

// FaceModelClient calls the face-match and anti-spoofing model service
type FaceModelClient struct {
	http *resty.Client
}

// NewFaceModelClient creates a client for the model at baseURL. Per-call
// deadlines come from the caller's context.
func NewFaceModelClient(baseURL, apiKey string) *FaceModelClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &FaceModelClient{http: client}
}

type analyzeRequest struct {
	Image     string                   `json:"image"`
	Reference string                   `json:"reference"`
	CheckType models.LivenessCheckType `json:"check_type"`
}

// Analyze compares image against the enrolled reference and classifies
// presentation attacks
func (c *FaceModelClient) Analyze(ctx context.Context, image, reference string, checkType models.LivenessCheckType) (*liveness.Analysis, error) {
	var out liveness.Analysis
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(analyzeRequest{Image: image, Reference: reference, CheckType: checkType}).
		SetResult(&out).
		Post("/api/analyze")
	if err != nil {
		return nil, fmt.Errorf("failed to execute analyze request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("face analyze failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return &out, nil
}

// HealthCheck verifies the model service is reachable
func (c *FaceModelClient) HealthCheck(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/api/healthz")
	if err != nil {
		return fmt.Errorf("failed to execute health check request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
