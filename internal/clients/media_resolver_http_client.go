package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"story-server/internal/interfaces"

	"go.uber.org/zap"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.MediaResolver = (*HTTPMediaResolverClient)(nil)

// HTTPMediaResolverClient asks the media service which absolute URL an asset
// tag of a story currently maps to. Resolution is best-effort: callers treat
// any error as "not resolved yet" and keep the tag.
type HTTPMediaResolverClient struct {
	baseURL    string // Base URL of the media service (e.g., "http://media-service:8080")
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPMediaResolverClient creates a new HTTP client for the media service.
func NewHTTPMediaResolverClient(baseURL string, logger *zap.Logger) *HTTPMediaResolverClient {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &HTTPMediaResolverClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger.Named("HTTPMediaResolverClient"),
	}
}

// Resolve implements interfaces.MediaResolver.
func (c *HTTPMediaResolverClient) Resolve(ctx context.Context, storySlug, assetTag string) (string, error) {
	log := c.logger.With(zap.String("storySlug", storySlug), zap.String("assetTag", assetTag))

	endpointURL := fmt.Sprintf("%s/internal/media/%s/%s",
		c.baseURL, url.PathEscape(storySlug), url.PathEscape(assetTag))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		log.Error("Failed to create media service request", zap.Error(err))
		return "", fmt.Errorf("failed to create request for media service: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("Failed to execute request to media service", zap.Error(err))
		return "", fmt.Errorf("failed to execute request to media service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		log.Debug("Asset tag not resolved by media service")
		return "", fmt.Errorf("asset %s/%s not resolved", storySlug, assetTag)
	}
	if resp.StatusCode != http.StatusOK {
		log.Warn("Media service returned non-OK status", zap.Int("status_code", resp.StatusCode))
		return "", fmt.Errorf("media service returned status %d", resp.StatusCode)
	}

	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Error("Failed to decode media service response", zap.Error(err))
		return "", fmt.Errorf("failed to decode media service response: %w", err)
	}
	if payload.URL == "" {
		return "", fmt.Errorf("media service returned empty URL for %s/%s", storySlug, assetTag)
	}

	log.Debug("Asset tag resolved", zap.String("url", payload.URL))
	return payload.URL, nil
}
