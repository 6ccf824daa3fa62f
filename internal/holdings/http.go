package holdings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/pricestream/internal/model"
)

// APIError represents a non-2xx response from a holdings endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("holdings api error %d: %s", e.StatusCode, e.Message)
}

// HTTPProvider fetches holdings from a REST endpoint returning
// {"holdings": [{"symbol": "AAPL", "quantity": 100, "averageCost": 150}]}.
// It does not retry; the Loader owns the retry policy.
type HTTPProvider struct {
	url        string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// NewHTTPProvider creates a provider for the given endpoint URL.
func NewHTTPProvider(url string, opts ...HTTPOption) *HTTPProvider {
	p := &HTTPProvider{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(p *HTTPProvider) {
		p.httpClient.Timeout = d
	}
}

// WithBearerToken sets the Authorization header sent with each request.
func WithBearerToken(token string) HTTPOption {
	return func(p *HTTPProvider) {
		p.token = token
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(p *HTTPProvider) {
		p.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(p *HTTPProvider) {
		p.httpClient = hc
	}
}

type holdingsResponse struct {
	Holdings []model.Holding `json:"holdings"`
}

// Fetch performs one GET request.
func (p *HTTPProvider) Fetch(ctx context.Context) ([]model.Holding, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	var result holdingsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	p.logger.Debug("fetched holdings",
		"url", p.url,
		"count", len(result.Holdings),
		"duration", time.Since(start),
	)
	return result.Holdings, nil
}
