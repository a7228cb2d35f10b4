package binding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
	"sigs.k8s.io/yaml"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/metrics"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/validate"
)

const (
	generateYAMLPath = "/api/bp/generate-yaml"
	quickConnectPath = "/api/bp/quick-connect"

	opGenerateYAML = "generate_yaml"
	opQuickConnect = "quick_connect"

	// maxErrorBody caps how much of a failed response is kept in the error.
	maxErrorBody = 4096
)

// Backend is the binding-policy API the session talks to.
type Backend interface {
	GenerateYAML(ctx context.Context, req models.BindingPolicyRequest) (*models.YAMLPreviewResponse, error)
	QuickConnect(ctx context.Context, req models.BindingPolicyRequest) error
}

// ClientConfig configures the HTTP backend client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// RateLimit is the sustained requests per second; 0 disables limiting.
	RateLimit float64
	Burst     int
}

// Client calls the binding-policy backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

// NewClient creates a backend client. Requests are traced and rate limited.
func NewClient(cfg ClientConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: limiter,
		log:     log,
	}
}

// GenerateYAML asks the backend to render the policy for req. The returned YAML is
// checked to parse; documents that are not Kubernetes objects produce warnings.
func (c *Client) GenerateYAML(ctx context.Context, req models.BindingPolicyRequest) (*models.YAMLPreviewResponse, error) {
	body, err := c.post(ctx, opGenerateYAML, generateYAMLPath, req)
	if err != nil {
		return nil, err
	}
	var out models.YAMLPreviewResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, c.fail(opGenerateYAML, &BackendError{Operation: opGenerateYAML, Body: "decode response: " + err.Error()})
	}
	if strings.TrimSpace(out.YAML) == "" {
		return nil, c.fail(opGenerateYAML, &BackendError{Operation: opGenerateYAML, Body: "empty yaml in response"})
	}
	if _, err := yaml.YAMLToJSON([]byte(out.YAML)); err != nil {
		return nil, c.fail(opGenerateYAML, &BackendError{Operation: opGenerateYAML, Body: "invalid yaml: " + err.Error()})
	}
	warnings, err := validate.PolicyYAMLWarnings(out.YAML)
	if err != nil {
		return nil, c.fail(opGenerateYAML, &BackendError{Operation: opGenerateYAML, Body: "invalid yaml: " + err.Error()})
	}
	out.Warnings = append(out.Warnings, warnings...)
	metrics.BindingBackendRequestsTotal.WithLabelValues(opGenerateYAML, "success").Inc()
	return &out, nil
}

// QuickConnect creates the binding policy. Any 2xx response is success.
func (c *Client) QuickConnect(ctx context.Context, req models.BindingPolicyRequest) error {
	if _, err := c.post(ctx, opQuickConnect, quickConnectPath, req); err != nil {
		return err
	}
	metrics.BindingBackendRequestsTotal.WithLabelValues(opQuickConnect, "success").Inc()
	return nil
}

func (c *Client) post(ctx context.Context, op, path string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.fail(op, fmt.Errorf("%s rate limit: %w", op, err))
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(op, &BackendError{Operation: op, Body: err.Error()})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(op, &BackendError{Operation: op, StatusCode: resp.StatusCode, Body: "read response: " + err.Error()})
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, c.fail(op, &BackendError{Operation: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))})
	}
	return body, nil
}

func (c *Client) fail(op string, err error) error {
	metrics.BindingBackendRequestsTotal.WithLabelValues(op, "error").Inc()
	c.log.Warn("binding backend request failed", "operation", op, "error", err)
	return err
}
