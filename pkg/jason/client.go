// Package jason is a client for the Jason GNSS processing API.
//
// Calls that reach the service return the decoded payload together with the
// HTTP status code; a non-200 answer is not a Go error. Errors are reserved
// for local validation, missing credentials, transport and decoding failures.
package jason

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jason/internal/auth"
	"jason/internal/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production endpoint of the Jason API.
const DefaultBaseURL = "http://api-argonaut.rokubun.cat/api"

const instrumentationName = "jason/pkg/jason"

var (
	// ErrAuthentication is returned before any request when credentials are missing.
	ErrAuthentication = errors.New("authentication error")
	// ErrValidation is returned before any request when arguments are invalid.
	ErrValidation = errors.New("validation error")
	// ErrResultsUnavailable is returned by Download when the process has no results yet.
	ErrResultsUnavailable = errors.New("results not available")
	// ErrNoArchive is returned by Download when a finished process has no zip result.
	ErrNoArchive = errors.New("no zip result")
)

// APIError represents a failed artifact transfer.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Config holds everything needed to build a Client.
type Config struct {
	BaseURL string

	// Explicit credentials; empty values are read from JASON_API_KEY / JASON_SECRET_TOKEN
	APIKey      string
	SecretToken string
	LookupEnv   auth.LookupFunc

	// HTTPClient defaults to a client with a 30s timeout
	HTTPClient *http.Client

	// Requests per second, 0 means unlimited
	RateLimit float64

	// Where Download writes results, empty for the working directory
	DownloadDir string

	// Reported to the status endpoint by APIHealth
	Platform   string
	AppVersion string

	Logger *slog.Logger
}

// Client handles API calls to the Jason service.
type Client struct {
	baseURL        string
	creds          auth.Credentials
	httpClient     *http.Client
	downloadClient *http.Client
	limiter        *rate.Limiter
	downloadDir    string
	platform       string
	appVersion     string
	log            *slog.Logger
	tracer         trace.Tracer
	requests       metric.Int64Counter
}

// NewClient creates a new client from cfg.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	platform := cfg.Platform
	if platform == "" {
		platform = "cli"
	}
	appVersion := cfg.AppVersion
	if appVersion == "" {
		appVersion = "dev"
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	requests, err := otel.Meter(instrumentationName).Int64Counter(
		"jason_api_requests",
		metric.WithDescription("Requests sent to the Jason API"),
	)
	if err != nil {
		log.Warn("failed to create request counter", "error", err)
	}

	return &Client{
		baseURL:    baseURL,
		creds:      auth.Resolve(cfg.APIKey, cfg.SecretToken, cfg.LookupEnv),
		httpClient: httpClient,
		// Result archives can be large; the context bounds the transfer instead.
		downloadClient: &http.Client{Transport: httpClient.Transport},
		limiter:        limiter,
		downloadDir:    cfg.DownloadDir,
		platform:       platform,
		appVersion:     appVersion,
		log:            log,
		tracer:         otel.Tracer(instrumentationName),
		requests:       requests,
	}
}

// Credentials returns the resolved credentials.
func (c *Client) Credentials() auth.Credentials {
	return c.creds
}

func (c *Client) requireCredentials(needToken bool) error {
	if err := c.creds.Require(needToken); err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	return nil
}

// newRequest builds an authenticated API request for path with the common headers.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("accept", "application/json")
	req.Header.Set("ApiKey", c.creds.APIKey)
	if reqID := logger.RequestIDFromContext(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}
	return req, nil
}

// send throttles, traces and issues req.
func (c *Client) send(client *http.Client, req *http.Request, operation string) (*http.Response, trace.Span, error) {
	ctx, span := c.tracer.Start(req.Context(), "jason."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URL.Path),
		),
	)
	req = req.WithContext(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.End()
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}

	logger.FromContext(ctx, c.log).Debug("sending request",
		"operation", operation, "method", req.Method, "path", req.URL.Path)

	resp, err := client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		c.countRequest(ctx, operation, 0)
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.countRequest(ctx, operation, resp.StatusCode)
	return resp, span, nil
}

// do sends req and decodes a JSON body into out. A body that cannot be
// decoded is only an error for a 200 answer.
func (c *Client) do(req *http.Request, operation string, out any) (int, error) {
	resp, span, err := c.send(c.httpClient, req, operation)
	if err != nil {
		return 0, err
	}
	defer span.End()
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if len(respBody) > 0 && out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			if resp.StatusCode == http.StatusOK {
				span.RecordError(err)
				return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
			}
			c.log.Debug("non-JSON error response", "operation", operation,
				"status_code", resp.StatusCode, "body", string(respBody))
		}
	}

	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, resp.Status)
	}
	return resp.StatusCode, nil
}

func (c *Client) countRequest(ctx context.Context, operation string, statusCode int) {
	if c.requests == nil {
		return
	}
	c.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Int("status_code", statusCode),
	))
}
