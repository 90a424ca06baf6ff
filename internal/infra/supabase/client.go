// Package supabase implements the billing store over the Supabase PostgREST API.
// Every call goes through a circuit breaker and retry with backoff and gets
// its own span.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// response is a raw PostgREST reply.
type response struct {
	status int
	body   []byte
	header http.Header
}

// statusError is a non-2xx PostgREST reply that is worth retrying (5xx, 429).
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase returned status %d: %s", e.Status, e.Body)
}

// postgrestError is the JSON error body PostgREST sends on 4xx.
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// send executes one authenticated request against /rest/v1/<path>.
func (c *Client) send(ctx context.Context, method, path string, payload any, prefer string) (*response, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceRoleKey)
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, classify(resp.StatusCode, body, tableOf(path))
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return &response{status: resp.StatusCode, body: body, header: resp.Header}, nil
}

// classify turns a non-2xx reply into a domain error. Constraint failures
// (409, SQLSTATE class 23) and other client errors are permanent; the rest
// is a retryable statusError.
func classify(status int, body []byte, table string) error {
	var pgErr postgrestError
	_ = json.Unmarshal(body, &pgErr)

	switch {
	case status == http.StatusConflict || strings.HasPrefix(pgErr.Code, "23"):
		detail := pgErr.Message
		if pgErr.Details != "" {
			detail += ": " + pgErr.Details
		}
		if detail == "" {
			detail = string(body)
		}
		return &domain.ErrConstraintViolation{Resource: table, Detail: detail}
	case status == http.StatusNotFound:
		return &domain.ErrNotFound{Resource: table}
	case status == http.StatusTooManyRequests || status >= 500:
		return &statusError{Status: status, Body: string(body)}
	default:
		msg := pgErr.Message
		if msg == "" {
			msg = string(body)
		}
		return &domain.ErrValidation{Field: table, Message: msg}
	}
}

func tableOf(path string) string {
	if i := strings.IndexAny(path, "?/"); i >= 0 {
		return path[:i]
	}
	return path
}

// call runs fn under a span, the circuit breaker and retry. Permanent domain
// errors pass through unchanged; everything else becomes ErrExternalService.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := tracer.Start(ctx, "Supabase."+op)
	defer span.End()
	span.SetAttributes(attrs...)

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			return fn(ctx)
		})
	})
	if err == nil {
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: "supabase"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: "supabase/" + op}
	}
	if !resilience.Retryable(err) {
		return err
	}
	return &domain.ErrExternalService{Service: "supabase/" + op, Err: err}
}

// decodeRows unmarshals a PostgREST array body.
func decodeRows[T any](body []byte) ([]T, error) {
	var rows []T
	if len(bytes.TrimSpace(body)) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

// Ping checks that PostgREST answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "Ping", func(ctx context.Context) error {
		_, err := c.send(ctx, http.MethodGet, "clients?select=id&limit=1", nil, "")
		return err
	})
}
