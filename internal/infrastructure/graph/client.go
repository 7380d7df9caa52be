package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/entrasecure/entrasecure/internal/observability/metrics"
	"github.com/entrasecure/entrasecure/internal/reliability/circuitbreaker"
	"github.com/entrasecure/entrasecure/internal/reliability/retry"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Client is a thin REST wrapper over Microsoft Graph with retry and circuit
// breaker protection. It centralizes headers, pagination and error typing;
// it never decides authorization.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
	retryCfg *retry.Config
	breaker  *circuitbreaker.CircuitBreaker
}

// NewClient creates a Graph client against baseURL (DefaultBaseURL when empty)
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	cb := circuitbreaker.New(5, 2, 30*time.Second)
	cb.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warn("graph circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	cfg := retry.DefaultConfig()
	cfg.RetryIf = retryable

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:   logger,
		retryCfg: cfg,
		breaker:  cb,
	}
}

// listEnvelope is the Graph collection shape: a value array plus an optional
// continuation link
type listEnvelope struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Get performs a GET and returns the raw JSON body
func (c *Client) Get(ctx context.Context, path, token string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, token, nil)
}

// List performs a GET over a collection endpoint, following @odata.nextLink
// continuations, and returns the merged value array. An absent or empty
// collection yields an empty slice, never nil.
func (c *Client) List(ctx context.Context, path, token string) ([]json.RawMessage, error) {
	items := []json.RawMessage{}
	next := path
	for next != "" {
		body, err := c.do(ctx, http.MethodGet, next, token, nil)
		if err != nil {
			return nil, err
		}
		var env listEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode graph collection %s: %w", path, err)
		}
		items = append(items, env.Value...)
		next = env.NextLink
	}
	return items, nil
}

// Post performs a POST with a JSON body. 204 and empty-body responses are
// success with a nil payload.
func (c *Client) Post(ctx context.Context, path, token string, body any) (json.RawMessage, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode graph request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	return c.do(ctx, http.MethodPost, path, token, payload)
}

// Delete performs a DELETE; any 2xx is success
func (c *Client) Delete(ctx context.Context, path, token string) error {
	_, err := c.do(ctx, http.MethodDelete, path, token, nil)
	return err
}

// ActivateDirectoryRole activates a built-in role from its template so
// members can be assigned to it. The known failure mode (a template that
// only exists implicitly) surfaces as *ImplicitRoleError.
func (c *Client) ActivateDirectoryRole(ctx context.Context, token, roleTemplateID string) error {
	_, err := c.Post(ctx, "/directoryRoles", token, map[string]string{
		"roleTemplateId": roleTemplateID,
	})
	if err != nil {
		var ge *Error
		if errors.As(err, &ge) {
			return classifyActivation(ge, roleTemplateID)
		}
		return err
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body io.Reader) (json.RawMessage, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("graph temporarily unavailable (circuit breaker open)")
	}

	// body readers cannot be replayed; buffer once so retries resend the
	// same payload
	var payload []byte
	if body != nil {
		var err error
		if payload, err = io.ReadAll(body); err != nil {
			return nil, fmt.Errorf("read graph request body: %w", err)
		}
	}

	result, err := retry.Do(ctx, c.retryCfg, c.logger, method+" "+path, func(ctx context.Context) (json.RawMessage, error) {
		return c.doOnce(ctx, method, path, token, payload)
	})
	if err != nil {
		c.breaker.RecordFailure()
		return nil, err
	}
	c.breaker.RecordSuccess()
	return result, nil
}

func (c *Client) doOnce(ctx context.Context, method, path, token string, payload []byte) (json.RawMessage, error) {
	url := path
	if !strings.HasPrefix(path, "http") {
		url = c.baseURL + path
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveGraphRequest(method, "transport_error", time.Since(start))
		return nil, fmt.Errorf("graph %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	metrics.ObserveGraphRequest(method, strconv.Itoa(resp.StatusCode), time.Since(start))
	c.logger.Debug("graph request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read graph response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ge := &Error{StatusCode: resp.StatusCode, Method: method, Path: path}
		var env errorEnvelope
		if json.Unmarshal(data, &env) == nil {
			ge.Code = env.Error.Code
			ge.Message = env.Error.Message
		}
		return nil, ge
	}

	if resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil, nil
	}
	return data, nil
}
