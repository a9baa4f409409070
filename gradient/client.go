// Package gradient is the client for the DigitalOcean Gradient AI agent API.
// It supports two modes: the control-plane API (explicit sessions, messages
// posted per session) and direct agent-endpoint mode (OpenAI-style chat
// completions against the agent's own URL). Every outbound request first
// acquires a token from the shared rate limiter, and 429 responses feed the
// server's Retry-After hint back into it.
package gradient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vpanteleev/gradient-bot/ratelimit"
)

const defaultBaseURL = "https://api.digitalocean.com/v2/ai"

// APIError is a non-2xx response from the Gradient API.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gradient API returned %d: %s", e.Status, e.Detail)
}

// Response is the agent's reply to a message.
type Response struct {
	Message string
	Raw     map[string]any
}

// Config configures a Client. Either APIKey+AgentID (control-plane mode) or
// AgentEndpoint+AgentAccessKey (endpoint mode) must be set; endpoint mode
// wins when both are present.
type Config struct {
	APIKey  string
	AgentID string
	BaseURL string

	AgentEndpoint  string
	AgentAccessKey string

	Timeout     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// Limiter gates every request attempt. Nil means unthrottled.
	Limiter *ratelimit.Limiter

	// OnOverload, if set, is called after each 429 with the effective
	// Retry-After hint (zero when the server gave none).
	OnOverload func(retryAfter time.Duration)

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

type Client struct {
	apiKey  string
	agentID string
	baseURL string

	endpoint    string
	accessKey   string
	useEndpoint bool

	http        *http.Client
	limiter     *ratelimit.Limiter
	onOverload  func(time.Duration)
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

func New(cfg Config) (*Client, error) {
	c := &Client{
		apiKey:      cfg.APIKey,
		agentID:     cfg.AgentID,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		endpoint:    strings.TrimSuffix(cfg.AgentEndpoint, "/"),
		accessKey:   cfg.AgentAccessKey,
		limiter:     cfg.Limiter,
		onOverload:  cfg.OnOverload,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
		maxBackoff:  cfg.MaxBackoff,
	}
	c.useEndpoint = c.endpoint != "" && c.accessKey != ""
	if !c.useEndpoint && (c.apiKey == "" || c.agentID == "") {
		return nil, fmt.Errorf("gradient: need either api key + agent id, or agent endpoint + access key")
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.maxRetries < 0 {
		return nil, fmt.Errorf("gradient: max retries must not be negative")
	}
	if c.baseBackoff <= 0 {
		c.baseBackoff = 500 * time.Millisecond
	}
	if c.maxBackoff <= 0 {
		c.maxBackoff = 60 * time.Second
	}
	c.http = cfg.HTTPClient
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	return c, nil
}

// CreateSession creates a fresh conversation session for the configured
// agent. Endpoint mode has no server-side sessions; a synthetic id is
// returned so callers can still store one per chat.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	if c.useEndpoint {
		sid := fmt.Sprintf("endpoint-%x", [16]byte(uuid.New()))
		slog.Debug("gradient: endpoint mode, generated session id", "session", sid)
		return sid, nil
	}

	url := fmt.Sprintf("%s/agents/%s/sessions", c.baseURL, c.agentID)
	data, err := c.do(ctx, http.MethodPost, url, c.apiKey, nil)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	for _, path := range [][]string{{"session", "id"}, {"id"}, {"session_id"}} {
		if v, ok := lookupPath(data, path...); ok {
			if s := asString(v); s != "" {
				return s, nil
			}
		}
	}
	return "", fmt.Errorf("create session: response did not include a session identifier")
}

// SendMessage sends a user message and returns the assistant reply.
func (c *Client) SendMessage(ctx context.Context, sessionID, message string) (*Response, error) {
	if c.useEndpoint {
		url := c.endpoint + "/api/v1/chat/completions"
		payload := map[string]any{
			"messages":                []map[string]string{{"role": "user", "content": message}},
			"stream":                  false,
			"include_retrieval_info":  false,
			"include_functions_info":  false,
			"include_guardrails_info": false,
		}
		data, err := c.do(ctx, http.MethodPost, url, c.accessKey, payload)
		if err != nil {
			return nil, fmt.Errorf("send message: %w", err)
		}
		return &Response{Message: extractEndpointReply(data), Raw: data}, nil
	}

	url := fmt.Sprintf("%s/sessions/%s/messages", c.baseURL, sessionID)
	payload := map[string]any{"role": "user", "content": message}
	data, err := c.do(ctx, http.MethodPost, url, c.apiKey, payload)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &Response{Message: extractReply(data), Raw: data}, nil
}

// do performs one API call with limiter gating and retries. 429 responses
// register a cooldown on the limiter and are retried with backoff; transport
// errors are retried the same way. Any other non-2xx status returns an
// *APIError without retrying.
func (c *Client) do(ctx context.Context, method, url, bearer string, body any) (map[string]any, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Acquire(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+bearer)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("gradient: request failed", "url", url, "attempt", attempt+1, "err", err)
			if attempt >= c.maxRetries {
				return nil, fmt.Errorf("%s %s: %w", method, url, err)
			}
			if err := c.sleepBackoff(ctx, attempt+1, 0); err != nil {
				return nil, err
			}
			continue
		}

		data := decodeBody(resp)

		if resp.StatusCode == http.StatusTooManyRequests {
			hint := retryAfterFromHeader(resp.Header.Get("Retry-After"))
			if hint <= 0 {
				hint = retryAfterFromBody(data)
			}
			if c.limiter != nil {
				c.limiter.ReportOverload(hint)
			}
			if c.onOverload != nil {
				c.onOverload(hint)
			}
			slog.Warn("gradient: rate limited by upstream",
				"url", url, "attempt", attempt+1, "retry_after", hint)
			if attempt >= c.maxRetries {
				return nil, &APIError{Status: resp.StatusCode, Detail: renderDetail(data)}
			}
			if err := c.sleepBackoff(ctx, attempt+1, hint); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			slog.Error("gradient: API error", "url", url, "status", resp.StatusCode, "detail", renderDetail(data))
			return nil, &APIError{Status: resp.StatusCode, Detail: renderDetail(data)}
		}

		return data, nil
	}
}

// sleepBackoff waits before the next retry: the server hint when given,
// otherwise exponential backoff from baseBackoff, both capped at maxBackoff
// and jittered by up to 10%.
func (c *Client) sleepBackoff(ctx context.Context, attempt int, retryAfter time.Duration) error {
	var wait time.Duration
	if retryAfter > 0 {
		wait = retryAfter
	} else {
		wait = c.baseBackoff << (attempt - 1)
	}
	if wait > c.maxBackoff {
		wait = c.maxBackoff
	}
	wait += time.Duration(rand.Float64() * 0.1 * float64(wait))

	slog.Info("gradient: backing off before retry", "wait", wait, "attempt", attempt)
	timer := time.NewTimer(wait)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// decodeBody reads and closes the response body, returning the JSON object
// or a raw_text wrapper when the body is not JSON.
func decodeBody(resp *http.Response) map[string]any {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return map[string]any{"raw_text": ""}
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		return map[string]any{"raw_text": string(raw)}
	}
	return data
}

func renderDetail(data map[string]any) string {
	if s, ok := data["raw_text"].(string); ok && len(data) == 1 {
		return s
	}
	out, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(out)
}
