package gradient

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// replyPaths are the known locations of the assistant reply in control-plane
// responses, tried in order.
var replyPaths = [][]string{
	{"message", "content"},
	{"response", "output"},
	{"response", "output_text"},
	{"data", "message", "content"},
}

// lookupPath walks nested JSON objects along path.
func lookupPath(data map[string]any, path ...string) (any, bool) {
	var node any = data
	for _, key := range path {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return node, true
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// extractReply pulls the assistant text out of a control-plane payload,
// falling back to the rendered raw body when no known path matches.
func extractReply(data map[string]any) string {
	for _, path := range replyPaths {
		if v, ok := lookupPath(data, path...); ok {
			if s := asString(v); s != "" {
				return s
			}
		}
	}
	slog.Warn("gradient: falling back to raw response for reply text")
	return renderDetail(data)
}

// extractEndpointReply handles the OpenAI-style shape returned by direct
// agent endpoints: choices[0].message.content, then choices[0].text, then
// the control-plane paths.
func extractEndpointReply(data map[string]any) string {
	if choices, ok := data["choices"].([]any); ok && len(choices) > 0 {
		if first, ok := choices[0].(map[string]any); ok {
			if msg, ok := first["message"].(map[string]any); ok {
				if s := asString(msg["content"]); s != "" {
					return s
				}
			}
			if s := asString(first["text"]); s != "" {
				return s
			}
		}
	}
	return extractReply(data)
}

// retryAfterFromHeader parses a Retry-After header value: either a number of
// seconds or an HTTP-date. Unparseable or negative values yield zero.
func retryAfterFromHeader(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return 0
	}
	if d := time.Until(t); d > 0 {
		return d
	}
	return 0
}

// retryAfterPaths are the body locations some deployments use instead of the
// Retry-After header.
var retryAfterPaths = [][]string{
	{"retry_after"},
	{"retryAfter"},
	{"error", "retry_after"},
	{"error", "retryAfter"},
	{"meta", "retry_after"},
}

func retryAfterFromBody(data map[string]any) time.Duration {
	for _, path := range retryAfterPaths {
		v, ok := lookupPath(data, path...)
		if !ok {
			continue
		}
		var secs float64
		switch n := v.(type) {
		case float64:
			secs = n
		case string:
			parsed, err := strconv.ParseFloat(n, 64)
			if err != nil {
				continue
			}
			secs = parsed
		default:
			continue
		}
		if secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return 0
}
