package gradient

import (
	"net/http"
	"testing"
	"time"
)

func TestRetryAfterFromHeader(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", 0},
		{"integer seconds", "5", 5 * time.Second},
		{"fractional seconds", "2.5", 2500 * time.Millisecond},
		{"zero", "0", 0},
		{"negative", "-3", 0},
		{"garbage", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryAfterFromHeader(tt.value); got != tt.want {
				t.Fatalf("retryAfterFromHeader(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestRetryAfterFromHeaderHTTPDate(t *testing.T) {
	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	got := retryAfterFromHeader(future)
	if got < 28*time.Second || got > 30*time.Second {
		t.Fatalf("retryAfterFromHeader(future date) = %v, want ~30s", got)
	}

	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	if got := retryAfterFromHeader(past); got != 0 {
		t.Fatalf("retryAfterFromHeader(past date) = %v, want 0", got)
	}
}

func TestRetryAfterFromBody(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want time.Duration
	}{
		{"top-level numeric", map[string]any{"retry_after": 3.0}, 3 * time.Second},
		{"camel case", map[string]any{"retryAfter": 1.5}, 1500 * time.Millisecond},
		{"nested in error", map[string]any{"error": map[string]any{"retry_after": 2.0}}, 2 * time.Second},
		{"nested in meta", map[string]any{"meta": map[string]any{"retry_after": 4.0}}, 4 * time.Second},
		{"numeric string", map[string]any{"retry_after": "6"}, 6 * time.Second},
		{"zero ignored", map[string]any{"retry_after": 0.0}, 0},
		{"absent", map[string]any{"error": "nope"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryAfterFromBody(tt.data); got != tt.want {
				t.Fatalf("retryAfterFromBody() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractReply(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{
			"message content",
			map[string]any{"message": map[string]any{"content": "hi"}},
			"hi",
		},
		{
			"response output",
			map[string]any{"response": map[string]any{"output": "out"}},
			"out",
		},
		{
			"response output_text",
			map[string]any{"response": map[string]any{"output_text": "text"}},
			"text",
		},
		{
			"nested data message",
			map[string]any{"data": map[string]any{"message": map[string]any{"content": "deep"}}},
			"deep",
		},
		{
			"fallback to raw",
			map[string]any{"unexpected": "shape"},
			`{"unexpected":"shape"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractReply(tt.data); got != tt.want {
				t.Fatalf("extractReply() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractEndpointReply(t *testing.T) {
	openAIShape := map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": "from choices"}},
		},
	}
	if got := extractEndpointReply(openAIShape); got != "from choices" {
		t.Fatalf("extractEndpointReply() = %q, want from choices", got)
	}

	textShape := map[string]any{
		"choices": []any{map[string]any{"text": "plain text"}},
	}
	if got := extractEndpointReply(textShape); got != "plain text" {
		t.Fatalf("extractEndpointReply() = %q, want plain text", got)
	}

	// Falls through to the control-plane paths.
	fallback := map[string]any{"message": map[string]any{"content": "cp"}}
	if got := extractEndpointReply(fallback); got != "cp" {
		t.Fatalf("extractEndpointReply() = %q, want cp", got)
	}
}
