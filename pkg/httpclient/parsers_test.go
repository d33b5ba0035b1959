package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestParseAnthropicHeaders(t *testing.T) {
	reset := time.Now().Add(30 * time.Second).UTC().Truncate(time.Second)

	tests := []struct {
		name    string
		headers map[string]string
		check   func(t *testing.T, info *RateLimitInfo)
	}{
		{
			name:    "empty_headers",
			headers: map[string]string{},
			check: func(t *testing.T, info *RateLimitInfo) {
				if info.RetryAfter != 0 || !info.ResetAt.IsZero() {
					t.Errorf("Expected zero info, got %+v", info)
				}
			},
		},
		{
			name: "retry_after_seconds",
			headers: map[string]string{
				"Retry-After": "30",
			},
			check: func(t *testing.T, info *RateLimitInfo) {
				if info.RetryAfter != 30*time.Second {
					t.Errorf("RetryAfter = %v, want 30s", info.RetryAfter)
				}
			},
		},
		{
			name: "rfc3339_reset",
			headers: map[string]string{
				"Anthropic-Ratelimit-Requests-Reset": reset.Format(time.RFC3339),
			},
			check: func(t *testing.T, info *RateLimitInfo) {
				if !info.ResetAt.Equal(reset) {
					t.Errorf("ResetAt = %v, want %v", info.ResetAt, reset)
				}
			},
		},
		{
			name: "remaining_requests",
			headers: map[string]string{
				"Anthropic-Ratelimit-Requests-Remaining": "42",
			},
			check: func(t *testing.T, info *RateLimitInfo) {
				if info.RequestsRemaining != 42 {
					t.Errorf("RequestsRemaining = %d, want 42", info.RequestsRemaining)
				}
			},
		},
		{
			name: "invalid_retry_after",
			headers: map[string]string{
				"Retry-After": "soon",
			},
			check: func(t *testing.T, info *RateLimitInfo) {
				if info.RetryAfter != 0 {
					t.Errorf("RetryAfter = %v, want 0", info.RetryAfter)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			tt.check(t, ParseAnthropicHeaders(h))
		})
	}
}

func TestParseOpenAIHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		check   func(t *testing.T, info *RateLimitInfo)
	}{
		{
			name: "retry_after",
			headers: map[string]string{
				"Retry-After": "5",
			},
			check: func(t *testing.T, info *RateLimitInfo) {
				if info.RetryAfter != 5*time.Second {
					t.Errorf("RetryAfter = %v, want 5s", info.RetryAfter)
				}
			},
		},
		{
			name: "duration_style_reset",
			headers: map[string]string{
				"X-Ratelimit-Reset-Requests": "6m0s",
			},
			check: func(t *testing.T, info *RateLimitInfo) {
				if info.ResetAt.IsZero() {
					t.Error("Expected ResetAt to be set from duration header")
				}
				if until := time.Until(info.ResetAt); until < 5*time.Minute || until > 7*time.Minute {
					t.Errorf("ResetAt %v from now, want ~6m", until)
				}
			},
		},
		{
			name: "remaining_counters",
			headers: map[string]string{
				"X-Ratelimit-Remaining-Requests": "99",
				"X-Ratelimit-Remaining-Tokens":   "1000",
			},
			check: func(t *testing.T, info *RateLimitInfo) {
				if info.RequestsRemaining != 99 {
					t.Errorf("RequestsRemaining = %d, want 99", info.RequestsRemaining)
				}
				if info.TokensRemaining != 1000 {
					t.Errorf("TokensRemaining = %d, want 1000", info.TokensRemaining)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			tt.check(t, ParseOpenAIHeaders(h))
		})
	}
}

func TestParseGeminiHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "12")

	info := ParseGeminiHeaders(h)
	if info.RetryAfter != 12*time.Second {
		t.Errorf("RetryAfter = %v, want 12s", info.RetryAfter)
	}

	if got := ParseGeminiHeaders(http.Header{}); got.RetryAfter != 0 {
		t.Errorf("RetryAfter = %v, want 0 for empty headers", got.RetryAfter)
	}
}
