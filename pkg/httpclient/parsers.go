package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// RateLimitInfo carries whatever rate-limit state a provider reported in its
// response headers. Zero fields mean the provider did not say.
type RateLimitInfo struct {
	RetryAfter        time.Duration
	ResetAt           time.Time
	RequestsRemaining int
	TokensRemaining   int
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string) time.Duration {
	if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// ParseAnthropicHeaders extracts rate-limit info from Anthropic response
// headers. Reset headers are RFC3339 timestamps.
func ParseAnthropicHeaders(headers http.Header) *RateLimitInfo {
	info := &RateLimitInfo{}

	if ra := headers.Get("retry-after"); ra != "" {
		info.RetryAfter = parseRetryAfter(ra)
	}

	for _, h := range []string{
		"anthropic-ratelimit-requests-reset",
		"anthropic-ratelimit-input-tokens-reset",
		"anthropic-ratelimit-output-tokens-reset",
	} {
		if v := headers.Get(h); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				info.ResetAt = t
				break
			}
		}
	}

	if v := headers.Get("anthropic-ratelimit-requests-remaining"); v != "" {
		info.RequestsRemaining, _ = strconv.Atoi(v)
	}
	if v := headers.Get("anthropic-ratelimit-input-tokens-remaining"); v != "" {
		info.TokensRemaining, _ = strconv.Atoi(v)
	}

	return info
}

// ParseOpenAIHeaders extracts rate-limit info from OpenAI-compatible response
// headers. Reset headers carry Go-style durations ("1s", "6m0s").
func ParseOpenAIHeaders(headers http.Header) *RateLimitInfo {
	info := &RateLimitInfo{}

	if ra := headers.Get("Retry-After"); ra != "" {
		info.RetryAfter = parseRetryAfter(ra)
	}

	for _, h := range []string{
		"x-ratelimit-reset-requests",
		"x-ratelimit-reset-tokens",
	} {
		if v := headers.Get(h); v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				info.ResetAt = time.Now().Add(d)
				break
			}
		}
	}

	if v := headers.Get("x-ratelimit-remaining-requests"); v != "" {
		info.RequestsRemaining, _ = strconv.Atoi(v)
	}
	if v := headers.Get("x-ratelimit-remaining-tokens"); v != "" {
		info.TokensRemaining, _ = strconv.Atoi(v)
	}

	return info
}

// ParseGeminiHeaders extracts rate-limit info from Gemini response headers.
// Gemini only reports Retry-After.
func ParseGeminiHeaders(headers http.Header) *RateLimitInfo {
	info := &RateLimitInfo{}
	if ra := headers.Get("Retry-After"); ra != "" {
		info.RetryAfter = parseRetryAfter(ra)
	}
	return info
}
