package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/cloo-solutions/ragbot/internal/metrics"
)

// classifyError maps go-openai failures onto domain errors. HTTP 429 becomes
// domain.ErrRateLimited so callers can decide to back off; everything else is
// domain.ErrUpstream. Context errors pass through unchanged.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		cause := fmt.Errorf("openai API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return domain.Wrap(domain.ErrRateLimited, cause)
		}
		return domain.Wrap(domain.ErrUpstream, cause)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		cause := fmt.Errorf("openai request error %d: %s", reqErr.HTTPStatusCode, detail)
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return domain.Wrap(domain.ErrRateLimited, cause)
		}
		return domain.Wrap(domain.ErrUpstream, cause)
	}

	return domain.Wrap(domain.ErrUpstream, err)
}

// statusLabel returns the metrics outcome for a classified error.
func statusLabel(err error) string {
	if errors.Is(err, domain.ErrRateLimited) {
		return metrics.StatusRateLimited
	}
	return metrics.StatusError
}

// extractDetail pulls "detail" or "error.message" out of a non-standard
// error body, as returned by some OpenAI-compatible servers.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	return parsed.Error.Message
}
