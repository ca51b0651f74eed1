package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/blueman82/go-counsel/internal/errs"
	"github.com/blueman82/go-counsel/internal/log"
	"go.uber.org/zap"
)

// HTTPConfig describes one HTTP chat-completion backend entry.
type HTTPConfig struct {
	BackendID  string
	BaseURL    string
	APIKey     string
	Headers    map[string]string
	Timeout    time.Duration
	MaxRetries int
	MaxTokens  int

	// Model, when set, overrides the caller-supplied model id on every
	// invocation. The factory sets it to the fallback model when a cli
	// backend resolves to the gateway, so callers keep addressing the
	// backend by its configured (CLI-oriented) model name while the
	// gateway receives a model id it actually serves.
	Model string

	// ReasoningModelPrefixes selects, by model-name prefix, an
	// alternate "input -> output" request/response schema exposed by
	// reasoning-style endpoints.
	ReasoningModelPrefixes []string
}

// chatRequest is the standard chat-completions shape most HTTP
// backends accept.
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Stream    bool          `json:"stream"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// reasoningRequest/-Response model the "input -> output" shape used by
// reasoning-style endpoints selected via ReasoningModelPrefixes.
type reasoningRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type reasoningResponse struct {
	Output string `json:"output"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// HTTPAdapter posts to a configured chat-completions (or reasoning)
// endpoint. The reasoning request/response schema is selected by a
// model-name-prefix predicate on the same adapter instance.
type HTTPAdapter struct {
	cfg    HTTPConfig
	client *http.Client
	log    *zap.Logger
}

func NewHTTPAdapter(cfg HTTPConfig) (*HTTPAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, errs.Validation("http adapter %q: base_url is required", cfg.BackendID)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultRetryPolicy().MaxRetries
	}
	return &HTTPAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.With(zap.String("backend", cfg.BackendID)),
	}, nil
}

func (a *HTTPAdapter) BackendID() string { return a.cfg.BackendID }

func (a *HTTPAdapter) usesReasoningSchema(model string) bool {
	for _, p := range a.cfg.ReasoningModelPrefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func (a *HTTPAdapter) Invoke(ctx context.Context, prompt, model string, opts InvokeOptions) (string, error) {
	if a.cfg.Model != "" {
		model = a.cfg.Model
	}
	full := BuildPrompt(prompt, opts.Context)
	policy := DefaultRetryPolicy()
	policy.MaxRetries = a.cfg.MaxRetries

	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries+1; attempt++ {
		text, status, err := a.call(ctx, full, model)
		if err == nil {
			return text, nil
		}
		lastErr = err
		retriable := status >= 500 || status == 429
		if !retriable || attempt > policy.MaxRetries {
			break
		}
		a.log.Warn("retriable http status, retrying",
			zap.Int("status", status), zap.Int("attempt", attempt))
		if sleepErr := policy.Sleep(ctx, attempt); sleepErr != nil {
			return "", sleepErr
		}
	}
	return "", lastErr
}

func (a *HTTPAdapter) call(ctx context.Context, prompt, model string) (text string, status int, err error) {
	var body []byte
	reasoning := a.usesReasoningSchema(model)
	if reasoning {
		body, err = json.Marshal(reasoningRequest{Model: model, Input: prompt})
	} else {
		body, err = json.Marshal(chatRequest{
			Model:     model,
			Messages:  []chatMessage{{Role: "user", Content: prompt}},
			Stream:    false,
			MaxTokens: a.cfg.MaxTokens,
		})
	}
	if err != nil {
		return "", 0, errs.BackendInvocation(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", 0, errs.BackendInvocation(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}
	for k, v := range a.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, errs.Timeout("http request cancelled: %v", err)
		}
		return "", 0, errs.Transient(err, "http request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", resp.StatusCode, errs.BackendInvocation(err, "read response body")
	}

	if resp.StatusCode >= 500 || resp.StatusCode == 429 {
		return "", resp.StatusCode, errs.Transient(
			fmt.Errorf("status %d", resp.StatusCode), "%s", firstNonEmptyLine(string(raw)))
	}
	if resp.StatusCode >= 400 {
		return "", resp.StatusCode, errs.BackendInvocation(
			fmt.Errorf("status %d", resp.StatusCode), "%s", firstNonEmptyLine(string(raw)))
	}

	if reasoning {
		var rr reasoningResponse
		if err := json.Unmarshal(raw, &rr); err != nil {
			return "", resp.StatusCode, errs.BackendInvocation(err, "decode reasoning response")
		}
		if rr.Error != nil {
			return "", resp.StatusCode, errs.BackendInvocation(nil, "%s", rr.Error.Message)
		}
		return rr.Output, resp.StatusCode, nil
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", resp.StatusCode, errs.BackendInvocation(err, "decode chat response")
	}
	if cr.Error != nil {
		return "", resp.StatusCode, errs.BackendInvocation(nil, "%s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", resp.StatusCode, errs.BackendInvocation(nil, "empty choices array")
	}
	return cr.Choices[0].Message.Content, resp.StatusCode, nil
}
