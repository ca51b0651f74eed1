package backend

import (
	"context"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/blueman82/go-counsel/internal/errs"
)

// AnthropicConfig configures the "anthropic" HTTP backend profile,
// which uses the anthropic-sdk-go client rather than this package's
// generic chat-completions shape.
type AnthropicConfig struct {
	BackendID string
	APIKey    string // falls back to ANTHROPIC_API_KEY
	MaxTokens int
}

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// AnthropicAdapter calls the Anthropic Messages API directly. It
// carries the same retry semantics as HTTPAdapter, reimplemented here
// because the SDK does its own transport.
type AnthropicAdapter struct {
	cfg    AnthropicConfig
	client anthropic.Client
}

func NewAnthropicAdapter(cfg AnthropicConfig) (*AnthropicAdapter, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil, errs.Validation("anthropic backend %q: ANTHROPIC_API_KEY not set", cfg.BackendID)
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	return &AnthropicAdapter{
		cfg:    cfg,
		client: anthropic.NewClient(option.WithAPIKey(key)),
	}, nil
}

func (a *AnthropicAdapter) BackendID() string { return a.cfg.BackendID }

func (a *AnthropicAdapter) Invoke(ctx context.Context, prompt, model string, opts InvokeOptions) (string, error) {
	full := BuildPrompt(prompt, opts.Context)
	if model == "" {
		model = defaultAnthropicModel
	}

	policy := DefaultRetryPolicy()
	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries+1; attempt++ {
		msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: int64(a.cfg.MaxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(full)),
			},
		})
		if err == nil {
			return extractAnthropicText(msg), nil
		}
		lastErr = err
		if !IsTransient(err.Error()) || attempt > policy.MaxRetries {
			break
		}
		if sleepErr := policy.Sleep(ctx, attempt); sleepErr != nil {
			return "", sleepErr
		}
	}
	return "", errs.BackendInvocation(lastErr, "anthropic messages.new")
}

func extractAnthropicText(msg *anthropic.Message) string {
	if msg == nil {
		return ""
	}
	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out
}
