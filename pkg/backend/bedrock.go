package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/blueman82/go-counsel/internal/errs"
)

// BedrockConfig configures the "bedrock" HTTP-style backend profile.
// When AccessKeyID and SecretAccessKey are both set they are used as
// static credentials; otherwise the SDK's default credential chain
// (env vars, shared config, instance role) applies.
type BedrockConfig struct {
	BackendID       string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	MaxTokens       int
}

const defaultBedrockModel = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"

// bedrockInvokeBody is Bedrock's Anthropic-on-Bedrock request shape.
type bedrockInvokeBody struct {
	AnthropicVersion string                 `json:"anthropic_version"`
	MaxTokens        int                    `json:"max_tokens"`
	Messages         []bedrockInvokeMessage `json:"messages"`
}

type bedrockInvokeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockInvokeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// BedrockAdapter invokes a model via Amazon Bedrock's runtime API.
type BedrockAdapter struct {
	cfg    BedrockConfig
	client *bedrockruntime.Client
}

func NewBedrockAdapter(ctx context.Context, cfg BedrockConfig) (*BedrockAdapter, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errs.Validation("bedrock backend %q: load aws config: %v", cfg.BackendID, err)
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	return &BedrockAdapter{
		cfg:    cfg,
		client: bedrockruntime.NewFromConfig(awsCfg),
	}, nil
}

func (a *BedrockAdapter) BackendID() string { return a.cfg.BackendID }

func (a *BedrockAdapter) Invoke(ctx context.Context, prompt, model string, opts InvokeOptions) (string, error) {
	full := BuildPrompt(prompt, opts.Context)
	if model == "" {
		model = defaultBedrockModel
	}

	body, err := json.Marshal(bedrockInvokeBody{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        a.cfg.MaxTokens,
		Messages:         []bedrockInvokeMessage{{Role: "user", Content: full}},
	})
	if err != nil {
		return "", errs.BackendInvocation(err, "marshal bedrock request")
	}

	policy := DefaultRetryPolicy()
	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries+1; attempt++ {
		out, err := a.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(model),
			ContentType: aws.String("application/json"),
			Body:        body,
		})
		if err == nil {
			var resp bedrockInvokeResponse
			if jsonErr := json.Unmarshal(out.Body, &resp); jsonErr != nil {
				return "", errs.BackendInvocation(jsonErr, "decode bedrock response")
			}
			var text string
			for _, c := range resp.Content {
				text += c.Text
			}
			return text, nil
		}
		lastErr = err
		if !IsTransient(err.Error()) || attempt > policy.MaxRetries {
			break
		}
		if sleepErr := policy.Sleep(ctx, attempt); sleepErr != nil {
			return "", sleepErr
		}
	}
	return "", errs.BackendInvocation(lastErr, fmt.Sprintf("bedrock invoke-model %s", model))
}
