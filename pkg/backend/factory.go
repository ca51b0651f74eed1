package backend

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/blueman82/go-counsel/internal/errs"
	"github.com/blueman82/go-counsel/internal/log"
	"go.uber.org/zap"
)

// Type selects which adapter variant an Entry builds.
type Type string

const (
	TypeCLI       Type = "cli"
	TypeHTTP      Type = "http"
	TypeAnthropic Type = "anthropic"
	TypeBedrock   Type = "bedrock"
)

// Entry is one backend's configuration, as loaded from the adapters
// section of the config file.
type Entry struct {
	BackendID string
	Type      Type

	// cli
	Command string
	Args    []string

	// http / anthropic / bedrock
	BaseURL         string
	APIKey          string
	Headers         map[string]string
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	Timeout    time.Duration
	MaxRetries int

	// FallbackModel is the model id to use on the gateway HTTP backend
	// when Command is absent from PATH.
	FallbackModel string
}

// GatewayConfig names the multi-provider HTTP gateway used as the CLI
// fallback target, and the env var its API key is read from.
type GatewayConfig struct {
	BaseURL   string
	APIKeyEnv string
	APIKey    string
}

var lookupCache sync.Map // command -> bool

// commandAvailable performs a cached PATH lookup; availability doesn't
// change within a process lifetime often enough to justify re-probing.
func commandAvailable(command string) bool {
	if v, ok := lookupCache.Load(command); ok {
		return v.(bool)
	}
	_, err := exec.LookPath(command)
	ok := err == nil
	lookupCache.Store(command, ok)
	return ok
}

// Factory builds concrete Adapters from Entry configuration with a
// deterministic decision table resolved once at startup — (configured
// backend, CLI available?, API key present?) -> concrete adapter —
// rather than a dynamic try-one-then-another fallback chain. The full
// table is logged.
type Factory struct {
	gateway GatewayConfig
	log     *zap.Logger
}

func NewFactory(gateway GatewayConfig) *Factory {
	if gateway.APIKey == "" && gateway.APIKeyEnv != "" {
		gateway.APIKey = os.Getenv(gateway.APIKeyEnv)
	}
	return &Factory{gateway: gateway, log: log.Component("backend.factory")}
}

// Decision is one row of the logged startup decision table.
type Decision struct {
	BackendID    string
	CLIAvailable bool
	Resolved     Type
	Reason       string
}

// Build constructs adapters for every entry, logging the full decision
// table, and returns the adapters keyed by backend id plus the table
// itself for inspection/testing.
func (f *Factory) Build(ctx context.Context, entries []Entry) (map[string]Adapter, []Decision, error) {
	adapters := make(map[string]Adapter, len(entries))
	decisions := make([]Decision, 0, len(entries))

	for _, e := range entries {
		adapter, d, err := f.buildOne(ctx, e)
		decisions = append(decisions, d)
		if err != nil {
			return nil, decisions, err
		}
		adapters[e.BackendID] = adapter
	}

	for _, d := range decisions {
		f.log.Info("backend decision",
			zap.String("backend", d.BackendID),
			zap.Bool("cli_available", d.CLIAvailable),
			zap.String("resolved", string(d.Resolved)),
			zap.String("reason", d.Reason),
		)
	}
	return adapters, decisions, nil
}

func (f *Factory) buildOne(ctx context.Context, e Entry) (Adapter, Decision, error) {
	d := Decision{BackendID: e.BackendID}

	switch e.Type {
	case TypeCLI:
		d.CLIAvailable = commandAvailable(e.Command)
		if d.CLIAvailable {
			d.Resolved = TypeCLI
			d.Reason = "command found on PATH"
			return NewCLIAdapter(CLIConfig{
				BackendID:       e.BackendID,
				Command:         e.Command,
				Args:            e.Args,
				HardTimeout:     e.Timeout,
				MaxRetries:      e.MaxRetries,
			}), d, nil
		}
		if e.FallbackModel != "" && f.gateway.APIKey != "" {
			d.Resolved = TypeHTTP
			d.Reason = "cli absent, falling back to gateway with " + e.FallbackModel
			a, err := NewHTTPAdapter(HTTPConfig{
				BackendID:  e.BackendID,
				BaseURL:    f.gateway.BaseURL,
				APIKey:     f.gateway.APIKey,
				MaxRetries: e.MaxRetries,
				Model:      e.FallbackModel,
			})
			return a, d, err
		}
		d.Reason = "cli absent and no gateway fallback configured"
		return nil, d, errs.Validation("backend %q: command %q not found and no fallback available", e.BackendID, e.Command)

	case TypeHTTP:
		d.Resolved = TypeHTTP
		d.Reason = "configured as http"
		a, err := NewHTTPAdapter(HTTPConfig{
			BackendID:  e.BackendID,
			BaseURL:    e.BaseURL,
			APIKey:     e.APIKey,
			Headers:    e.Headers,
			Timeout:    e.Timeout,
			MaxRetries: e.MaxRetries,
		})
		return a, d, err

	case TypeAnthropic:
		d.Resolved = TypeAnthropic
		d.Reason = "configured as anthropic"
		a, err := NewAnthropicAdapter(AnthropicConfig{BackendID: e.BackendID, APIKey: e.APIKey})
		return a, d, err

	case TypeBedrock:
		d.Resolved = TypeBedrock
		d.Reason = "configured as bedrock"
		a, err := NewBedrockAdapter(ctx, BedrockConfig{
			BackendID:       e.BackendID,
			Region:          e.Region,
			AccessKeyID:     e.AccessKeyID,
			SecretAccessKey: e.SecretAccessKey,
		})
		return a, d, err

	default:
		d.Reason = "unknown type"
		return nil, d, errs.Validation("backend %q: unknown type %q", e.BackendID, e.Type)
	}
}
