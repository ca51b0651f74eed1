// Package config loads the orchestrator's YAML configuration: adapter
// entries, the deliberation and decision-graph sections, and the
// transcripts directory. Each Load call uses its own *viper.Viper
// instance rather than the package-level singleton so multiple configs
// can be loaded within one process.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/blueman82/go-counsel/internal/errs"
)

// AdapterConfig is one backend's configuration, as loaded from the
// adapters section keyed by backend id.
type AdapterConfig struct {
	Type            string            `mapstructure:"type"`
	Command         string            `mapstructure:"command"`
	Args            []string          `mapstructure:"args"`
	BaseURL         string            `mapstructure:"base_url"`
	APIKey          string            `mapstructure:"api_key"`
	Headers         map[string]string `mapstructure:"headers"`
	Region          string            `mapstructure:"region"`
	AccessKeyID     string            `mapstructure:"access_key_id"`
	SecretAccessKey string            `mapstructure:"secret_access_key"`
	TimeoutSeconds  int               `mapstructure:"timeout"`
	MaxRetries      int               `mapstructure:"max_retries"`
	FallbackModel   string            `mapstructure:"fallback_model"`
}

// Timeout returns TimeoutSeconds as a time.Duration.
func (a AdapterConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// ConvergenceDetectionConfig mirrors the
// deliberation.convergence_detection config block.
type ConvergenceDetectionConfig struct {
	Enabled                     bool    `mapstructure:"enabled"`
	SemanticSimilarityThreshold float64 `mapstructure:"semantic_similarity_threshold"`
	DivergenceThreshold         float64 `mapstructure:"divergence_threshold"`
	MinRoundsBeforeCheck        int     `mapstructure:"min_rounds_before_check"`
	ConsecutiveStableRounds     int     `mapstructure:"consecutive_stable_rounds"`
	StanceStabilityThreshold    float64 `mapstructure:"stance_stability_threshold"`
	ResponseLengthDropThreshold float64 `mapstructure:"response_length_drop_threshold"`
}

// EarlyStoppingConfig mirrors the deliberation.early_stopping config
// block.
type EarlyStoppingConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	Threshold        float64 `mapstructure:"threshold"`
	RespectMinRounds bool    `mapstructure:"respect_min_rounds"`
}

// DeliberationConfig bundles the deliberation section.
type DeliberationConfig struct {
	ConvergenceDetection ConvergenceDetectionConfig `mapstructure:"convergence_detection"`
	EarlyStopping        EarlyStoppingConfig        `mapstructure:"early_stopping"`
	MinRounds            int                        `mapstructure:"min_rounds"`
}

// TierBoundaries holds the retrieval-tier score cutoffs; they must
// satisfy 0 < moderate < strong <= 1.
type TierBoundaries struct {
	Strong   float64 `mapstructure:"strong"`
	Moderate float64 `mapstructure:"moderate"`
}

// DecisionGraphConfig mirrors the decision_graph config section. When
// PostgresDSN is set the graph lives in Postgres and DBPath is
// ignored; otherwise DBPath selects the SQLite file, encrypted when
// EncryptionKey is non-empty.
type DecisionGraphConfig struct {
	Enabled             bool           `mapstructure:"enabled"`
	DBPath              string         `mapstructure:"db_path"`
	PostgresDSN         string         `mapstructure:"postgres_dsn"`
	EncryptionKey       string         `mapstructure:"encryption_key"`
	ContextTokenBudget  int            `mapstructure:"context_token_budget"`
	TierBoundaries      TierBoundaries `mapstructure:"tier_boundaries"`
	QueryWindow         int            `mapstructure:"query_window"`
	MaxContextDecisions int            `mapstructure:"max_context_decisions"`
	ComputeSimilarities bool           `mapstructure:"compute_similarities"`
}

// TranscriptsConfig mirrors the Transcript Writer's directory and
// retention settings.
type TranscriptsConfig struct {
	Dir                string `mapstructure:"dir"`
	RetainUncompressed int    `mapstructure:"retain_uncompressed"`
}

// LoggingConfig selects the process-wide log level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GatewayConfig names the multi-provider HTTP gateway used as the
// fallback target when a cli adapter's command is absent from PATH.
type GatewayConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// TelemetryConfig controls the OTLP trace exporter. An empty endpoint
// disables tracing.
type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
}

// SummarizerPreference pins the model id to use when the named
// backend is chosen for summarization. A backend id alone is not
// enough: the summarizer call must name a concrete model.
type SummarizerPreference struct {
	Backend string `mapstructure:"backend"`
	Model   string `mapstructure:"model"`
}

// SummarizerConfig selects the summarizer's backend preference order.
type SummarizerConfig struct {
	Preference []SummarizerPreference `mapstructure:"preference"`
}

// Config is the fully loaded, path-resolved, env-expanded
// configuration for one orchestrator process.
type Config struct {
	Adapters      map[string]AdapterConfig     `mapstructure:"adapters"`
	Deliberation  DeliberationConfig           `mapstructure:"deliberation"`
	DecisionGraph DecisionGraphConfig          `mapstructure:"decision_graph"`
	Transcripts   TranscriptsConfig            `mapstructure:"transcripts"`
	Logging       LoggingConfig                `mapstructure:"logging"`
	Gateway       GatewayConfig                `mapstructure:"gateway"`
	Telemetry     TelemetryConfig              `mapstructure:"telemetry"`
	Summarizer    SummarizerConfig             `mapstructure:"summarizer"`
	ModelRegistry map[string][]ModelDefinition `mapstructure:"model_registry"`

	// ProjectRoot anchors relative path resolution; it is
	// not itself loaded from the file, it is supplied by the caller.
	ProjectRoot string `mapstructure:"-"`
}

const (
	DefaultConfigName = "counsel"
	envPrefix         = "COUNSEL"
)

// Load reads configuration from cfgFile (or the standard search path
// when empty), applies defaults, resolves ${ENV}/~/relative-path
// references, and validates the result.
func Load(cfgFile, projectRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(projectRoot)
		v.AddConfigPath(".")
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errs.Validation("reading config file %s: %v", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Validation("unmarshaling config: %v", err)
	}
	cfg.ProjectRoot = projectRoot

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deliberation.convergence_detection.enabled", true)
	v.SetDefault("deliberation.convergence_detection.semantic_similarity_threshold", 0.85)
	v.SetDefault("deliberation.convergence_detection.divergence_threshold", 0.4)
	v.SetDefault("deliberation.convergence_detection.min_rounds_before_check", 2)
	v.SetDefault("deliberation.convergence_detection.consecutive_stable_rounds", 2)
	v.SetDefault("deliberation.convergence_detection.stance_stability_threshold", 0.9)
	v.SetDefault("deliberation.convergence_detection.response_length_drop_threshold", 0.5)
	v.SetDefault("deliberation.early_stopping.enabled", true)
	v.SetDefault("deliberation.early_stopping.threshold", 0.66)
	v.SetDefault("deliberation.early_stopping.respect_min_rounds", true)
	v.SetDefault("deliberation.min_rounds", 2)

	v.SetDefault("decision_graph.enabled", true)
	v.SetDefault("decision_graph.db_path", "decisions.db")
	v.SetDefault("decision_graph.context_token_budget", 1500)
	v.SetDefault("decision_graph.tier_boundaries.strong", 0.75)
	v.SetDefault("decision_graph.tier_boundaries.moderate", 0.6)
	v.SetDefault("decision_graph.query_window", 1000)
	v.SetDefault("decision_graph.max_context_decisions", 10)
	v.SetDefault("decision_graph.compute_similarities", true)

	v.SetDefault("transcripts.dir", "transcripts")
	v.SetDefault("transcripts.retain_uncompressed", 50)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("telemetry.service_name", "counsel")
	v.SetDefault("telemetry.insecure", false)
}

var envRefRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv resolves every ${VAR} reference in s, failing with an
// error rather than a silent empty substitution when a referenced
// variable is unset.
func expandEnv(s string) (string, error) {
	var firstErr error
	out := envRefRe.ReplaceAllStringFunc(s, func(m string) string {
		name := envRefRe.FindStringSubmatch(m)[1]
		val, ok := os.LookupEnv(name)
		if !ok && firstErr == nil {
			firstErr = errs.Validation("required environment variable %q is not set", name)
		}
		return val
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// resolve expands ${ENV} references in every adapter string field and
// anchors relative filesystem paths to ProjectRoot.
func (c *Config) resolve() error {
	for id, a := range c.Adapters {
		expanded, err := expandAdapterStrings(a)
		if err != nil {
			return fmt.Errorf("adapter %q: %w", id, err)
		}
		c.Adapters[id] = expanded
	}

	dbPath, err := ResolvePath(c.ProjectRoot, c.DecisionGraph.DBPath)
	if err != nil {
		return err
	}
	c.DecisionGraph.DBPath = dbPath

	if c.DecisionGraph.PostgresDSN, err = expandEnv(c.DecisionGraph.PostgresDSN); err != nil {
		return err
	}
	if c.DecisionGraph.EncryptionKey, err = expandEnv(c.DecisionGraph.EncryptionKey); err != nil {
		return err
	}
	if c.DecisionGraph.EncryptionKey, err = resolveSecret(c.DecisionGraph.EncryptionKey); err != nil {
		return err
	}
	if c.Gateway.APIKey, err = expandEnv(c.Gateway.APIKey); err != nil {
		return err
	}
	if c.Gateway.APIKey, err = resolveSecret(c.Gateway.APIKey); err != nil {
		return err
	}

	transcriptsDir, err := ResolvePath(c.ProjectRoot, c.Transcripts.Dir)
	if err != nil {
		return err
	}
	c.Transcripts.Dir = transcriptsDir

	return nil
}

func expandAdapterStrings(a AdapterConfig) (AdapterConfig, error) {
	var err error
	if a.Command, err = expandEnv(a.Command); err != nil {
		return a, err
	}
	if a.BaseURL, err = expandEnv(a.BaseURL); err != nil {
		return a, err
	}
	if a.APIKey, err = expandEnv(a.APIKey); err != nil {
		return a, err
	}
	if a.APIKey, err = resolveSecret(a.APIKey); err != nil {
		return a, err
	}
	if a.Region, err = expandEnv(a.Region); err != nil {
		return a, err
	}
	if a.AccessKeyID, err = expandEnv(a.AccessKeyID); err != nil {
		return a, err
	}
	if a.SecretAccessKey, err = expandEnv(a.SecretAccessKey); err != nil {
		return a, err
	}
	if a.SecretAccessKey, err = resolveSecret(a.SecretAccessKey); err != nil {
		return a, err
	}
	for k, v := range a.Headers {
		if a.Headers[k], err = expandEnv(v); err != nil {
			return a, err
		}
	}
	return a, nil
}

// ResolvePath expands ~ to the user's home directory and ${ENV}
// references, then anchors a relative result to root rather than the
// process CWD.
func ResolvePath(root, path string) (string, error) {
	expanded, err := expandEnv(path)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(expanded, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errs.Validation("expanding ~ in path %q: %v", path, err)
		}
		expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~"))
	}
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded), nil
	}
	return filepath.Clean(filepath.Join(root, expanded)), nil
}

// Validate checks the cross-field invariants defaults can't enforce:
// tier boundaries must satisfy 0 < moderate < strong <= 1, and every
// adapter must carry a known type.
func (c *Config) Validate() error {
	tb := c.DecisionGraph.TierBoundaries
	if !(0 < tb.Moderate && tb.Moderate < tb.Strong && tb.Strong <= 1) {
		return errs.Validation("decision_graph.tier_boundaries must satisfy 0 < moderate (%v) < strong (%v) <= 1", tb.Moderate, tb.Strong)
	}
	for id, a := range c.Adapters {
		switch a.Type {
		case "cli", "http", "anthropic", "bedrock":
		default:
			return errs.Validation("adapter %q: unknown type %q", id, a.Type)
		}
	}
	return nil
}
