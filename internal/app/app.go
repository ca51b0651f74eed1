// Package app composes a configured orchestrator: it turns a loaded
// Config into the adapter set, similarity service, decision-graph
// store, deliberation engine, and outer Surface, in dependency order.
package app

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/blueman82/go-counsel/internal/config"
	"github.com/blueman82/go-counsel/internal/log"
	"github.com/blueman82/go-counsel/internal/telemetry"
	"github.com/blueman82/go-counsel/pkg/backend"
	"github.com/blueman82/go-counsel/pkg/deliberation"
	"github.com/blueman82/go-counsel/pkg/graph"
	"github.com/blueman82/go-counsel/pkg/similarity"
	"github.com/blueman82/go-counsel/pkg/summarizer"
	"github.com/blueman82/go-counsel/pkg/surface"
	"github.com/blueman82/go-counsel/pkg/tools"
	"github.com/blueman82/go-counsel/pkg/transcript"
)

// App holds everything a running orchestrator process needs, plus the
// shutdown hooks accumulated while building it.
type App struct {
	Surface  *surface.Surface
	Store    graph.Store
	Registry *config.ModelRegistry

	shutdown []func(context.Context) error
}

// Build wires a complete orchestrator from cfg. Callers must invoke
// Close when done; the returned App owns the store connection and the
// telemetry exporter.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Registry: config.NewModelRegistry(cfg.ModelRegistry)}

	if err := setupLogging(cfg.Logging); err != nil {
		return nil, err
	}

	tracerShutdown, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}
	a.shutdown = append(a.shutdown, tracerShutdown)

	_, meterShutdown := telemetry.SetupMetrics()
	a.shutdown = append(a.shutdown, meterShutdown)

	factory := backend.NewFactory(backend.GatewayConfig{
		BaseURL: cfg.Gateway.BaseURL,
		APIKey:  cfg.Gateway.APIKey,
	})
	adapters, _, err := factory.Build(ctx, adapterEntries(cfg))
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	sim := similarity.New(similarity.NewTermWeighted())

	var (
		store     graph.Store
		retriever *graph.Retriever
		persister *graph.Persister
	)
	if cfg.DecisionGraph.Enabled {
		store, err = openStore(ctx, cfg.DecisionGraph)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		a.Store = store
		a.shutdown = append(a.shutdown, func(context.Context) error { return store.Close() })

		cache := graph.NewQueryCache(graph.DefaultCacheTTL, graph.DefaultCacheSize)
		rcfg := graph.DefaultRetrieverConfig()
		rcfg.QueryWindow = cfg.DecisionGraph.QueryWindow
		rcfg.MaxResults = cfg.DecisionGraph.MaxContextDecisions
		rcfg.ContextTokenBudget = cfg.DecisionGraph.ContextTokenBudget
		rcfg.TierBoundaries = graph.TierBoundaries{
			Strong:   cfg.DecisionGraph.TierBoundaries.Strong,
			Moderate: cfg.DecisionGraph.TierBoundaries.Moderate,
		}
		retriever = graph.NewRetriever(store, sim, cache, rcfg)
		persister = graph.NewPersister(store, sim, cache)
	}

	summ, err := summarizer.New(adapters, a.summarizerPreference(cfg, adapters))
	if err != nil {
		log.Warn("no summarizer backend available, deliberations will carry placeholder summaries", zap.Error(err))
		summ = nil
	}

	transcripts, err := transcript.New(cfg.Transcripts.Dir, cfg.Transcripts.RetainUncompressed)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	executor := tools.NewExecutor(
		tools.NewFileReadTool(),
		tools.NewCodeSearchTool(),
		tools.NewFileListTool(),
		tools.NewRunCommandTool(),
	)

	engineCfg := engineConfig(cfg)
	var engineSummarizer deliberation.Summarizer
	if summ != nil {
		engineSummarizer = summ
	}
	engine := deliberation.NewEngine(adapters, sim, executor, retriever, persister, engineSummarizer, transcripts, engineCfg)

	allowed := make(map[string]bool, len(adapters))
	for id := range adapters {
		allowed[id] = true
	}
	a.Surface = surface.New(engine, store, sim, allowed, knownModels(cfg))
	return a, nil
}

// Close releases the store connection and flushes the trace exporter,
// in reverse construction order.
func (a *App) Close(ctx context.Context) error {
	return a.close(ctx)
}

func (a *App) close(ctx context.Context) error {
	var firstErr error
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.shutdown = nil
	return firstErr
}

func setupLogging(cfg config.LoggingConfig) error {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid logging.level %q: %w", cfg.Level, err)
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	log.SetLogger(logger)
	return nil
}

// summarizerPreference maps the config's (backend, model) pairs into
// the summarizer's preference list, falling back to every configured
// adapter in sorted order when the section is absent. A pair with no
// model gets the registry's default model for that backend, so the
// summarization call always names a concrete model where one is known.
func (a *App) summarizerPreference(cfg *config.Config, adapters map[string]backend.Adapter) []summarizer.Preference {
	resolve := func(backendID, model string) summarizer.Preference {
		if model == "" {
			model, _ = a.Registry.Default(backendID)
		}
		return summarizer.Preference{BackendID: backendID, Model: model}
	}

	if len(cfg.Summarizer.Preference) > 0 {
		prefs := make([]summarizer.Preference, 0, len(cfg.Summarizer.Preference))
		for _, p := range cfg.Summarizer.Preference {
			prefs = append(prefs, resolve(p.Backend, p.Model))
		}
		return prefs
	}

	ids := make([]string, 0, len(adapters))
	for id := range adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	prefs := make([]summarizer.Preference, 0, len(ids))
	for _, id := range ids {
		prefs = append(prefs, resolve(id, ""))
	}
	return prefs
}

func adapterEntries(cfg *config.Config) []backend.Entry {
	entries := make([]backend.Entry, 0, len(cfg.Adapters))
	for id, a := range cfg.Adapters {
		entries = append(entries, backend.Entry{
			BackendID:       id,
			Type:            backend.Type(a.Type),
			Command:         a.Command,
			Args:            a.Args,
			BaseURL:         a.BaseURL,
			APIKey:          a.APIKey,
			Headers:         a.Headers,
			Region:          a.Region,
			AccessKeyID:     a.AccessKeyID,
			SecretAccessKey: a.SecretAccessKey,
			Timeout:         a.Timeout(),
			MaxRetries:      a.MaxRetries,
			FallbackModel:   a.FallbackModel,
		})
	}
	return entries
}

func openStore(ctx context.Context, cfg config.DecisionGraphConfig) (graph.Store, error) {
	if cfg.PostgresDSN != "" {
		return graph.NewPostgresStore(ctx, graph.PostgresConfig{DSN: cfg.PostgresDSN}, log.Logger())
	}
	return graph.NewSQLiteStore(ctx, graph.SQLiteConfig{
		Path:          cfg.DBPath,
		EncryptionKey: cfg.EncryptionKey,
	}, log.Logger())
}

func engineConfig(cfg *config.Config) deliberation.EngineConfig {
	ecfg := deliberation.DefaultEngineConfig()
	cd := cfg.Deliberation.ConvergenceDetection
	ecfg.Convergence.Enabled = cd.Enabled
	if cd.SemanticSimilarityThreshold > 0 {
		ecfg.Convergence.Thresholds.SemanticSimilarity = cd.SemanticSimilarityThreshold
	}
	if cd.DivergenceThreshold > 0 {
		ecfg.Convergence.Thresholds.Divergence = cd.DivergenceThreshold
	}
	es := cfg.Deliberation.EarlyStopping
	ecfg.EarlyStopping.Enabled = es.Enabled
	if es.Threshold > 0 {
		ecfg.EarlyStopping.Threshold = es.Threshold
	}
	ecfg.EarlyStopping.MinRounds = 1
	if es.RespectMinRounds {
		ecfg.EarlyStopping.MinRounds = cfg.Deliberation.MinRounds
	}
	ecfg.GraphEnabled = cfg.DecisionGraph.Enabled
	ecfg.WorkingDirectory = cfg.ProjectRoot
	return ecfg
}

func knownModels(cfg *config.Config) map[string][]string {
	if len(cfg.ModelRegistry) == 0 {
		return nil
	}
	known := make(map[string][]string, len(cfg.ModelRegistry))
	for backendID, defs := range cfg.ModelRegistry {
		for _, d := range defs {
			if d.Enabled {
				known[backendID] = append(known[backendID], d.ID)
			}
		}
	}
	return known
}
