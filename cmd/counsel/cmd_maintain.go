package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blueman82/go-counsel/internal/config"
	"github.com/blueman82/go-counsel/internal/log"
	"github.com/blueman82/go-counsel/pkg/graph"
)

var (
	maintainSchedule string
	maintainOnce     bool
	maintainWindow   time.Duration
)

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run the decision-graph health check, once or on a schedule",
	Long: `maintain opens the configured decision-graph store and reports its
HealthReport (decision/stance/similarity counts, orphan stances, out-of-range
similarity scores, database size). With --once it runs a single pass and
exits; otherwise it runs on the cron schedule given by --schedule until
interrupted.`,
	RunE: runMaintain,
}

func init() {
	maintainCmd.Flags().StringVar(&maintainSchedule, "schedule", "0 */6 * * *", "cron schedule (standard 5-field) for recurring health checks")
	maintainCmd.Flags().BoolVar(&maintainOnce, "once", false, "run a single health check and exit, ignoring --schedule")
	maintainCmd.Flags().DurationVar(&maintainWindow, "growth-window", 24*time.Hour, "window used for the decisions-in-window health metric")
}

func runMaintain(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile, projectRoot)
	if err != nil {
		return err
	}

	var store graph.Store
	if cfg.DecisionGraph.PostgresDSN != "" {
		store, err = graph.NewPostgresStore(cmd.Context(), graph.PostgresConfig{DSN: cfg.DecisionGraph.PostgresDSN}, log.Logger())
	} else {
		store, err = graph.NewSQLiteStore(cmd.Context(), graph.SQLiteConfig{
			Path:          cfg.DecisionGraph.DBPath,
			EncryptionKey: cfg.DecisionGraph.EncryptionKey,
		}, log.Logger())
	}
	if err != nil {
		return fmt.Errorf("opening decision graph store: %w", err)
	}
	defer store.Close()

	if maintainOnce {
		return runHealthCheck(cmd.Context(), store)
	}

	if _, err := cron.ParseStandard(maintainSchedule); err != nil {
		return fmt.Errorf("invalid --schedule %q: %w", maintainSchedule, err)
	}

	engine := cron.New()
	if _, err := engine.AddFunc(maintainSchedule, func() {
		if err := runHealthCheck(context.Background(), store); err != nil {
			log.Warn("scheduled health check failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("scheduling health check: %w", err)
	}
	engine.Start()
	defer func() { <-engine.Stop().Done() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	log.Info("maintenance scheduler running", zap.String("schedule", maintainSchedule))
	<-sigCh
	return nil
}

func runHealthCheck(ctx context.Context, store graph.Store) error {
	report, err := store.Health(ctx, maintainWindow)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	log.Info("decision graph health",
		zap.Int64("decisions", report.DecisionCount),
		zap.Int64("stances", report.StanceCount),
		zap.Int64("similarities", report.SimilarityCount),
		zap.Int64("database_size_bytes", report.DatabaseSizeBytes),
		zap.Int64("orphan_stances", report.OrphanStanceCount),
		zap.Int64("invalid_scores", report.InvalidScoreCount),
		zap.Int64("decisions_in_window", report.DecisionsInWindow),
	)
	if report.OrphanStanceCount > 0 || report.InvalidScoreCount > 0 {
		return fmt.Errorf("decision graph health check found %d orphan stances and %d invalid similarity scores",
			report.OrphanStanceCount, report.InvalidScoreCount)
	}
	return nil
}
