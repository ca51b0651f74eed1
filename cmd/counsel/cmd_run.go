package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/blueman82/go-counsel/internal/app"
	"github.com/blueman82/go-counsel/internal/config"
	"github.com/blueman82/go-counsel/pkg/domain"
	"github.com/blueman82/go-counsel/pkg/surface"
)

var (
	deliberateRequestFile string

	queryText           string
	queryContradictions bool
	queryDecisionID     string
	queryLimit          int

	analyzeParticipant string
)

var deliberateCmd = &cobra.Command{
	Use:   "deliberate",
	Short: "Run one deliberation from a YAML request file",
	Long: `deliberate loads the request from --request, runs the full round loop
against the configured backends, and prints the DeliberationResult as JSON.
The transcript path in the result points at the markdown file on disk.`,
	RunE: runDeliberate,
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the decision graph",
	Long: `query searches past decisions. Exactly one of --text, --contradictions,
--decision-id selects the mode: similar decisions, contradiction pairs, or an
evolution timeline.`,
	RunE: runQuery,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Aggregate voting and convergence statistics from the decision graph",
	RunE:  runAnalyze,
}

func init() {
	deliberateCmd.Flags().StringVar(&deliberateRequestFile, "request", "", "path to the YAML request file (required)")
	deliberateCmd.MarkFlagRequired("request")

	queryCmd.Flags().StringVar(&queryText, "text", "", "find decisions similar to this text")
	queryCmd.Flags().BoolVar(&queryContradictions, "contradictions", false, "find contradicting decision pairs")
	queryCmd.Flags().StringVar(&queryDecisionID, "decision-id", "", "walk the evolution chain from this decision")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 5, "maximum results")

	analyzeCmd.Flags().StringVar(&analyzeParticipant, "participant", "", "scope the analysis to one participant")

	rootCmd.AddCommand(deliberateCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(analyzeCmd)
}

// requestFile is the YAML shape of a --request file.
type requestFile struct {
	Question     string `yaml:"question"`
	Rounds       int    `yaml:"rounds"`
	Mode         string `yaml:"mode"`
	Context      string `yaml:"context"`
	Participants []struct {
		Backend         string `yaml:"backend"`
		Model           string `yaml:"model"`
		Stance          string `yaml:"stance"`
		ReasoningEffort string `yaml:"reasoning_effort"`
	} `yaml:"participants"`
}

func loadRequest(path string, registry *config.ModelRegistry) (domain.DeliberateRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.DeliberateRequest{}, fmt.Errorf("reading request file: %w", err)
	}
	var rf requestFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return domain.DeliberateRequest{}, fmt.Errorf("parsing request file %s: %w", path, err)
	}

	req := domain.DeliberateRequest{
		Question: rf.Question,
		Rounds:   rf.Rounds,
		Mode:     domain.Mode(rf.Mode),
		Context:  rf.Context,
	}
	for _, p := range rf.Participants {
		stance := domain.Stance(p.Stance)
		if p.Stance == "" {
			stance = domain.StanceNeutral
		}
		req.Participants = append(req.Participants, domain.Participant{
			BackendID:       p.Backend,
			ModelID:         registry.Resolve(p.Backend, p.Model),
			Stance:          stance,
			ReasoningEffort: p.ReasoningEffort,
		})
	}
	return req, nil
}

func buildApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load(cfgFile, projectRoot)
	if err != nil {
		return nil, err
	}
	return app.Build(cmd.Context(), cfg)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runDeliberate(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	req, err := loadRequest(deliberateRequestFile, a.Registry)
	if err != nil {
		return err
	}
	resp, err := a.Surface.Deliberate(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	req := surface.QueryDecisionsRequest{Limit: queryLimit}
	if queryText != "" {
		req.QueryText = &queryText
	}
	req.FindContradictions = queryContradictions
	if queryDecisionID != "" {
		req.DecisionID = &queryDecisionID
	}

	resp, err := a.Surface.QueryDecisions(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	req := surface.AnalyzeDecisionsRequest{}
	if analyzeParticipant != "" {
		req.Participant = &analyzeParticipant
	}
	resp, err := a.Surface.AnalyzeDecisions(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(resp)
}
