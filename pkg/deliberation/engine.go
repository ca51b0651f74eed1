// Package deliberation implements the Vote Subprotocol and the
// Deliberation Engine that orchestrates rounds of participant
// invocations, convergence detection, and post-processing.
package deliberation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/blueman82/go-counsel/internal/errs"
	"github.com/blueman82/go-counsel/internal/log"
	"github.com/blueman82/go-counsel/internal/telemetry"
	"github.com/blueman82/go-counsel/pkg/backend"
	"github.com/blueman82/go-counsel/pkg/convergence"
	"github.com/blueman82/go-counsel/pkg/domain"
	"github.com/blueman82/go-counsel/pkg/graph"
	"github.com/blueman82/go-counsel/pkg/similarity"
	"github.com/blueman82/go-counsel/pkg/tools"
)

// Summarizer produces the final consensus/agreements/disagreements/
// recommendation summary for a completed debate. The
// engine depends only on this narrow interface so pkg/summarizer never
// needs to import pkg/deliberation.
type Summarizer interface {
	Summarize(ctx context.Context, req domain.DeliberateRequest, debate []domain.RoundResponse, voting *domain.VotingResult) (domain.Summary, error)
}

// TranscriptWriter renders a completed DeliberationResult to a
// human-readable document and returns the path it was written to.
type TranscriptWriter interface {
	Write(ctx context.Context, req domain.DeliberateRequest, result domain.DeliberationResult) (string, error)
}

// ConvergenceConfig controls whether and how the Convergence Detector
// is consulted.
type ConvergenceConfig struct {
	Enabled    bool
	Thresholds convergence.Thresholds
}

func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{Enabled: true, Thresholds: convergence.DefaultThresholds()}
}

// EarlyStoppingConfig controls model-controlled early stopping.
// MinRounds is a distinct config field rather than a reinterpretation
// of request.rounds: the floor the models must at least debate for is
// an operator setting, not whatever the caller happened to ask for.
type EarlyStoppingConfig struct {
	Enabled   bool
	Threshold float64
	MinRounds int
}

func DefaultEarlyStoppingConfig() EarlyStoppingConfig {
	return EarlyStoppingConfig{Enabled: true, Threshold: 0.66, MinRounds: 2}
}

// EngineConfig bundles every tunable the Deliberation Engine consults.
type EngineConfig struct {
	Convergence      ConvergenceConfig
	EarlyStopping    EarlyStoppingConfig
	Grouping         GroupingConfig
	WorkingDirectory string
	GraphEnabled     bool
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Convergence:   DefaultConvergenceConfig(),
		EarlyStopping: DefaultEarlyStoppingConfig(),
	}
}

// Engine orchestrates rounds of participant invocations, vote
// aggregation, convergence/early-stop detection, summarization,
// transcript writing, and decision-graph persistence. Rounds run
// strictly in order, and participants within a round strictly in
// request order: each invocation sees every response accumulated
// before it, which is what makes the debate see itself.
type Engine struct {
	adapters    map[string]backend.Adapter
	sim         *similarity.Service
	tools       *tools.Executor
	retriever   *graph.Retriever
	persister   *graph.Persister
	summarizer  Summarizer
	transcripts TranscriptWriter
	cfg         EngineConfig
	counters    telemetry.DeliberationCounters
	log         *zap.Logger
}

// NewEngine wires one deliberation run. retriever, persister,
// summarizer, tools, and transcripts may all be nil: a nil retriever
// yields no graph context, a nil persister skips storing the
// deliberation, a nil summarizer yields a placeholder Summary, a nil
// tools executor means no TOOL_REQUEST markers are honored, and a nil
// transcripts writer leaves DeliberationResult.TranscriptPath empty.
func NewEngine(adapters map[string]backend.Adapter, sim *similarity.Service, toolExecutor *tools.Executor, retriever *graph.Retriever, persister *graph.Persister, summarizer Summarizer, transcripts TranscriptWriter, cfg EngineConfig) *Engine {
	if cfg.Convergence.Thresholds == (convergence.Thresholds{}) {
		cfg.Convergence.Thresholds = convergence.DefaultThresholds()
	}
	if cfg.EarlyStopping.Threshold == 0 {
		cfg.EarlyStopping.Threshold = DefaultEarlyStoppingConfig().Threshold
	}
	if cfg.EarlyStopping.MinRounds == 0 {
		cfg.EarlyStopping.MinRounds = DefaultEarlyStoppingConfig().MinRounds
	}
	counters, err := telemetry.NewDeliberationCounters()
	if err != nil {
		log.Warn("deliberation counters unavailable", zap.Error(err))
	}
	return &Engine{
		adapters:    adapters,
		sim:         sim,
		tools:       toolExecutor,
		retriever:   retriever,
		persister:   persister,
		summarizer:  summarizer,
		transcripts: transcripts,
		cfg:         cfg,
		counters:    counters,
		log:         log.Component("deliberation.engine"),
	}
}

// participantTally tracks, per participant identity, how many rounds
// they were invoked in and how many produced a usable (non-error)
// response, to classify the final result.Status.
type participantTally struct {
	invoked int
	usable  int
}

// Deliberate runs the full round loop for one request and returns the
// completed DeliberationResult.
func (e *Engine) Deliberate(ctx context.Context, req domain.DeliberateRequest) (domain.DeliberationResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "deliberation.run", trace.WithAttributes(
		attribute.String("deliberation.mode", string(req.Mode)),
		attribute.Int("deliberation.rounds_requested", req.Rounds),
		attribute.Int("deliberation.participants", len(req.Participants)),
	))
	defer span.End()

	rounds := req.Rounds
	if req.Mode == domain.ModeQuick {
		rounds = 1
	}

	var graphContext string
	if e.cfg.GraphEnabled && e.retriever != nil {
		graphContext = e.retriever.Retrieve(ctx, req.Question)
	}

	var responses []domain.RoundResponse
	var votesByRound [][]domain.Vote
	tallies := make(map[string]*participantTally, len(req.Participants))
	for _, p := range req.Participants {
		tallies[p.Identity()] = &participantTally{}
	}

	detector := convergence.NewDetector(e.sim, e.cfg.Convergence.Thresholds)

	var finalConvergence *domain.ConvergenceInfo
	modelControlledStop := false
	roundsCompleted := 0

	for r := 1; r <= rounds; r++ {
		priorContext := buildRoundContext(responses)
		roundContext := priorContext
		if r == 1 {
			roundContext = combineContext(graphContext, priorContext)
		}
		prompt := req.Question + VoteInstructions

		var roundResponses []domain.RoundResponse
		var roundVotes []domain.Vote

		for _, p := range req.Participants {
			tally := tallies[p.Identity()]
			tally.invoked++

			text, usable := e.invokeOne(ctx, p, prompt, roundContext, req)
			rr := domain.RoundResponse{
				Round:       r,
				Participant: p.Identity(),
				Stance:      p.Stance,
				Text:        text,
				Timestamp:   time.Now(),
			}
			responses = append(responses, rr)
			roundResponses = append(roundResponses, rr)
			if usable {
				tally.usable++
			}

			if activities := runTools(ctx, e.tools, text, e.cfg.WorkingDirectory); len(activities) > 0 {
				e.log.Debug("tool requests executed", zap.String("participant", p.Identity()), zap.Int("count", len(activities)))
			}

			if v, ok := ParseVote(text); ok {
				roundVotes = append(roundVotes, v)
			}
		}
		votesByRound = append(votesByRound, roundVotes)
		roundsCompleted = r
		span.AddEvent("round complete", trace.WithAttributes(
			attribute.Int("round", r),
			attribute.Int("votes", len(roundVotes)),
		))

		if e.cfg.EarlyStopping.Enabled && r >= e.cfg.EarlyStopping.MinRounds {
			if earlyStopFraction(roundVotes) >= e.cfg.EarlyStopping.Threshold && len(roundVotes) > 0 {
				modelControlledStop = true
				break
			}
		}

		if e.cfg.Convergence.Enabled && r >= 2 {
			previous := roundsOf(responses, r-1)
			info, err := detector.Evaluate(ctx, r, previous, roundResponses)
			if err != nil {
				e.log.Warn("convergence evaluation failed", zap.Error(err))
			} else {
				finalConvergence = &info
				if info.Status == domain.StatusConverged {
					break
				}
				if info.Status == domain.StatusImpasse {
					break
				}
			}
		}
	}

	votingResult := TallyVotes(ctx, e.sim, votesByRound, e.cfg.Grouping)
	totalVotes := 0
	for _, c := range votingResult.FinalTally {
		totalVotes += c
	}

	var votingResultPtr *domain.VotingResult
	if totalVotes > 0 {
		vr := votingResult
		votingResultPtr = &vr
	}

	convergenceInfo := finalConvergence
	if totalVotes > 0 {
		status := classifyVoteOutcome(votingResult, totalVotes)
		if convergenceInfo == nil {
			convergenceInfo = &domain.ConvergenceInfo{}
		} else {
			ci := *convergenceInfo
			convergenceInfo = &ci
		}
		convergenceInfo.Status = status
	}

	participantIDs := make([]string, 0, len(req.Participants))
	for _, p := range req.Participants {
		participantIDs = append(participantIDs, p.Identity())
	}

	result := domain.DeliberationResult{
		Status:          classifyStatus(tallies),
		Mode:            req.Mode,
		RoundsCompleted: roundsCompleted,
		RoundsRequested: req.Rounds,
		Participants:    participantIDs,
		VotingResult:    votingResultPtr,
		ConvergenceInfo: convergenceInfo,
		FullDebate:      responses,
	}
	if modelControlledStop {
		e.log.Info("model-controlled early stop", zap.Int("round", roundsCompleted))
	}

	summary, err := e.summarize(ctx, req, responses, votingResultPtr)
	if err != nil {
		e.log.Warn("summarizer failed, using placeholder summary", zap.Error(err))
	}
	result.Summary = &summary

	if e.transcripts != nil {
		path, err := e.transcripts.Write(ctx, req, result)
		if err != nil {
			e.log.Warn("transcript write failed", zap.Error(err))
		} else {
			result.TranscriptPath = path
		}
	}

	if e.persister != nil {
		// The graph write must survive the caller's context being
		// cancelled once the result is ready; the detached context keeps
		// the trace linkage without the cancellation.
		if err := e.persist(telemetry.DetachedContext(ctx), req, result); err != nil {
			e.log.Warn("decision graph persistence failed", zap.Error(err))
		}
	}

	span.SetAttributes(
		attribute.Int("deliberation.rounds_completed", roundsCompleted),
		attribute.String("deliberation.status", string(result.Status)),
	)
	if e.counters.Deliberations != nil {
		e.counters.Deliberations.Add(ctx, 1)
		e.counters.Rounds.Add(ctx, int64(roundsCompleted))
		e.counters.Votes.Add(ctx, int64(totalVotes))
	}
	return result, nil
}

// invokeOne calls one participant's adapter, containing any error as a
// synthetic response entry.
func (e *Engine) invokeOne(ctx context.Context, p domain.Participant, prompt, roundContext string, req domain.DeliberateRequest) (text string, usable bool) {
	adapter, ok := e.adapters[p.BackendID]
	if !ok {
		return errorEntry(errs.BackendInvocation(nil, "unknown backend %q", p.BackendID)), false
	}
	out, err := adapter.Invoke(ctx, prompt, p.ModelID, backend.InvokeOptions{
		Context:          roundContext,
		IsDeliberation:   true,
		WorkingDirectory: e.cfg.WorkingDirectory,
		ReasoningEffort:  p.ReasoningEffort,
	})
	if err != nil {
		return errorEntry(err), false
	}
	return out, true
}

func (e *Engine) summarize(ctx context.Context, req domain.DeliberateRequest, debate []domain.RoundResponse, voting *domain.VotingResult) (domain.Summary, error) {
	if e.summarizer == nil {
		return placeholderSummary(debate), nil
	}
	summary, err := e.summarizer.Summarize(ctx, req, debate, voting)
	if err != nil {
		return placeholderSummary(debate), err
	}
	return summary, nil
}

func (e *Engine) persist(ctx context.Context, req domain.DeliberateRequest, result domain.DeliberationResult) error {
	finalRound := roundsOf(result.FullDebate, result.RoundsCompleted)
	finalResponses := make(map[string]domain.RoundResponse, len(finalRound))
	for _, r := range finalRound {
		finalResponses[r.Participant] = r
	}
	finalVotes := attributeFinalVotes(req.Participants, finalRound)

	node := domain.DecisionNode{
		Question:          req.Question,
		Timestamp:         time.Now(),
		Consensus:         result.Summary.Consensus,
		ConvergenceStatus: convergenceStatusOf(result),
		Participants:      result.Participants,
		TranscriptPath:    result.TranscriptPath,
	}
	if result.VotingResult != nil && result.VotingResult.WinningOption != nil {
		node.WinningOption = *result.VotingResult.WinningOption
	}

	// Persister.Persist clears the retriever's shared L1 cache itself;
	// it holds the same *QueryCache the retriever reads.
	return e.persister.Persist(ctx, graph.PersistInput{
		Node:           node,
		FinalResponses: finalResponses,
		FinalVotes:     finalVotes,
	})
}

// attributeFinalVotes re-parses the final round's responses to recover
// which participant cast which vote, since ParseVote/TallyVotes
// operate on the flattened per-round vote list without attribution.
func attributeFinalVotes(participants []domain.Participant, finalRound []domain.RoundResponse) map[string]domain.Vote {
	byParticipant := make(map[string]string, len(finalRound))
	for _, r := range finalRound {
		byParticipant[r.Participant] = r.Text
	}
	out := make(map[string]domain.Vote)
	for _, p := range participants {
		text, ok := byParticipant[p.Identity()]
		if !ok {
			continue
		}
		if v, ok := ParseVote(text); ok {
			out[p.Identity()] = v
		}
	}
	return out
}

// earlyStopFraction computes the fraction of this round's parsed votes
// with continue_debate == false.
func earlyStopFraction(votes []domain.Vote) float64 {
	if len(votes) == 0 {
		return 0
	}
	stop := 0
	for _, v := range votes {
		if !v.ContinueDebate {
			stop++
		}
	}
	return float64(stop) / float64(len(votes))
}

// classifyVoteOutcome maps a VotingResult onto the vote-driven
// ConvergenceInfo.Status values.
func classifyVoteOutcome(vr domain.VotingResult, totalVotes int) domain.ConvergenceStatus {
	if vr.WinningOption == nil {
		return domain.StatusTie
	}
	if vr.FinalTally[*vr.WinningOption] == totalVotes {
		return domain.StatusUnanimousConsensus
	}
	return domain.StatusMajorityDecision
}

// classifyStatus returns partial when some (not all) participants
// produced zero usable responses across every round they were invoked
// in, failed when none did, and complete otherwise.
func classifyStatus(tallies map[string]*participantTally) domain.ResultStatus {
	if len(tallies) == 0 {
		return domain.ResultFailed
	}
	anyUsable := false
	for _, t := range tallies {
		if t.usable > 0 {
			anyUsable = true
			break
		}
	}
	if !anyUsable {
		return domain.ResultFailed
	}
	for _, t := range tallies {
		if t.invoked > 0 && t.usable == 0 {
			return domain.ResultPartial
		}
	}
	return domain.ResultComplete
}

func placeholderSummary(debate []domain.RoundResponse) domain.Summary {
	var last string
	if len(debate) > 0 {
		last = debate[len(debate)-1].Text
	}
	return domain.Summary{
		Consensus:           "Summary unavailable: " + truncateForSummary(last),
		FinalRecommendation: "No automated recommendation available.",
	}
}

func truncateForSummary(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// convergenceStatusOf is a small accessor used when persisting, kept
// here rather than on domain.DeliberationResult to avoid giving the
// data model package behavior beyond simple helpers.
func convergenceStatusOf(result domain.DeliberationResult) domain.ConvergenceStatus {
	if result.ConvergenceInfo != nil {
		return result.ConvergenceInfo.Status
	}
	return domain.StatusUnknown
}
