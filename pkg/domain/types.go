// Package domain holds the request/response data model shared by every
// component of the deliberation orchestrator: participants, votes,
// round responses, convergence info, and the decision-graph entities.
package domain

import "time"

// Stance is a participant's declared position going into a deliberation.
type Stance string

const (
	StanceNeutral Stance = "neutral"
	StanceFor     Stance = "for"
	StanceAgainst Stance = "against"
)

// Mode selects how many rounds a deliberation runs.
type Mode string

const (
	ModeQuick      Mode = "quick"
	ModeConference Mode = "conference"
)

// Participant is immutable for the lifetime of one deliberation. Its
// identity within the deliberation is the compound BackendID@ModelID.
type Participant struct {
	BackendID       string `json:"backend"`
	ModelID         string `json:"model"`
	Stance          Stance `json:"stance"`
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
	DisplayName     string `json:"display_name,omitempty"`
}

// Identity returns the compound model@backend identifier used to key
// RoundResponse.Participant and ParticipantStance.Participant.
func (p Participant) Identity() string {
	return p.ModelID + "@" + p.BackendID
}

// DeliberateRequest is the validated input to a deliberation.
type DeliberateRequest struct {
	Question     string        `json:"question"`
	Participants []Participant `json:"participants"`
	Rounds       int           `json:"rounds"`
	Mode         Mode          `json:"mode"`
	Context      string        `json:"context,omitempty"`
}

const (
	MinQuestionLen  = 10
	MinParticipants = 2
	MaxRounds       = 5
)

// Vote is the structured opinion a participant may embed in a response.
type Vote struct {
	Option         string  `json:"option"`
	Confidence     float64 `json:"confidence"`
	Rationale      string  `json:"rationale"`
	ContinueDebate bool    `json:"continue_debate"`
}

// RoundResponse is one participant's output for one round.
type RoundResponse struct {
	Round       int       `json:"round"`
	Participant string    `json:"participant"`
	Stance      Stance    `json:"stance"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// ConvergenceStatus classifies how a round (or the final outcome)
// relates to agreement among participants.
type ConvergenceStatus string

const (
	StatusConverged          ConvergenceStatus = "converged"
	StatusImpasse            ConvergenceStatus = "impasse"
	StatusRefining           ConvergenceStatus = "refining"
	StatusDiverging          ConvergenceStatus = "diverging"
	StatusUnanimousConsensus ConvergenceStatus = "unanimous_consensus"
	StatusMajorityDecision   ConvergenceStatus = "majority_decision"
	StatusTie                ConvergenceStatus = "tie"
	StatusUnknown            ConvergenceStatus = "unknown"
)

// ConvergenceInfo is the per-round or final convergence verdict.
type ConvergenceInfo struct {
	Detected          bool               `json:"detected"`
	DetectionRound    *int               `json:"detection_round,omitempty"`
	FinalSimilarity   float64            `json:"final_similarity"`
	Status            ConvergenceStatus  `json:"status"`
	PerParticipant    map[string]float64 `json:"per_participant_similarity"`
}

// VotingResult aggregates votes across all rounds of a deliberation.
type VotingResult struct {
	FinalTally       map[string]int   `json:"final_tally"`
	VotesByRound     [][]Vote         `json:"votes_by_round"`
	ConsensusReached bool             `json:"consensus_reached"`
	WinningOption    *string          `json:"winning_option"`
}

// Summary is the AI-generated synopsis of a completed deliberation.
type Summary struct {
	Consensus          string   `json:"consensus"`
	KeyAgreements      []string `json:"key_agreements"`
	KeyDisagreements   []string `json:"key_disagreements"`
	FinalRecommendation string  `json:"final_recommendation"`
}

// ResultStatus is the overall disposition of a DeliberationResult.
type ResultStatus string

const (
	ResultComplete ResultStatus = "complete"
	ResultPartial  ResultStatus = "partial"
	ResultFailed   ResultStatus = "failed"
)

// DeliberationResult is the full outcome of a deliberate() call.
type DeliberationResult struct {
	Status             ResultStatus      `json:"status"`
	Mode               Mode              `json:"mode"`
	RoundsCompleted    int               `json:"rounds_completed"`
	RoundsRequested    int               `json:"rounds_requested"`
	Participants       []string          `json:"participants"`
	Summary            *Summary          `json:"summary,omitempty"`
	VotingResult       *VotingResult     `json:"voting_result,omitempty"`
	ConvergenceInfo    *ConvergenceInfo  `json:"convergence_info,omitempty"`
	TranscriptPath     string            `json:"transcript_path,omitempty"`
	FullDebate         []RoundResponse   `json:"full_debate"`
	FullDebateTruncated bool             `json:"full_debate_truncated,omitempty"`
	TotalRounds        int               `json:"total_rounds,omitempty"`
}

// DecisionNode is a persisted, immutable record of a completed
// deliberation in the decision graph.
type DecisionNode struct {
	ID                string            `json:"id"`
	Question          string            `json:"question"`
	Timestamp         time.Time         `json:"timestamp"`
	Consensus         string            `json:"consensus"`
	WinningOption     string            `json:"winning_option,omitempty"`
	ConvergenceStatus ConvergenceStatus `json:"convergence_status"`
	Participants      []string          `json:"participants"`
	TranscriptPath    string            `json:"transcript_path,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// ParticipantStance is a single participant's final position on a
// stored decision.
type ParticipantStance struct {
	DecisionID    string   `json:"decision_id"`
	Participant   string   `json:"participant"`
	VoteOption    *string  `json:"vote_option,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	Rationale     *string  `json:"rationale,omitempty"`
	FinalPosition string   `json:"final_position"`
}

// MaxFinalPositionLen is the truncation length for
// ParticipantStance.FinalPosition.
const MaxFinalPositionLen = 500

// DecisionSimilarity is a directed similarity edge from a newer decision
// to an older one it was compared against at store time.
type DecisionSimilarity struct {
	SourceID   string    `json:"source_id"`
	TargetID   string    `json:"target_id"`
	Score      float64   `json:"score"`
	ComputedAt time.Time `json:"computed_at"`
}
