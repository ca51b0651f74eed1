package graph

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/blueman82/go-counsel/internal/errs"
	"github.com/blueman82/go-counsel/pkg/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS decisions (
	id                 TEXT PRIMARY KEY,
	question           TEXT NOT NULL,
	timestamp          BIGINT NOT NULL,
	consensus          TEXT NOT NULL,
	winning_option     TEXT,
	convergence_status TEXT NOT NULL,
	participants_json  TEXT NOT NULL,
	transcript_path    TEXT,
	metadata_json      TEXT
);
CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_decisions_question ON decisions(question);

CREATE TABLE IF NOT EXISTS participant_stances (
	decision_id    TEXT NOT NULL REFERENCES decisions(id) ON DELETE CASCADE,
	participant    TEXT NOT NULL,
	vote_option    TEXT,
	confidence     DOUBLE PRECISION,
	rationale      TEXT,
	final_position TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stances_decision_id ON participant_stances(decision_id);

CREATE TABLE IF NOT EXISTS decision_similarities (
	source_id   TEXT NOT NULL REFERENCES decisions(id) ON DELETE CASCADE,
	target_id   TEXT NOT NULL REFERENCES decisions(id) ON DELETE CASCADE,
	score       DOUBLE PRECISION NOT NULL,
	computed_at BIGINT NOT NULL,
	PRIMARY KEY (source_id, target_id)
);
CREATE INDEX IF NOT EXISTS idx_similarities_source ON decision_similarities(source_id);
CREATE INDEX IF NOT EXISTS idx_similarities_score ON decision_similarities(score DESC);
`

// PostgresStore is the large-deployment Store alternative to
// SQLiteStore, for installations that already run a shared Postgres
// instance for the decision graph. Same schema and query shapes as
// SQLiteStore, translated to lib/pq's $N placeholders and Postgres's
// native upsert syntax.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

type PostgresConfig struct {
	DSN string
}

func NewPostgresStore(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, errs.Storage(err, "open decision graph postgres connection")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errs.Storage(err, "ping decision graph postgres connection")
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, errs.Storage(err, "initialize decision graph schema")
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) InsertDecision(ctx context.Context, node domain.DecisionNode) error {
	participantsJSON, err := marshalStrings(node.Participants)
	if err != nil {
		return errs.Storage(err, "marshal decision participants")
	}
	metadataJSON, err := marshalMap(node.Metadata)
	if err != nil {
		return errs.Storage(err, "marshal decision metadata")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, question, timestamp, consensus, winning_option, convergence_status, participants_json, transcript_path, metadata_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		node.ID, node.Question, node.Timestamp.Unix(), node.Consensus,
		nullableString(node.WinningOption), string(node.ConvergenceStatus),
		participantsJSON, nullableString(node.TranscriptPath), metadataJSON,
	)
	if err != nil {
		return errs.Storage(err, "insert decision node")
	}
	return nil
}

func (s *PostgresStore) InsertStance(ctx context.Context, stance domain.ParticipantStance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participant_stances (decision_id, participant, vote_option, confidence, rationale, final_position)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		stance.DecisionID, stance.Participant,
		nullableStringPtr(stance.VoteOption), nullableFloatPtr(stance.Confidence), nullableStringPtr(stance.Rationale),
		stance.FinalPosition,
	)
	if err != nil {
		return errs.Storage(err, "insert participant stance")
	}
	return nil
}

func (s *PostgresStore) UpsertSimilarity(ctx context.Context, edge domain.DecisionSimilarity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decision_similarities (source_id, target_id, score, computed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_id, target_id) DO UPDATE SET score = excluded.score, computed_at = excluded.computed_at`,
		edge.SourceID, edge.TargetID, edge.Score, edge.ComputedAt.Unix(),
	)
	if err != nil {
		return errs.Storage(err, "upsert decision similarity")
	}
	return nil
}

func (s *PostgresStore) GetDecision(ctx context.Context, id string) (*domain.DecisionNode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, question, timestamp, consensus, winning_option, convergence_status, participants_json, transcript_path, metadata_json
		FROM decisions WHERE id = $1`, id)
	node, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, errs.Storage(err, "decision %s not found", id)
	}
	if err != nil {
		return nil, errs.Storage(err, "query decision %s", id)
	}
	return node, nil
}

func (s *PostgresStore) ListRecentDecisions(ctx context.Context, limit, offset int) ([]domain.DecisionNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, timestamp, consensus, winning_option, convergence_status, participants_json, transcript_path, metadata_json
		FROM decisions ORDER BY timestamp DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, errs.Storage(err, "list recent decisions")
	}
	defer rows.Close()

	var out []domain.DecisionNode
	for rows.Next() {
		node, err := scanDecision(rows)
		if err != nil {
			return nil, errs.Storage(err, "scan decision row")
		}
		out = append(out, *node)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListStances(ctx context.Context, decisionID string) ([]domain.ParticipantStance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT decision_id, participant, vote_option, confidence, rationale, final_position
		FROM participant_stances WHERE decision_id = $1`, decisionID)
	if err != nil {
		return nil, errs.Storage(err, "list stances for decision %s", decisionID)
	}
	defer rows.Close()

	var out []domain.ParticipantStance
	for rows.Next() {
		var st domain.ParticipantStance
		var voteOption, rationale sql.NullString
		var confidence sql.NullFloat64
		if err := rows.Scan(&st.DecisionID, &st.Participant, &voteOption, &confidence, &rationale, &st.FinalPosition); err != nil {
			return nil, errs.Storage(err, "scan stance row")
		}
		if voteOption.Valid {
			st.VoteOption = &voteOption.String
		}
		if confidence.Valid {
			st.Confidence = &confidence.Float64
		}
		if rationale.Valid {
			st.Rationale = &rationale.String
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListSimilarDecisions(ctx context.Context, sourceID string, minScore float64, limit int) ([]domain.DecisionSimilarity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, target_id, score, computed_at
		FROM decision_similarities
		WHERE source_id = $1 AND score >= $2
		ORDER BY score DESC LIMIT $3`, sourceID, minScore, limit)
	if err != nil {
		return nil, errs.Storage(err, "list similar decisions for %s", sourceID)
	}
	defer rows.Close()

	var out []domain.DecisionSimilarity
	for rows.Next() {
		var edge domain.DecisionSimilarity
		var computedAt int64
		if err := rows.Scan(&edge.SourceID, &edge.TargetID, &edge.Score, &computedAt); err != nil {
			return nil, errs.Storage(err, "scan similarity row")
		}
		edge.ComputedAt = time.Unix(computedAt, 0).UTC()
		out = append(out, edge)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Health(ctx context.Context, growthWindow time.Duration) (HealthReport, error) {
	var report HealthReport
	report.GrowthWindow = growthWindow

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions`).Scan(&report.DecisionCount); err != nil {
		return report, errs.Storage(err, "count decisions")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM participant_stances`).Scan(&report.StanceCount); err != nil {
		return report, errs.Storage(err, "count stances")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decision_similarities`).Scan(&report.SimilarityCount); err != nil {
		return report, errs.Storage(err, "count similarities")
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM participant_stances ps
		LEFT JOIN decisions d ON d.id = ps.decision_id
		WHERE d.id IS NULL`).Scan(&report.OrphanStanceCount); err != nil {
		return report, errs.Storage(err, "detect orphan stances")
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM decision_similarities WHERE score < 0 OR score > 1`).Scan(&report.InvalidScoreCount); err != nil {
		return report, errs.Storage(err, "detect invalid similarity scores")
	}

	cutoff := time.Now().Add(-growthWindow).Unix()
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions WHERE timestamp >= $1`, cutoff).Scan(&report.DecisionsInWindow); err != nil {
		return report, errs.Storage(err, "compute decision growth")
	}

	var sizeBytes int64
	if err := s.db.QueryRowContext(ctx, `SELECT pg_database_size(current_database())`).Scan(&sizeBytes); err == nil {
		report.DatabaseSizeBytes = sizeBytes
	}

	return report, nil
}
