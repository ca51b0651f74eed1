package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/mutecomm/go-sqlcipher/v4"
	_ "modernc.org/sqlite"
	"go.uber.org/zap"

	"github.com/blueman82/go-counsel/internal/errs"
	"github.com/blueman82/go-counsel/pkg/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id                 TEXT PRIMARY KEY,
	question           TEXT NOT NULL,
	timestamp          INTEGER NOT NULL,
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
	confidence     REAL,
	rationale      TEXT,
	final_position TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stances_decision_id ON participant_stances(decision_id);

CREATE TABLE IF NOT EXISTS decision_similarities (
	source_id   TEXT NOT NULL REFERENCES decisions(id) ON DELETE CASCADE,
	target_id   TEXT NOT NULL REFERENCES decisions(id) ON DELETE CASCADE,
	score       REAL NOT NULL,
	computed_at INTEGER NOT NULL,
	PRIMARY KEY (source_id, target_id)
);
CREATE INDEX IF NOT EXISTS idx_similarities_source ON decision_similarities(source_id);
CREATE INDEX IF NOT EXISTS idx_similarities_score ON decision_similarities(score DESC);
`

// SQLiteStore is the default Store implementation, backed by
// modernc.org/sqlite (pure Go, no cgo). When EncryptionKey is set in
// SQLiteConfig the encrypted go-sqlcipher driver is used instead.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	mu     sync.RWMutex
	logger *zap.Logger
}

type SQLiteConfig struct {
	Path          string
	EncryptionKey string
}

func NewSQLiteStore(ctx context.Context, cfg SQLiteConfig, logger *zap.Logger) (*SQLiteStore, error) {
	driver := "sqlite"
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", cfg.Path)
	if cfg.EncryptionKey != "" {
		driver = "sqlite3"
		dsn = fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL&_foreign_keys=on&_pragma_key=%s", cfg.Path, cfg.EncryptionKey)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errs.Storage(err, "open decision graph database")
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errs.Storage(err, "initialize decision graph schema")
	}

	return &SQLiteStore{db: db, path: cfg.Path, logger: logger}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertDecision(ctx context.Context, node domain.DecisionNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage(err, "begin decision insert transaction")
	}
	defer tx.Rollback()

	participantsJSON, err := marshalStrings(node.Participants)
	if err != nil {
		return errs.Storage(err, "marshal decision participants")
	}
	metadataJSON, err := marshalMap(node.Metadata)
	if err != nil {
		return errs.Storage(err, "marshal decision metadata")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO decisions (id, question, timestamp, consensus, winning_option, convergence_status, participants_json, transcript_path, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.ID, node.Question, node.Timestamp.Unix(), node.Consensus,
		nullableString(node.WinningOption), string(node.ConvergenceStatus),
		participantsJSON, nullableString(node.TranscriptPath), metadataJSON,
	)
	if err != nil {
		return errs.Storage(err, "insert decision node")
	}

	if err := tx.Commit(); err != nil {
		return errs.Storage(err, "commit decision insert")
	}
	return nil
}

func (s *SQLiteStore) InsertStance(ctx context.Context, stance domain.ParticipantStance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage(err, "begin stance insert transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO participant_stances (decision_id, participant, vote_option, confidence, rationale, final_position)
		VALUES (?, ?, ?, ?, ?, ?)`,
		stance.DecisionID, stance.Participant,
		nullableStringPtr(stance.VoteOption), nullableFloatPtr(stance.Confidence), nullableStringPtr(stance.Rationale),
		stance.FinalPosition,
	)
	if err != nil {
		return errs.Storage(err, "insert participant stance")
	}

	if err := tx.Commit(); err != nil {
		return errs.Storage(err, "commit stance insert")
	}
	return nil
}

func (s *SQLiteStore) UpsertSimilarity(ctx context.Context, edge domain.DecisionSimilarity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage(err, "begin similarity upsert transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO decision_similarities (source_id, target_id, score, computed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_id, target_id) DO UPDATE SET score = excluded.score, computed_at = excluded.computed_at`,
		edge.SourceID, edge.TargetID, edge.Score, edge.ComputedAt.Unix(),
	)
	if err != nil {
		return errs.Storage(err, "upsert decision similarity")
	}

	if err := tx.Commit(); err != nil {
		return errs.Storage(err, "commit similarity upsert")
	}
	return nil
}

func (s *SQLiteStore) GetDecision(ctx context.Context, id string) (*domain.DecisionNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, question, timestamp, consensus, winning_option, convergence_status, participants_json, transcript_path, metadata_json
		FROM decisions WHERE id = ?`, id)
	node, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, errs.Storage(err, "decision %s not found", id)
	}
	if err != nil {
		return nil, errs.Storage(err, "query decision %s", id)
	}
	return node, nil
}

func (s *SQLiteStore) ListRecentDecisions(ctx context.Context, limit, offset int) ([]domain.DecisionNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, timestamp, consensus, winning_option, convergence_status, participants_json, transcript_path, metadata_json
		FROM decisions ORDER BY timestamp DESC LIMIT ? OFFSET ?`, limit, offset)
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

func (s *SQLiteStore) ListStances(ctx context.Context, decisionID string) ([]domain.ParticipantStance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT decision_id, participant, vote_option, confidence, rationale, final_position
		FROM participant_stances WHERE decision_id = ?`, decisionID)
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

func (s *SQLiteStore) ListSimilarDecisions(ctx context.Context, sourceID string, minScore float64, limit int) ([]domain.DecisionSimilarity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, target_id, score, computed_at
		FROM decision_similarities
		WHERE source_id = ? AND score >= ?
		ORDER BY score DESC LIMIT ?`, sourceID, minScore, limit)
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

func (s *SQLiteStore) Health(ctx context.Context, growthWindow time.Duration) (HealthReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions WHERE timestamp >= ?`, cutoff).Scan(&report.DecisionsInWindow); err != nil {
		return report, errs.Storage(err, "compute decision growth")
	}

	if info, err := os.Stat(s.path); err == nil {
		report.DatabaseSizeBytes = info.Size()
	}

	return report, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDecision(row scanner) (*domain.DecisionNode, error) {
	var node domain.DecisionNode
	var timestamp int64
	var winningOption, transcriptPath, metadataJSON sql.NullString
	var participantsJSON string

	if err := row.Scan(&node.ID, &node.Question, &timestamp, &node.Consensus, &winningOption,
		&node.ConvergenceStatus, &participantsJSON, &transcriptPath, &metadataJSON); err != nil {
		return nil, err
	}
	node.Timestamp = time.Unix(timestamp, 0).UTC()
	if winningOption.Valid {
		node.WinningOption = winningOption.String
	}
	if transcriptPath.Valid {
		node.TranscriptPath = transcriptPath.String
	}
	node.Participants = unmarshalStrings(participantsJSON)
	if metadataJSON.Valid {
		node.Metadata = unmarshalMap(metadataJSON.String)
	}
	return &node, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableFloatPtr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func marshalStrings(values []string) (string, error) {
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalStrings(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func marshalMap(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalMap(s string) map[string]string {
	if s == "" {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}
