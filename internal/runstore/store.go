package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/pkg/database"
	"github.com/wonny/evidence/pkg/logger"
)

// ErrNotFound is returned when no run matches
var ErrNotFound = errors.New("run not found")

const schemaSQL = `
	CREATE SCHEMA IF NOT EXISTS scoring;

	CREATE TABLE IF NOT EXISTS scoring.runs (
		run_id        TEXT PRIMARY KEY,
		universe      TEXT NOT NULL,
		preset        TEXT NOT NULL DEFAULT '',
		config_hash   TEXT NOT NULL,
		mode_label    TEXT NOT NULL,
		mode_score    DOUBLE PRECISION NOT NULL,
		scored_count  INTEGER NOT NULL,
		error_count   INTEGER NOT NULL,
		stale_ratio   DOUBLE PRECISION NOT NULL,
		started_at    TIMESTAMPTZ NOT NULL,
		completed_at  TIMESTAMPTZ NOT NULL,
		result        JSONB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS runs_universe_completed_idx
		ON scoring.runs (universe, completed_at DESC);

	CREATE TABLE IF NOT EXISTS scoring.symbol_scores (
		run_id        TEXT NOT NULL REFERENCES scoring.runs (run_id) ON DELETE CASCADE,
		symbol        TEXT NOT NULL,
		sector        TEXT NOT NULL DEFAULT '',
		total_score   DOUBLE PRECISION NOT NULL,
		data_quality  DOUBLE PRECISION NOT NULL,
		is_scan_only  BOOLEAN NOT NULL,
		target_price  DOUBLE PRECISION,
		PRIMARY KEY (run_id, symbol)
	);
`

// RunSummary is one row of run history
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Universe    string    `json:"universe"`
	Preset      string    `json:"preset"`
	ConfigHash  string    `json:"config_hash"`
	ModeLabel   string    `json:"mode_label"`
	ScoredCount int       `json:"scored_count"`
	ErrorCount  int       `json:"error_count"`
	StaleRatio  float64   `json:"stale_ratio"`
	CompletedAt time.Time `json:"completed_at"`
}

// Store persists scoring results in Postgres
// ⭐ SSOT: ScoringResult 저장/조회는 여기서만
type Store struct {
	db     *database.DB
	logger *logger.Logger
}

// New creates a store
func New(db *database.DB, log *logger.Logger) *Store {
	return &Store{db: db, logger: log.WithField("module", "runstore")}
}

// Migrate creates the schema when missing
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate runstore schema: %w", err)
	}
	return nil
}

// Save writes the run row and one row per symbol in a single transaction
func (s *Store) Save(ctx context.Context, result *contracts.ScoringResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	meta := result.Metadata
	completed := meta.CompletedAt
	if completed.IsZero() {
		completed = time.Now().UTC()
	}

	err = s.db.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO scoring.runs (
				run_id, universe, preset, config_hash,
				mode_label, mode_score, scored_count, error_count,
				stale_ratio, started_at, completed_at, result
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (run_id) DO UPDATE SET
				completed_at = EXCLUDED.completed_at,
				result = EXCLUDED.result
		`
		_, err := tx.Exec(ctx, query,
			result.RunID,
			meta.Universe,
			meta.Preset,
			meta.ConfigHash,
			result.Mode.Label,
			result.Mode.Score,
			len(result.Scores),
			len(meta.Errors),
			result.DataQualitySummary.StaleRatio,
			meta.StartedAt,
			completed,
			payload,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM scoring.symbol_scores WHERE run_id = $1`, result.RunID); err != nil {
			return fmt.Errorf("clear symbol scores: %w", err)
		}

		rows := make([][]interface{}, 0, len(result.Scores))
		for _, sc := range result.Scores {
			var target *float64
			if sc.PriceTarget != nil {
				v := sc.PriceTarget.TargetPrice
				target = &v
			}
			rows = append(rows, []interface{}{
				result.RunID, sc.Symbol, sc.Sector, sc.TotalScore,
				sc.DataQuality.Score, sc.IsScanOnly, target,
			})
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"scoring", "symbol_scores"},
			[]string{"run_id", "symbol", "sector", "total_score", "data_quality", "is_scan_only", "target_price"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy symbol scores: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"run_id":   result.RunID,
		"universe": meta.Universe,
		"scores":   len(result.Scores),
	}).Info("Scoring result saved")
	return nil
}

// Latest returns the most recent result for a universe ("" = any)
func (s *Store) Latest(ctx context.Context, universe string) (*contracts.ScoringResult, error) {
	query := `
		SELECT result
		FROM scoring.runs
		WHERE $1 = '' OR universe = $1
		ORDER BY completed_at DESC
		LIMIT 1
	`

	var payload []byte
	if err := s.db.Pool.QueryRow(ctx, query, universe).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	return decode(payload)
}

// Get returns one run by id
func (s *Store) Get(ctx context.Context, runID string) (*contracts.ScoringResult, error) {
	var payload []byte
	err := s.db.Pool.QueryRow(ctx, `SELECT result FROM scoring.runs WHERE run_id = $1`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query run %s: %w", runID, err)
	}
	return decode(payload)
}

// History lists recent runs, newest first
func (s *Store) History(ctx context.Context, universe string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, universe, preset, config_hash, mode_label,
		       scored_count, error_count, stale_ratio, completed_at
		FROM scoring.runs
		WHERE $1 = '' OR universe = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`

	rows, err := s.db.Pool.Query(ctx, query, universe, limit)
	if err != nil {
		return nil, fmt.Errorf("query run history: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(
			&r.RunID, &r.Universe, &r.Preset, &r.ConfigHash, &r.ModeLabel,
			&r.ScoredCount, &r.ErrorCount, &r.StaleRatio, &r.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run history: %w", err)
	}
	return out, nil
}

func decode(payload []byte) (*contracts.ScoringResult, error) {
	var result contracts.ScoringResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &result, nil
}

var _ contracts.ResultStore = (*Store)(nil)
