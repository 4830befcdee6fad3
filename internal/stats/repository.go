package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/solofill/internal/contracts"
)

// ErrSessionNotFound is returned when no session has the requested id
var ErrSessionNotFound = errors.New("session not found")

const schemaSQL = `
CREATE SCHEMA IF NOT EXISTS solofill;

CREATE TABLE IF NOT EXISTS solofill.sessions (
	id           UUID PRIMARY KEY,
	site_name    TEXT        NOT NULL,
	config_hash  TEXT        NOT NULL,
	strategy     TEXT        NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL,
	records      INTEGER     NOT NULL,
	failures     INTEGER     NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS solofill.fit_statistics (
	session_id   UUID        NOT NULL REFERENCES solofill.sessions(id) ON DELETE CASCADE,
	seq          INTEGER     NOT NULL,
	output       TEXT        NOT NULL,
	window_start TIMESTAMPTZ NOT NULL,
	window_end   TIMESTAMPTZ NOT NULL,
	num_points   INTEGER     NOT NULL,
	num_filled   DOUBLE PRECISION NOT NULL,
	bias         DOUBLE PRECISION NOT NULL,
	frac_bias    DOUBLE PRECISION NOT NULL,
	rmse         DOUBLE PRECISION NOT NULL,
	nmse         DOUBLE PRECISION NOT NULL,
	var_obs      DOUBLE PRECISION NOT NULL,
	var_mod      DOUBLE PRECISION NOT NULL,
	var_ratio    DOUBLE PRECISION NOT NULL,
	avg_obs      DOUBLE PRECISION NOT NULL,
	avg_mod      DOUBLE PRECISION NOT NULL,
	slope        DOUBLE PRECISION NOT NULL,
	"offset"     DOUBLE PRECISION NOT NULL,
	r            DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (session_id, seq)
);

CREATE INDEX IF NOT EXISTS fit_statistics_output_idx
	ON solofill.fit_statistics (session_id, output);
`

// Repository persists fit statistics per session
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the tables if they do not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveSession stores the session row and all its records in one transaction.
// seq preserves run order.
func (r *Repository) SaveSession(ctx context.Context, s SessionStats) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	m := s.Session
	_, err = tx.Exec(ctx, `
		INSERT INTO solofill.sessions
			(id, site_name, config_hash, strategy, started_at, finished_at, records, failures)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.SiteName, m.ConfigHash, m.Strategy, m.StartedAt, m.FinishedAt, len(s.Records), m.Failures)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if len(s.Records) > 0 {
		batch := &pgx.Batch{}
		query := `
			INSERT INTO solofill.fit_statistics
				(session_id, seq, output, window_start, window_end, num_points, num_filled,
				 bias, frac_bias, rmse, nmse, var_obs, var_mod, var_ratio, avg_obs, avg_mod,
				 slope, "offset", r)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

		for i, rec := range s.Records {
			batch.Queue(query, m.ID, i+1, rec.Output, rec.Start, rec.End, rec.NumPoints, rec.NumFilled,
				rec.Bias, rec.FracBias, rec.RMSE, rec.NMSE, rec.VarObs, rec.VarMod, rec.VarRatio,
				rec.AvgObs, rec.AvgMod, rec.Slope, rec.Offset, rec.R)
		}

		br := tx.SendBatch(ctx, batch)
		for range s.Records {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert fit statistics: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("insert fit statistics: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetSession returns one session with its records; output "" selects all outputs
func (r *Repository) GetSession(ctx context.Context, id, output string) (*SessionStats, error) {
	var m SessionMeta
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, site_name, config_hash, strategy, started_at, finished_at, records, failures
		FROM solofill.sessions
		WHERE id = $1`, id).Scan(
		&m.ID, &m.SiteName, &m.ConfigHash, &m.Strategy, &m.StartedAt, &m.FinishedAt, &m.Records, &m.Failures,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	records, err := r.ListRecords(ctx, id, output)
	if err != nil {
		return nil, err
	}
	return &SessionStats{Session: m, Records: records}, nil
}

// ListRecords returns a session's records in run order; output "" selects all outputs
func (r *Repository) ListRecords(ctx context.Context, sessionID, output string) ([]contracts.FitStatisticsRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT output, window_start, window_end, num_points, num_filled,
			   bias, frac_bias, rmse, nmse, var_obs, var_mod, var_ratio, avg_obs, avg_mod,
			   slope, "offset", r
		FROM solofill.fit_statistics
		WHERE session_id = $1 AND ($2 = '' OR output = $2)
		ORDER BY seq`, sessionID, output)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []contracts.FitStatisticsRecord
	for rows.Next() {
		var rec contracts.FitStatisticsRecord
		if err := rows.Scan(
			&rec.Output, &rec.Start, &rec.End, &rec.NumPoints, &rec.NumFilled,
			&rec.Bias, &rec.FracBias, &rec.RMSE, &rec.NMSE, &rec.VarObs, &rec.VarMod, &rec.VarRatio,
			&rec.AvgObs, &rec.AvgMod, &rec.Slope, &rec.Offset, &rec.R,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListSessions returns the most recent sessions first
func (r *Repository) ListSessions(ctx context.Context, limit int) ([]SessionMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, site_name, config_hash, strategy, started_at, finished_at, records, failures
		FROM solofill.sessions
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionMeta
	for rows.Next() {
		var m SessionMeta
		if err := rows.Scan(&m.ID, &m.SiteName, &m.ConfigHash, &m.Strategy, &m.StartedAt, &m.FinishedAt, &m.Records, &m.Failures); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteSessionsBefore removes sessions started before cutoff together with their records
func (r *Repository) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM solofill.sessions WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
