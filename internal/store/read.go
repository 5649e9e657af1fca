package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/flagsearch/internal/ir"
)

const sessionColumns = `id, seq, toolchain, toolchain_version, catalog_hash, common_flags, jobs, settings,
	status, final_flags, final_score, failure, engine_version, ir_version`

// ReadSession returns the session with the given ID.
// Returns ErrNotFound (wrapped) if it does not exist.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// LatestSession returns the most recently created session.
// Returns ErrNotFound (wrapped) if the store is empty.
func (s *Store) LatestSession(ctx context.Context) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY seq DESC LIMIT 1`)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("latest session: %w", ErrNotFound)
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// ListSessions returns all sessions ordered by seq.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadRuns returns the run records of a session ordered by run ID.
//
// Returns an empty slice (not nil) if the session has no runs.
func (s *Store) ReadRuns(ctx context.Context, sessionID string) ([]ir.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, kind, flags, config_hash, score, failure
		FROM runs
		WHERE session_id = ?
		ORDER BY run_id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// FindRuns returns every successful run, across sessions, whose flag string
// hashes to configHash. Ordered by session seq, then run ID.
func (s *Store) FindRuns(ctx context.Context, configHash string) ([]ir.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.kind, r.flags, r.config_hash, r.score, r.failure
		FROM runs r
		JOIN sessions s ON s.id = r.session_id
		WHERE r.config_hash = ? AND r.score > 0
		ORDER BY s.seq ASC, r.run_id ASC
	`, configHash)
	if err != nil {
		return nil, fmt.Errorf("query runs by config hash: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]ir.RunRecord, error) {
	records := []ir.RunRecord{}
	for rows.Next() {
		var (
			rec   ir.RunRecord
			kind  string
			score float64
		)
		if err := rows.Scan(&rec.RunID, &kind, &rec.Flags, &rec.ConfigHash, &score, &rec.Failure); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		k, err := ir.ParseRunKind(kind)
		if err != nil {
			return nil, fmt.Errorf("scan run %d: %w", rec.RunID, err)
		}
		rec.Kind = k
		rec.Score = ir.Score(score)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return records, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		sess     Session
		settings string
		status   string
		score    float64
	)
	err := row.Scan(
		&sess.ID,
		&sess.Seq,
		&sess.Toolchain,
		&sess.ToolchainVersion,
		&sess.CatalogHash,
		&sess.CommonFlags,
		&sess.Jobs,
		&settings,
		&status,
		&sess.FinalFlags,
		&score,
		&sess.Failure,
		&sess.EngineVersion,
		&sess.IRVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, err
	}
	if err != nil {
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.Status = SessionStatus(status)
	sess.FinalScore = ir.Score(score)
	sess.Settings, err = unmarshalSettings(settings)
	if err != nil {
		return Session{}, fmt.Errorf("scan session %s: %w", sess.ID, err)
	}
	return sess, nil
}
