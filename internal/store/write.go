package store

import (
	"context"
	"fmt"

	"github.com/roach88/flagsearch/internal/ir"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusConverged SessionStatus = "converged"
	StatusFailed    SessionStatus = "failed"
)

// Session describes one search invocation.
type Session struct {
	ID               string
	Seq              int64
	Toolchain        string
	ToolchainVersion string
	CatalogHash      string
	CommonFlags      string
	Jobs             int
	// Settings snapshots the build and measure configuration.
	Settings map[string]string
	Status   SessionStatus

	// Set by FinishSession.
	FinalFlags string
	FinalScore ir.Score
	Failure    string

	EngineVersion string
	IRVersion     string
}

// Outcome is the final state of a session.
type Outcome struct {
	Status     SessionStatus
	FinalFlags string
	FinalScore ir.Score
	Failure    string
}

// CreateSession inserts a new running session and returns it with its ID
// and seq filled in. An empty ID is generated.
func (s *Store) CreateSession(ctx context.Context, sess Session) (Session, error) {
	if sess.ID == "" {
		sess.ID = s.ids.Generate()
	}
	sess.Status = StatusRunning
	if sess.EngineVersion == "" {
		sess.EngineVersion = ir.EngineVersion
	}
	if sess.IRVersion == "" {
		sess.IRVersion = ir.SchemaVersion
	}

	settingsJSON, err := marshalSettings(sess.Settings)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, fmt.Errorf("create session: begin: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM sessions`).Scan(&sess.Seq); err != nil {
		return Session{}, fmt.Errorf("create session: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions
		(id, seq, toolchain, toolchain_version, catalog_hash, common_flags, jobs, settings, status, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sess.ID,
		sess.Seq,
		sess.Toolchain,
		sess.ToolchainVersion,
		sess.CatalogHash,
		sess.CommonFlags,
		sess.Jobs,
		settingsJSON,
		string(sess.Status),
		sess.EngineVersion,
		sess.IRVersion,
	)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Session{}, fmt.Errorf("create session: commit: %w", err)
	}
	return sess, nil
}

// FinishSession records the outcome of a session.
func (s *Store) FinishSession(ctx context.Context, id string, out Outcome) error {
	if out.Status != StatusConverged && out.Status != StatusFailed {
		return fmt.Errorf("finish session %s: invalid status %q", id, out.Status)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?, final_flags = ?, final_score = ?, failure = ?
		WHERE id = ?
	`,
		string(out.Status),
		out.FinalFlags,
		float64(out.FinalScore),
		out.Failure,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("finish session %s: %w", id, ErrNotFound)
	}
	return nil
}

// WriteRun inserts a run record of a session.
// Uses ON CONFLICT DO NOTHING for idempotency - rewriting a run is
// silently ignored. The session must exist (foreign key constraint).
func (s *Store) WriteRun(ctx context.Context, sessionID string, rec ir.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(session_id, run_id, kind, flags, config_hash, score, failure)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, run_id) DO NOTHING
	`,
		sessionID,
		rec.RunID,
		string(rec.Kind),
		rec.Flags,
		rec.ConfigHash,
		float64(rec.Score),
		rec.Failure,
	)
	if err != nil {
		return fmt.Errorf("write run %s: %w", rec.Label(), err)
	}
	return nil
}

// SessionWriter writes the runs of one session. It satisfies the engine's
// RunSink interface.
type SessionWriter struct {
	store     *Store
	sessionID string
}

// Writer returns a SessionWriter for sessionID.
func (s *Store) Writer(sessionID string) *SessionWriter {
	return &SessionWriter{store: s, sessionID: sessionID}
}

// WriteRun writes rec to the session.
func (w *SessionWriter) WriteRun(ctx context.Context, rec ir.RunRecord) error {
	return w.store.WriteRun(ctx, w.sessionID, rec)
}
