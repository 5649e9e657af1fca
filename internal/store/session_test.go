package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flagsearch/internal/ir"
)

func TestCreateSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, createTestSession())
	require.NoError(t, err)
	assert.Equal(t, "session-0001", sess.ID)
	assert.Equal(t, int64(1), sess.Seq)
	assert.Equal(t, StatusRunning, sess.Status)

	got, err := s.ReadSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess, got)
	assert.Equal(t, ir.EngineVersion, got.EngineVersion)
	assert.Equal(t, map[string]string{"src_dir": "/src", "metric": "size"}, got.Settings)
}

func TestCreateSession_UUIDv7ByDefault(t *testing.T) {
	s, err := Open(t.TempDir() + "/uuid.db")
	require.NoError(t, err)
	defer s.Close()

	sess, err := s.CreateSession(context.Background(), createTestSession())
	require.NoError(t, err)
	assert.Len(t, sess.ID, 36)
	assert.Equal(t, byte('7'), sess.ID[14], "UUID version nibble")
}

func TestCreateSession_SettingsStoredCanonically(t *testing.T) {
	s := createTestStore(t)
	sess, err := s.CreateSession(context.Background(), createTestSession())
	require.NoError(t, err)

	var raw string
	require.NoError(t, s.db.QueryRow("SELECT settings FROM sessions WHERE id = ?", sess.ID).Scan(&raw))
	assert.Equal(t, `{"metric":"size","src_dir":"/src"}`, raw)
}

func TestCreateSession_RejectsZeroJobs(t *testing.T) {
	s := createTestStore(t)
	sess := createTestSession()
	sess.Jobs = 0
	_, err := s.CreateSession(context.Background(), sess)
	assert.Error(t, err)
}

func TestFinishSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, createTestSession())
	require.NoError(t, err)

	require.NoError(t, s.FinishSession(ctx, sess.ID, Outcome{
		Status:     StatusConverged,
		FinalFlags: "-g -fa -fno-b",
		FinalScore: 70,
	}))

	got, err := s.ReadSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConverged, got.Status)
	assert.Equal(t, "-g -fa -fno-b", got.FinalFlags)
	assert.Equal(t, ir.Score(70), got.FinalScore)
}

func TestFinishSession_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.FinishSession(ctx, "missing", Outcome{Status: StatusFailed, Failure: "boom"})
	assert.True(t, errors.Is(err, ErrNotFound))

	sess, err := s.CreateSession(ctx, createTestSession())
	require.NoError(t, err)
	err = s.FinishSession(ctx, sess.ID, Outcome{Status: StatusRunning})
	assert.ErrorContains(t, err, "invalid status")
}

func TestReadSession_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadSession(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLatestAndListSessions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.LatestSession(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))
	list, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	for i := 0; i < 3; i++ {
		_, err := s.CreateSession(ctx, createTestSession())
		require.NoError(t, err)
	}

	latest, err := s.LatestSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "session-0003", latest.ID)
	assert.Equal(t, int64(3), latest.Seq)

	list, err = s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "session-0001", list[0].ID)
	assert.Equal(t, "session-0003", list[2].ID)
}
