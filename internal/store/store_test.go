package store

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/causaloid/internal/csm"
	"github.com/roach88/causaloid/internal/effect"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// testRecord builds a minimal audit record.
func testRecord(id string, seq int64, stateID uint64, input effect.Value, fired bool) csm.AuditRecord {
	return csm.AuditRecord{
		ID:        id,
		Seq:       seq,
		StateID:   stateID,
		Version:   1,
		Input:     input,
		InputHash: effect.MustHash(input),
		Fired:     fired,
		Trace:     "1. causaloid/1 [observation] test\n=> Boolean(true)",
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "open iteration %d", i)
		require.NoError(t, s.RecordEvaluation(context.Background(),
			testRecord(string(rune('a'+i)), int64(i+1), 1, effect.Numeric(float64(i)), false)))
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	recs, err := s.ReadAllEvaluations(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 3, "reopening must not drop records")

	var version int
	require.NoError(t, s.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var name string
	err = s.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_evaluations_state_seq'",
	).Scan(&name)
	assert.NoError(t, err, "migration index missing")
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "audit.db"))
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	assert.NoError(t, (&Store{}).Close())
}

func TestRecordEvaluation_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	input := effect.NewMap(effect.P("temperature", effect.Numeric(70.5)), effect.P("armed", effect.Boolean(true)))
	rec := testRecord("eval-1", 1, 7, input, true)
	rec.Version = 3
	rec.Error = "state 7: action \"page\" failed: pager unreachable"
	require.NoError(t, s.RecordEvaluation(ctx, rec))

	got, err := s.ReadEvaluation(ctx, "eval-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Seq, got.Seq)
	assert.Equal(t, uint64(7), got.StateID)
	assert.Equal(t, uint32(3), got.Version)
	assert.True(t, got.Fired)
	assert.Equal(t, rec.Error, got.Error)
	assert.Equal(t, rec.Trace, got.Trace)
	assert.Equal(t, rec.InputHash, got.InputHash)
	assert.True(t, effect.Equal(input, got.Input), "input = %s", effect.Format(got.Input))
}

func TestRecordEvaluation_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := testRecord("eval-1", 1, 1, effect.Numeric(1), true)
	require.NoError(t, s.RecordEvaluation(ctx, rec))

	rec.Fired = false
	require.NoError(t, s.RecordEvaluation(ctx, rec))

	recs, err := s.ReadEvaluations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Fired, "first write wins")
}

func TestRecordEvaluation_Rejects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.RecordEvaluation(ctx, testRecord("", 1, 1, effect.Numeric(1), false)))

}

func TestRecordEvaluation_NonFiniteInput(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := csm.AuditRecord{ID: "nan", Seq: 1, StateID: 1, Input: effect.Numeric(nanValue()), Fired: true}
	require.NoError(t, s.RecordEvaluation(ctx, rec))

	got, err := s.ReadEvaluation(ctx, "nan")
	require.NoError(t, err)
	assert.True(t, got.Fired)
	assert.Empty(t, got.InputHash, "non-finite input has no canonical hash")
	f, ok := effect.AsFloat(got.Input)
	require.True(t, ok)
	assert.True(t, math.IsNaN(f))
}

func TestReadEvaluations_DeterministicOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Written out of order; same seq for b and a tie-breaks on id.
	for _, rec := range []csm.AuditRecord{
		testRecord("c", 3, 1, effect.Numeric(3), false),
		testRecord("b", 2, 1, effect.Numeric(2), false),
		testRecord("a", 2, 1, effect.Numeric(2), true),
		testRecord("z", 1, 2, effect.Numeric(9), true),
	} {
		require.NoError(t, s.RecordEvaluation(ctx, rec))
	}

	recs, err := s.ReadEvaluations(ctx, 1)
	require.NoError(t, err)
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	all, err := s.ReadAllEvaluations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "z", all[0].ID)

	none, err := s.ReadEvaluations(ctx, 99)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	fired, err := s.CountFired(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	stateIDs, err := s.ListStateIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, stateIDs)
}

func TestReadEvaluation_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadEvaluation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.GetLastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, s.RecordEvaluation(ctx, testRecord("a", 5, 1, effect.Numeric(1), false)))
	require.NoError(t, s.RecordEvaluation(ctx, testRecord("b", 12, 1, effect.Numeric(1), false)))

	seq, err = s.GetLastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), seq)
}
