package history

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/cuongbtq/courtbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	queries []string
	args    [][]any
	err     error
	rows    []Entry
}

func (f *fakeDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	return nil, f.err
}

func (f *fakeDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	if f.err != nil {
		return f.err
	}
	*dest.(*[]Entry) = append(*dest.(*[]Entry), f.rows...)
	return nil
}

func finishedJob(t *testing.T) *domain.Job {
	t.Helper()
	queued := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	job := domain.NewJob(domain.JobSpec{
		ID:          "job-1",
		RequesterID: "u1",
		GuildID:     "g1",
		ChannelID:   "c1",
		Music:       "tat",
		Frames:      []domain.Frame{{SpeakerID: "a", Text: "Objection!"}, {SpeakerID: "b", Text: "Hold it!"}},
		CreatedAt:   queued,
	})
	require.True(t, job.Claim(queued.Add(time.Second)))
	require.NoError(t, job.MarkFailed("engine crashed"))
	require.True(t, job.Finish(queued.Add(time.Minute), domain.OutcomeAborted))
	return job
}

func TestNewEntry(t *testing.T) {
	e := NewEntry(finishedJob(t))

	assert.Equal(t, "job-1", e.JobID)
	assert.Equal(t, 2, e.FrameCount)
	assert.Equal(t, "render_failed", e.Outcome)
	assert.Equal(t, "engine crashed", e.FailureReason)
	assert.True(t, e.StartedAt.Valid)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 1, 0, 0, time.UTC), e.FinishedAt)
}

func TestNewEntry_NeverStarted(t *testing.T) {
	job := domain.NewJob(domain.JobSpec{ID: "job-2"})
	assert.False(t, NewEntry(job).StartedAt.Valid)
}

func TestRecord(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewStorage(db).Record(context.Background(), finishedJob(t)))

	require.Len(t, db.queries, 1)
	assert.Contains(t, db.queries[0], "INSERT INTO render_history")
	assert.Contains(t, db.queries[0], "ON CONFLICT (job_id) DO NOTHING")
	require.Len(t, db.args[0], 11)
	assert.Equal(t, "job-1", db.args[0][0])
	assert.Equal(t, "render_failed", db.args[0][6])
}

func TestRecord_Error(t *testing.T) {
	db := &fakeDB{err: errors.New("connection reset")}
	err := NewStorage(db).Record(context.Background(), finishedJob(t))
	assert.ErrorContains(t, err, "failed to record job job-1")
}

func TestListRecent_Limit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultListLimit},
		{-5, 1},
		{7, 7},
		{1000, MaxListLimit},
	}

	for _, tt := range tests {
		db := &fakeDB{rows: []Entry{{JobID: "job-1"}}}
		entries, err := NewStorage(db).ListRecent(context.Background(), tt.in)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		assert.Equal(t, []any{tt.want}, db.args[0], "limit %d", tt.in)
	}
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewStorage(db).EnsureSchema(context.Background()))
	assert.Contains(t, db.queries[0], "CREATE TABLE IF NOT EXISTS render_history")
}
