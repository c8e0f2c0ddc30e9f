package spacedrep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/adaptest/internal/store"
)

var day0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestRecordOutcomes_MissSchedulesReview(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(store.NewMemory(), nil)

	require.NoError(t, s.RecordOutcomes(ctx, "s1", []Outcome{
		{ItemID: "q1", TopicKey: "math", Correct: false},
		{ItemID: "q2", TopicKey: "math", Correct: true},
	}, day0))

	assert.Empty(t, s.ReviewCandidates(ctx, "s1", 14, day0), "not due on the day of the miss")

	got := s.ReviewCandidates(ctx, "s1", 14, day0.AddDate(0, 0, 1))
	require.Len(t, got, 1)
	assert.Equal(t, "q1", got[0].ItemID)
	assert.Equal(t, "math", got[0].TopicKey)
}

func TestRecordOutcomes_HitAdvances(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(store.NewMemory(), nil)
	require.NoError(t, s.RecordOutcomes(ctx, "s1", []Outcome{{ItemID: "q1", TopicKey: "t"}}, day0))

	reviewed := day0.AddDate(0, 0, 1)
	require.NoError(t, s.RecordOutcomes(ctx, "s1", []Outcome{{ItemID: "q1", TopicKey: "t", Correct: true}}, reviewed))

	states, err := s.ReviewStates(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, states["q1"].Stage)
	assert.True(t, states["q1"].NextReviewDate.Equal(reviewed.AddDate(0, 0, 3)))
	assert.Empty(t, s.ReviewCandidates(ctx, "s1", 14, reviewed.AddDate(0, 0, 1)))
}

func TestReviewCandidates_OrderAndWindow(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(store.NewMemory(), nil)

	require.NoError(t, s.RecordOutcomes(ctx, "s1", []Outcome{{ItemID: "old", TopicKey: "t"}}, day0.AddDate(0, 0, -30)))
	require.NoError(t, s.RecordOutcomes(ctx, "s1", []Outcome{{ItemID: "b", TopicKey: "t"}}, day0.AddDate(0, 0, -5)))
	require.NoError(t, s.RecordOutcomes(ctx, "s1", []Outcome{{ItemID: "a", TopicKey: "t"}}, day0.AddDate(0, 0, -2)))

	got := s.ReviewCandidates(ctx, "s1", 14, day0)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ItemID, "most overdue first")
	assert.Equal(t, "a", got[1].ItemID)

	assert.Len(t, s.ReviewCandidates(ctx, "s1", 0, day0), 3, "zero window disables the cutoff")
}

type brokenKV struct{ store.KV }

func (brokenKV) Get(context.Context, string) (store.Record, error) {
	return store.Record{}, errors.New("connection reset")
}

func TestReviewCandidates_DegradesToEmpty(t *testing.T) {
	s := NewScheduler(brokenKV{store.NewMemory()}, nil)
	assert.Empty(t, s.ReviewCandidates(context.Background(), "s1", 14, day0))
}

func TestRecordOutcomes_OnlyHitsOnUntrackedIsNoop(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	s := NewScheduler(kv, nil)
	require.NoError(t, s.RecordOutcomes(ctx, "s1", []Outcome{{ItemID: "q", Correct: true}}, day0))

	_, err := kv.Get(ctx, Key("s1"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReviewCandidates_HitItemsResurfaceLongAfterTheMiss(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(store.NewMemory(), nil)

	require.NoError(t, s.RecordOutcomes(ctx, "s1", []Outcome{{ItemID: "q1", TopicKey: "t"}}, day0))
	for _, d := range []int{1, 4, 11} {
		require.NoError(t, s.RecordOutcomes(ctx, "s1", []Outcome{{ItemID: "q1", TopicKey: "t", Correct: true}}, day0.AddDate(0, 0, d)))
	}

	// Stage 3 after the hit on day 11, due 14 days later on day 25.
	got := s.ReviewCandidates(ctx, "s1", 14, day0.AddDate(0, 0, 25))
	require.Len(t, got, 1)
	assert.Equal(t, "q1", got[0].ItemID)

	assert.Empty(t, s.ReviewCandidates(ctx, "s1", 14, day0.AddDate(0, 0, 40)), "overdue longer than the window")
}

func TestReviewCandidates_ItemGraduatesThroughReviews(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(store.NewMemory(), nil)
	require.NoError(t, s.RecordOutcomes(ctx, "s1", []Outcome{{ItemID: "q1", TopicKey: "t"}}, day0))

	at := day0
	for i := 0; i < GraduationHits; i++ {
		states, err := s.ReviewStates(ctx, "s1")
		require.NoError(t, err)
		at = states["q1"].NextReviewDate
		got := s.ReviewCandidates(ctx, "s1", 14, at)
		require.Len(t, got, 1, "review %d not offered on its due date", i+1)
		require.NoError(t, s.RecordOutcomes(ctx, "s1", []Outcome{{ItemID: "q1", TopicKey: "t", Correct: true}}, at))
	}

	states, err := s.ReviewStates(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, states["q1"].Graduated)
	assert.Empty(t, s.ReviewCandidates(ctx, "s1", 14, at.AddDate(1, 0, 0)))
}

func TestOutcomeWrite_LeavesCommitToCaller(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	s := NewScheduler(kv, nil)

	_, ok, err := s.OutcomeWrite(ctx, "s1", []Outcome{{ItemID: "q", Correct: true}}, day0)
	require.NoError(t, err)
	assert.False(t, ok, "hit on an untracked item changes nothing")

	w, ok, err := s.OutcomeWrite(ctx, "s1", []Outcome{{ItemID: "q", TopicKey: "t"}}, day0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Key("s1"), w.Key)
	assert.Zero(t, w.Version)

	_, err = kv.Get(ctx, Key("s1"))
	assert.ErrorIs(t, err, store.ErrNotFound, "nothing stored before the caller commits")

	require.NoError(t, kv.AtomicCommit(ctx, []store.Write{w}))
	states, err := s.ReviewStates(ctx, "s1")
	require.NoError(t, err)
	assert.Contains(t, states, "q")
}
