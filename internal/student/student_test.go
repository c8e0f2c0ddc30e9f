package student

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/store"
)

func TestPhaseFor(t *testing.T) {
	assert.Equal(t, PhaseExploration, PhaseFor(0, 3))
	assert.Equal(t, PhaseExploration, PhaseFor(2, 3))
	assert.Equal(t, PhaseExploitation, PhaseFor(3, 3))
}

func TestAbility_PriorForUnattempted(t *testing.T) {
	s := New("s1")
	prior := irt.AbilityState{Theta: 0, StandardError: 0.6}
	s.Abilities["a"] = irt.AbilityState{Theta: 1.2, StandardError: 0.3, Attempts: 4}
	s.Abilities["b"] = irt.AbilityState{Theta: 2.0}

	assert.Equal(t, 1.2, s.Ability("a", prior).Theta)
	assert.Equal(t, prior, s.Ability("b", prior))
	assert.Equal(t, prior, s.Ability("c", prior))
}

func TestNextQuizKey(t *testing.T) {
	s := New("s1")
	assert.Equal(t, "seq-1", s.NextQuizKey())
	s.QuizzesCompleted = 4
	assert.Equal(t, "seq-5", s.NextQuizKey())
}

func TestRecordSeen_Bounded(t *testing.T) {
	s := New("s1")
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var batch []SeenItem
	for i := 0; i < 10; i++ {
		batch = append(batch, SeenItem{ItemID: string(rune('a' + i)), AnsweredAt: base.Add(time.Duration(i) * time.Minute)})
	}
	s.RecordSeen(batch, 4)
	require.Len(t, s.Seen, 4)
	assert.Equal(t, "g", s.Seen[0].ItemID)
	assert.Equal(t, "j", s.Seen[3].ItemID)
}

func TestClone_IsDeep(t *testing.T) {
	s := New("s1")
	now := time.Now()
	s.Abilities["a"] = irt.AbilityState{Theta: 1}
	s.Breaker.TriggeredAt = &now
	s.Seen = []SeenItem{{ItemID: "x"}}

	c := s.Clone()
	c.Abilities["a"] = irt.AbilityState{Theta: -1}
	c.Seen[0].ItemID = "y"
	*c.Breaker.TriggeredAt = now.Add(time.Hour)

	assert.Equal(t, 1.0, s.Abilities["a"].Theta)
	assert.Equal(t, "x", s.Seen[0].ItemID)
	assert.True(t, s.Breaker.TriggeredAt.Equal(now))
}

func TestRepository_LoadMissingAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	repo := NewRepository(kv)

	s, version, err := repo.Load(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), version)
	assert.Equal(t, PhaseExploration, s.Phase)

	s.QuizzesCompleted = 2
	s.Abilities["math"] = irt.AbilityState{Theta: 0.7, StandardError: 0.4, Attempts: 5, Accuracy: 0.6}
	w, err := repo.Write(s, version)
	require.NoError(t, err)
	require.NoError(t, kv.AtomicCommit(ctx, []store.Write{w}))

	got, version, err := repo.Load(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)
	assert.Equal(t, 2, got.QuizzesCompleted)
	assert.Equal(t, 0.7, got.Abilities["math"].Theta)
}
