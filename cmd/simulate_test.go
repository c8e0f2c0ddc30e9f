package cmd

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abhisek/adaptest/internal/app"
	"github.com/abhisek/adaptest/internal/config"
	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/store"
)

func TestSimulationBankIsDeterministic(t *testing.T) {
	a, err := simulationBank("", 7)
	require.NoError(t, err)
	b, err := simulationBank("", 7)
	require.NoError(t, err)

	require.Len(t, a, 240)
	assert.Equal(t, a, b)
	for _, it := range a {
		assert.GreaterOrEqual(t, it.Params.B, -3.0)
		assert.LessOrEqual(t, it.Params.B, 3.0)
		assert.GreaterOrEqual(t, it.Params.A, 0.8)
		assert.LessOrEqual(t, it.Params.A, 2.0)
	}
}

func TestSimulateStudent(t *testing.T) {
	ctx := context.Background()
	a, err := app.NewWithStore(config.Default(), store.NewMemory(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	items, err := simulationBank("", 1)
	require.NoError(t, err)
	require.NoError(t, a.Bank.Save(ctx, items))

	row, err := simulateStudent(ctx, a, "sim-1", 0.5, 3, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)

	assert.Equal(t, 3, row.Quizzes)
	assert.InDelta(t, 0.5, row.Accuracy, 0.5)
	assert.GreaterOrEqual(t, row.Estimate, irt.MinTheta)
	assert.LessOrEqual(t, row.Estimate, irt.MaxTheta)

	st, err := a.Service.Student(ctx, "sim-1")
	require.NoError(t, err)
	assert.Equal(t, 3, st.QuizzesCompleted)
}
