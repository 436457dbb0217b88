package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalis/internal/engine"
)

func TestAddToTransmissionClassifiesCandidates(t *testing.T) {
	env := newTestEnv(t)
	seedTerritory(t, env)

	// a report already packaged through an earlier transmission
	createReport(t, env, "packaged", "12001", true)
	prev := createTransmission(t, env)
	addReports(t, env, prev.ID, "packaged")
	res, err := env.Engine.CompleteTransmission(env.Ctx, prev.ID, "tester")
	require.NoError(t, err)
	require.True(t, res.OK)

	createReport(t, env, "draft-a", "12001", false)
	createReport(t, env, "draft-b", "12002", false)
	createReport(t, env, "member", "12001", true)
	createReport(t, env, "fresh", "12002", true)

	tr := createTransmission(t, env)
	addReports(t, env, tr.ID, "member")

	change, err := env.Engine.AddToTransmission(env.Ctx, tr.ID,
		[]string{"draft-a", "draft-b", "packaged", "member", "fresh"}, "tester")
	require.NoError(t, err)

	assert.Equal(t, 1, change.Before)
	assert.Equal(t, 2, change.After)
	assert.Equal(t, 1, change.Added)
	assert.Equal(t, 4, change.NotAdded)
	assert.Equal(t, 2, change.Incomplete)
	assert.Equal(t, 1, change.AlreadyTransmitted)
	assert.Equal(t, 1, change.AlreadyInTransmission)
	assert.Equal(t, 0, change.Other)
}

func TestAddToTransmissionCounterConservation(t *testing.T) {
	env := newTestEnv(t)
	seedTerritory(t, env)
	createReport(t, env, "fresh", "12001", true)
	createReport(t, env, "draft", "12002", false)
	tr := createTransmission(t, env)

	candidates := []string{"fresh", "draft", "no-such-report"}
	change, err := env.Engine.AddToTransmission(env.Ctx, tr.ID, candidates, "tester")
	require.NoError(t, err)

	assert.Equal(t, len(candidates), change.Added+change.NotAdded)
	assert.Equal(t, 1, change.Added)
	assert.Equal(t, 1, change.Incomplete)
	assert.Equal(t, 1, change.Other, "unknown ids land in the reconciling bucket")
}

func TestAddToCompletedTransmissionRejected(t *testing.T) {
	env := newTestEnv(t)
	seedTerritory(t, env)
	createReport(t, env, "r1", "12001", true)
	tr := createTransmission(t, env)
	addReports(t, env, tr.ID, "r1")
	res, err := env.Engine.CompleteTransmission(env.Ctx, tr.ID, "tester")
	require.NoError(t, err)
	require.True(t, res.OK)

	createReport(t, env, "r2", "12001", true)
	_, err = env.Engine.AddToTransmission(env.Ctx, tr.ID, []string{"r2"}, "tester")
	assert.ErrorIs(t, err, engine.ErrTransmissionCompleted)
	_, err = env.Engine.RemoveFromTransmission(env.Ctx, tr.ID, []string{"r1"}, "tester")
	assert.ErrorIs(t, err, engine.ErrTransmissionCompleted)
}

func TestRemoveFromTransmission(t *testing.T) {
	env := newTestEnv(t)
	seedTerritory(t, env)
	createReport(t, env, "r1", "12001", true)
	createReport(t, env, "r2", "12002", true)
	createReport(t, env, "outsider", "12001", true)
	tr := createTransmission(t, env)
	addReports(t, env, tr.ID, "r1", "r2")
	other := createTransmission(t, env)
	addReports(t, env, other.ID, "outsider")

	change, err := env.Engine.RemoveFromTransmission(env.Ctx, tr.ID,
		[]string{"r1", "outsider", "never-existed"}, "tester")
	require.NoError(t, err)
	assert.Equal(t, 2, change.Before)
	assert.Equal(t, 1, change.After)
	assert.Equal(t, 1, change.Removed)

	// reports outside this transmission are untouched
	out, err := env.Engine.Repo.GetReport(env.Ctx, "outsider")
	require.NoError(t, err)
	require.NotNil(t, out.TransmissionID)
	assert.Equal(t, other.ID, *out.TransmissionID)

	// removing again is side-effect free
	change, err = env.Engine.RemoveFromTransmission(env.Ctx, tr.ID, []string{"r1"}, "tester")
	require.NoError(t, err)
	assert.Equal(t, 0, change.Removed)
}
