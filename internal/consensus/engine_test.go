package consensus

import (
	"errors"
	"testing"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/models/modeltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func responses(rs ...*models.AuditorResponse) []models.AuditorResponse {
	out := make([]models.AuditorResponse, len(rs))
	for i, r := range rs {
		out[i] = *r
	}
	return out
}

func TestTrimmedMean(t *testing.T) {
	got, err := TrimmedMean([]float64{1, 2, 3, 4, 5}, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, got, 1e-9)

	got, err = TrimmedMean([]float64{4, 4, 4}, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, got, 1e-9)

	_, err = TrimmedMean(nil, 0.2)
	var insufficient *InsufficientResponsesError
	assert.True(t, errors.As(err, &insufficient))
}

func TestAgreementLevel(t *testing.T) {
	assert.Equal(t, 1.0, AgreementLevel([]float64{4, 4, 4, 4}))
	assert.Less(t, AgreementLevel([]float64{1, 5, 2, 4}), 0.5)
	assert.Equal(t, 1.0, AgreementLevel([]float64{2.5}))
	assert.GreaterOrEqual(t, AgreementLevel([]float64{1, 5}), 0.0)
}

func TestReduce_Pass(t *testing.T) {
	e := NewEngine(DefaultOptions())
	result, err := e.Reduce(responses(
		modeltest.Response(models.RolePM, models.StagePRD, 4),
		modeltest.Response(models.RoleSecurity, models.StagePRD, 4),
		modeltest.ResponseWithScores(models.RoleUX, models.StagePRD, [6]int{4, 4, 4, 4, 4, 5}),
	), nil)
	require.NoError(t, err)

	assert.Equal(t, models.DecisionPass, result.FinalDecision)
	assert.True(t, result.ConsensusPass)
	assert.True(t, result.ApprovalPass)
	assert.InDelta(t, 1.0, result.ApprovalRate, 1e-9)
	assert.Empty(t, result.FailureReasons)
	assert.False(t, result.RequiresHumanReview)
	assert.Equal(t, []models.AuditorRole{models.RolePM, models.RoleSecurity, models.RoleUX}, result.Participants)
	assert.InDelta(t, 4.0, result.DimensionAverages[models.DimSimplicity], 1e-9)
	assert.LessOrEqual(t, result.ScoreInterval.Lower, result.WeightedAverage)
	assert.GreaterOrEqual(t, result.ScoreInterval.Upper, result.WeightedAverage)
}

func TestReduce_CriticalIssueFailsRegardlessOfScores(t *testing.T) {
	e := NewEngine(DefaultOptions())
	result, err := e.Reduce(responses(
		modeltest.WithIssue(modeltest.Response(models.RoleSecurity, models.StageArchitecture, 5), models.SeverityCritical, "secrets in repo"),
		modeltest.Response(models.RolePM, models.StageArchitecture, 5),
		modeltest.Response(models.RoleCost, models.StageArchitecture, 5),
	), nil)
	require.NoError(t, err)

	assert.True(t, result.ConsensusPass)
	assert.True(t, result.ApprovalPass)
	assert.Equal(t, models.DecisionFail, result.FinalDecision)
	require.Len(t, result.FailureReasons, 1)
	assert.Contains(t, result.FailureReasons[0], "1 critical issue(s) exceed limit of 0")
	assert.Equal(t, 1, result.BlockingCounts[models.SeverityCritical])
}

func TestReduce_HighScoresLowApprovalFails(t *testing.T) {
	// Averages are 4.0 but a dimension of 2 makes overall_pass false.
	notPassing := [6]int{5, 5, 5, 5, 2, 2}
	e := NewEngine(DefaultOptions())
	result, err := e.Reduce(responses(
		modeltest.Response(models.RolePM, models.StagePRD, 4),
		modeltest.ResponseWithScores(models.RoleUX, models.StagePRD, notPassing),
		modeltest.ResponseWithScores(models.RoleCost, models.StagePRD, notPassing),
	), nil)
	require.NoError(t, err)

	assert.True(t, result.ConsensusPass)
	assert.False(t, result.ApprovalPass)
	assert.InDelta(t, 1.0/3.0, result.ApprovalRate, 1e-9)
	assert.Equal(t, models.DecisionFail, result.FinalDecision)
	assert.Equal(t, []string{"Approval rate 33% below required 67%"}, result.FailureReasons)
}

func TestReduce_TwoOfThreeApprovalIsBelowThreshold(t *testing.T) {
	e := NewEngine(DefaultOptions())
	result, err := e.Reduce(responses(
		modeltest.Response(models.RolePM, models.StagePRD, 4),
		modeltest.Response(models.RoleUX, models.StagePRD, 4),
		modeltest.ResponseWithScores(models.RoleCost, models.StagePRD, [6]int{5, 5, 5, 5, 2, 2}),
	), nil)
	require.NoError(t, err)
	assert.False(t, result.ApprovalPass)
}

func TestReduce_LowScoreFails(t *testing.T) {
	e := NewEngine(DefaultOptions())
	result, err := e.Reduce(responses(
		modeltest.Response(models.RolePM, models.StagePRD, 3),
		modeltest.Response(models.RoleUX, models.StagePRD, 3),
	), nil)
	require.NoError(t, err)

	assert.False(t, result.ConsensusPass)
	assert.Equal(t, models.DecisionFail, result.FinalDecision)
	assert.Contains(t, result.FailureReasons, "Trimmed mean score 3.00 below threshold 3.80")
}

func TestReduce_HighDisagreementNeedsHumanReview(t *testing.T) {
	e := NewEngine(DefaultOptions())
	result, err := e.Reduce(responses(
		modeltest.Response(models.RolePM, models.StagePRD, 5),
		modeltest.Response(models.RoleUX, models.StagePRD, 5),
		modeltest.Response(models.RoleCost, models.StagePRD, 2),
	), nil)
	require.NoError(t, err)

	assert.InDelta(t, 3.0, result.ScoreSpread, 1e-9)
	assert.True(t, result.RequiresHumanReview)
	assert.Contains(t, result.FailureReasons[len(result.FailureReasons)-1], "High disagreement between auditors")
}

func TestReduce_GatesCountAcrossAuditors(t *testing.T) {
	e := NewEngine(DefaultOptions())
	a := modeltest.Response(models.RolePM, models.StagePRD, 5)
	modeltest.WithIssue(a, models.SeverityHigh, "one")
	modeltest.WithIssue(a, models.SeverityHigh, "two")
	b := modeltest.Response(models.RoleSecurity, models.StagePRD, 5)
	modeltest.WithIssue(b, models.SeverityHigh, "three")
	for range 10 {
		modeltest.WithIssue(b, models.SeverityLow, "nit")
	}

	result, err := e.Reduce(responses(a, b), nil)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionFail, result.FinalDecision)
	assert.Equal(t, []string{"Blocking gate breached: 3 high issue(s) exceed limit of 2"}, result.FailureReasons)
}

func TestReduce_RoleWeights(t *testing.T) {
	opts := DefaultOptions()
	opts.TrimPercentage = 0
	e := NewEngine(opts)

	rs := responses(
		modeltest.Response(models.RoleSecurity, models.StagePRD, 5),
		modeltest.Response(models.RoleUX, models.StagePRD, 3),
	)

	unweighted, err := e.Reduce(rs, nil)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, unweighted.WeightedAverage, 1e-9)

	weighted, err := e.Reduce(rs, map[models.AuditorRole]float64{models.RoleSecurity: 3})
	require.NoError(t, err)
	assert.InDelta(t, 4.5, weighted.WeightedAverage, 1e-9)
}

func TestReduce_Empty(t *testing.T) {
	_, err := NewEngine(DefaultOptions()).Reduce(nil, nil)
	var insufficient *InsufficientResponsesError
	require.ErrorAs(t, err, &insufficient)
}
