package models_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/models/modeltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditorResponse_ValidateAcceptsConsistentResponse(t *testing.T) {
	resp := modeltest.ResponseWithScores(models.RolePM, models.StagePRD, [6]int{4, 4, 5, 4, 3, 4})
	require.NoError(t, resp.Validate())
	assert.InDelta(t, 4.0, resp.OverallAssessment.AverageScore, 1e-9)
	assert.True(t, resp.OverallAssessment.OverallPass)
}

func TestAuditorResponse_ValidateRejects(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *models.AuditorResponse)
		invariant bool
	}{
		{
			name:      "average drifts from mean",
			mutate:    func(r *models.AuditorResponse) { r.OverallAssessment.AverageScore += 0.02 },
			invariant: true,
		},
		{
			name:      "overall pass despite low dimension",
			mutate: func(r *models.AuditorResponse) {
				r.ScoresDetailed.Readability.Score = 2
				modeltest.Recompute(r)
				r.OverallAssessment.OverallPass = true
			},
			invariant: true,
		},
		{
			name:   "score out of range",
			mutate: func(r *models.AuditorResponse) { r.ScoresDetailed.Simplicity.Score = 6 },
		},
		{
			name:   "short justification",
			mutate: func(r *models.AuditorResponse) { r.ScoresDetailed.Conciseness.Justification = "too short" },
		},
		{
			name:   "no improvements",
			mutate: func(r *models.AuditorResponse) { r.ScoresDetailed.Actionability.Improvements = nil },
		},
		{
			name:   "short summary",
			mutate: func(r *models.AuditorResponse) { r.OverallAssessment.Summary = "fine" },
		},
		{
			name:   "too many strengths",
			mutate: func(r *models.AuditorResponse) { r.OverallAssessment.TopStrengths = []string{"a", "b", "c", "d"} },
		},
		{
			name: "unknown severity",
			mutate: func(r *models.AuditorResponse) {
				r.BlockingIssues = []models.BlockingIssue{{Severity: "blocker", Category: "x", Description: "y", Impact: "z"}}
			},
		},
		{
			name:   "confidence out of range",
			mutate: func(r *models.AuditorResponse) { r.ConfidenceLevel = 0 },
		},
		{
			name:   "unknown role",
			mutate: func(r *models.AuditorResponse) { r.AuditorRole = "legal" },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := modeltest.Response(models.RoleSecurity, models.StageArchitecture, 4)
			tt.mutate(resp)
			err := resp.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.invariant, errors.Is(err, models.ErrInvariant))
		})
	}
}

func TestAuditorResponse_JSONRoundTripPreservesAverage(t *testing.T) {
	cases := [][6]int{
		{1, 1, 1, 1, 1, 1},
		{5, 4, 3, 2, 1, 5},
		{4, 4, 4, 4, 4, 3},
		{5, 5, 5, 5, 5, 5},
		{2, 3, 5, 4, 3, 1},
	}
	for _, scores := range cases {
		resp := modeltest.ResponseWithScores(models.RoleUX, models.StageVision, scores)

		data, err := json.Marshal(resp)
		require.NoError(t, err)
		var decoded models.AuditorResponse
		require.NoError(t, json.Unmarshal(data, &decoded))

		require.NoError(t, decoded.Validate())
		assert.LessOrEqual(t, math.Abs(decoded.OverallAssessment.AverageScore-decoded.ScoresDetailed.Mean()), models.AverageTolerance)
		assert.Equal(t, resp.ScoresDetailed, decoded.ScoresDetailed)
	}
}

func TestAuditorResponse_BlockingCounts(t *testing.T) {
	resp := modeltest.Response(models.RoleCost, models.StagePRD, 4)
	modeltest.WithIssue(resp, models.SeverityHigh, "no budget owner")
	modeltest.WithIssue(resp, models.SeverityHigh, "no cost ceiling")
	modeltest.WithIssue(resp, models.SeverityLow, "typo")

	counts := resp.BlockingCounts()
	assert.Equal(t, 2, counts[models.SeverityHigh])
	assert.Equal(t, 1, counts[models.SeverityLow])
	assert.Zero(t, counts[models.SeverityCritical])
}

func TestParseRoleAndStage(t *testing.T) {
	role, err := models.ParseRole(" Security ")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSecurity, role)

	_, err = models.ParseRole("legal")
	assert.Error(t, err)

	stage, err := models.ParseStage("implementation_plan")
	require.NoError(t, err)
	assert.Equal(t, models.StageImplementationPlan, stage)

	_, err = models.ParseStage("roadmap")
	assert.Error(t, err)
}

func TestAuditRequest_MetadataIsCopied(t *testing.T) {
	meta := map[string]string{"team": "platform"}
	req := models.NewAuditRequest(models.StagePRD, "# PRD", "alice", models.PriorityHigh, meta)

	meta["team"] = "changed"
	assert.Equal(t, "platform", req.Metadata()["team"])

	got := req.Metadata()
	got["team"] = "mutated"
	assert.Equal(t, "platform", req.Metadata()["team"])

	assert.NotEmpty(t, req.ID())
	assert.NotEqual(t, req.ID(), models.NewAuditRequest(models.StagePRD, "# PRD", "alice", models.PriorityHigh, nil).ID())
}

func TestDebateStatus_Terminal(t *testing.T) {
	assert.False(t, models.DebateStatusPending.Terminal())
	assert.False(t, models.DebateStatusInProgress.Terminal())
	assert.True(t, models.DebateStatusCompleted.Terminal())
	assert.True(t, models.DebateStatusFailed.Terminal())
	assert.True(t, models.DebateStatusCancelled.Terminal())
}
