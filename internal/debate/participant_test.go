package debate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/execution"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPrompts struct{}

func (stubPrompts) InitialReviewPrompt(role models.AuditorRole, stage models.DocumentStage, document string) (string, error) {
	return fmt.Sprintf("initial %s %s: %s", role, stage, document), nil
}

func (stubPrompts) PeerResponsePrompt(role models.AuditorRole, stage models.DocumentStage, _ string, round int, prior string) (string, error) {
	return fmt.Sprintf("peer %s %s round %d prior %s", role, stage, round, prior), nil
}

func TestProviderParticipantInitialReview(t *testing.T) {
	reply := "Here is my review:\n\n```json\n" +
		`{"role":"cost","summary":"Fine overall","key_points":["Budget buffer missing"],"top_risks":[],"recommendations":[]}` +
		"\n```\n"
	provider := execution.Replies("scripted", reply)
	p := NewProviderParticipant(models.RoleSecurity, provider, "gpt-test", stubPrompts{})

	review, err := p.InitialReview(context.Background(), &ReviewRequest{Stage: models.StagePRD, Document: "the doc"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleSecurity, review.Role, "role is forced to the participant's")
	assert.Equal(t, []string{"Budget buffer missing"}, review.KeyPoints)

	reqs := provider.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "gpt-test", reqs[0].Model)
	assert.Equal(t, "initial security prd: the doc", reqs[0].Prompt)
}

func TestProviderParticipantRespondToPeers(t *testing.T) {
	provider := execution.Replies("scripted", `{"agreements":["Canary rollout"],"counterpoints":[],"questions":["Who signs off?"]}`)
	p := NewProviderParticipant(models.RoleUX, provider, "", stubPrompts{})

	prior := []models.DebateRound{{Number: 1, Kind: models.RoundInitialReview, ConsensusThemes: []string{"x"}}}
	resp, err := p.RespondToPeers(context.Background(), &PeerRequest{Stage: models.StageVision, Round: 2, PriorRounds: prior})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUX, resp.Role)
	assert.Equal(t, []string{"Who signs off?"}, resp.Questions)
	assert.Contains(t, provider.Requests()[0].Prompt, `"consensus_themes":["x"]`)
}

func TestProviderParticipantErrors(t *testing.T) {
	ctx := context.Background()

	boom := errors.New("rate limited")
	p := NewProviderParticipant(models.RolePM, execution.NewScriptedProvider("s", execution.Step{Err: boom}), "", stubPrompts{})
	_, err := p.InitialReview(ctx, &ReviewRequest{})
	assert.ErrorIs(t, err, boom)

	p = NewProviderParticipant(models.RolePM, execution.Replies("s", "no json here"), "", stubPrompts{})
	_, err = p.InitialReview(ctx, &ReviewRequest{})
	assert.ErrorIs(t, err, validation.ErrNoJSON)

	p = NewProviderParticipant(models.RolePM, execution.Replies("s", `{"summary":""}`), "", stubPrompts{})
	_, err = p.InitialReview(ctx, &ReviewRequest{})
	assert.ErrorIs(t, err, ErrEmptyContribution)

	p = NewProviderParticipant(models.RolePM, execution.Replies("s", `{}`), "", stubPrompts{})
	_, err = p.RespondToPeers(ctx, &PeerRequest{Round: 2})
	assert.ErrorIs(t, err, ErrEmptyContribution)
}

func TestProviderParticipantCallTimeout(t *testing.T) {
	slow := execution.NewScriptedProvider("slow", execution.Step{Reply: `{"summary":"late"}`, Delay: 5 * time.Second})
	p := NewProviderParticipant(models.RolePM, slow, "", stubPrompts{}, WithCallTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := p.InitialReview(context.Background(), &ReviewRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
