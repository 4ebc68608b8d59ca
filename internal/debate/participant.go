package debate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/execution"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/validation"
)

// ReviewRequest is the input to an opening review.
type ReviewRequest struct {
	SessionID string
	Stage     models.DocumentStage
	Document  string
}

// PeerRequest is the input to a peer-response round. PriorRounds holds every
// completed round, oldest first.
type PeerRequest struct {
	SessionID   string
	Stage       models.DocumentStage
	Document    string
	Round       int
	PriorRounds []models.DebateRound
}

// Participant is one council member taking part in a debate.
type Participant interface {
	Role() models.AuditorRole
	InitialReview(ctx context.Context, req *ReviewRequest) (*models.InitialReview, error)
	RespondToPeers(ctx context.Context, req *PeerRequest) (*models.PeerResponse, error)
}

// PromptBuilder renders debate prompts for one role.
type PromptBuilder interface {
	InitialReviewPrompt(role models.AuditorRole, stage models.DocumentStage, document string) (string, error)
	PeerResponsePrompt(role models.AuditorRole, stage models.DocumentStage, document string, round int, priorRoundsJSON string) (string, error)
}

// ErrEmptyContribution is returned when a participant's reply carries no content.
var ErrEmptyContribution = errors.New("debate reply has no content")

// ProviderParticipant asks an LLM provider for each contribution.
type ProviderParticipant struct {
	role     models.AuditorRole
	provider execution.Provider
	model    string
	prompts  PromptBuilder
	timeout  time.Duration
}

// ParticipantOption configures a ProviderParticipant.
type ParticipantOption func(*ProviderParticipant)

// WithCallTimeout bounds every provider call the participant makes. Zero
// leaves calls bounded only by the caller's context.
func WithCallTimeout(d time.Duration) ParticipantOption {
	return func(p *ProviderParticipant) { p.timeout = d }
}

// NewProviderParticipant creates a participant backed by provider.
func NewProviderParticipant(role models.AuditorRole, provider execution.Provider, model string, prompts PromptBuilder, options ...ParticipantOption) *ProviderParticipant {
	p := &ProviderParticipant{role: role, provider: provider, model: model, prompts: prompts}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *ProviderParticipant) Role() models.AuditorRole { return p.role }

func (p *ProviderParticipant) InitialReview(ctx context.Context, req *ReviewRequest) (*models.InitialReview, error) {
	prompt, err := p.prompts.InitialReviewPrompt(p.role, req.Stage, req.Document)
	if err != nil {
		return nil, err
	}
	var review models.InitialReview
	if err := p.complete(ctx, prompt, &review); err != nil {
		return nil, err
	}
	if strings.TrimSpace(review.Summary) == "" && len(review.KeyPoints) == 0 {
		return nil, fmt.Errorf("%s initial review: %w", p.role, ErrEmptyContribution)
	}
	review.Role = p.role
	return &review, nil
}

func (p *ProviderParticipant) RespondToPeers(ctx context.Context, req *PeerRequest) (*models.PeerResponse, error) {
	prior, err := json.Marshal(req.PriorRounds)
	if err != nil {
		return nil, fmt.Errorf("encoding prior rounds: %w", err)
	}
	prompt, err := p.prompts.PeerResponsePrompt(p.role, req.Stage, req.Document, req.Round, string(prior))
	if err != nil {
		return nil, err
	}
	var resp models.PeerResponse
	if err := p.complete(ctx, prompt, &resp); err != nil {
		return nil, err
	}
	if len(resp.Agreements)+len(resp.Counterpoints)+len(resp.Questions) == 0 {
		return nil, fmt.Errorf("%s peer response: %w", p.role, ErrEmptyContribution)
	}
	resp.Role = p.role
	return &resp, nil
}

func (p *ProviderParticipant) complete(ctx context.Context, prompt string, out any) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	reply, err := p.provider.Complete(ctx, &execution.CompletionRequest{Model: p.model, Prompt: prompt})
	if err != nil {
		return fmt.Errorf("%s: provider %s: %w", p.role, p.provider.Name(), err)
	}
	payload, err := validation.ExtractJSON(reply.Text)
	if err != nil {
		return fmt.Errorf("%s: %w", p.role, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%s: decoding debate reply: %w", p.role, err)
	}
	return nil
}
