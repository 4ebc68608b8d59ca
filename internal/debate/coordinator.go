package debate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/events"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
)

const (
	DefaultMaxRounds          = 3
	DefaultMinConsensusThemes = 3
)

var (
	// ErrCancelled is returned by Run when the session was cancelled, either
	// through Session.Cancel or the caller's context.
	ErrCancelled = errors.New("debate cancelled")
	// ErrNotPending is returned when Run is given a session that already started.
	ErrNotPending = errors.New("debate session is not pending")
	// ErrNoParticipants is returned when a session has nobody to debate.
	ErrNoParticipants = errors.New("debate needs at least one participant")
)

// Options tunes the coordinator. Zero values fall back to defaults.
type Options struct {
	MaxRounds          int
	MinConsensusThemes int
	Similarity         float64
}

func (o Options) withDefaults() Options {
	if o.MaxRounds <= 0 {
		o.MaxRounds = DefaultMaxRounds
	}
	if o.MinConsensusThemes <= 0 {
		o.MinConsensusThemes = DefaultMinConsensusThemes
	}
	if o.Similarity <= 0 {
		o.Similarity = DefaultSimilarity
	}
	return o
}

// Coordinator runs multi-round debates between council participants.
type Coordinator struct {
	opts      Options
	publisher events.Publisher
	logger    *slog.Logger
}

// NewCoordinator creates a coordinator. A nil publisher discards events and a
// nil logger uses slog.Default().
func NewCoordinator(opts Options, publisher events.Publisher, logger *slog.Logger) *Coordinator {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{opts: opts.withDefaults(), publisher: publisher, logger: logger}
}

// Options returns the effective options.
func (c *Coordinator) Options() Options { return c.opts }

// NewSession creates a PENDING session for the given participants.
func (c *Coordinator) NewSession(stage models.DocumentStage, participants []Participant) *Session {
	return newSession(stage, participants, c.publisher)
}

// Debate creates a session, runs it and returns the final snapshot. The
// snapshot is returned even when err is non-nil.
func (c *Coordinator) Debate(ctx context.Context, stage models.DocumentStage, document string, participants []Participant) (*models.DebateSession, error) {
	s := c.NewSession(stage, participants)
	err := c.Run(ctx, s, document)
	return s.Snapshot(), err
}

// Run drives a PENDING session to a terminal state.
func (c *Coordinator) Run(ctx context.Context, s *Session, document string) error {
	if len(s.participants) == 0 {
		return ErrNoParticipants
	}
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	if !s.start(stop) {
		return fmt.Errorf("%w: %s", ErrNotPending, s.Status())
	}

	snap := s.Snapshot()
	roles := make([]models.AuditorRole, len(s.participants))
	for i, p := range s.participants {
		roles[i] = p.Role()
	}
	c.publisher.Publish(events.NewDebateSessionStarted(snap.ID, snap.Stage, roles, c.opts.MaxRounds))
	c.logger.DebugContext(ctx, "debate started", "session", snap.ID, "stage", snap.Stage, "participants", len(roles))

	for n := 1; n <= c.opts.MaxRounds; n++ {
		round, err := c.runRound(runCtx, s, snap.Stage, document, n)
		if err != nil {
			return c.abort(ctx, s, n, err)
		}
		if !s.appendRound(*round) {
			return c.abort(ctx, s, n, context.Canceled)
		}
		c.publisher.Publish(events.NewDebateRoundCompleted(snap.ID, round))
		c.logger.DebugContext(ctx, "debate round completed",
			"session", snap.ID,
			"round", n,
			"consensus", len(round.ConsensusThemes),
			"disagreements", len(round.Disagreements))
		if round.Converged(c.opts.MinConsensusThemes) {
			break
		}
	}

	final, unresolved := finalThemes(s.rounds(), c.opts.Similarity)
	if !s.complete(final, unresolved) {
		return c.abort(ctx, s, len(s.rounds()), context.Canceled)
	}
	done := s.Snapshot()
	c.publisher.Publish(events.NewDebateSessionCompleted(done))
	c.logger.InfoContext(ctx, "debate completed",
		"session", done.ID,
		"rounds", len(done.Rounds),
		"score", done.ConsensusScore,
		"unresolved", len(done.UnresolvedIssues))
	return nil
}

// abort settles a session that stopped early. Cancellation wins over the
// round error when the session or context was cancelled.
func (c *Coordinator) abort(ctx context.Context, s *Session, round int, err error) error {
	id := s.ID()
	if s.Status() == models.DebateStatusCancelled {
		return fmt.Errorf("%w: %w", ErrCancelled, context.Canceled)
	}
	if ctx.Err() != nil {
		if s.transition(models.DebateStatusCancelled, ctx.Err().Error()) {
			c.publisher.Publish(events.NewDebateSessionCancelled(id, len(s.rounds())))
		}
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
	if s.transition(models.DebateStatusFailed, err.Error()) {
		c.publisher.Publish(events.NewDebateSessionFailed(id, round, err))
	}
	c.logger.ErrorContext(ctx, "debate failed", "session", id, "round", round, "error", err)
	return err
}

func (c *Coordinator) runRound(ctx context.Context, s *Session, stage models.DocumentStage, document string, n int) (*models.DebateRound, error) {
	start := time.Now()
	round := &models.DebateRound{
		Number:       n,
		Participants: make([]models.AuditorRole, len(s.participants)),
		Status:       models.RoundStatusCompleted,
	}
	for i, p := range s.participants {
		round.Participants[i] = p.Role()
	}

	g, gctx := errgroup.WithContext(ctx)
	if n == 1 {
		round.Kind = models.RoundInitialReview
		reviews := make([]models.InitialReview, len(s.participants))
		req := &ReviewRequest{SessionID: s.ID(), Stage: stage, Document: document}
		for i, p := range s.participants {
			g.Go(func() error {
				s.setActive(p.Role(), true, n)
				defer s.setActive(p.Role(), false, n)
				review, err := p.InitialReview(gctx, req)
				if err != nil {
					return fmt.Errorf("round %d: %s: %w", n, p.Role(), err)
				}
				reviews[i] = *review
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		round.InitialReviews = reviews
		round.ConsensusThemes, round.Disagreements = initialRoundThemes(reviews, c.opts.Similarity)
	} else {
		round.Kind = models.RoundPeerResponse
		responses := make([]models.PeerResponse, len(s.participants))
		req := &PeerRequest{SessionID: s.ID(), Stage: stage, Document: document, Round: n, PriorRounds: s.rounds()}
		for i, p := range s.participants {
			g.Go(func() error {
				s.setActive(p.Role(), true, n)
				defer s.setActive(p.Role(), false, n)
				resp, err := p.RespondToPeers(gctx, req)
				if err != nil {
					return fmt.Errorf("round %d: %s: %w", n, p.Role(), err)
				}
				responses[i] = *resp
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		round.PeerResponses = responses
		round.ConsensusThemes, round.Disagreements, round.Questions = peerRoundThemes(responses, c.opts.Similarity)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	round.DurationMs = time.Since(start).Milliseconds()
	return round, nil
}
