// Package orchestration fans a stage audit out to the council's auditors and
// reduces their responses to a decision.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/auditor"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/budget"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/cache"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/config"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/consensus"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/debate"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/events"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/execution"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/telemetry"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/template"
)

// ErrNoResponses is reported through audit_failed when every auditor failed.
var ErrNoResponses = errors.New("no auditor produced a valid response")

// Orchestrator runs stage audits. It is safe for concurrent use; every audit
// draws from the same call budget.
type Orchestrator struct {
	opts      config.Options
	templates template.Provider
	provider  execution.Provider
	providers map[models.AuditorRole]execution.Provider
	engine    *consensus.Engine
	budget    *budget.Budget
	cache     cache.Store
	publisher events.Publisher
	collector telemetry.Collector
	logger    *slog.Logger

	debate        *debate.Coordinator
	debatePrompts debate.PromptBuilder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache enables result caching.
func WithCache(s cache.Store) Option {
	return func(o *Orchestrator) { o.cache = s }
}

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithCollector attaches a telemetry collector to every worker.
func WithCollector(c telemetry.Collector) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.collector = c
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBudget shares b instead of creating a budget from MaxCallsTotal.
func WithBudget(b *budget.Budget) Option {
	return func(o *Orchestrator) { o.budget = b }
}

// WithRoleProvider routes one role to its own provider.
func WithRoleProvider(role models.AuditorRole, p execution.Provider) Option {
	return func(o *Orchestrator) { o.providers[role] = p }
}

// WithDebate escalates high-disagreement results to a council debate.
func WithDebate(c *debate.Coordinator, prompts debate.PromptBuilder) Option {
	return func(o *Orchestrator) {
		o.debate = c
		o.debatePrompts = prompts
	}
}

// New creates an orchestrator. provider serves every role without its own.
func New(provider execution.Provider, templates template.Provider, opts config.Options, options ...Option) (*Orchestrator, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if provider == nil {
		return nil, errors.New("orchestrator needs a provider")
	}
	if templates == nil {
		return nil, errors.New("orchestrator needs a template provider")
	}
	o := &Orchestrator{
		opts:      opts,
		templates: templates,
		provider:  provider,
		providers: map[models.AuditorRole]execution.Provider{},
		engine: consensus.NewEngine(consensus.Options{
			ScoreThreshold:        opts.ScoreThreshold,
			ApprovalThreshold:     opts.ApprovalThreshold,
			TrimPercentage:        opts.TrimPercentage,
			DisagreementThreshold: opts.DisagreementThreshold,
			BlockingGates:         opts.Gates(),
		}),
		publisher: events.NopPublisher{},
		collector: telemetry.Nop{},
		logger:    slog.Default(),
	}
	for _, opt := range options {
		opt(o)
	}
	if o.budget == nil {
		o.budget = budget.New(opts.MaxCallsTotal)
	}
	return o, nil
}

// Budget returns the call budget shared by this orchestrator's workers.
func (o *Orchestrator) Budget() *budget.Budget { return o.budget }

// ExecuteStageAudit audits content as a document of the given stage.
func (o *Orchestrator) ExecuteStageAudit(ctx context.Context, stage models.DocumentStage, content string) (*models.AuditResult, error) {
	return o.Execute(ctx, models.NewAuditRequest(stage, content, "", models.PriorityNormal, nil))
}

// Execute runs one audit request. Individual auditor failures are recorded in
// the result; an error is returned only when no result could be produced or
// the caller's context ended.
func (o *Orchestrator) Execute(ctx context.Context, req *models.AuditRequest) (*models.AuditResult, error) {
	start := time.Now()
	stage := req.Stage()

	roles, prompts, err := o.prepare(stage, req.Content())
	if err != nil {
		o.publisher.Publish(events.NewAuditFailed(req.ID(), stage, err))
		return nil, err
	}

	key := cache.Key(o.modelKey(roles), o.templates.TemplateHash(stage), cache.Hash(strings.Join(prompts, "\x00")), cache.Hash(req.Content()))
	if hit := o.cached(ctx, key); hit != nil {
		o.publisher.Publish(events.NewAuditCacheHit(req.ID(), hit.RequestID, stage, key))
		return hit, nil
	}

	o.publisher.Publish(events.NewAuditStarted(req.ID(), stage, roles))
	o.logger.DebugContext(ctx, "audit started", "request", req.ID(), "stage", stage, "roles", len(roles))

	result := &models.AuditResult{
		RequestID:   req.ID(),
		Stage:       stage,
		Responses:   []models.AuditorResponse{},
		FailedRoles: []models.AuditorRole{},
		CacheKey:    key,
	}
	calls := o.fanOut(ctx, stage, roles, prompts, req.Content(), result)
	result.Calls = calls

	quorum := o.quorum(len(roles))
	if len(result.Responses) > 0 {
		cons, err := o.engine.Reduce(result.Responses, o.opts.Weights())
		if err != nil {
			o.logger.ErrorContext(ctx, "consensus failed", "request", req.ID(), "error", err)
		} else {
			result.Consensus = cons
			result.RequiresHumanReview = cons.RequiresHumanReview
			result.Success = len(result.Responses) >= quorum
		}
	}

	if err := ctx.Err(); err != nil {
		result.DurationMs = time.Since(start).Milliseconds()
		o.publisher.Publish(events.NewAuditFailed(req.ID(), stage, err))
		return result, err
	}

	if result.Consensus != nil && result.Consensus.RequiresHumanReview {
		o.escalate(ctx, stage, req.Content(), result)
	}

	result.DurationMs = time.Since(start).Milliseconds()

	if result.Success && o.cache != nil {
		if err := o.cache.Set(ctx, key, result, o.opts.CacheTTL()); err != nil {
			o.logger.WarnContext(ctx, "failed to write cache", "request", req.ID(), "error", err)
		}
	}

	if result.Consensus == nil {
		err := fmt.Errorf("%w: %d of %d roles failed", ErrNoResponses, len(result.FailedRoles), len(roles))
		o.publisher.Publish(events.NewAuditFailed(req.ID(), stage, err))
	} else {
		o.publisher.Publish(events.NewAuditCompleted(result))
	}
	o.logger.InfoContext(ctx, "audit completed",
		"request", req.ID(),
		"stage", stage,
		"success", result.Success,
		"decision", result.Decision(),
		"responses", len(result.Responses),
		"failed", len(result.FailedRoles),
		"quorum", quorum,
		"calls", result.Calls)
	return result, nil
}

func (o *Orchestrator) prepare(stage models.DocumentStage, content string) ([]models.AuditorRole, []string, error) {
	roles, err := o.templates.RequiredRoles(stage)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving roles for %s: %w", stage, err)
	}
	if len(roles) == 0 {
		return nil, nil, fmt.Errorf("no auditor roles configured for %s", stage)
	}
	prompts := make([]string, len(roles))
	for i, role := range roles {
		p, err := o.templates.BuildPrompt(role, stage, content)
		if err != nil {
			return nil, nil, fmt.Errorf("building %s prompt for %s: %w", role, stage, err)
		}
		prompts[i] = p
	}
	return roles, prompts, nil
}

// cached returns a copy of the cached result with Cached set, or nil.
func (o *Orchestrator) cached(ctx context.Context, key string) *models.AuditResult {
	if o.cache == nil {
		return nil
	}
	hit, ok, err := o.cache.Get(ctx, key)
	if err != nil {
		o.logger.WarnContext(ctx, "cache lookup failed", "key", key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	cp := *hit
	cp.Cached = true
	return &cp
}

type roleOutcome struct {
	resp *models.AuditorResponse
	err  error
}

// fanOut runs one worker per role under the parallelism limit and records
// responses and failures on result in role order. The document travels both
// inside the prompt and as an attachment. It returns the number of provider
// calls made.
func (o *Orchestrator) fanOut(ctx context.Context, stage models.DocumentStage, roles []models.AuditorRole, prompts []string, document string, result *models.AuditResult) int {
	calls := telemetry.NewRecorder()
	collector := telemetry.Multi{o.collector, calls}
	sem := semaphore.NewWeighted(int64(o.opts.MaxParallel))
	outcomes := make([]roleOutcome, len(roles))

	var wg sync.WaitGroup
	for i, role := range roles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = roleOutcome{err: err}
				return
			}
			defer sem.Release(1)

			w := auditor.NewWorker(role, o.providerFor(role), o.budget, auditor.Options{
				Timeout:      o.opts.Timeout(),
				MaxAttempts:  o.opts.MaxRetries,
				RetryBackoff: o.opts.RetryBackoff(),
			},
				auditor.WithModel(o.opts.ModelFor(role)),
				auditor.WithCollector(collector),
				auditor.WithLogger(o.logger),
			)
			resp, err := w.ExecuteDocument(ctx, prompts[i], stage, document)
			outcomes[i] = roleOutcome{resp: resp, err: err}
		}()
	}
	wg.Wait()

	for i, out := range outcomes {
		if out.err == nil {
			result.Responses = append(result.Responses, *out.resp)
			continue
		}
		failure := models.RoleFailure{
			Role:           roles[i],
			Error:          out.err.Error(),
			BudgetExceeded: errors.Is(out.err, budget.ErrExhausted),
		}
		var execErr *auditor.ExecutionError
		if errors.As(out.err, &execErr) {
			failure.Attempts = execErr.Attempts
		}
		result.FailedRoles = append(result.FailedRoles, roles[i])
		result.Failures = append(result.Failures, failure)
		o.logger.WarnContext(ctx, "auditor failed", "role", roles[i], "stage", stage, "error", out.err)
	}
	return calls.TotalAttempts()
}

// escalate runs a council debate among the roles that responded. A debate
// that converges with nothing unresolved clears the human review flag.
func (o *Orchestrator) escalate(ctx context.Context, stage models.DocumentStage, content string, result *models.AuditResult) {
	if o.debate == nil || o.debatePrompts == nil || !o.opts.EnableDebate || len(result.Responses) < 2 {
		return
	}
	participants := make([]debate.Participant, len(result.Responses))
	for i, r := range result.Responses {
		provider := &budgetedProvider{Provider: o.providerFor(r.AuditorRole), budget: o.budget}
		participants[i] = debate.NewProviderParticipant(r.AuditorRole, provider, o.opts.ModelFor(r.AuditorRole), o.debatePrompts,
			debate.WithCallTimeout(o.opts.Timeout()))
	}

	o.logger.InfoContext(ctx, "escalating to council debate",
		"request", result.RequestID,
		"spread", result.Consensus.ScoreSpread,
		"participants", len(participants))
	session, err := o.debate.Debate(ctx, stage, content, participants)
	result.Debate = session
	if err != nil {
		result.DebateError = err.Error()
		o.logger.WarnContext(ctx, "council debate did not complete", "request", result.RequestID, "error", err)
		return
	}
	if session.Converged() {
		result.RequiresHumanReview = false
	}
}

func (o *Orchestrator) providerFor(role models.AuditorRole) execution.Provider {
	if p, ok := o.providers[role]; ok && p != nil {
		return p
	}
	return o.provider
}

// modelKey names the model behind every role so that changing any of them
// changes the cache key.
func (o *Orchestrator) modelKey(roles []models.AuditorRole) string {
	parts := make([]string, len(roles))
	for i, role := range roles {
		parts[i] = fmt.Sprintf("%s=%s/%s", role, o.providerFor(role).Name(), o.opts.ModelFor(role))
	}
	slices.Sort(parts)
	return strings.Join(parts, ",")
}

// quorum is MinQuorum when set, otherwise a strict majority of required roles.
func (o *Orchestrator) quorum(required int) int {
	if o.opts.MinQuorum > 0 {
		return o.opts.MinQuorum
	}
	return required/2 + 1
}

// budgetedProvider charges each call against the shared budget.
type budgetedProvider struct {
	execution.Provider
	budget *budget.Budget
}

func (p *budgetedProvider) Complete(ctx context.Context, req *execution.CompletionRequest) (*execution.CompletionResponse, error) {
	if err := p.budget.Acquire(); err != nil {
		return nil, err
	}
	return p.Provider.Complete(ctx, req)
}
