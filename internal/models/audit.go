package models

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Priority orders audit requests. Higher values are more urgent.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 5
	PriorityHigh   Priority = 10
)

// AuditRequest describes one audit of one document. It is immutable once
// created: fields are unexported and Metadata returns a copy.
type AuditRequest struct {
	id          string
	stage       DocumentStage
	content     string
	requesterID string
	priority    Priority
	metadata    map[string]string
	createdAt   time.Time
}

// NewAuditRequest creates a request with a fresh id.
func NewAuditRequest(stage DocumentStage, content, requesterID string, priority Priority, metadata map[string]string) *AuditRequest {
	return &AuditRequest{
		id:          uuid.NewString(),
		stage:       stage,
		content:     content,
		requesterID: requesterID,
		priority:    priority,
		metadata:    maps.Clone(metadata),
		createdAt:   time.Now().UTC(),
	}
}

func (r *AuditRequest) ID() string           { return r.id }
func (r *AuditRequest) Stage() DocumentStage { return r.stage }
func (r *AuditRequest) Content() string      { return r.content }
func (r *AuditRequest) RequesterID() string  { return r.requesterID }
func (r *AuditRequest) Priority() Priority   { return r.priority }
func (r *AuditRequest) CreatedAt() time.Time { return r.createdAt }

// Metadata returns a copy of the request metadata.
func (r *AuditRequest) Metadata() map[string]string {
	return maps.Clone(r.metadata)
}

// Decision is the final verdict for a document.
type Decision string

const (
	DecisionPass Decision = "PASS"
	DecisionFail Decision = "FAIL"
)

// ScoreInterval is a confidence interval over auditor averages.
type ScoreInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ConsensusResult is the reduction of a set of auditor responses.
type ConsensusResult struct {
	WeightedAverage     float64               `json:"weighted_average"`
	ConsensusPass       bool                  `json:"consensus_pass"`
	ApprovalPass        bool                  `json:"approval_pass"`
	ApprovalRate        float64               `json:"approval_rate"`
	FinalDecision       Decision              `json:"final_decision"`
	AgreementLevel      float64               `json:"agreement_level"`
	ScoreSpread         float64               `json:"score_spread"`
	ScoreInterval       ScoreInterval         `json:"score_interval"`
	Participants        []AuditorRole         `json:"participating_auditors"`
	DimensionAverages   map[Dimension]float64 `json:"dimension_averages,omitempty"`
	BlockingCounts      map[Severity]int      `json:"blocking_counts,omitempty"`
	FailureReasons      []string              `json:"failure_reasons"`
	RequiresHumanReview bool                  `json:"requires_human_review"`
}

// Passed reports whether the final decision is PASS.
func (c *ConsensusResult) Passed() bool {
	return c != nil && c.FinalDecision == DecisionPass
}

// RoleFailure records why one auditor role produced no response.
type RoleFailure struct {
	Role           AuditorRole `json:"role"`
	Error          string      `json:"error"`
	Attempts       int         `json:"attempts"`
	BudgetExceeded bool        `json:"budget_exceeded,omitempty"`
}

// AuditResult is the outcome of one orchestrated stage audit.
type AuditResult struct {
	RequestID   string            `json:"request_id"`
	Stage       DocumentStage     `json:"stage"`
	Success     bool              `json:"success"`
	Responses   []AuditorResponse `json:"responses"`
	FailedRoles []AuditorRole     `json:"failed_roles"`
	Failures    []RoleFailure     `json:"failures,omitempty"`
	Consensus   *ConsensusResult  `json:"consensus,omitempty"`
	Calls       int               `json:"calls"`
	DurationMs  int64             `json:"duration_ms"`
	Cached      bool              `json:"cached,omitempty"`
	CacheKey    string            `json:"cache_key,omitempty"`

	// Debate is set when disagreement escalated into a council debate.
	Debate      *DebateSession `json:"debate,omitempty"`
	DebateError string         `json:"debate_error,omitempty"`

	// RequiresHumanReview starts from the consensus flag and is cleared when a
	// debate converges with nothing unresolved.
	RequiresHumanReview bool `json:"requires_human_review"`
}

// ExecutionTime returns the wall-clock duration of the audit.
func (r *AuditResult) ExecutionTime() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}

// Decision returns the consensus decision, or FAIL when none was computed.
func (r *AuditResult) Decision() Decision {
	if r.Consensus == nil {
		return DecisionFail
	}
	return r.Consensus.FinalDecision
}
