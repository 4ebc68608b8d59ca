// Package events carries audit and debate lifecycle notifications to sinks.
// Publishing never blocks and never influences the caller's control flow.
package events

import (
	"time"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
	"github.com/google/uuid"
)

// Kind identifies the type of an event.
type Kind string

const (
	KindAuditStarted           Kind = "audit_started"
	KindAuditCacheHit          Kind = "audit_cache_hit"
	KindAuditCompleted         Kind = "audit_completed"
	KindAuditFailed            Kind = "audit_failed"
	KindDebateSessionStarted   Kind = "debate_session_started"
	KindDebateRoundCompleted   Kind = "debate_round_completed"
	KindDebateSessionCompleted Kind = "debate_session_completed"
	KindDebateSessionFailed    Kind = "debate_session_failed"
	KindDebateSessionCancelled Kind = "debate_session_cancelled"
)

// Event is implemented by every typed event below.
type Event interface {
	Kind() Kind
	ID() string
	Timestamp() time.Time
}

// Header holds the fields common to all events. Embed it in concrete event types.
type Header struct {
	EventID    string    `json:"id"`
	EventKind  Kind      `json:"kind"`
	OccurredAt time.Time `json:"timestamp"`
}

func (h Header) Kind() Kind           { return h.EventKind }
func (h Header) ID() string           { return h.EventID }
func (h Header) Timestamp() time.Time { return h.OccurredAt }

func newHeader(kind Kind) Header {
	return Header{
		EventID:    uuid.NewString(),
		EventKind:  kind,
		OccurredAt: time.Now().UTC(),
	}
}

// AuditStarted is emitted before any auditor is scheduled.
type AuditStarted struct {
	Header
	RequestID string               `json:"request_id"`
	Stage     models.DocumentStage `json:"stage"`
	Roles     []models.AuditorRole `json:"roles"`
}

// NewAuditStarted creates an AuditStarted event.
func NewAuditStarted(requestID string, stage models.DocumentStage, roles []models.AuditorRole) AuditStarted {
	return AuditStarted{Header: newHeader(KindAuditStarted), RequestID: requestID, Stage: stage, Roles: roles}
}

// AuditCacheHit is emitted when a cached result is returned. RequestID is the
// request being served; CachedRequestID is the one that produced the result.
type AuditCacheHit struct {
	Header
	RequestID       string               `json:"request_id"`
	CachedRequestID string               `json:"cached_request_id"`
	Stage           models.DocumentStage `json:"stage"`
	CacheKey        string               `json:"cache_key"`
}

// NewAuditCacheHit creates an AuditCacheHit event.
func NewAuditCacheHit(requestID, cachedRequestID string, stage models.DocumentStage, key string) AuditCacheHit {
	return AuditCacheHit{
		Header:          newHeader(KindAuditCacheHit),
		RequestID:       requestID,
		CachedRequestID: cachedRequestID,
		Stage:           stage,
		CacheKey:        key,
	}
}

// AuditCompleted is emitted when an audit produced a result, successful or not.
type AuditCompleted struct {
	Header
	RequestID           string               `json:"request_id"`
	Stage               models.DocumentStage `json:"stage"`
	Success             bool                 `json:"success"`
	Decision            models.Decision      `json:"decision"`
	Responses           int                  `json:"responses"`
	FailedRoles         []models.AuditorRole `json:"failed_roles,omitempty"`
	DurationMs          int64                `json:"duration_ms"`
	RequiresHumanReview bool                 `json:"requires_human_review"`
}

// NewAuditCompleted summarises result as an AuditCompleted event.
func NewAuditCompleted(result *models.AuditResult) AuditCompleted {
	return AuditCompleted{
		Header:              newHeader(KindAuditCompleted),
		RequestID:           result.RequestID,
		Stage:               result.Stage,
		Success:             result.Success,
		Decision:            result.Decision(),
		Responses:           len(result.Responses),
		FailedRoles:         result.FailedRoles,
		DurationMs:          result.DurationMs,
		RequiresHumanReview: result.RequiresHumanReview,
	}
}

// AuditFailed is emitted when an audit could not produce a result at all,
// including when no auditor responded.
type AuditFailed struct {
	Header
	RequestID string               `json:"request_id"`
	Stage     models.DocumentStage `json:"stage"`
	Error     string               `json:"error"`
}

// NewAuditFailed creates an AuditFailed event.
func NewAuditFailed(requestID string, stage models.DocumentStage, err error) AuditFailed {
	return AuditFailed{Header: newHeader(KindAuditFailed), RequestID: requestID, Stage: stage, Error: err.Error()}
}

// DebateSessionStarted is emitted when a debate leaves PENDING.
type DebateSessionStarted struct {
	Header
	SessionID    string               `json:"session_id"`
	Stage        models.DocumentStage `json:"stage"`
	Participants []models.AuditorRole `json:"participants"`
	MaxRounds    int                  `json:"max_rounds"`
}

// NewDebateSessionStarted creates a DebateSessionStarted event.
func NewDebateSessionStarted(sessionID string, stage models.DocumentStage, participants []models.AuditorRole, maxRounds int) DebateSessionStarted {
	return DebateSessionStarted{
		Header:       newHeader(KindDebateSessionStarted),
		SessionID:    sessionID,
		Stage:        stage,
		Participants: participants,
		MaxRounds:    maxRounds,
	}
}

// DebateRoundCompleted is emitted after each successful round.
type DebateRoundCompleted struct {
	Header
	SessionID     string           `json:"session_id"`
	Round         int              `json:"round"`
	RoundKind     models.RoundKind `json:"round_kind"`
	Consensus     int              `json:"consensus_themes"`
	Disagreements int              `json:"disagreements"`
	DurationMs    int64            `json:"duration_ms"`
}

// NewDebateRoundCompleted creates a DebateRoundCompleted event.
func NewDebateRoundCompleted(sessionID string, round *models.DebateRound) DebateRoundCompleted {
	return DebateRoundCompleted{
		Header:        newHeader(KindDebateRoundCompleted),
		SessionID:     sessionID,
		Round:         round.Number,
		RoundKind:     round.Kind,
		Consensus:     len(round.ConsensusThemes),
		Disagreements: len(round.Disagreements),
		DurationMs:    round.DurationMs,
	}
}

// DebateSessionCompleted is emitted when a debate reaches COMPLETED.
type DebateSessionCompleted struct {
	Header
	SessionID      string  `json:"session_id"`
	Rounds         int     `json:"rounds"`
	FinalConsensus int     `json:"final_consensus"`
	Unresolved     int     `json:"unresolved"`
	ConsensusScore float64 `json:"consensus_score"`
}

// NewDebateSessionCompleted creates a DebateSessionCompleted event.
func NewDebateSessionCompleted(s *models.DebateSession) DebateSessionCompleted {
	return DebateSessionCompleted{
		Header:         newHeader(KindDebateSessionCompleted),
		SessionID:      s.ID,
		Rounds:         len(s.Rounds),
		FinalConsensus: len(s.FinalConsensus),
		Unresolved:     len(s.UnresolvedIssues),
		ConsensusScore: s.ConsensusScore,
	}
}

// DebateSessionFailed is emitted when a round errors.
type DebateSessionFailed struct {
	Header
	SessionID string `json:"session_id"`
	Round     int    `json:"round"`
	Error     string `json:"error"`
}

// NewDebateSessionFailed creates a DebateSessionFailed event.
func NewDebateSessionFailed(sessionID string, round int, err error) DebateSessionFailed {
	return DebateSessionFailed{Header: newHeader(KindDebateSessionFailed), SessionID: sessionID, Round: round, Error: err.Error()}
}

// DebateSessionCancelled is emitted when a debate is cancelled.
type DebateSessionCancelled struct {
	Header
	SessionID       string `json:"session_id"`
	CompletedRounds int    `json:"completed_rounds"`
}

// NewDebateSessionCancelled creates a DebateSessionCancelled event.
func NewDebateSessionCancelled(sessionID string, completedRounds int) DebateSessionCancelled {
	return DebateSessionCancelled{Header: newHeader(KindDebateSessionCancelled), SessionID: sessionID, CompletedRounds: completedRounds}
}
