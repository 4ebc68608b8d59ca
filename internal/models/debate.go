package models

import "time"

// DebateStatus is the lifecycle state of a council debate session.
type DebateStatus string

const (
	DebateStatusPending    DebateStatus = "PENDING"
	DebateStatusInProgress DebateStatus = "IN_PROGRESS"
	DebateStatusCompleted  DebateStatus = "COMPLETED"
	DebateStatusFailed     DebateStatus = "FAILED"
	DebateStatusCancelled  DebateStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed.
func (s DebateStatus) Terminal() bool {
	switch s {
	case DebateStatusCompleted, DebateStatusFailed, DebateStatusCancelled:
		return true
	}
	return false
}

// RoundKind distinguishes the opening round from peer-response rounds.
type RoundKind string

const (
	RoundInitialReview RoundKind = "initial_review"
	RoundPeerResponse  RoundKind = "peer_response"
)

// RoundStatus is the outcome of a single debate round.
type RoundStatus string

const (
	RoundStatusCompleted RoundStatus = "completed"
	RoundStatusFailed    RoundStatus = "failed"
	RoundStatusCancelled RoundStatus = "cancelled"
)

// InitialReview is a participant's independent first-round review.
type InitialReview struct {
	Role            AuditorRole `json:"role"`
	Summary         string      `json:"summary"`
	KeyPoints       []string    `json:"key_points"`
	TopRisks        []string    `json:"top_risks"`
	Recommendations []string    `json:"recommendations"`
	Score           float64     `json:"score,omitempty"`
}

// PeerResponse is a participant's reply after reading the prior rounds.
type PeerResponse struct {
	Role          AuditorRole `json:"role"`
	Agreements    []string    `json:"agreements"`
	Counterpoints []string    `json:"counterpoints"`
	Questions     []string    `json:"questions"`
}

// DebateRound records one round of the council debate.
type DebateRound struct {
	Number          int             `json:"number"`
	Kind            RoundKind       `json:"kind"`
	Participants    []AuditorRole   `json:"participants"`
	InitialReviews  []InitialReview `json:"initial_reviews,omitempty"`
	PeerResponses   []PeerResponse  `json:"peer_responses,omitempty"`
	ConsensusThemes []string        `json:"consensus_themes"`
	Disagreements   []string        `json:"disagreements"`
	Questions       []string        `json:"questions,omitempty"`
	DurationMs      int64           `json:"duration_ms"`
	Status          RoundStatus     `json:"status"`
}

// Converged reports whether this round meets the early-stop condition.
func (r *DebateRound) Converged(minThemes int) bool {
	return len(r.ConsensusThemes) > len(r.Disagreements) && len(r.ConsensusThemes) >= minThemes
}

// ParticipantState tracks whether a participant is currently working on a round.
type ParticipantState struct {
	Role      AuditorRole `json:"role"`
	Active    bool        `json:"active"`
	LastRound int         `json:"last_round"`
}

// DebateSession aggregates every round of one document debate.
type DebateSession struct {
	ID               string             `json:"id"`
	Stage            DocumentStage      `json:"stage"`
	Status           DebateStatus       `json:"status"`
	Participants     []ParticipantState `json:"participants"`
	Rounds           []DebateRound      `json:"rounds"`
	FinalConsensus   []string           `json:"final_consensus"`
	UnresolvedIssues []string           `json:"unresolved_issues"`
	ConsensusScore   float64            `json:"consensus_score"`
	Error            string             `json:"error,omitempty"`
	StartedAt        time.Time          `json:"started_at"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
}

// Converged reports whether the session completed with nothing left unresolved.
func (s *DebateSession) Converged() bool {
	return s != nil && s.Status == DebateStatusCompleted && len(s.UnresolvedIssues) == 0
}
