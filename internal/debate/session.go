package debate

import (
	"slices"
	"sync"
	"time"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/events"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
	"github.com/google/uuid"
)

// Session is one debate. The coordinator owns it while it runs; the mutex
// exists so Cancel and Snapshot can be called from other goroutines.
type Session struct {
	mu           sync.Mutex
	data         models.DebateSession
	participants []Participant
	publisher    events.Publisher
	stop         func()
}

func newSession(stage models.DocumentStage, participants []Participant, publisher events.Publisher) *Session {
	states := make([]models.ParticipantState, len(participants))
	for i, p := range participants {
		states[i] = models.ParticipantState{Role: p.Role()}
	}
	return &Session{
		data: models.DebateSession{
			ID:               uuid.NewString(),
			Stage:            stage,
			Status:           models.DebateStatusPending,
			Participants:     states,
			Rounds:           []models.DebateRound{},
			FinalConsensus:   []string{},
			UnresolvedIssues: []string{},
		},
		participants: participants,
		publisher:    publisher,
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ID
}

// Status returns the current lifecycle state.
func (s *Session) Status() models.DebateStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Status
}

// Snapshot returns a copy of the session data.
func (s *Session) Snapshot() *models.DebateSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.data
	cp.Participants = slices.Clone(s.data.Participants)
	cp.Rounds = slices.Clone(s.data.Rounds)
	cp.FinalConsensus = slices.Clone(s.data.FinalConsensus)
	cp.UnresolvedIssues = slices.Clone(s.data.UnresolvedIssues)
	if s.data.CompletedAt != nil {
		t := *s.data.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// Cancel moves a pending or running session to CANCELLED and stops the
// running round. It returns false if the session had already finished.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	if s.data.Status.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.finishLocked(models.DebateStatusCancelled, "")
	stop := s.stop
	completed := len(s.data.Rounds)
	id := s.data.ID
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.publisher.Publish(events.NewDebateSessionCancelled(id, completed))
	return true
}

// start moves PENDING to IN_PROGRESS. It returns false for any other state.
func (s *Session) start(stop func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Status != models.DebateStatusPending {
		return false
	}
	s.data.Status = models.DebateStatusInProgress
	s.data.StartedAt = time.Now().UTC()
	s.stop = stop
	return true
}

func (s *Session) setActive(role models.AuditorRole, active bool, round int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.Participants {
		if s.data.Participants[i].Role == role {
			s.data.Participants[i].Active = active && !s.data.Status.Terminal()
			if active {
				s.data.Participants[i].LastRound = round
			}
		}
	}
}

// appendRound records a finished round. It returns false if the session left
// IN_PROGRESS while the round ran.
func (s *Session) appendRound(r models.DebateRound) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Status != models.DebateStatusInProgress {
		return false
	}
	s.data.Rounds = append(s.data.Rounds, r)
	return true
}

func (s *Session) rounds() []models.DebateRound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data.Rounds)
}

// complete records the outcome and moves to COMPLETED.
func (s *Session) complete(final, unresolved []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Status != models.DebateStatusInProgress {
		return false
	}
	s.data.FinalConsensus = final
	s.data.UnresolvedIssues = unresolved
	s.data.ConsensusScore = consensusScore(final, unresolved)
	s.finishLocked(models.DebateStatusCompleted, "")
	return true
}

// transition moves a non-terminal session to status. It returns false if the
// session had already finished.
func (s *Session) transition(status models.DebateStatus, errMsg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Status.Terminal() {
		return false
	}
	s.finishLocked(status, errMsg)
	return true
}

func (s *Session) finishLocked(status models.DebateStatus, errMsg string) {
	now := time.Now().UTC()
	s.data.Status = status
	s.data.Error = errMsg
	s.data.CompletedAt = &now
	for i := range s.data.Participants {
		s.data.Participants[i].Active = false
	}
}
