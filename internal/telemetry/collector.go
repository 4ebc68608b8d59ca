// Package telemetry records auditor call attempts. Workers depend only on the
// Collector interface; the CLI wires OpenTelemetry, tests use a Recorder.
package telemetry

import (
	"context"
	"sync"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
)

// FinishFunc ends an attempt. err is nil on success.
type FinishFunc func(err error)

// Collector observes auditor call attempts.
type Collector interface {
	StartAttempt(ctx context.Context, role models.AuditorRole, stage models.DocumentStage, attempt int) (context.Context, FinishFunc)
}

// Nop discards everything.
type Nop struct{}

func (Nop) StartAttempt(ctx context.Context, _ models.AuditorRole, _ models.DocumentStage, _ int) (context.Context, FinishFunc) {
	return ctx, func(error) {}
}

// Multi fans each attempt out to several collectors.
type Multi []Collector

func (m Multi) StartAttempt(ctx context.Context, role models.AuditorRole, stage models.DocumentStage, attempt int) (context.Context, FinishFunc) {
	finishers := make([]FinishFunc, 0, len(m))
	for _, c := range m {
		var fin FinishFunc
		ctx, fin = c.StartAttempt(ctx, role, stage, attempt)
		finishers = append(finishers, fin)
	}
	return ctx, func(err error) {
		for i := len(finishers) - 1; i >= 0; i-- {
			finishers[i](err)
		}
	}
}

// RoleStats is the per-role tally kept by a Recorder.
type RoleStats struct {
	Attempts  int
	Successes int
	Failures  int
}

// Recorder keeps in-memory counts per role. Safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	stats map[models.AuditorRole]RoleStats
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{stats: make(map[models.AuditorRole]RoleStats)}
}

func (r *Recorder) StartAttempt(ctx context.Context, role models.AuditorRole, _ models.DocumentStage, _ int) (context.Context, FinishFunc) {
	r.mu.Lock()
	s := r.stats[role]
	s.Attempts++
	r.stats[role] = s
	r.mu.Unlock()

	return ctx, func(err error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		s := r.stats[role]
		if err != nil {
			s.Failures++
		} else {
			s.Successes++
		}
		r.stats[role] = s
	}
}

// Stats returns the tally for one role.
func (r *Recorder) Stats(role models.AuditorRole) RoleStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats[role]
}

// TotalAttempts sums attempts across roles.
func (r *Recorder) TotalAttempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, s := range r.stats {
		total += s.Attempts
	}
	return total
}
