package execution

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoScript is returned by a ScriptedProvider with no steps.
var ErrNoScript = errors.New("scripted provider has no steps")

// Step is one scripted outcome of a ScriptedProvider call.
type Step struct {
	Reply string
	Err   error
	// Delay is waited out before replying; ctx cancellation cuts it short.
	Delay time.Duration
}

// ScriptedProvider replays steps in order, one per call, repeating the last
// step once the script runs out. Useful for offline runs and tests.
type ScriptedProvider struct {
	name string

	mu    sync.Mutex
	steps []Step
	calls int
	seen  []*CompletionRequest
}

// NewScriptedProvider creates a provider that replays steps.
func NewScriptedProvider(name string, steps ...Step) *ScriptedProvider {
	return &ScriptedProvider{name: name, steps: steps}
}

// Replies is shorthand for a script of plain replies.
func Replies(name string, replies ...string) *ScriptedProvider {
	steps := make([]Step, len(replies))
	for i, r := range replies {
		steps[i] = Step{Reply: r}
	}
	return NewScriptedProvider(name, steps...)
}

func (p *ScriptedProvider) Name() string { return p.name }

func (p *ScriptedProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	p.mu.Lock()
	if len(p.steps) == 0 {
		p.mu.Unlock()
		return nil, ErrNoScript
	}
	step := p.steps[min(p.calls, len(p.steps)-1)]
	p.calls++
	p.seen = append(p.seen, req)
	p.mu.Unlock()

	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if step.Err != nil {
		return nil, step.Err
	}

	return &CompletionResponse{
		Text:       step.Reply,
		Model:      req.Model,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// Calls returns how many times Complete was invoked.
func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Requests returns the requests seen so far.
func (p *ScriptedProvider) Requests() []*CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*CompletionRequest(nil), p.seen...)
}
