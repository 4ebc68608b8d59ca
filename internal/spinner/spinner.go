// Package spinner draws a one-line progress indicator while an audit runs.
package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/events"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const interval = 80 * time.Millisecond

// Spinner redraws its current message on w until stopped.
type Spinner struct {
	w io.Writer

	mu      sync.Mutex
	message string
	drawn   int // display width of the last frame

	done     chan struct{}
	cleared  chan struct{}
	stopOnce sync.Once
}

// Start displays an animated spinner with the given message on w.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		w:       w,
		message: message,
		done:    make(chan struct{}),
		cleared: make(chan struct{}),
	}
	go s.run()
	return s
}

// Update replaces the message shown next to the spinner.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Message returns the current message.
func (s *Spinner) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// Stop halts the animation and clears the line. Safe to call more than once.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	<-s.cleared
}

func (s *Spinner) run() {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-s.done:
			s.mu.Lock()
			fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.drawn)) //nolint:errcheck
			s.mu.Unlock()
			close(s.cleared)
			return
		case <-ticker.C:
			s.mu.Lock()
			line := frames[i%len(frames)] + " " + s.message
			width := runewidth.StringWidth(line)
			pad := ""
			if width < s.drawn {
				pad = strings.Repeat(" ", s.drawn-width)
			}
			fmt.Fprintf(s.w, "\r%s%s", line, pad) //nolint:errcheck
			s.drawn = width
			s.mu.Unlock()
		}
	}
}

// Sink narrates audit and debate events as spinner messages.
func (s *Spinner) Sink() events.Sink {
	return events.SinkFunc(func(e events.Event) error {
		if msg := Describe(e); msg != "" {
			s.Update(msg)
		}
		return nil
	})
}

// Describe returns a short progress line for e, or "" for events that do not
// change what the user is waiting on.
func Describe(e events.Event) string {
	switch ev := e.(type) {
	case events.AuditStarted:
		return fmt.Sprintf("Auditing %s with %d auditors", ev.Stage, len(ev.Roles))
	case events.DebateSessionStarted:
		return fmt.Sprintf("Auditors disagree, debating (up to %d rounds)", ev.MaxRounds)
	case events.DebateRoundCompleted:
		return fmt.Sprintf("Debate round %d done: %d shared themes, %d disagreements", ev.Round, ev.Consensus, ev.Disagreements)
	case events.DebateSessionCompleted, events.DebateSessionFailed, events.DebateSessionCancelled:
		return "Finishing audit"
	}
	return ""
}
