package execution

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	copilot "github.com/github/copilot-sdk/go"
)

const sessionFailedUnknown = "session failed with unknown error"

// replyCollector gathers assistant output from a copilot session. Events may
// arrive on the SDK's goroutine, so access is locked.
type replyCollector struct {
	mu       sync.Mutex
	messages []string
	errorMsg string
}

// On is a callback, intended to be passed to [copilot.Session.On].
func (c *replyCollector) On(event copilot.SessionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch event.Type {
	case copilot.AssistantMessage:
		if event.Data.Content != nil {
			c.messages = append(c.messages, *event.Data.Content)
		}
	case copilot.SessionError:
		if event.Data.Message == nil || *event.Data.Message == "" {
			c.errorMsg = sessionFailedUnknown
		} else {
			c.errorMsg = *event.Data.Message
		}
	}
}

// Text returns the last non-empty assistant message. Structured replies arrive
// as the final message; earlier ones are narration.
func (c *replyCollector) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.messages) - 1; i >= 0; i-- {
		if strings.TrimSpace(c.messages[i]) != "" {
			return c.messages[i]
		}
	}
	return ""
}

// ErrorMessage returns the session error, if any.
func (c *replyCollector) ErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorMsg
}

// sessionToSlog logs session events at debug level.
func sessionToSlog(event copilot.SessionEvent) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := []any{
		"type", event.Type,
	}

	attrs = addIf(attrs, "content", event.Data.Content)
	attrs = addIf(attrs, "toolName", event.Data.ToolName)
	attrs = addIf(attrs, "message", event.Data.Message)

	slog.Debug("Event received", attrs...)
}

func addIf[T any](attrs []any, name string, v *T) []any {
	if v != nil {
		attrs = append(attrs, name, *v)
	}
	return attrs
}
