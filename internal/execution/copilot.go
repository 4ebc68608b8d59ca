package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	copilot "github.com/github/copilot-sdk/go"
)

// ErrEmptyReply is returned when a session finishes without assistant output.
var ErrEmptyReply = errors.New("copilot session produced no reply")

// CopilotProvider completes prompts through the GitHub Copilot SDK. Each
// completion gets a fresh session and a throwaway working directory.
type CopilotProvider struct {
	defaultModel string

	client copilotClient

	// startMu serialises Start; copilot's AutoStart misbehaves when several
	// goroutines race to start it. A failed start is retried by the next call.
	startMu sync.Mutex
	started bool

	workspacesMu sync.Mutex
	workspaces   []string // removed at Close
}

// CopilotProviderOptions customises how the provider is built.
type CopilotProviderOptions struct {
	NewCopilotClient func(clientOptions *copilot.ClientOptions) copilotClient
}

// NewCopilotProvider creates a provider.
//   - defaultModel - used when a request doesn't name a model. Can be blank, which means the copilot
//     CLI will choose its own fallback model.
func NewCopilotProvider(defaultModel string, options *CopilotProviderOptions) *CopilotProvider {
	copilotOptions := &copilot.ClientOptions{
		// working directory is set per session.
		LogLevel:  "error",
		AutoStart: copilot.Bool(false),
	}

	var client copilotClient
	if options == nil || options.NewCopilotClient == nil {
		client = newCopilotClient(copilotOptions)
	} else {
		client = options.NewCopilotClient(copilotOptions)
	}

	return &CopilotProvider{
		defaultModel: defaultModel,
		client:       client,
	}
}

func (p *CopilotProvider) Name() string { return "copilot" }

// Complete runs the prompt in a new session and returns the final assistant message.
func (p *CopilotProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil req was passed to CopilotProvider.Complete")
	}

	if err := p.ensureStarted(ctx); err != nil {
		return nil, fmt.Errorf("copilot failed to start: %w", err)
	}

	model := p.defaultModel
	if req.Model != "" {
		model = req.Model
	}

	start := time.Now()

	workspaceDir, err := p.setupWorkspace(req.Attachments)
	if err != nil {
		return nil, err
	}

	session, err := p.client.CreateSession(ctx, &copilot.SessionConfig{
		Model:               model,
		OnPermissionRequest: allowAllTools,
		WorkingDirectory:    workspaceDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	collector := &replyCollector{}

	unsubscribe := session.On(collector.On)
	defer unsubscribe()

	unsubscribe = session.On(sessionToSlog)
	defer unsubscribe()

	final, err := session.SendAndWait(ctx, copilot.MessageOptions{
		Prompt: req.Prompt,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("copilot session %s: %w", session.SessionID(), err)
	}
	if msg := collector.ErrorMessage(); msg != "" {
		return nil, fmt.Errorf("copilot session %s: %s", session.SessionID(), msg)
	}

	text := collector.Text()
	if final != nil && final.Data.Content != nil && *final.Data.Content != "" {
		text = *final.Data.Content
	}
	if text == "" {
		return nil, ErrEmptyReply
	}

	return &CompletionResponse{
		Text:       text,
		Model:      model,
		SessionID:  session.SessionID(),
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

func (p *CopilotProvider) ensureStarted(ctx context.Context) error {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	if p.started {
		return nil
	}
	if err := p.client.Start(ctx); err != nil {
		return err
	}
	p.started = true
	return nil
}

// Close stops the copilot client and removes session workspaces.
func (p *CopilotProvider) Close() error {
	if err := p.client.Stop(); err != nil {
		slog.Info("failed to stop client", "error", err)
	}

	p.workspacesMu.Lock()
	workspaces := p.workspaces
	p.workspaces = nil
	p.workspacesMu.Unlock()

	for _, ws := range workspaces {
		if err := os.RemoveAll(ws); err != nil {
			slog.Warn("failed to cleanup stale workspace", "path", ws, "error", err)
		}
	}
	return nil
}

func (p *CopilotProvider) setupWorkspace(attachments []Attachment) (string, error) {
	workspaceDir, err := os.MkdirTemp("", "council-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp workspace: %w", err)
	}

	p.workspacesMu.Lock()
	p.workspaces = append(p.workspaces, workspaceDir)
	p.workspacesMu.Unlock()

	if err := writeAttachments(workspaceDir, attachments); err != nil {
		return "", fmt.Errorf("failed to write attachments to workspace %s: %w", workspaceDir, err)
	}
	return workspaceDir, nil
}

func allowAllTools(request copilot.PermissionRequest, invocation copilot.PermissionInvocation) (copilot.PermissionRequestResult, error) {
	// value for 'Kind' came from the permissions_test.go in the Copilot SDK.
	return copilot.PermissionRequestResult{Kind: "approved"}, nil
}
