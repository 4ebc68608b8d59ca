package execution

//go:generate go tool mockgen -source=provider.go -destination=provider_mock.go -package=execution

import (
	"context"
)

// Provider completes one prompt against one model. Implementations must honour
// ctx cancellation and deadlines.
type Provider interface {
	// Name identifies the provider in logs and cache keys.
	Name() string

	// Complete sends the prompt and returns the model's full reply text.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is one prompt for one model.
type CompletionRequest struct {
	// Model overrides the provider's default model when set.
	Model  string
	Prompt string

	// Attachments are written into the provider's working directory, if it has one.
	Attachments []Attachment
}

// Attachment is a file made available to the model alongside the prompt.
type Attachment struct {
	Path    string
	Content string
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	Text       string
	Model      string
	SessionID  string
	DurationMs int64
}
