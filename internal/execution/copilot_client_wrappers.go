package execution

//go:generate go tool mockgen -source=copilot_client_wrappers.go -destination=copilot_client_mock_test.go -package=execution

import (
	"context"

	copilot "github.com/github/copilot-sdk/go"
)

// copilotClient is the part of [*copilot.Client] the provider drives. Tests
// substitute the generated MockcopilotClient.
type copilotClient interface {
	Start(ctx context.Context) error
	Stop() error
	CreateSession(ctx context.Context, config *copilot.SessionConfig) (copilotSession, error)
}

// copilotSession is the part of [*copilot.Session] one completion needs.
type copilotSession interface {
	On(handler copilot.SessionEventHandler) func()
	SendAndWait(ctx context.Context, options copilot.MessageOptions) (*copilot.SessionEvent, error)
	// SessionID is a field on the SDK type, hence the wrapper.
	SessionID() string
}

func newCopilotClient(clientOptions *copilot.ClientOptions) copilotClient {
	return sdkClient{copilot.NewClient(clientOptions)}
}

type sdkClient struct{ *copilot.Client }

func (c sdkClient) CreateSession(ctx context.Context, config *copilot.SessionConfig) (copilotSession, error) {
	s, err := c.Client.CreateSession(ctx, config)
	if err != nil {
		return nil, err
	}
	return sdkSession{s}, nil
}

type sdkSession struct{ s *copilot.Session }

func (s sdkSession) On(handler copilot.SessionEventHandler) func() { return s.s.On(handler) }

func (s sdkSession) SendAndWait(ctx context.Context, options copilot.MessageOptions) (*copilot.SessionEvent, error) {
	return s.s.SendAndWait(ctx, options)
}

func (s sdkSession) SessionID() string { return s.s.SessionID }
