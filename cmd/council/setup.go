package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/cache"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/events"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/execution"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/projectconfig"
)

// openCache builds the result cache selected by the project config. A nil
// store means caching is off.
func openCache(pc *projectconfig.ProjectConfig) (cache.Store, error) {
	switch pc.Cache.Backend {
	case projectconfig.CacheBackendNone:
		return nil, nil
	case projectconfig.CacheBackendMemory:
		return cache.NewMemory(), nil
	case projectconfig.CacheBackendFile:
		dir, err := filepath.Abs(pc.Resolve(pc.Cache.Dir))
		if err != nil {
			return nil, fmt.Errorf("resolving cache directory: %w", err)
		}
		return cache.NewFile(dir), nil
	case projectconfig.CacheBackendBlob:
		return cache.NewBlobFromURL(pc.Cache.BlobURL, pc.Cache.Container, pc.Cache.Prefix)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", pc.Cache.Backend)
	}
}

// openEvents starts a dispatcher that logs every event at debug level, feeds
// extra and, when enabled, appends each event to an NDJSON file.
func openEvents(pc *projectconfig.ProjectConfig, logger *slog.Logger, extra ...events.Sink) (*events.Dispatcher, string, error) {
	sinks := append([]events.Sink{events.SlogSink{Logger: logger, Level: slog.LevelDebug}}, extra...)

	var path string
	if pc.Events.Enabled != nil && *pc.Events.Enabled {
		path = pc.Resolve(pc.Events.Path)
		if path == "" {
			path = events.DefaultLogPath(pc.Resolve(projectconfig.DefaultEventDir))
		}
		jl, err := events.NewJSONLogger(path)
		if err != nil {
			return nil, "", err
		}
		sinks = append(sinks, jl)
	}
	return events.NewDispatcher(0, sinks...), path, nil
}

// providerSet is the default provider plus optional per-role overrides.
type providerSet struct {
	fallback execution.Provider
	roles    map[models.AuditorRole]execution.Provider
	close    func() error
}

func newProviders(kind, model, repliesDir string) (*providerSet, error) {
	switch kind {
	case "copilot":
		p := execution.NewCopilotProvider(model, nil)
		return &providerSet{fallback: p, close: p.Close}, nil
	case "scripted":
		return scriptedProviders(repliesDir)
	default:
		return nil, fmt.Errorf("unknown provider %q", kind)
	}
}

// scriptedProviders replays canned replies from dir: <role>.json is the audit
// reply and the optional <role>.debate.json answers every debate round.
func scriptedProviders(dir string) (*providerSet, error) {
	if dir == "" {
		return nil, errors.New("the scripted provider needs --replies")
	}
	set := &providerSet{
		fallback: execution.NewScriptedProvider("scripted"),
		roles:    map[models.AuditorRole]execution.Provider{},
		close:    func() error { return nil },
	}
	for _, role := range models.AllRoles {
		audit, err := os.ReadFile(filepath.Join(dir, string(role)+".json"))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading scripted reply: %w", err)
		}
		replies := []string{string(audit)}

		debateReply, err := os.ReadFile(filepath.Join(dir, string(role)+".debate.json"))
		switch {
		case err == nil:
			replies = append(replies, string(debateReply))
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("reading scripted debate reply: %w", err)
		}
		set.roles[role] = execution.Replies("scripted", replies...)
	}
	if len(set.roles) == 0 {
		return nil, fmt.Errorf("no <role>.json replies found in %s", dir)
	}
	return set, nil
}

// progressEnabled reports whether stderr is an interactive terminal.
func progressEnabled() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func closeQuietly(ctx context.Context, logger *slog.Logger, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.WarnContext(ctx, "close failed", "what", what, "error", err)
	}
}
