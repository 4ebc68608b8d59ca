// Package config holds the orchestrator tuning options: defaults, decoding
// from a loosely typed map, COUNCIL_* environment overrides and validation.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-viper/mapstructure/v2"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
)

// Default option values.
const (
	DefaultMaxParallel           = 4
	DefaultTimeoutSeconds        = 60
	DefaultMaxRetries            = 3
	DefaultScoreThreshold        = 3.8
	DefaultApprovalThreshold     = 0.67
	DefaultTrimPercentage        = 0.1
	DefaultDisagreementThreshold = 1.0
	DefaultMaxDebateRounds       = 3
	DefaultCacheTTLSeconds       = 86400
	DefaultModel                 = "claude-sonnet-4.6"
)

// Options tunes one orchestrator. Keys are camelCase in config files.
type Options struct {
	MaxParallel           int                `mapstructure:"maxParallel"`
	MaxCallsTotal         int                `mapstructure:"maxCallsTotal"`
	TimeoutSeconds        float64            `mapstructure:"timeoutSeconds"`
	MaxRetries            int                `mapstructure:"maxRetries"`
	RetryBackoffSeconds   float64            `mapstructure:"retryBackoffSeconds"`
	ScoreThreshold        float64            `mapstructure:"scoreThreshold"`
	ApprovalThreshold     float64            `mapstructure:"approvalThreshold"`
	TrimPercentage        float64            `mapstructure:"trimPercentage"`
	BlockingGates         map[string]int     `mapstructure:"blockingGates"`
	DisagreementThreshold float64            `mapstructure:"disagreementThreshold"`
	MaxDebateRounds       int                `mapstructure:"maxDebateRounds"`
	MinQuorum             int                `mapstructure:"minQuorum"`
	CacheTTLSeconds       int                `mapstructure:"cacheTTLSeconds"`
	EnableDebate          bool               `mapstructure:"enableDebate"`
	Model                 string             `mapstructure:"model"`
	RoleModels            map[string]string  `mapstructure:"roleModels"`
	RoleWeights           map[string]float64 `mapstructure:"roleWeights"`
}

// Default returns the built-in options.
func Default() Options {
	return Options{
		MaxParallel:           DefaultMaxParallel,
		TimeoutSeconds:        DefaultTimeoutSeconds,
		MaxRetries:            DefaultMaxRetries,
		ScoreThreshold:        DefaultScoreThreshold,
		ApprovalThreshold:     DefaultApprovalThreshold,
		TrimPercentage:        DefaultTrimPercentage,
		BlockingGates:         map[string]int{"critical": 0, "high": 2, "medium": 5},
		DisagreementThreshold: DefaultDisagreementThreshold,
		MaxDebateRounds:       DefaultMaxDebateRounds,
		CacheTTLSeconds:       DefaultCacheTTLSeconds,
		EnableDebate:          true,
		Model:                 DefaultModel,
	}
}

// Decode overlays raw onto the defaults. Unknown keys are an error.
func Decode(raw map[string]any) (Options, error) {
	opts := Default()
	if len(raw) == 0 {
		return opts, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return opts, err
	}
	if err := dec.Decode(raw); err != nil {
		return opts, fmt.Errorf("decoding options: %w", err)
	}
	return opts, nil
}

// envOverrides mirrors Options for COUNCIL_* variables. Nil pointers and
// maps mean the variable was not set.
type envOverrides struct {
	MaxParallel           *int               `env:"MAX_PARALLEL"`
	MaxCallsTotal         *int               `env:"MAX_CALLS_TOTAL"`
	TimeoutSeconds        *float64           `env:"TIMEOUT_SECONDS"`
	MaxRetries            *int               `env:"MAX_RETRIES"`
	RetryBackoffSeconds   *float64           `env:"RETRY_BACKOFF_SECONDS"`
	ScoreThreshold        *float64           `env:"SCORE_THRESHOLD"`
	ApprovalThreshold     *float64           `env:"APPROVAL_THRESHOLD"`
	TrimPercentage        *float64           `env:"TRIM_PERCENTAGE"`
	DisagreementThreshold *float64           `env:"DISAGREEMENT_THRESHOLD"`
	MaxDebateRounds       *int               `env:"MAX_DEBATE_ROUNDS"`
	MinQuorum             *int               `env:"MIN_QUORUM"`
	CacheTTLSeconds       *int               `env:"CACHE_TTL_SECONDS"`
	EnableDebate          *bool              `env:"ENABLE_DEBATE"`
	Model                 *string            `env:"MODEL"`
	BlockingGates         map[string]int     `env:"BLOCKING_GATES"`
	RoleModels            map[string]string  `env:"ROLE_MODELS"`
	RoleWeights           map[string]float64 `env:"ROLE_WEIGHTS"`
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COUNCIL_"

// ApplyEnv overlays COUNCIL_* variables onto opts. environ replaces the
// process environment when non-nil. Map variables use key:value pairs
// separated by commas, e.g. COUNCIL_ROLE_MODELS=pm:gpt-5,security:o3.
func ApplyEnv(opts *Options, environ map[string]string) error {
	var ov envOverrides
	if err := env.ParseWithOptions(&ov, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	setIf(&opts.MaxParallel, ov.MaxParallel)
	setIf(&opts.MaxCallsTotal, ov.MaxCallsTotal)
	setIf(&opts.TimeoutSeconds, ov.TimeoutSeconds)
	setIf(&opts.MaxRetries, ov.MaxRetries)
	setIf(&opts.RetryBackoffSeconds, ov.RetryBackoffSeconds)
	setIf(&opts.ScoreThreshold, ov.ScoreThreshold)
	setIf(&opts.ApprovalThreshold, ov.ApprovalThreshold)
	setIf(&opts.TrimPercentage, ov.TrimPercentage)
	setIf(&opts.DisagreementThreshold, ov.DisagreementThreshold)
	setIf(&opts.MaxDebateRounds, ov.MaxDebateRounds)
	setIf(&opts.MinQuorum, ov.MinQuorum)
	setIf(&opts.CacheTTLSeconds, ov.CacheTTLSeconds)
	setIf(&opts.EnableDebate, ov.EnableDebate)
	setIf(&opts.Model, ov.Model)
	if ov.BlockingGates != nil {
		opts.BlockingGates = ov.BlockingGates
	}
	if ov.RoleModels != nil {
		opts.RoleModels = ov.RoleModels
	}
	if ov.RoleWeights != nil {
		opts.RoleWeights = ov.RoleWeights
	}
	return nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Load decodes raw, applies the process environment and validates the result.
func Load(raw map[string]any) (Options, error) {
	opts, err := Decode(raw)
	if err != nil {
		return opts, err
	}
	if err := ApplyEnv(&opts, nil); err != nil {
		return opts, err
	}
	return opts, opts.Validate()
}

// Validate reports every out-of-range option.
func (o *Options) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(o.MaxParallel >= 1, "maxParallel must be at least 1, got %d", o.MaxParallel)
	check(o.MaxCallsTotal >= 0, "maxCallsTotal must not be negative, got %d", o.MaxCallsTotal)
	check(o.TimeoutSeconds > 0, "timeoutSeconds must be positive, got %g", o.TimeoutSeconds)
	check(o.MaxRetries >= 1, "maxRetries must be at least 1, got %d", o.MaxRetries)
	check(o.RetryBackoffSeconds >= 0, "retryBackoffSeconds must not be negative, got %g", o.RetryBackoffSeconds)
	check(o.ScoreThreshold >= 1 && o.ScoreThreshold <= 5, "scoreThreshold must be within 1-5, got %g", o.ScoreThreshold)
	check(o.ApprovalThreshold >= 0 && o.ApprovalThreshold <= 1, "approvalThreshold must be within 0-1, got %g", o.ApprovalThreshold)
	check(o.TrimPercentage >= 0 && o.TrimPercentage < 0.5, "trimPercentage must be within [0, 0.5), got %g", o.TrimPercentage)
	check(o.DisagreementThreshold >= 0, "disagreementThreshold must not be negative, got %g", o.DisagreementThreshold)
	check(o.MaxDebateRounds >= 1, "maxDebateRounds must be at least 1, got %d", o.MaxDebateRounds)
	check(o.MinQuorum >= 0, "minQuorum must not be negative, got %d", o.MinQuorum)
	check(o.CacheTTLSeconds >= 0, "cacheTTLSeconds must not be negative, got %d", o.CacheTTLSeconds)
	check(o.Model != "", "model must be set")
	for sev, limit := range o.BlockingGates {
		check(models.Severity(sev).Valid(), "blockingGates: unknown severity %q", sev)
		check(limit >= 0, "blockingGates.%s must not be negative, got %d", sev, limit)
	}
	for role, model := range o.RoleModels {
		check(models.AuditorRole(role).Valid(), "roleModels: unknown role %q", role)
		check(model != "", "roleModels.%s must not be empty", role)
	}
	for role, w := range o.RoleWeights {
		check(models.AuditorRole(role).Valid(), "roleWeights: unknown role %q", role)
		check(w >= 0, "roleWeights.%s must not be negative, got %g", role, w)
	}
	return errors.Join(errs...)
}

// Timeout is the deadline of every single provider call, audit attempts and
// debate turns alike.
func (o *Options) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds * float64(time.Second))
}

func (o *Options) RetryBackoff() time.Duration {
	return time.Duration(o.RetryBackoffSeconds * float64(time.Second))
}

func (o *Options) CacheTTL() time.Duration {
	return time.Duration(o.CacheTTLSeconds) * time.Second
}

// Gates returns the blocking gates keyed by severity.
func (o *Options) Gates() map[models.Severity]int {
	gates := make(map[models.Severity]int, len(o.BlockingGates))
	for sev, limit := range o.BlockingGates {
		gates[models.Severity(sev)] = limit
	}
	return gates
}

// Weights returns role weights for the consensus engine, or nil when none
// are configured.
func (o *Options) Weights() map[models.AuditorRole]float64 {
	if len(o.RoleWeights) == 0 {
		return nil
	}
	weights := make(map[models.AuditorRole]float64, len(o.RoleWeights))
	for role, w := range o.RoleWeights {
		weights[models.AuditorRole(role)] = w
	}
	return weights
}

// ModelFor returns the model configured for role, falling back to Model.
func (o *Options) ModelFor(role models.AuditorRole) string {
	if m := o.RoleModels[string(role)]; m != "" {
		return m
	}
	return o.Model
}
