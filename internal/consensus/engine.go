// Package consensus reduces a set of auditor responses to a single decision.
package consensus

import (
	"fmt"
	"math"
	"slices"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/statistics"
)

const (
	DefaultScoreThreshold        = 3.8
	DefaultApprovalThreshold     = 0.67
	DefaultTrimPercentage        = 0.1
	DefaultDisagreementThreshold = 1.0

	// maxVariance is the variance of scores split evenly between 1 and 5.
	maxVariance = 4.0
)

// DefaultBlockingGates returns the per-severity ceilings. Severities absent
// from the map are not gated.
func DefaultBlockingGates() map[models.Severity]int {
	return map[models.Severity]int{
		models.SeverityCritical: 0,
		models.SeverityHigh:     2,
		models.SeverityMedium:   5,
	}
}

// InsufficientResponsesError is returned when there is nothing to reduce.
type InsufficientResponsesError struct {
	Got  int
	Need int
}

func (e *InsufficientResponsesError) Error() string {
	return fmt.Sprintf("insufficient auditor responses: got %d, need at least %d", e.Got, e.Need)
}

// Options tune the reduction.
type Options struct {
	ScoreThreshold        float64
	ApprovalThreshold     float64
	TrimPercentage        float64
	DisagreementThreshold float64
	// BlockingGates maps a severity to the highest tolerated count.
	BlockingGates map[models.Severity]int
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		ScoreThreshold:        DefaultScoreThreshold,
		ApprovalThreshold:     DefaultApprovalThreshold,
		TrimPercentage:        DefaultTrimPercentage,
		DisagreementThreshold: DefaultDisagreementThreshold,
		BlockingGates:         DefaultBlockingGates(),
	}
}

// Engine is a pure reducer; it holds no state between calls.
type Engine struct {
	opts Options
}

// NewEngine creates an engine. A nil BlockingGates map gets the defaults.
func NewEngine(opts Options) *Engine {
	if opts.BlockingGates == nil {
		opts.BlockingGates = DefaultBlockingGates()
	}
	return &Engine{opts: opts}
}

// Options returns the engine's thresholds.
func (e *Engine) Options() Options { return e.opts }

// Reduce computes the consensus of responses. weights maps a role to its
// weight in the trimmed mean; roles missing from a non-nil map weigh 1.
func (e *Engine) Reduce(responses []models.AuditorResponse, weights map[models.AuditorRole]float64) (*models.ConsensusResult, error) {
	n := len(responses)
	if n == 0 {
		return nil, &InsufficientResponsesError{Got: 0, Need: 1}
	}

	averages := make([]float64, n)
	samples := make([]statistics.Sample, n)
	participants := make([]models.AuditorRole, n)
	approvals := 0
	for i, r := range responses {
		avg := r.OverallAssessment.AverageScore
		averages[i] = avg
		samples[i] = statistics.Sample{Value: avg, Weight: weightFor(weights, r.AuditorRole)}
		participants[i] = r.AuditorRole
		if r.OverallAssessment.OverallPass {
			approvals++
		}
	}
	slices.Sort(participants)

	weighted, err := statistics.WeightedTrimmedMean(samples, e.opts.TrimPercentage)
	if err != nil {
		return nil, err
	}

	approvalRate := float64(approvals) / float64(n)
	result := &models.ConsensusResult{
		WeightedAverage:   weighted,
		ConsensusPass:     weighted >= e.opts.ScoreThreshold,
		ApprovalRate:      approvalRate,
		ApprovalPass:      approvalRate >= e.opts.ApprovalThreshold,
		AgreementLevel:    AgreementLevel(averages),
		ScoreSpread:       statistics.Spread(averages),
		Participants:      participants,
		DimensionAverages: e.dimensionAverages(responses, weights),
		BlockingCounts:    blockingCounts(responses),
		FailureReasons:    []string{},
	}
	ci := statistics.ConfidenceInterval95(averages)
	result.ScoreInterval = models.ScoreInterval{Lower: ci.Lower, Upper: ci.Upper}

	if !result.ConsensusPass {
		result.FailureReasons = append(result.FailureReasons,
			fmt.Sprintf("Trimmed mean score %.2f below threshold %.2f", weighted, e.opts.ScoreThreshold))
	}
	if !result.ApprovalPass {
		result.FailureReasons = append(result.FailureReasons,
			fmt.Sprintf("Approval rate %.0f%% below required %.0f%%", approvalRate*100, e.opts.ApprovalThreshold*100))
	}

	breached := false
	for _, sev := range models.AllSeverities {
		limit, gated := e.opts.BlockingGates[sev]
		if !gated {
			continue
		}
		if count := result.BlockingCounts[sev]; count > limit {
			breached = true
			result.FailureReasons = append(result.FailureReasons,
				fmt.Sprintf("Blocking gate breached: %d %s issue(s) exceed limit of %d", count, sev, limit))
		}
	}

	if result.ConsensusPass && result.ApprovalPass && !breached {
		result.FinalDecision = models.DecisionPass
	} else {
		result.FinalDecision = models.DecisionFail
	}

	if result.ScoreSpread > e.opts.DisagreementThreshold {
		result.RequiresHumanReview = true
		result.FailureReasons = append(result.FailureReasons,
			fmt.Sprintf("High disagreement between auditors: score spread %.2f exceeds %.2f", result.ScoreSpread, e.opts.DisagreementThreshold))
	}

	return result, nil
}

func (e *Engine) dimensionAverages(responses []models.AuditorResponse, weights map[models.AuditorRole]float64) map[models.Dimension]float64 {
	out := make(map[models.Dimension]float64, len(models.AllDimensions))
	for _, d := range models.AllDimensions {
		samples := make([]statistics.Sample, len(responses))
		for i, r := range responses {
			samples[i] = statistics.Sample{
				Value:  float64(r.ScoresDetailed.Get(d).Score),
				Weight: weightFor(weights, r.AuditorRole),
			}
		}
		// responses is non-empty here, so the error cannot occur.
		out[d], _ = statistics.WeightedTrimmedMean(samples, e.opts.TrimPercentage)
	}
	return out
}

func blockingCounts(responses []models.AuditorResponse) map[models.Severity]int {
	counts := make(map[models.Severity]int, len(models.AllSeverities))
	for _, r := range responses {
		for sev, c := range r.BlockingCounts() {
			counts[sev] += c
		}
	}
	return counts
}

func weightFor(weights map[models.AuditorRole]float64, role models.AuditorRole) float64 {
	if w, ok := weights[role]; ok {
		return w
	}
	return 1
}

// TrimmedMean is statistics.TrimmedMean with empty input reported as
// *InsufficientResponsesError.
func TrimmedMean(values []float64, trim float64) (float64, error) {
	v, err := statistics.TrimmedMean(values, trim)
	if err != nil {
		return 0, &InsufficientResponsesError{Got: 0, Need: 1}
	}
	return v, nil
}

// AgreementLevel maps the variance of scores onto [0,1], where 1 means every
// score is identical. A single score is full agreement.
func AgreementLevel(scores []float64) float64 {
	if len(scores) <= 1 {
		return 1.0
	}
	level := 1 - statistics.Variance(scores)/maxVariance
	return math.Max(0, math.Min(1, level))
}
