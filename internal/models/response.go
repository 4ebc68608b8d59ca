package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// PassAverageThreshold is the minimum average score for an auditor's overall pass.
	PassAverageThreshold = 3.8
	// PassMinimumDimension is the minimum per-dimension score for an auditor's overall pass.
	PassMinimumDimension = 3.0
	// AverageTolerance bounds the drift allowed between the reported and computed average.
	AverageTolerance = 0.01

	MinJustificationLength = 50
	MinSummaryLength       = 50
	MaxHighlights          = 3
)

// DimensionScore is one auditor's verdict on a single dimension.
type DimensionScore struct {
	Score         int      `json:"score"`
	Pass          bool     `json:"pass"`
	Justification string   `json:"justification"`
	Improvements  []string `json:"improvements"`
}

// ScoresDetailed holds the six fixed dimension scores. Field order matches the wire schema.
type ScoresDetailed struct {
	Simplicity          DimensionScore `json:"simplicity"`
	Conciseness         DimensionScore `json:"conciseness"`
	Actionability       DimensionScore `json:"actionability"`
	Readability         DimensionScore `json:"readability"`
	OptionsTradeoffs    DimensionScore `json:"options_tradeoffs"`
	EvidenceSpecificity DimensionScore `json:"evidence_specificity"`
}

// Get returns the score for a dimension.
func (s *ScoresDetailed) Get(d Dimension) DimensionScore {
	switch d {
	case DimSimplicity:
		return s.Simplicity
	case DimConciseness:
		return s.Conciseness
	case DimActionability:
		return s.Actionability
	case DimReadability:
		return s.Readability
	case DimOptionsTradeoffs:
		return s.OptionsTradeoffs
	case DimEvidenceSpecificity:
		return s.EvidenceSpecificity
	default:
		return DimensionScore{}
	}
}

// Values returns the six integer scores in AllDimensions order.
func (s *ScoresDetailed) Values() []int {
	values := make([]int, 0, len(AllDimensions))
	for _, d := range AllDimensions {
		values = append(values, s.Get(d).Score)
	}
	return values
}

// Mean returns the arithmetic mean of the six dimension scores.
func (s *ScoresDetailed) Mean() float64 {
	values := s.Values()
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// Min returns the lowest dimension score.
func (s *ScoresDetailed) Min() int {
	values := s.Values()
	lowest := values[0]
	for _, v := range values[1:] {
		if v < lowest {
			lowest = v
		}
	}
	return lowest
}

// OverallAssessment summarises one auditor's verdict.
type OverallAssessment struct {
	AverageScore float64  `json:"average_score"`
	OverallPass  bool     `json:"overall_pass"`
	Summary      string   `json:"summary"`
	TopStrengths []string `json:"top_strengths"`
	TopRisks     []string `json:"top_risks"`
	QuickWins    []string `json:"quick_wins"`
}

// BlockingIssue is a problem the auditor considers release-blocking.
type BlockingIssue struct {
	Severity    Severity `json:"severity"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Impact      string   `json:"impact"`
}

// AlignmentFeedback compares the document against upstream documents.
type AlignmentFeedback struct {
	Consistent bool     `json:"consistent"`
	Upstream   []string `json:"upstream_documents,omitempty"`
	Gaps       []string `json:"gaps,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// AuditorResponse is the validated structured reply of one auditor.
type AuditorResponse struct {
	AuditorRole       AuditorRole       `json:"auditor_role"`
	DocumentAnalyzed  DocumentStage     `json:"document_analyzed"`
	AuditTimestamp    time.Time         `json:"audit_timestamp"`
	ScoresDetailed    ScoresDetailed    `json:"scores_detailed"`
	OverallAssessment OverallAssessment `json:"overall_assessment"`
	BlockingIssues    []BlockingIssue   `json:"blocking_issues"`
	AlignmentFeedback AlignmentFeedback `json:"alignment_feedback"`
	ConfidenceLevel   int               `json:"confidence_level"`
}

// ErrInvariant marks a response whose fields are individually valid but inconsistent.
var ErrInvariant = errors.New("auditor response invariant violated")

// Validate checks the field constraints and cross-field invariants. The JSON
// schema covers shape; this covers what the schema cannot express.
func (r *AuditorResponse) Validate() error {
	if !r.AuditorRole.Valid() {
		return fmt.Errorf("auditor_role %q is not a known role", r.AuditorRole)
	}
	if !r.DocumentAnalyzed.Valid() {
		return fmt.Errorf("document_analyzed %q is not a known stage", r.DocumentAnalyzed)
	}
	for _, d := range AllDimensions {
		ds := r.ScoresDetailed.Get(d)
		if ds.Score < 1 || ds.Score > 5 {
			return fmt.Errorf("%s.score %d out of range 1-5", d, ds.Score)
		}
		if len(ds.Justification) < MinJustificationLength {
			return fmt.Errorf("%s.justification shorter than %d characters", d, MinJustificationLength)
		}
		if len(ds.Improvements) == 0 {
			return fmt.Errorf("%s.improvements must not be empty", d)
		}
	}

	oa := r.OverallAssessment
	if len(oa.Summary) < MinSummaryLength {
		return fmt.Errorf("overall_assessment.summary shorter than %d characters", MinSummaryLength)
	}
	if len(oa.TopStrengths) > MaxHighlights || len(oa.TopRisks) > MaxHighlights || len(oa.QuickWins) > MaxHighlights {
		return fmt.Errorf("overall_assessment lists are limited to %d entries", MaxHighlights)
	}
	for i, bi := range r.BlockingIssues {
		if !bi.Severity.Valid() {
			return fmt.Errorf("blocking_issues[%d].severity %q is not valid", i, bi.Severity)
		}
	}
	if r.ConfidenceLevel < 1 || r.ConfidenceLevel > 5 {
		return fmt.Errorf("confidence_level %d out of range 1-5", r.ConfidenceLevel)
	}

	mean := r.ScoresDetailed.Mean()
	if math.Abs(oa.AverageScore-mean) > AverageTolerance {
		return fmt.Errorf("%w: average_score %.2f does not match dimension mean %.2f", ErrInvariant, oa.AverageScore, mean)
	}
	wantPass := oa.AverageScore >= PassAverageThreshold && float64(r.ScoresDetailed.Min()) >= PassMinimumDimension
	if oa.OverallPass != wantPass {
		return fmt.Errorf("%w: overall_pass is %v but scores imply %v", ErrInvariant, oa.OverallPass, wantPass)
	}
	return nil
}

// BlockingCounts tallies blocking issues by severity.
func (r *AuditorResponse) BlockingCounts() map[Severity]int {
	counts := make(map[Severity]int, len(AllSeverities))
	for _, bi := range r.BlockingIssues {
		counts[bi.Severity]++
	}
	return counts
}
