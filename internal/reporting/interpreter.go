package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
)

// InterpretScore returns a plain-language label for a 1-5 auditor score.
func InterpretScore(score float64) string {
	switch {
	case score >= 4.5:
		return "Excellent (4.5+)"
	case score >= models.PassAverageThreshold:
		return "Good (3.8-4.5)"
	case score >= 3.0:
		return "Needs Work (3.0-3.8)"
	default:
		return "Poor (<3.0)"
	}
}

// InterpretAgreement explains an agreement level in [0, 1].
func InterpretAgreement(level float64) string {
	pct := level * 100
	switch {
	case pct >= 80:
		return fmt.Sprintf("Strong agreement (%.0f%%)", pct)
	case pct >= 50:
		return fmt.Sprintf("Partial agreement (%.0f%%)", pct)
	default:
		return fmt.Sprintf("Auditors disagree (%.0f%%)", pct)
	}
}

// InterpretApproval explains the share of auditors that passed the document.
func InterpretApproval(rate float64) string {
	pct := rate * 100
	switch {
	case pct >= 100:
		return fmt.Sprintf("All auditors approved (%.0f%%)", pct)
	case pct >= 50:
		return fmt.Sprintf("Most auditors approved (%.0f%%)", pct)
	case pct > 0:
		return fmt.Sprintf("Few auditors approved (%.0f%%)", pct)
	default:
		return "No auditor approved (0%)"
	}
}

const roleColumn = 16

// WriteSummary prints a console summary of one audit result.
func WriteSummary(w io.Writer, result *models.AuditResult) {
	fmt.Fprint(w, FormatSummaryReport(result)) //nolint:errcheck
}

// FormatSummaryReport produces a plain-language report of an audit result.
func FormatSummaryReport(result *models.AuditResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("=== Council audit: %s ===\n\n", result.Stage))
	b.WriteString(fmt.Sprintf("Decision:      %s\n", result.Decision()))

	if c := result.Consensus; c != nil {
		b.WriteString(fmt.Sprintf("Score:         %.2f — %s\n", c.WeightedAverage, InterpretScore(c.WeightedAverage)))
		b.WriteString(fmt.Sprintf("Approval:      %s\n", InterpretApproval(c.ApprovalRate)))
		b.WriteString(fmt.Sprintf("Agreement:     %s, spread %.2f\n", InterpretAgreement(c.AgreementLevel), c.ScoreSpread))
		b.WriteString(fmt.Sprintf("Interval:      %.2f - %.2f\n", c.ScoreInterval.Lower, c.ScoreInterval.Upper))
	}
	b.WriteString(fmt.Sprintf("Auditors:      %d responded, %d failed, %d calls\n",
		len(result.Responses), len(result.FailedRoles), result.Calls))
	b.WriteString(fmt.Sprintf("Duration:      %v\n", result.ExecutionTime()))
	if result.Cached {
		b.WriteString("Cached:        yes\n")
	}

	if len(result.Responses) > 0 || len(result.Failures) > 0 {
		b.WriteString("\nPer-Auditor:\n")
		for _, r := range result.Responses {
			icon := "✓"
			if !r.OverallAssessment.OverallPass {
				icon = "✗"
			}
			b.WriteString(fmt.Sprintf("  %s %s %.2f — %s\n", icon, padRight(string(r.AuditorRole), roleColumn),
				r.OverallAssessment.AverageScore, InterpretScore(r.OverallAssessment.AverageScore)))
			for _, bi := range r.BlockingIssues {
				b.WriteString(fmt.Sprintf("      [%s] %s\n", bi.Severity, bi.Description))
			}
		}
		for _, f := range result.Failures {
			note := f.Error
			if f.BudgetExceeded {
				note = "call budget exhausted"
			}
			b.WriteString(fmt.Sprintf("  ! %s %s\n", padRight(string(f.Role), roleColumn), note))
		}
	}

	if c := result.Consensus; c != nil && len(c.FailureReasons) > 0 {
		b.WriteString("\nFailure Reasons:\n")
		for _, reason := range c.FailureReasons {
			b.WriteString(fmt.Sprintf("  - %s\n", reason))
		}
	}

	if d := result.Debate; d != nil {
		b.WriteString(fmt.Sprintf("\nDebate: %s after %d round(s), consensus score %.2f\n", d.Status, len(d.Rounds), d.ConsensusScore))
		for _, theme := range d.FinalConsensus {
			b.WriteString(fmt.Sprintf("  + %s\n", theme))
		}
		for _, issue := range d.UnresolvedIssues {
			b.WriteString(fmt.Sprintf("  ? %s\n", issue))
		}
	}
	if result.DebateError != "" {
		b.WriteString(fmt.Sprintf("Debate error: %s\n", result.DebateError))
	}
	if result.RequiresHumanReview {
		b.WriteString("\nHuman review required.\n")
	}

	return b.String()
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
