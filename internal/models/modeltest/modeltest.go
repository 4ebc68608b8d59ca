// Package modeltest builds valid auditor responses for tests in other packages.
package modeltest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
)

const filler = "The section is clear and gives the reader enough detail to act on it without guessing."

// Response returns a valid response with every dimension scored the same.
func Response(role models.AuditorRole, stage models.DocumentStage, score int) *models.AuditorResponse {
	return ResponseWithScores(role, stage, [6]int{score, score, score, score, score, score})
}

// ResponseWithScores returns a valid response whose derived fields match scores.
// Scores are assigned in models.AllDimensions order.
func ResponseWithScores(role models.AuditorRole, stage models.DocumentStage, scores [6]int) *models.AuditorResponse {
	ds := func(i int) models.DimensionScore {
		return models.DimensionScore{
			Score:         scores[i],
			Pass:          scores[i] >= 3,
			Justification: filler,
			Improvements:  []string{"Add a worked example"},
		}
	}
	resp := &models.AuditorResponse{
		AuditorRole:      role,
		DocumentAnalyzed: stage,
		AuditTimestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ScoresDetailed: models.ScoresDetailed{
			Simplicity:          ds(0),
			Conciseness:         ds(1),
			Actionability:       ds(2),
			Readability:         ds(3),
			OptionsTradeoffs:    ds(4),
			EvidenceSpecificity: ds(5),
		},
		OverallAssessment: models.OverallAssessment{
			Summary:      filler,
			TopStrengths: []string{"Clear scope"},
			TopRisks:     []string{"Unvalidated cost assumptions"},
			QuickWins:    []string{"Add a glossary"},
		},
		BlockingIssues:    []models.BlockingIssue{},
		AlignmentFeedback: models.AlignmentFeedback{Consistent: true},
		ConfidenceLevel:   4,
	}
	Recompute(resp)
	return resp
}

// Recompute refreshes average_score and overall_pass from the dimension scores.
func Recompute(resp *models.AuditorResponse) {
	resp.OverallAssessment.AverageScore = resp.ScoresDetailed.Mean()
	resp.OverallAssessment.OverallPass = resp.OverallAssessment.AverageScore >= models.PassAverageThreshold &&
		float64(resp.ScoresDetailed.Min()) >= models.PassMinimumDimension
}

// WithIssue appends a blocking issue of the given severity.
func WithIssue(resp *models.AuditorResponse, sev models.Severity, description string) *models.AuditorResponse {
	resp.BlockingIssues = append(resp.BlockingIssues, models.BlockingIssue{
		Severity:    sev,
		Category:    "general",
		Description: description,
		Impact:      "Blocks release",
	})
	return resp
}

// JSON marshals resp, panicking on error.
func JSON(resp *models.AuditorResponse) string {
	data, err := json.Marshal(resp)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// Fenced wraps the JSON form of resp in a markdown reply with a ```json block.
func Fenced(resp *models.AuditorResponse) string {
	var b strings.Builder
	b.WriteString("Here is my audit.\n\n```json\n")
	b.WriteString(JSON(resp))
	b.WriteString("\n```\n\nLet me know if you need more detail.\n")
	return b.String()
}
