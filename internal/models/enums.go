package models

import (
	"fmt"
	"strings"
)

// AuditorRole identifies one reviewer seat on the council.
type AuditorRole string

const (
	RolePM             AuditorRole = "pm"
	RoleInfrastructure AuditorRole = "infrastructure"
	RoleDataEval       AuditorRole = "data_eval"
	RoleSecurity       AuditorRole = "security"
	RoleUX             AuditorRole = "ux"
	RoleCost           AuditorRole = "cost"
)

// AllRoles lists every auditor role in canonical order.
var AllRoles = []AuditorRole{RolePM, RoleInfrastructure, RoleDataEval, RoleSecurity, RoleUX, RoleCost}

// Valid reports whether r is one of the fixed roles.
func (r AuditorRole) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole converts a string flag or config value into an AuditorRole.
func ParseRole(s string) (AuditorRole, error) {
	r := AuditorRole(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("invalid auditor role %q", s)
	}
	return r, nil
}

// DocumentStage identifies which kind of document is being audited.
type DocumentStage string

const (
	StageResearchBrief      DocumentStage = "research_brief"
	StageMarketScan         DocumentStage = "market_scan"
	StageVision             DocumentStage = "vision"
	StagePRD                DocumentStage = "prd"
	StageArchitecture       DocumentStage = "architecture"
	StageImplementationPlan DocumentStage = "implementation_plan"
)

// AllStages lists every document stage in pipeline order.
var AllStages = []DocumentStage{
	StageResearchBrief,
	StageMarketScan,
	StageVision,
	StagePRD,
	StageArchitecture,
	StageImplementationPlan,
}

// Valid reports whether s is one of the fixed stages.
func (s DocumentStage) Valid() bool {
	for _, known := range AllStages {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStage converts a string into a DocumentStage.
func ParseStage(s string) (DocumentStage, error) {
	st := DocumentStage(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("invalid document stage %q", s)
	}
	return st, nil
}

// Dimension is one of the six scored quality dimensions.
type Dimension string

const (
	DimSimplicity          Dimension = "simplicity"
	DimConciseness         Dimension = "conciseness"
	DimActionability       Dimension = "actionability"
	DimReadability         Dimension = "readability"
	DimOptionsTradeoffs    Dimension = "options_tradeoffs"
	DimEvidenceSpecificity Dimension = "evidence_specificity"
)

// AllDimensions lists the scored dimensions in schema order.
var AllDimensions = []Dimension{
	DimSimplicity,
	DimConciseness,
	DimActionability,
	DimReadability,
	DimOptionsTradeoffs,
	DimEvidenceSpecificity,
}

// Severity grades a blocking issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// AllSeverities lists severities from most to least severe.
var AllSeverities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}
