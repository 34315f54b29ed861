// Package scoring holds the pure risk arithmetic: score products, the
// four-tier level bands, and the recommended-action table.
package scoring

type Level string

const (
	LevelLow      Level = "Low"
	LevelMedium   Level = "Medium"
	LevelHigh     Level = "High"
	LevelCritical Level = "Critical"
)

// RiskScore is impact x likelihood. Inputs are not validated; callers own
// range checks.
func RiskScore(impact, likelihood int) int {
	return impact * likelihood
}

// Classify maps a score onto the four bands. The same boundaries apply to
// initial and residual scores.
func Classify(score int) Level {
	switch {
	case score <= 3:
		return LevelLow
	case score <= 8:
		return LevelMedium
	case score <= 12:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// ImpactFromCIA takes the worst of the three ratings. Worst dimension
// dominates; no averaging.
func ImpactFromCIA(confidentiality, integrity, availability int) int {
	impact := confidentiality
	if integrity > impact {
		impact = integrity
	}
	if availability > impact {
		impact = availability
	}
	return impact
}

var recommendedActions = map[Level][]string{
	LevelLow:      {"Accept", "Monitor"},
	LevelMedium:   {"Mitigate", "Monitor"},
	LevelHigh:     {"Mitigate"},
	LevelCritical: {"Mitigate", "Escalate"},
}

// RecommendedActions returns the treatment options for a level. The slice is
// a copy; callers may reorder it.
func RecommendedActions(level Level) []string {
	actions := recommendedActions[level]
	out := make([]string, len(actions))
	copy(out, actions)
	return out
}
