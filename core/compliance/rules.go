// Package compliance scores document text against the fixed policy rule set
// and keeps the per-document gap record up to date.
package compliance

import (
	"math"
	"strings"
)

var (
	requiredSections  = []string{"Purpose", "Scope", "Responsibilities", "Procedure"}
	forbiddenPhrases  = []string{"should try to", "maybe", "if possible", "where feasible"}
	mandatoryKeywords = []string{"employees", "policy", "must", "procedure"}
)

const compliantThreshold = 70

const (
	StatusWaitingForApproval = "Waiting for Approval"
	StatusRejected           = "Rejected"
	StatusMissing            = "Missing"
	StatusChecking           = "Checking..."
	StatusError              = "Error"
)

type Result struct {
	MissingSections       []string `json:"missing_sections"`
	ForbiddenPhrasesFound []string `json:"forbidden_phrases_found"`
	MissingKeywords       []string `json:"missing_keywords"`
	Score                 int      `json:"score"`
	Label                 string   `json:"label"`
	Status                string   `json:"status"`
}

// Evaluate scores extracted text. fileMissing marks a document whose stored
// file is gone: everything counts as missing except forbidden phrases, since
// absence cannot prove a violation.
func Evaluate(text string, fileMissing bool) Result {
	if fileMissing {
		text = ""
	}
	lower := strings.ToLower(text)

	res := Result{
		MissingSections:       []string{},
		ForbiddenPhrasesFound: []string{},
		MissingKeywords:       []string{},
	}
	for _, section := range requiredSections {
		if !strings.Contains(lower, strings.ToLower(section)) {
			res.MissingSections = append(res.MissingSections, section)
		}
	}
	for _, phrase := range forbiddenPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			res.ForbiddenPhrasesFound = append(res.ForbiddenPhrasesFound, phrase)
		}
	}
	for _, keyword := range mandatoryKeywords {
		if !strings.Contains(lower, strings.ToLower(keyword)) {
			res.MissingKeywords = append(res.MissingKeywords, keyword)
		}
	}

	total := len(requiredSections) + len(mandatoryKeywords) + len(forbiddenPhrases)
	passed := (len(requiredSections) - len(res.MissingSections)) +
		(len(mandatoryKeywords) - len(res.MissingKeywords)) +
		(len(forbiddenPhrases) - len(res.ForbiddenPhrasesFound))
	res.Score = int(math.Round(float64(passed) / float64(total) * 100))

	if res.Score >= compliantThreshold {
		res.Label = "compliant"
	} else {
		res.Label = "non-compliant"
	}
	switch {
	case fileMissing:
		res.Status = StatusMissing
	case res.Score >= compliantThreshold:
		res.Status = StatusWaitingForApproval
	default:
		res.Status = StatusRejected
	}
	return res
}
