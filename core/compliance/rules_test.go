package compliance

import (
	"reflect"
	"testing"
)

func TestEvaluateWorkedExample(t *testing.T) {
	// Responsibilities is the only missing section, "employees" the only
	// missing keyword, and one forbidden phrase appears: 9 of 12 checks
	// pass for a score of exactly 75.
	text := "Purpose of this document. Scope covers all systems. The procedure: staff must follow the policy, maybe."
	res := Evaluate(text, false)

	if want := []string{"Responsibilities"}; !reflect.DeepEqual(res.MissingSections, want) {
		t.Errorf("missing sections = %v, want %v", res.MissingSections, want)
	}
	if want := []string{"employees"}; !reflect.DeepEqual(res.MissingKeywords, want) {
		t.Errorf("missing keywords = %v, want %v", res.MissingKeywords, want)
	}
	if want := []string{"maybe"}; !reflect.DeepEqual(res.ForbiddenPhrasesFound, want) {
		t.Errorf("forbidden phrases = %v, want %v", res.ForbiddenPhrasesFound, want)
	}
	if res.Score != 75 {
		t.Errorf("score = %d, want 75", res.Score)
	}
	if res.Label != "compliant" {
		t.Errorf("label = %s, want compliant", res.Label)
	}
	if res.Status != StatusWaitingForApproval {
		t.Errorf("status = %s, want %s", res.Status, StatusWaitingForApproval)
	}
}

func TestEvaluateForbiddenPhrasesReducePasses(t *testing.T) {
	full := "Purpose Scope Responsibilities Procedure employees policy must"
	clean := Evaluate(full, false)
	if clean.Score != 100 {
		t.Fatalf("clean score = %d, want 100", clean.Score)
	}
	dirty := Evaluate(full+" where feasible maybe", false)
	if len(dirty.ForbiddenPhrasesFound) != 2 {
		t.Fatalf("found = %v, want 2 phrases", dirty.ForbiddenPhrasesFound)
	}
	// 10 of 12 checks pass.
	if dirty.Score != 83 {
		t.Fatalf("dirty score = %d, want 83", dirty.Score)
	}
}

func TestEvaluateCaseInsensitive(t *testing.T) {
	res := Evaluate("PURPOSE scope RESPONSIBILITIES procedure EMPLOYEES Policy MUST", false)
	if res.Score != 100 {
		t.Fatalf("score = %d, want 100", res.Score)
	}
}

func TestEvaluateMissingFile(t *testing.T) {
	res := Evaluate("ignored", true)
	if len(res.MissingSections) != 4 || len(res.MissingKeywords) != 4 {
		t.Fatalf("missing file must miss everything: %+v", res)
	}
	if len(res.ForbiddenPhrasesFound) != 0 {
		t.Fatalf("missing file cannot prove violations: %v", res.ForbiddenPhrasesFound)
	}
	// 4 of 12 checks (the absent forbidden phrases) pass.
	if res.Score != 33 {
		t.Fatalf("score = %d, want 33", res.Score)
	}
	if res.Label != "non-compliant" || res.Status != StatusMissing {
		t.Fatalf("label=%s status=%s", res.Label, res.Status)
	}
}

func TestEvaluateRejectedBelowThreshold(t *testing.T) {
	res := Evaluate("Purpose only, maybe.", false)
	if res.Score >= 70 {
		t.Fatalf("score = %d, expected below threshold", res.Score)
	}
	if res.Status != StatusRejected {
		t.Fatalf("status = %s, want %s", res.Status, StatusRejected)
	}
}
