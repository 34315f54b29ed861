package scoring

import "testing"

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		score int
		want  Level
	}{
		{1, LevelLow},
		{3, LevelLow},
		{4, LevelMedium},
		{8, LevelMedium},
		{9, LevelHigh},
		{12, LevelHigh},
		{13, LevelCritical},
		{16, LevelCritical},
	}
	for _, tc := range cases {
		if got := Classify(tc.score); got != tc.want {
			t.Errorf("Classify(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestClassifyMonotonic(t *testing.T) {
	prev := Classify(0)
	rank := map[Level]int{LevelLow: 0, LevelMedium: 1, LevelHigh: 2, LevelCritical: 3}
	for score := 1; score <= 20; score++ {
		cur := Classify(score)
		if rank[cur] < rank[prev] {
			t.Fatalf("level dropped from %s to %s at score %d", prev, cur, score)
		}
		prev = cur
	}
}

func TestRiskScore(t *testing.T) {
	if got := RiskScore(3, 4); got != 12 {
		t.Fatalf("RiskScore(3,4) = %d, want 12", got)
	}
}

func TestImpactFromCIA(t *testing.T) {
	if got := ImpactFromCIA(1, 3, 2); got != 3 {
		t.Fatalf("ImpactFromCIA(1,3,2) = %d, want 3", got)
	}
	if got := ImpactFromCIA(2, 2, 2); got != 2 {
		t.Fatalf("ImpactFromCIA(2,2,2) = %d, want 2", got)
	}
}

func TestRecommendedActions(t *testing.T) {
	cases := map[Level][]string{
		LevelLow:      {"Accept", "Monitor"},
		LevelMedium:   {"Mitigate", "Monitor"},
		LevelHigh:     {"Mitigate"},
		LevelCritical: {"Mitigate", "Escalate"},
	}
	for level, want := range cases {
		got := RecommendedActions(level)
		if len(got) != len(want) {
			t.Fatalf("%s: got %v, want %v", level, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s: got %v, want %v", level, got, want)
			}
		}
	}
}
