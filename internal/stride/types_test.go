package stride

import "testing"

func TestClassifyScore(t *testing.T) {
	cases := []struct {
		score int
		want  Classification
	}{
		{0, ClassUnreliable},
		{49, ClassUnreliable},
		{50, ClassRecovering},
		{77, ClassRecovering},
		{79, ClassRecovering},
		{80, ClassStable},
		{82, ClassStable},
		{94, ClassStable},
		{95, ClassHighReliability},
		{100, ClassHighReliability},
	}
	for _, c := range cases {
		if got := ClassifyScore(c.score); got != c.want {
			t.Errorf("ClassifyScore(%d) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestClassifyScoreMonotonic(t *testing.T) {
	rank := map[Classification]int{
		ClassUnreliable:      0,
		ClassRecovering:      1,
		ClassStable:          2,
		ClassHighReliability: 3,
	}
	prev := ClassifyScore(0)
	for s := 1; s <= 100; s++ {
		cur := ClassifyScore(s)
		if rank[cur] < rank[prev] {
			t.Fatalf("classification regressed at score %d: %s after %s", s, cur, prev)
		}
		prev = cur
	}
}

func TestTrendDegrade(t *testing.T) {
	cases := []struct{ from, want Trend }{
		{TrendStable, TrendDrifting},
		{TrendDrifting, TrendBreach},
		{TrendBreach, TrendStrict},
		{TrendStrict, TrendStrict},
	}
	for _, c := range cases {
		if got := c.from.Degrade(); got != c.want {
			t.Errorf("%s.Degrade() = %s, want %s", c.from, got, c.want)
		}
	}
}

func TestTrendRecover(t *testing.T) {
	cases := []struct{ from, want Trend }{
		{TrendStrict, TrendBreach},
		{TrendBreach, TrendDrifting},
		{TrendDrifting, TrendStable},
		{TrendStable, TrendStable},
	}
	for _, c := range cases {
		if got := c.from.Recover(); got != c.want {
			t.Errorf("%s.Recover() = %s, want %s", c.from, got, c.want)
		}
	}
}

func TestTrendBreached(t *testing.T) {
	breached := map[Trend]bool{
		TrendStable:   false,
		TrendDrifting: false,
		TrendBreach:   true,
		TrendStrict:   true,
	}
	for tr, want := range breached {
		if got := tr.Breached(); got != want {
			t.Errorf("%s.Breached() = %v, want %v", tr, got, want)
		}
	}
}

func TestModeStepsOneAtATime(t *testing.T) {
	esc := []struct{ from, want EnforcementMode }{
		{ModeNone, ModeSoft},
		{ModeSoft, ModeHard},
		{ModeHard, ModeHard},
	}
	for _, c := range esc {
		if got := c.from.Escalate(); got != c.want {
			t.Errorf("%s.Escalate() = %s, want %s", c.from, got, c.want)
		}
	}

	deesc := []struct{ from, want EnforcementMode }{
		{ModeHard, ModeSoft},
		{ModeSoft, ModeNone},
		{ModeNone, ModeNone},
	}
	for _, c := range deesc {
		if got := c.from.Deescalate(); got != c.want {
			t.Errorf("%s.Deescalate() = %s, want %s", c.from, got, c.want)
		}
	}
}

func TestHardRestrictionsSupersetOfSoft(t *testing.T) {
	soft := ModeSoft.Restrictions()
	hard := make(map[Restriction]bool)
	for _, r := range ModeHard.Restrictions() {
		hard[r] = true
	}
	if len(ModeHard.Restrictions()) <= len(soft) {
		t.Fatalf("HARD restriction set not larger than SOFT: %d vs %d",
			len(ModeHard.Restrictions()), len(soft))
	}
	for _, r := range soft {
		if !hard[r] {
			t.Errorf("SOFT restriction %s missing from HARD set", r)
		}
	}
	if got := ModeNone.Restrictions(); got != nil {
		t.Errorf("NONE restrictions = %v, want none", got)
	}
}
