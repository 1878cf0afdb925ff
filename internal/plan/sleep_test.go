package plan

import (
	"strings"
	"testing"
	"time"
)

func TestSleepGoalMinutes(t *testing.T) {
	cases := []struct {
		minutes, cycles, want int
	}{
		{480, 0, 480},
		{480, 5, 480}, // explicit minutes win over cycles
		{0, 5, 450},
		{0, 6, 540},
		{0, 0, 450},
	}
	for _, tc := range cases {
		if got := SleepGoalMinutes(tc.minutes, tc.cycles); got != tc.want {
			t.Errorf("SleepGoalMinutes(%d, %d) = %d, want %d", tc.minutes, tc.cycles, got, tc.want)
		}
	}
}

func TestCalculateBedtime(t *testing.T) {
	if got := CalculateBedtime(At(7, 0), 450); got != At(23, 30) {
		t.Fatalf("got %v, want 23:30", got)
	}
	if got := CalculateBedtime(At(6, 0), 480); got != At(22, 0) {
		t.Fatalf("got %v, want 22:00", got)
	}
}

func TestSuggestChronotherapy(t *testing.T) {
	steps := SuggestChronotherapy(At(2, 0), At(23, 30))
	if len(steps) != 5 {
		t.Fatalf("got %d steps, want 5", len(steps))
	}
	if steps[0].Bedtime != At(1, 30) {
		t.Fatalf("first step %v, want 01:30", steps[0].Bedtime)
	}
	if last := steps[len(steps)-1]; last.Bedtime != At(23, 30) || last.DayOffset != 5 {
		t.Fatalf("last step %+v, want 23:30 on day 5", last)
	}

	if steps := SuggestChronotherapy(At(22, 0), At(22, 0)); len(steps) != 0 {
		t.Fatalf("no shift needed, got %d steps", len(steps))
	}

	// A 12-hour shift would take 24 days; the plan is capped at 14.
	capped := SuggestChronotherapy(At(12, 0), At(0, 0))
	if len(capped) != 14 {
		t.Fatalf("got %d steps, want cap of 14", len(capped))
	}
}

func TestBuildBedtimePlanDebtExtension(t *testing.T) {
	p := BuildBedtimePlan(At(7, 0), 450, 0, 100, nil)
	// 100 minutes of debt rounds up to a 120-minute extension.
	if p.Duration != 570*time.Minute {
		t.Fatalf("duration %v, want 9h30m", p.Duration)
	}
	if p.TargetBedtime != At(21, 30) {
		t.Fatalf("bedtime %v, want 21:30", p.TargetBedtime)
	}
	if !strings.Contains(p.Notes, "недосып") {
		t.Fatalf("notes should mention sleep debt: %q", p.Notes)
	}

	// Extension is capped at 2 hours no matter the debt.
	huge := BuildBedtimePlan(At(7, 0), 450, 0, 600, nil)
	if huge.Duration != 570*time.Minute {
		t.Fatalf("duration %v, want capped 9h30m", huge.Duration)
	}
}

func TestBuildBedtimePlanChronotherapyNote(t *testing.T) {
	avg := At(2, 30)
	p := BuildBedtimePlan(At(7, 0), 450, 0, 0, &avg)
	if p.TargetBedtime != At(23, 30) {
		t.Fatalf("bedtime %v, want 23:30", p.TargetBedtime)
	}
	if !strings.Contains(p.Notes, "сдвигу") {
		t.Fatalf("notes should suggest a gradual shift: %q", p.Notes)
	}
}

func TestBuildBedtimePlanSmallDebtIgnored(t *testing.T) {
	p := BuildBedtimePlan(At(7, 0), 450, 0, 45, nil)
	if p.Duration != 450*time.Minute {
		t.Fatalf("duration %v, want unchanged 7h30m", p.Duration)
	}
}

func TestComputeSleepDebt(t *testing.T) {
	if got := ComputeSleepDebt([]int{400, 500, 420}, 450); got != 80 {
		t.Fatalf("got %d, want 80", got)
	}
	if got := ComputeSleepDebt(nil, 450); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestSleepDuration(t *testing.T) {
	if got := SleepDuration(At(23, 30), At(7, 0)); got != 450 {
		t.Fatalf("got %d, want 450", got)
	}
	if got := SleepDuration(At(1, 0), At(9, 0)); got != 480 {
		t.Fatalf("got %d, want 480", got)
	}
}

func TestAverageBedtime(t *testing.T) {
	if _, ok := AverageBedtime(nil); ok {
		t.Fatal("expected ok=false for empty input")
	}
	got, ok := AverageBedtime([]TimeOfDay{At(22, 0), At(23, 0)})
	if !ok || got != At(22, 30) {
		t.Fatalf("got %v ok=%v, want 22:30", got, ok)
	}
}

func TestSplitSleepGoal(t *testing.T) {
	if got := SplitSleepGoal(450, 3); got[0] != 150 || got[1] != 150 || got[2] != 150 {
		t.Fatalf("got %v, want [150 150 150]", got)
	}
	got := SplitSleepGoal(451, 3)
	if got[0] != 151 || got[1] != 150 || got[2] != 150 {
		t.Fatalf("got %v, want [151 150 150]", got)
	}
	if got := SplitSleepGoal(450, 0); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}
