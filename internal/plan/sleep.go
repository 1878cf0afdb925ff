package plan

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultSleepGoalMinutes = 450
	sleepCycleMinutes       = 90
	chronoStepMinutes       = 30
	chronoMaxDays           = 14
)

// BedtimePlan is the bedtime-planner output consumed by the wellness-check
// recurrence and the sleep flows.
type BedtimePlan struct {
	TargetBedtime TimeOfDay
	WakeTime      TimeOfDay
	Duration      time.Duration
	Notes         string
}

// ChronoStep is one day of a gradual bedtime shift.
type ChronoStep struct {
	DayOffset int
	Bedtime   TimeOfDay
}

// SleepGoalMinutes resolves the nightly sleep target: explicit minutes win,
// then 90-minute cycles, then the 7.5h default.
func SleepGoalMinutes(goalMinutes, goalCycles int) int {
	if goalMinutes > 0 {
		return goalMinutes
	}
	if goalCycles > 0 {
		return goalCycles * sleepCycleMinutes
	}
	return defaultSleepGoalMinutes
}

// CalculateBedtime walks back from the desired wake time by the sleep goal.
func CalculateBedtime(wake TimeOfDay, goalMinutes int) TimeOfDay {
	return FromMinutes(wake.Minutes() - goalMinutes)
}

// SuggestChronotherapy builds a day-by-day 30-minute shift plan from the
// current bedtime toward the target, moving the shorter way around the clock.
// Capped at 14 days as a safety guard.
func SuggestChronotherapy(current, target TimeOfDay) []ChronoStep {
	cur := current.Minutes()
	tgt := target.Minutes()
	var steps []ChronoStep
	day := 0
	for cur != tgt {
		if (tgt-cur+minutesPerDay)%minutesPerDay > minutesPerDay/2 {
			cur = (cur - chronoStepMinutes + minutesPerDay) % minutesPerDay
		} else {
			cur = (cur + chronoStepMinutes) % minutesPerDay
		}
		day++
		steps = append(steps, ChronoStep{DayOffset: day, Bedtime: FromMinutes(cur)})
		if day >= chronoMaxDays {
			break
		}
	}
	return steps
}

// BuildBedtimePlan computes tonight's bedtime for a user. Accumulated sleep
// debt over an hour temporarily extends the night (up to 2h, rounded up to
// 30-minute steps); otherwise a large gap from the habitual bedtime yields a
// chronotherapy note.
func BuildBedtimePlan(wake TimeOfDay, goalMinutes, goalCycles, sleepDebtMinutes int, averageBedtime *TimeOfDay) BedtimePlan {
	goal := SleepGoalMinutes(goalMinutes, goalCycles)
	bedtime := CalculateBedtime(wake, goal)
	duration := time.Duration(goal) * time.Minute
	notes := "Рекомендуется поддерживать одинаковое время отхода ко сну и подъёма ежедневно."

	switch {
	case sleepDebtMinutes > 60:
		extra := ((sleepDebtMinutes + 29) / 30) * 30
		if extra > 120 {
			extra = 120
		}
		duration += time.Duration(extra) * time.Minute
		bedtime = CalculateBedtime(wake, int(duration.Minutes()))
		notes = fmt.Sprintf(
			"Обнаружен накопленный недосып. Временно увеличьте продолжительность сна на %d ч %d мин и поддерживайте режим как минимум 3 дня.",
			extra/60, extra%60)
	case averageBedtime != nil && abs(DiffMinutes(*averageBedtime, bedtime)) > 90:
		steps := SuggestChronotherapy(*averageBedtime, bedtime)
		parts := make([]string, 0, len(steps))
		for _, s := range steps {
			parts = append(parts, fmt.Sprintf("+%d дн → %s", s.DayOffset, s.Bedtime))
		}
		notes = "Текущий режим сна сильно отличается от цели. Следуйте постепенному сдвигу:\n" + strings.Join(parts, ", ")
	}

	return BedtimePlan{TargetBedtime: bedtime, WakeTime: wake, Duration: duration, Notes: notes}
}

// ComputeSleepDebt sums the shortfall of each night against the goal.
// Surplus nights do not pay the debt down.
func ComputeSleepDebt(nightMinutes []int, goalMinutes int) int {
	debt := 0
	for _, n := range nightMinutes {
		if d := goalMinutes - n; d > 0 {
			debt += d
		}
	}
	return debt
}

// SleepDuration computes minutes slept between bedtime and wake, assuming at
// most one midnight crossing.
func SleepDuration(bedtime, wake TimeOfDay) int {
	d := wake.Minutes() - bedtime.Minutes()
	if d < 0 {
		d += minutesPerDay
	}
	return d
}

// AverageBedtime averages a set of observed bedtimes; ok is false when empty.
func AverageBedtime(bedtimes []TimeOfDay) (TimeOfDay, bool) {
	if len(bedtimes) == 0 {
		return 0, false
	}
	sum := 0
	for _, b := range bedtimes {
		sum += b.Minutes()
	}
	return FromMinutes(sum / len(bedtimes)), true
}

// SplitSleepGoal divides the goal into near-equal segments (polyphasic plans).
func SplitSleepGoal(goalMinutes, segments int) []int {
	if segments <= 0 {
		return nil
	}
	base := goalMinutes / segments
	rem := goalMinutes % segments
	out := make([]int, segments)
	for i := range out {
		out[i] = base
		if i < rem {
			out[i]++
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
