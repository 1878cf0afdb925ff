package reminder

import (
	"vitabot/internal/plan"
	"vitabot/internal/profile"
)

// Occurrence is one target local time a recurrence generator wants
// materialized for the user's current cycle.
type Occurrence struct {
	Time    plan.TimeOfDay
	Payload Payload
}

// firstDoseOffset keeps the first water reminder from colliding with the wake
// reminder when the hydration window starts exactly at wake time.
const firstDoseOffset = 30

// WakeOccurrences yields the single morning-wake slot. Default-on when the
// user has no explicit module set.
func WakeOccurrences(u *profile.User) []Occurrence {
	if !u.ModuleEnabled(profile.ModuleSleep) {
		return nil
	}
	return []Occurrence{{Time: u.WakeTime}}
}

// HydrationOccurrences yields the day's water dose slots. Default-on like
// wake. The first dose is pushed 30 minutes past wake when it would coincide
// with the wake reminder.
func HydrationOccurrences(u *profile.User) []Occurrence {
	if !u.ModuleEnabled(profile.ModuleHydration) {
		return nil
	}
	doses := plan.BuildHydrationSchedule(u.HydrationGoalML, u.WakeTime, u.HydrationStart, u.HydrationEnd)
	out := make([]Occurrence, 0, len(doses))
	for i, d := range doses {
		t := d.Time
		if i == 0 && t == u.WakeTime {
			t = t.Add(firstDoseOffset)
		}
		out = append(out, Occurrence{Time: t})
	}
	return out
}

// MedicationOccurrences yields one slot per configured intake, carrying the
// name+dosage payload. No default-on fallback: the meds module must be active.
func MedicationOccurrences(u *profile.User, meds []profile.MedicationSchedule) []Occurrence {
	if !u.ModuleEnabled(profile.ModuleMeds) {
		return nil
	}
	out := make([]Occurrence, 0, len(meds))
	for _, m := range meds {
		out = append(out, Occurrence{
			Time:    m.IntakeTime,
			Payload: Payload{Medication: &MedicationPayload{Name: m.Name, Dosage: m.Dosage}},
		})
	}
	return out
}

// WellnessOccurrences yields the pre-bedtime check-in slot, one hour before
// the planned bedtime. Rolling a past slot to tomorrow is the clock
// resolver's job, not the generator's.
func WellnessOccurrences(u *profile.User) []Occurrence {
	if !u.ModuleEnabled(profile.ModuleSymptoms) {
		return nil
	}
	p := plan.BuildBedtimePlan(u.WakeTime, u.SleepGoalMinutes, u.SleepGoalCycles, u.SleepDebtMinutes, u.AverageBedtime)
	return []Occurrence{{Time: p.TargetBedtime.Add(-60)}}
}

// generated pairs a kind with its occurrences for one user.
type generated struct {
	kind Kind
	occs []Occurrence
}

// generateAll runs every recurrence generator for one user snapshot. Pure
// apart from the medication rows passed in.
func generateAll(u *profile.User, meds []profile.MedicationSchedule) []generated {
	return []generated{
		{KindMorningWake, WakeOccurrences(u)},
		{KindHydration, HydrationOccurrences(u)},
		{KindMedication, MedicationOccurrences(u, meds)},
		{KindWellnessCheck, WellnessOccurrences(u)},
	}
}
