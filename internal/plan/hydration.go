package plan

// Dose is one planned water intake.
type Dose struct {
	Time     TimeOfDay
	VolumeML int
}

const (
	minDoses       = 4
	minDoseML      = 150
	doseGapMinutes = 120
	defaultSpanMin = 12 * 60
	hydrationSpan  = 14 * 60 // default drinking window after wake
)

// BuildHydrationSchedule spreads the daily hydration goal over the user's
// drinking window. Start defaults to wake time, end to wake+14h. Doses are
// evenly spaced with a target gap of ~2 hours, at least 4 doses, each at
// least 150ml.
func BuildHydrationSchedule(goalML int, wake TimeOfDay, start, end *TimeOfDay) []Dose {
	from := wake
	if start != nil {
		from = *start
	}
	to := wake.Add(hydrationSpan)
	if end != nil {
		to = *end
	}

	span := (to.Minutes() - from.Minutes() + minutesPerDay) % minutesPerDay
	if span <= 0 {
		span = defaultSpanMin
	}
	portions := span / doseGapMinutes
	if portions < minDoses {
		portions = minDoses
	}
	volume := goalML / portions
	if volume < minDoseML {
		volume = minDoseML
	}

	doses := make([]Dose, 0, portions)
	for i := 0; i < portions; i++ {
		doses = append(doses, Dose{
			Time:     from.Add(i * (span / portions)),
			VolumeML: volume,
		})
	}
	return doses
}
