package reminder

import "time"

// Action is what the engine does to an instance after a dispatch attempt.
type Action int

const (
	ActionComplete Action = iota
	ActionReschedule
	ActionFail
)

const (
	hydrationRetryCap   = 2
	hydrationRetryDelay = 15 * time.Minute
)

// Decide maps a dispatch outcome to a store mutation.
//
// Hydration tolerates transient failures with a short reschedule, bounded by
// the attempt cap; a dropped water reminder recurs naturally next cycle, so
// past the cap it is failed silently. Every other kind is time-sensitive (a
// late wake or medication reminder loses its value), so any failure is
// terminal immediately.
func Decide(kind Kind, outcome Outcome, attempt int) (Action, time.Duration) {
	switch outcome {
	case Delivered:
		return ActionComplete, 0
	case TransientFailure:
		if kind == KindHydration && attempt < hydrationRetryCap {
			return ActionReschedule, hydrationRetryDelay
		}
		return ActionFail, 0
	default:
		return ActionFail, 0
	}
}
