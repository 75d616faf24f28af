package milestone

import "time"

// NextMilestone returns the first milestone after now in the evaluation and
// how long until it. There is no separate next-milestone algorithm: this is
// read straight off the reconciled schedule.
func NextMilestone(ev *Evaluation, now time.Time) (Milestone, time.Duration, bool) {
	if ev == nil {
		return Milestone{}, 0, false
	}
	for _, m := range ev.Milestones {
		if m.At.After(now) {
			return m, m.At.Sub(now), true
		}
	}
	return Milestone{}, 0, false
}
