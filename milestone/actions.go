package milestone

import (
	"sort"
	"time"
)

// RelevantActionTimes returns the sorted timestamps of the actions that count
// toward g at now: a valid timestamp in [g.Start(), now], a matching type
// when the goal tracks one, and a payload for the goal's unit.
func RelevantActionTimes(g GoalSpec, actions []ActionRecord, now time.Time) []time.Time {
	start := g.Start()
	var out []time.Time
	for _, a := range actions {
		if !a.ValidTimestamp() {
			continue
		}
		if g.ActionType != "" && a.Type != g.ActionType {
			continue
		}
		if !carriesUnit(a, g.Unit) {
			continue
		}
		at := a.Time()
		if at.Before(start) || at.After(now) {
			continue
		}
		out = append(out, at)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func carriesUnit(a ActionRecord, unit Unit) bool {
	switch unit {
	case UnitDuration:
		return a.DurationSec != nil && *a.DurationSec > 0
	case UnitCurrency:
		return a.Amount != nil && a.Amount.IsPositive()
	default:
		return true
	}
}

// countAtOrBefore counts sorted times that are not after at.
func countAtOrBefore(sorted []time.Time, at time.Time) int {
	return sort.Search(len(sorted), func(i int) bool { return sorted[i].After(at) })
}
