// SPDX-License-Identifier: MPL-2.0

package session

import "time"

// Delta is the difference between two consecutive run durations.
type Delta struct {
	Amount time.Duration
	Slower bool
}

// ComputeDelta compares cur with prev. Equal durations count as not slower.
func ComputeDelta(prev, cur time.Duration) Delta {
	if cur > prev {
		return Delta{Amount: cur - prev, Slower: true}
	}
	return Delta{Amount: prev - cur}
}

// String renders the delta with a leading sign: "+" slower, "-" faster.
func (d Delta) String() string {
	if d.Slower {
		return "+" + d.Amount.String()
	}
	return "-" + d.Amount.String()
}
