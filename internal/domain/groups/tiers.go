package groups

import "sort"

// Tier is a group discount threshold.
type Tier struct {
	MinParticipants int `json:"minParticipants"`
	PercentOff      int `json:"percentOff"`
}

func (t Tier) valid() bool {
	return t.MinParticipants > 0 && t.PercentOff > 0 && t.PercentOff <= 100
}

// TierState is the discount a group qualifies for at a given size.
type TierState struct {
	JoinedCount   int   `json:"joinedCount"`
	PercentOff    int   `json:"percentOff"`
	CurrentTier   *Tier `json:"currentTier,omitempty"`
	NextTier      *Tier `json:"nextTier,omitempty"`
	MembersNeeded int   `json:"membersNeeded"`
}

// EvaluateTiers returns the highest tier met by joinedCount and the lowest
// one still unmet. Invalid tiers are ignored; when two tiers share a minimum
// the larger discount wins.
func EvaluateTiers(tiers []Tier, joinedCount int) TierState {
	valid := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		if t.valid() {
			valid = append(valid, t)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].MinParticipants != valid[j].MinParticipants {
			return valid[i].MinParticipants < valid[j].MinParticipants
		}
		return valid[i].PercentOff < valid[j].PercentOff
	})
	valid = dedupeTiers(valid)

	state := TierState{JoinedCount: joinedCount}

	for i := range valid {
		if valid[i].MinParticipants <= joinedCount {
			tier := valid[i]
			state.CurrentTier = &tier
			state.PercentOff = tier.PercentOff
		}
	}

	for i := range valid {
		if valid[i].MinParticipants > joinedCount {
			tier := valid[i]
			state.NextTier = &tier
			state.MembersNeeded = tier.MinParticipants - joinedCount
			break
		}
	}

	return state
}

// dedupeTiers keeps the last tier of each run of equal minimums. Input must be
// sorted by (MinParticipants, PercentOff).
func dedupeTiers(sorted []Tier) []Tier {
	out := sorted[:0]
	for i, t := range sorted {
		if i+1 < len(sorted) && sorted[i+1].MinParticipants == t.MinParticipants {
			continue
		}
		out = append(out, t)
	}
	return out
}
