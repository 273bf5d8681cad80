package votes

import (
	"intake/internal/services/chat"
	"intake/internal/store"
)

// Outcome of one tally against its threshold.
type Outcome string

const (
	OutcomeNone      Outcome = "none"
	OutcomeAccept    Outcome = "accept"
	OutcomeDeny      Outcome = "deny"
	OutcomeAmbiguous Outcome = "ambiguous"
)

// Tally is the count of distinct eligible voters per side after voiding
// both-way votes.
type Tally struct {
	Accept int
	Deny   int
}

// EligibleVoters filters channel viewers down to the reviewers whose votes
// count: non-automated members who, when the track restricts voting to
// certain roles, hold at least one of them.
func EligibleVoters(viewers []chat.Member, voterRoleIDs []string) []chat.Member {
	var eligible []chat.Member
	for _, member := range viewers {
		if member.Bot {
			continue
		}
		if len(voterRoleIDs) > 0 && !holdsAny(member, voterRoleIDs) {
			continue
		}
		eligible = append(eligible, member)
	}
	return eligible
}

func holdsAny(member chat.Member, roleIDs []string) bool {
	for _, want := range roleIDs {
		for _, have := range member.RoleIDs {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Threshold computes max(rule floor, ceil(eligible * numerator / denominator)).
func Threshold(rule store.VoteRule, eligible int) int {
	if eligible < 0 {
		eligible = 0
	}
	ratio := 0
	if rule.Denominator > 0 {
		ratio = (eligible*rule.Numerator + rule.Denominator - 1) / rule.Denominator
	}
	if rule.MinimumVotes > ratio {
		return rule.MinimumVotes
	}
	return ratio
}

// CountVotes tallies distinct eligible reactors per side. A user who reacted
// with both sentinels is excluded from both counts.
func CountVotes(eligible, acceptors, deniers []chat.Member) Tally {
	eligibleSet := idSet(eligible)
	acceptSet := intersect(idSet(acceptors), eligibleSet)
	denySet := intersect(idSet(deniers), eligibleSet)

	var tally Tally
	for id := range acceptSet {
		if _, both := denySet[id]; !both {
			tally.Accept++
		}
	}
	for id := range denySet {
		if _, both := acceptSet[id]; !both {
			tally.Deny++
		}
	}
	return tally
}

// Decide applies the threshold. Both sides meeting it simultaneously is
// ambiguous and requires a human force-decision.
func Decide(tally Tally, threshold int) Outcome {
	acceptMet := threshold > 0 && tally.Accept >= threshold
	denyMet := threshold > 0 && tally.Deny >= threshold
	switch {
	case acceptMet && denyMet:
		return OutcomeAmbiguous
	case acceptMet:
		return OutcomeAccept
	case denyMet:
		return OutcomeDeny
	default:
		return OutcomeNone
	}
}

func idSet(members []chat.Member) map[string]struct{} {
	set := make(map[string]struct{}, len(members))
	for _, member := range members {
		if member.ID != "" {
			set[member.ID] = struct{}{}
		}
	}
	return set
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}
