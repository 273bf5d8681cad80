package votes

import (
	"testing"

	"intake/internal/services/chat"
	"intake/internal/store"
)

func members(ids ...string) []chat.Member {
	out := make([]chat.Member, len(ids))
	for i, id := range ids {
		out[i] = chat.Member{ID: id}
	}
	return out
}

func TestEligibleVotersFiltersBotsAndRoles(t *testing.T) {
	viewers := []chat.Member{
		{ID: "u1", RoleIDs: []string{"role-voter"}},
		{ID: "u2", RoleIDs: []string{"role-other"}},
		{ID: "u3", Bot: true, RoleIDs: []string{"role-voter"}},
		{ID: "u4"},
	}

	unrestricted := EligibleVoters(viewers, nil)
	if len(unrestricted) != 3 {
		t.Fatalf("expected 3 non-bot voters, got %d", len(unrestricted))
	}

	restricted := EligibleVoters(viewers, []string{"role-voter"})
	if len(restricted) != 1 || restricted[0].ID != "u1" {
		t.Fatalf("unexpected restricted voters %+v", restricted)
	}
}

func TestThreshold(t *testing.T) {
	cases := []struct {
		rule     store.VoteRule
		eligible int
		want     int
	}{
		// 2/3 of 10 is 6.67, ceil 7, above the floor of 3.
		{store.VoteRule{Numerator: 2, Denominator: 3, MinimumVotes: 3}, 10, 7},
		// Floor wins when the channel is small.
		{store.VoteRule{Numerator: 2, Denominator: 3, MinimumVotes: 3}, 3, 3},
		{store.VoteRule{Numerator: 1, Denominator: 2, MinimumVotes: 1}, 5, 3},
		{store.VoteRule{Numerator: 1, Denominator: 2, MinimumVotes: 1}, 0, 1},
	}
	for _, tc := range cases {
		if got := Threshold(tc.rule, tc.eligible); got != tc.want {
			t.Errorf("Threshold(%+v, %d) = %d, want %d", tc.rule, tc.eligible, got, tc.want)
		}
	}
}

func TestCountVotesVoidsBothWayVoters(t *testing.T) {
	eligible := members("u1", "u2", "u3", "u4")
	acceptors := members("u1", "u2", "u3", "outsider")
	deniers := members("u3", "u4")

	tally := CountVotes(eligible, acceptors, deniers)
	// u3 voted both ways and is void; outsider is not eligible.
	if tally.Accept != 2 || tally.Deny != 1 {
		t.Fatalf("unexpected tally %+v", tally)
	}
}

func TestDecide(t *testing.T) {
	if got := Decide(Tally{Accept: 7, Deny: 1}, 7); got != OutcomeAccept {
		t.Fatalf("expected accept, got %s", got)
	}
	if got := Decide(Tally{Accept: 2, Deny: 7}, 7); got != OutcomeDeny {
		t.Fatalf("expected deny, got %s", got)
	}
	if got := Decide(Tally{Accept: 7, Deny: 7}, 7); got != OutcomeAmbiguous {
		t.Fatalf("expected ambiguous, got %s", got)
	}
	if got := Decide(Tally{Accept: 6, Deny: 6}, 7); got != OutcomeNone {
		t.Fatalf("expected none, got %s", got)
	}
}
