package entities

import "testing"

func TestTallyVerdict(t *testing.T) {
	cases := []struct {
		name     string
		tally    Tally
		quorum   int
		approved bool
		decided  bool
		tied     bool
	}{
		{name: "below quorum", tally: Tally{Approvals: 1, Rejections: 1}, quorum: 3},
		{name: "majority approve", tally: Tally{Approvals: 2, Rejections: 1}, quorum: 3, approved: true, decided: true},
		{name: "majority reject", tally: Tally{Approvals: 1, Rejections: 2}, quorum: 3, decided: true},
		{name: "unanimous", tally: Tally{Approvals: 3}, quorum: 3, approved: true, decided: true},
		{name: "tie at even quorum", tally: Tally{Approvals: 2, Rejections: 2}, quorum: 4, tied: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			approved, decided, tied := tc.tally.Verdict(tc.quorum)
			if approved != tc.approved || decided != tc.decided || tied != tc.tied {
				t.Fatalf("got approved=%v decided=%v tied=%v", approved, decided, tied)
			}
		})
	}
}
