package model

import "testing"

func TestMatch_StatusFor(t *testing.T) {
	tests := []struct {
		name  string
		liked []string
		want  MatchStatus
	}{
		{"both", []string{"me", "you"}, MatchConfirmed},
		{"mine only", []string{"me"}, MatchPending},
		{"theirs only", []string{"you"}, MatchReceived},
		{"nobody", nil, MatchNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatch("m1", []string{"me", "you"}, tt.liked)
			if got := m.StatusFor("me"); got != tt.want {
				t.Errorf("StatusFor: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMatch_SameParticipantsIgnoresOrder(t *testing.T) {
	a := NewMatch("m1", []string{"a", "b"}, nil)
	b := NewMatch("m1", []string{"b", "a"}, nil)
	if !a.SameParticipants(b) {
		t.Error("expected participants to compare equal regardless of order")
	}
}

func TestMatch_Valid(t *testing.T) {
	if !NewMatch("m", []string{"a", "b"}, []string{"a"}).Valid() {
		t.Error("subset likedBy should be valid")
	}
	if NewMatch("m", []string{"a", "b"}, []string{"c"}).Valid() {
		t.Error("likedBy outside participants should be invalid")
	}
	for _, participants := range [][]string{nil, {"a"}, {"a", "a"}, {"a", "b", "c"}} {
		if NewMatch("m", participants, nil).Valid() {
			t.Errorf("participants %v should be invalid", participants)
		}
	}
}

func TestNewMatch_Defaults(t *testing.T) {
	m := NewMatch("m", nil, nil)
	if !m.Seen {
		t.Error("REST model should default seen to true")
	}
	if m.Participants == nil || m.LikedBy == nil {
		t.Error("expected empty, non-nil slices")
	}
}
