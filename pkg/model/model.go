// Package model holds the match and chat types shared by the realtime
// channel, the REST hydration client and the client-side chat state.
package model

import (
	"slices"
	"time"
)

// MatchStatus is derived from which participants have liked; it is never stored.
type MatchStatus string

const (
	MatchNone      MatchStatus = "none"
	MatchConfirmed MatchStatus = "confirmed"
	MatchPending   MatchStatus = "pending"
	MatchReceived  MatchStatus = "received"
)

// Match is a mutual-like pairing created server-side.
type Match struct {
	ID           string   `json:"_id"`
	Participants []string `json:"participants"`
	LikedBy      []string `json:"liked"`
	Seen         bool     `json:"seen"`
}

// NewMatch builds a match the way the REST model does: Seen defaults to true.
// The socket decode path defaults Seen to false instead (see wire.DecodeMatch).
func NewMatch(id string, participants, likedBy []string) Match {
	if participants == nil {
		participants = []string{}
	}
	if likedBy == nil {
		likedBy = []string{}
	}
	return Match{ID: id, Participants: participants, LikedBy: likedBy, Seen: true}
}

// HasParticipant reports whether userID takes part in the match.
func (m Match) HasParticipant(userID string) bool {
	return slices.Contains(m.Participants, userID)
}

// Other returns the participant that is not userID, or "" if none.
func (m Match) Other(userID string) string {
	for _, p := range m.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// Valid reports whether the match pairs exactly two distinct users and
// likedBy is a subset of them.
func (m Match) Valid() bool {
	if len(m.Participants) != 2 || m.Participants[0] == m.Participants[1] {
		return false
	}
	for _, l := range m.LikedBy {
		if !m.HasParticipant(l) {
			return false
		}
	}
	return true
}

// SameParticipants compares participants ignoring order.
func (m Match) SameParticipants(o Match) bool {
	if len(m.Participants) != len(o.Participants) {
		return false
	}
	a := slices.Clone(m.Participants)
	b := slices.Clone(o.Participants)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// StatusFor derives the match state as seen by userID.
func (m Match) StatusFor(userID string) MatchStatus {
	other := m.Other(userID)
	mine := slices.Contains(m.LikedBy, userID)
	theirs := other != "" && slices.Contains(m.LikedBy, other)
	switch {
	case mine && theirs:
		return MatchConfirmed
	case mine:
		return MatchPending
	case theirs:
		return MatchReceived
	default:
		return MatchNone
	}
}

// Message is immutable once created except for Read, which only moves false->true.
type Message struct {
	ClientID  string    `json:"clientMessageId,omitempty"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Chat owns the ordered messages for one match.
type Chat struct {
	ID           string    `json:"_id"`
	MatchID      string    `json:"matchId"`
	Participants []string  `json:"participants"`
	Messages     []Message `json:"messages"`
	LastActivity time.Time `json:"lastActivity"`
}

// HasParticipant reports whether userID takes part in the chat.
func (c Chat) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}
