package domain

import (
	"sort"

	"github.com/samber/lo"
)

// MemberSet is the live set of usernames in a room.
type MemberSet map[string]struct{}

// NewMemberSet builds a set from usernames; duplicates collapse.
func NewMemberSet(usernames ...string) MemberSet {
	s := make(MemberSet, len(usernames))
	for _, u := range usernames {
		s.Add(u)
	}
	return s
}

// MemberSetFromEntries builds a set from a membership query response.
func MemberSetFromEntries(entries []MemberEntry) MemberSet {
	return NewMemberSet(lo.Map(entries, func(e MemberEntry, _ int) string {
		return e.Username
	})...)
}

func (s MemberSet) Add(username string) {
	s[username] = struct{}{}
}

// Remove drops username. Membership is keyed by username, so this
// removes every entry that matches.
func (s MemberSet) Remove(username string) {
	delete(s, username)
}

func (s MemberSet) Has(username string) bool {
	_, ok := s[username]
	return ok
}

func (s MemberSet) Len() int {
	return len(s)
}

// Sorted returns the usernames in lexical order.
func (s MemberSet) Sorted() []string {
	out := lo.Keys(s)
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s MemberSet) Clone() MemberSet {
	c := make(MemberSet, len(s))
	for u := range s {
		c[u] = struct{}{}
	}
	return c
}
