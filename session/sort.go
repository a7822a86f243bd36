package session

import (
	"cmp"
	"slices"
)

func sortByCreated(list []*Session) {
	slices.SortStableFunc(list, func(a, b *Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.SessionID, b.SessionID)
	})
}

func sortByActivityDesc(list []*Session) {
	slices.SortStableFunc(list, func(a, b *Session) int {
		if c := b.LastActivity.Compare(a.LastActivity); c != 0 {
			return c
		}
		return cmp.Compare(a.SessionID, b.SessionID)
	})
}
