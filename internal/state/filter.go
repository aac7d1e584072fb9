// Package state holds the client-visible mirror of the contact list together
// with the active filter inputs, and derives the filtered display list from
// them. The derivation is a pure function over its inputs: no storage access,
// no side effects, deterministic output order (input order is preserved).
package state

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/tbourn/go-contacts-backend/internal/domain"
)

// matchCase performs Unicode case folding so that searches behave sensibly
// on non-ASCII names (the seed data alone contains several).
var matchCase = cases.Fold()

// Fold trims and case-folds a search input exactly the way DeriveView folds
// it before matching. Anything that keys on the effective search term (ETag
// generation in the HTTP layer) must use this, not ASCII lowercasing, or two
// inputs that match identically would produce different keys.
func Fold(searchText string) string {
	return matchCase.String(strings.TrimSpace(searchText))
}

// DeriveView computes the filtered display list from the full mirror and the
// two filter inputs. Both filters intersect:
//
//  1. When favoriteOnly is set, only contacts with favorite = 1 are kept.
//  2. When searchText is non-empty after trimming, a contact is kept when the
//     folded search string occurs as a substring of its folded name OR its
//     folded phone. A contact without a phone never matches on phone.
//
// The input slice is never mutated; with no active filter it is returned
// as-is.
func DeriveView(all []domain.Contact, searchText string, favoriteOnly bool) []domain.Contact {
	needle := Fold(searchText)
	if !favoriteOnly && needle == "" {
		return all
	}

	out := make([]domain.Contact, 0, len(all))
	for _, c := range all {
		if favoriteOnly && c.Favorite != 1 {
			continue
		}
		if needle != "" && !matches(c, needle) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// matches reports whether the folded needle occurs in the contact's name or
// phone.
func matches(c domain.Contact, needle string) bool {
	if strings.Contains(matchCase.String(c.Name), needle) {
		return true
	}
	if c.Phone != nil && strings.Contains(matchCase.String(*c.Phone), needle) {
		return true
	}
	return false
}
