package book

import (
	"fmt"
	"math"
)

// In-memory versions of the filter and decade rules, used by the contract tests to
// compute expected results from the seed data.

// Matches reports whether b satisfies every predicate in f.
func (f Filter) Matches(b Book) bool {
	if f.Title != nil && b.Title != *f.Title {
		return false
	}
	if f.Author != nil && b.Author != *f.Author {
		return false
	}
	if f.Genre != nil && b.Genre != *f.Genre {
		return false
	}
	if f.InStock != nil && b.InStock != *f.InStock {
		return false
	}
	if f.PublishedAfter != nil && b.PublishedYear <= *f.PublishedAfter {
		return false
	}
	return true
}

// DecadeOf labels the decade containing year, e.g. 2014 -> "2010s".
func DecadeOf(year int) string {
	d := int(math.Floor(float64(year)/10)) * 10
	return fmt.Sprintf("%ds", d)
}
