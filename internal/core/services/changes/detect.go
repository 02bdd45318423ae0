package changes

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

// Detect compares a freshly fetched snapshot against the stored one and
// returns at most one event per field, in a fixed order. A nil old
// snapshot yields a single new_cve event.
func Detect(old *domain.CveSnapshot, cur domain.CveSnapshot) []domain.Event {
	if old == nil {
		return []domain.Event{newEvent(domain.EventNewCVE, nil, cur.ID)}
	}

	var events []domain.Event

	if !scoreEqual(old.CVSS2, cur.CVSS2) {
		events = append(events, newEvent(domain.EventCVSS2, scoreValue(old.CVSS2), scoreValue(cur.CVSS2)))
	}
	if !scoreEqual(old.CVSS3, cur.CVSS3) {
		events = append(events, newEvent(domain.EventCVSS3, scoreValue(old.CVSS3), scoreValue(cur.CVSS3)))
	}
	if ev, changed := setEvent(domain.EventCWE, old.CWEs, cur.CWEs); changed {
		events = append(events, ev)
	}
	if ev, changed := setEvent(domain.EventCPE, old.CPEs, cur.CPEs); changed {
		events = append(events, ev)
	}
	if old.Summary != cur.Summary {
		events = append(events, newEvent(domain.EventSummary, old.Summary, cur.Summary))
	}
	if ev, changed := setEvent(domain.EventReference, old.References, cur.References); changed {
		events = append(events, ev)
	}
	return events
}

func newEvent(t domain.EventType, old, cur any) domain.Event {
	return domain.Event{Type: t, Field: t.Field(), Old: old, New: cur}
}

func scoreEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func scoreValue(s *float64) any {
	if s == nil {
		return nil
	}
	return *s
}

// setEvent compares two lists as sets. Old and New carry the sorted,
// deduplicated lists.
func setEvent(t domain.EventType, old, cur []string) (domain.Event, bool) {
	oldSet := mapset.NewThreadUnsafeSet(old...)
	curSet := mapset.NewThreadUnsafeSet(cur...)
	if oldSet.SymmetricDifference(curSet).Cardinality() == 0 {
		return domain.Event{}, false
	}
	return newEvent(t, sorted(oldSet), sorted(curSet)), true
}

func sorted(s mapset.Set[string]) []string {
	out := s.ToSlice()
	sort.Strings(out)
	return out
}
