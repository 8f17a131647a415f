// Package dedup flags duplicate news records using three independent
// heuristics: fuzzy title similarity, canonicalized URL equality and
// publish-time proximity with a relaxed title threshold. A record is a
// duplicate if ANY check matches; there is no scoring or weighting.
package dedup

import (
	"math"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/katchitechstudio/habersel-backend/internal/domain"
)

const (
	// TitleThreshold is the fuzzy similarity (percent) above which two
	// titles alone mark a duplicate.
	TitleThreshold = 85
	// RelaxedTitleThreshold applies when publish times are close.
	RelaxedTitleThreshold = 70
	// TimeProximity is the publish-time window for the relaxed check.
	TimeProximity = 15 * time.Minute
)

func normalizeTitle(t string) string {
	return strings.Join(strings.Fields(strings.ToLower(t)), " ")
}

// TitleSimilarity returns an integer percentage in [0, 100] for two
// normalized titles, based on levenshtein distance over runes.
func TitleSimilarity(a, b string) int {
	an, bn := normalizeTitle(a), normalizeTitle(b)
	if an == "" || bn == "" {
		return 0
	}
	if an == bn {
		return 100
	}

	dist := levenshtein.ComputeDistance(an, bn)
	longest := len([]rune(an))
	if l := len([]rune(bn)); l > longest {
		longest = l
	}
	return int(math.Round((1 - float64(dist)/float64(longest)) * 100))
}

func titlesSimilar(a, b string, threshold int) bool {
	if a == "" || b == "" {
		return false
	}
	return TitleSimilarity(a, b) >= threshold
}

// CanonicalURL reduces a URL to its comparison form: lower-case, scheme
// stripped, "www." stripped, query string and fragment dropped, trailing
// slash removed.
func CanonicalURL(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	return strings.TrimRight(u, "/")
}

// pathOnly drops the host portion, so m.example.com/x compares equal to
// example.com/x.
func pathOnly(canonical string) string {
	if i := strings.IndexByte(canonical, '/'); i >= 0 {
		return canonical[i+1:]
	}
	return ""
}

// URLsEqual reports canonical equality, falling back to a path-only
// comparison to catch subdomain variants.
func URLsEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	ca, cb := CanonicalURL(a), CanonicalURL(b)
	if ca == cb {
		return true
	}
	pa, pb := pathOnly(ca), pathOnly(cb)
	return pa != "" && pa == pb
}

func datesClose(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= TimeProximity
}

// IsDuplicate compares a candidate against one accepted record. The three
// checks are a pure OR; the first match wins.
func IsDuplicate(candidate, accepted domain.Record) bool {
	if titlesSimilar(candidate.Title, accepted.Title, TitleThreshold) {
		return true
	}
	if URLsEqual(candidate.URL, accepted.URL) {
		return true
	}
	if datesClose(candidate.PublishedAt, accepted.PublishedAt) &&
		titlesSimilar(candidate.Title, accepted.Title, RelaxedTitleThreshold) {
		return true
	}
	return false
}

// Dedupe filters a batch pairwise against its own accepted set, keeping
// the first occurrence of every duplicate group.
func Dedupe(records []domain.Record) (unique []domain.Record, dropped int) {
	for _, r := range records {
		dup := false
		for _, u := range unique {
			if IsDuplicate(r, u) {
				dup = true
				break
			}
		}
		if dup {
			dropped++
			continue
		}
		unique = append(unique, r)
	}
	return unique, dropped
}

// FilterAgainstExisting drops records that duplicate an already stored
// article by title or URL. Time proximity is not consulted here: stored
// publish timestamps are our own saved-at clock, not the source's.
func FilterAgainstExisting(records []domain.Record, existing []domain.Article) (kept []domain.Record, dropped int) {
	if len(existing) == 0 {
		return records, 0
	}
	for _, r := range records {
		dup := false
		for _, e := range existing {
			if titlesSimilar(r.Title, e.Title, TitleThreshold) || URLsEqual(r.URL, e.URL) {
				dup = true
				break
			}
		}
		if dup {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	return kept, dropped
}
