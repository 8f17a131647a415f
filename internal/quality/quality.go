// Package quality scores record completeness before persistence. This is
// advisory filtering, not correctness-critical.
package quality

import "github.com/katchitechstudio/habersel-backend/internal/domain"

// DefaultMinScore drops records missing more than two completeness checks.
const DefaultMinScore = 60

// Score rates a record 0-100: 20 points each for a usable title, a usable
// description, an image, a url and a publish timestamp.
func Score(r domain.Record) int {
	score := 0
	if len(r.Title) > 10 {
		score += 20
	}
	if len(r.Description) > 20 {
		score += 20
	}
	if r.Image != "" {
		score += 20
	}
	if r.URL != "" {
		score += 20
	}
	if !r.PublishedAt.IsZero() {
		score += 20
	}
	return score
}

// Filter keeps records scoring at least minScore.
func Filter(records []domain.Record, minScore int) (kept []domain.Record, dropped int) {
	for _, r := range records {
		if Score(r) >= minScore {
			kept = append(kept, r)
		} else {
			dropped++
		}
	}
	return kept, dropped
}
