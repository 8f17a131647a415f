package domain

import "time"

// ContentState tracks how far an article got through content enrichment.
type ContentState string

const (
	ContentUnscraped   ContentState = "unscraped"
	ContentScraped     ContentState = "scraped"
	ContentQuarantined ContentState = "quarantined"
)

// Article is a persisted news item. Identity is the (title, url) pair,
// enforced by a uniqueness constraint at the store.
type Article struct {
	ID           int64        `db:"id" json:"id"`
	Category     string       `db:"category" json:"category"`
	Title        string       `db:"title" json:"title"`
	Description  *string      `db:"description" json:"description,omitempty"`
	URL          string       `db:"url" json:"url"`
	Image        *string      `db:"image" json:"image,omitempty"`
	SourceName   string       `db:"source" json:"source"`
	PublishedAt  *time.Time   `db:"published_at" json:"published_at,omitempty"`
	SavedAt      time.Time    `db:"saved_at" json:"saved_at"`
	ExpiresAt    time.Time    `db:"expires_at" json:"-"`
	FullContent  *string      `db:"full_content" json:"full_content,omitempty"`
	ContentState ContentState `db:"content_state" json:"content_state"`
}

// Record is the canonical shape every source adapter normalizes into.
// Title and URL are guaranteed non-empty by the adapters; everything else
// is best effort.
type Record struct {
	Title       string
	Description string
	URL         string
	Image       string
	SourceName  string
	PublishedAt time.Time
}

// BlacklistEntry excludes a URL from scraping after repeated failures.
type BlacklistEntry struct {
	URL         string    `db:"url" json:"url"`
	FailCount   int       `db:"fail_count" json:"fail_count"`
	Reason      string    `db:"reason" json:"reason"`
	FirstFailed time.Time `db:"first_failed" json:"first_failed"`
	LastFailed  time.Time `db:"last_failed" json:"last_failed"`
}

// RunMarker records that a scheduled slot already executed within a given
// date+hour window. RunDate is the scheduler timezone's calendar date in
// YYYY-MM-DD form.
type RunMarker struct {
	Slot       string    `db:"slot"`
	RunDate    string    `db:"run_date"`
	RunHour    int       `db:"run_hour"`
	ExecutedAt time.Time `db:"executed_at"`
}
