package domain

import "time"

// IngestStats holds per-category statistics for one ingestion pass.
type IngestStats struct {
	Category   string `json:"category"`
	SourceUsed string `json:"source_used"`
	Fetched    int    `json:"fetched"`
	Duplicates int    `json:"duplicates"`
	LowQuality int    `json:"low_quality"`
	Saved      int    `json:"saved"`
	Errors     int    `json:"errors"`
}

// BulkResult aggregates per-record outcomes of a bulk save.
type BulkResult struct {
	Saved      int `json:"saved"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// ScrapeStats summarizes one content-scraping batch.
type ScrapeStats struct {
	Selected    int           `json:"selected"`
	Scraped     int           `json:"scraped"`
	Failed      int           `json:"failed"`
	Blacklisted int           `json:"blacklisted"`
	Duration    time.Duration `json:"duration"`
}

// SlotStatus is the outcome class of a RunSlot invocation.
type SlotStatus string

const (
	SlotRan               SlotStatus = "ran"
	SlotSkippedWrongTime  SlotStatus = "skipped_wrong_time"
	SlotSkippedAlreadyRan SlotStatus = "skipped_already_ran"
	SlotFailed            SlotStatus = "failed"
)

// SlotResult is returned by the scheduler for every slot invocation.
// Ingestion failures are business-level outcomes, never transport errors.
type SlotResult struct {
	Slot       string        `json:"slot"`
	Status     SlotStatus    `json:"status"`
	Categories []IngestStats `json:"categories,omitempty"`
	Deleted    int64         `json:"deleted,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// SystemStatus is the aggregate health view served by the status endpoint.
type SystemStatus struct {
	LastUpdate    *time.Time     `json:"last_update"`
	TotalArticles int            `json:"total_articles"`
	Categories    map[string]int `json:"categories"`
	Quota         []QuotaStats   `json:"quota"`
}

// QuotaStats is a read-only view of one source's daily budget.
type QuotaStats struct {
	Source     string    `json:"source"`
	Limit      int       `json:"limit"`
	Used       int       `json:"used"`
	Remaining  int       `json:"remaining"`
	ErrorCount int       `json:"error_count"`
	ResetAt    time.Time `json:"reset_at"`
}
