package models

import "time"

// Crawl terminal states recorded in the report.
const (
	CrawlCompleted = "completed"
	CrawlAborted   = "aborted"
)

// SiteReport is the crawl's final output: parameters, the ordered page
// records, and the cross-page summaries. It is created once, at crawl
// completion (or early completion on interrupt), and then persisted.
type SiteReport struct {
	RunID       string      `json:"run_id"`
	GeneratedAt time.Time   `json:"generated_at"`
	StartURL    string      `json:"start_url"`
	State       string      `json:"state"`
	Parameters  AuditConfig `json:"parameters"`

	Pages    []PageRecord    `json:"pages"`
	Summary  ReportSummary   `json:"summary"`
	Security SecuritySummary `json:"security"`
}

// ReportSummary holds the SEO-side aggregates.
type ReportSummary struct {
	PagesCrawled int `json:"pages_crawled"`
	PagesFailed  int `json:"pages_failed"`
	NonIndexable int `json:"non_indexable"`

	IssueCounts map[IssueKind]int `json:"issue_counts"`

	// Duplicate groups map exact title / meta description text to the final
	// URLs sharing it; only groups of size >= 2 are kept.
	DuplicateTitles           map[string][]string `json:"duplicate_titles"`
	DuplicateMetaDescriptions map[string][]string `json:"duplicate_meta_descriptions"`
}

// SecuritySummary holds the heuristic-score aggregates.
type SecuritySummary struct {
	MinScore  int     `json:"min_score"`
	MaxScore  int     `json:"max_score"`
	MeanScore float64 `json:"mean_score"`

	GradeHistogram map[string]int `json:"grade_histogram"`
	FindingCounts  map[string]int `json:"finding_counts"`
	CategoryTotals map[string]int `json:"category_totals"`
}
