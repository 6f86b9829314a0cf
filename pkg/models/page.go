package models

import "time"

// CrawlTarget is a normalized URL plus its link-hop distance from the start
// URL. It is created when a link passes scope and dedup filtering and is
// consumed once when dequeued.
type CrawlTarget struct {
	URL   string
	Depth int
}

// Signals is the raw per-page signal set produced by the extractor from one
// document. Every field has a defined absent value (empty string or slice);
// malformed markup never produces a partial failure.
type Signals struct {
	Title           string   `json:"title"`
	MetaDescription string   `json:"meta_description"`
	MetaKeywords    string   `json:"meta_keywords"`
	CanonicalURL    string   `json:"canonical_url"`
	RobotsMeta      []string `json:"robots_meta"`

	H1 []string `json:"h1_tags"`
	H2 []string `json:"h2_tags"`
	H3 []string `json:"h3_tags"`

	// Links holds up to 100 normalized same-site targets; LinkCount is the
	// pre-cap total and counts off-site links too, so
	// LinkCount >= len(Links) always.
	Links     []string `json:"links"`
	LinkCount int      `json:"link_count"`

	TextLength    int    `json:"text_content_length"`
	TextPreview   string `json:"text_preview"`
	ContentLength int    `json:"content_length"`
	ScriptBytes   int    `json:"script_bytes"`
	LikelyCSR     bool   `json:"likely_csr"`

	// Markup-derived security markers, consumed by the heuristic scorer.
	MixedContentCount    int `json:"mixed_content_count"`
	InsecureFormActions  int `json:"insecure_form_actions"`
	ExternalScriptsNoSRI int `json:"external_scripts_no_sri"`
}

// SecurityAssessment is the deterministic output of the heuristic scorer for
// one page: same headers and signals always produce the same assessment.
type SecurityAssessment struct {
	Score        int            `json:"score"`
	Grade        string         `json:"grade"`
	Findings     []string       `json:"findings"`
	CategoryHits map[string]int `json:"category_hits"`
}

// PageRecord is one fetched page's full signal set. It is built once per
// fetched page (or per fetch failure) and is immutable afterwards; the report
// aggregator owns the collected records for the crawl's duration.
type PageRecord struct {
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	FinalURL  string    `json:"final_url"`
	Depth     int       `json:"depth"`
	ElapsedMS int64     `json:"elapsed_ms"`

	StatusCode      int    `json:"status_code"`
	ContentType     string `json:"content_type,omitempty"`
	ContentEncoding string `json:"content_encoding,omitempty"`
	XRobotsTag      string `json:"x_robots_tag,omitempty"`
	FetchError      string `json:"fetch_error,omitempty"`

	Signals  Signals            `json:"signals"`
	Security SecurityAssessment `json:"security"`
	Issues   []Issue            `json:"issues"`

	Indexable bool `json:"indexable"`

	// InboundLinkCount is the number of links on crawled pages pointing at
	// this page's canonical final URL. The crawler fills it in when the run
	// finishes, counting over the uncapped link lists.
	InboundLinkCount int `json:"inbound_link_count"`
}

// Failed reports whether this record represents a fetch failure rather than
// a parsed page.
func (p *PageRecord) Failed() bool {
	return p.FetchError != ""
}

// HasIssue reports whether the record carries an issue of the given kind.
func (p *PageRecord) HasIssue(kind IssueKind) bool {
	for _, is := range p.Issues {
		if is.Kind == kind {
			return true
		}
	}
	return false
}
