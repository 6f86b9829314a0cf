package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

func sampleRecords() []models.PageRecord {
	return []models.PageRecord{
		{
			URL: "https://example.com/", FinalURL: "https://example.com/",
			StatusCode: 200, ContentType: "text/html", Indexable: true,
			InboundLinkCount: 1,
			Signals: models.Signals{
				Title:           "Shared Title",
				MetaDescription: "Unique description for the root page of the site.",
				Links:           []string{"https://example.com/a", "https://example.com/b"},
			},
			Security: models.SecurityAssessment{
				Score: 90, Grade: "A",
				Findings:     []string{"Content-Security-Policy header missing"},
				CategoryHits: map[string]int{"security_misconfiguration": 1},
			},
		},
		{
			URL: "https://example.com/a", FinalURL: "https://example.com/a",
			StatusCode: 200, ContentType: "text/html", Indexable: true, Depth: 1,
			InboundLinkCount: 1,
			Signals: models.Signals{
				Title:           "Shared Title",
				MetaDescription: "Shared description reused verbatim on two pages.",
				Links:           []string{"https://example.com/", "https://example.com/b"},
			},
			Security: models.SecurityAssessment{
				Score: 64, Grade: "D",
				Findings:     []string{"Content-Security-Policy header missing", "Strict-Transport-Security header missing"},
				CategoryHits: map[string]int{"security_misconfiguration": 1, "cryptographic_failures": 1},
			},
			Issues: []models.Issue{{Kind: models.IssueMissingH1}},
		},
		{
			URL: "https://example.com/b", FinalURL: "https://example.com/b",
			StatusCode: 200, ContentType: "text/html", Indexable: false, Depth: 1,
			InboundLinkCount: 2,
			Signals: models.Signals{
				Title:           "Page B",
				MetaDescription: "Shared description reused verbatim on two pages.",
			},
			Security: models.SecurityAssessment{Score: 52, Grade: "F"},
			Issues:   []models.Issue{{Kind: models.IssueNoindex, Detail: "robots meta"}},
		},
		{
			URL: "https://example.com/broken", Depth: 1,
			FetchError: "fetch https://example.com/broken: connection: refused",
			Issues:     []models.Issue{{Kind: models.IssueFetchFailed}},
		},
	}
}

func testAggregate(t *testing.T) *models.SiteReport {
	t.Helper()
	cfg := models.DefaultAuditConfig()
	cfg.StartURL = "https://example.com/"
	return Aggregate(cfg, sampleRecords(), "run-20260830-120000", models.CrawlCompleted)
}

func TestAggregate_Counts(t *testing.T) {
	report := testAggregate(t)

	assert.Equal(t, 4, report.Summary.PagesCrawled)
	assert.Equal(t, 1, report.Summary.PagesFailed)
	assert.Equal(t, 1, report.Summary.NonIndexable)
	assert.Equal(t, models.CrawlCompleted, report.State)
}

func TestAggregate_DuplicateGroups(t *testing.T) {
	report := testAggregate(t)

	require.Contains(t, report.Summary.DuplicateTitles, "Shared Title")
	assert.ElementsMatch(t, []string{"https://example.com/", "https://example.com/a"},
		report.Summary.DuplicateTitles["Shared Title"])
	assert.NotContains(t, report.Summary.DuplicateTitles, "Page B")

	require.Contains(t, report.Summary.DuplicateMetaDescriptions,
		"Shared description reused verbatim on two pages.")

	// Members of a duplicate group pick up the corresponding issue.
	assert.True(t, report.Pages[0].HasIssue(models.IssueDuplicateTitle))
	assert.True(t, report.Pages[1].HasIssue(models.IssueDuplicateTitle))
	assert.False(t, report.Pages[2].HasIssue(models.IssueDuplicateTitle))
	assert.True(t, report.Pages[1].HasIssue(models.IssueDuplicateMetaDesc))
	assert.True(t, report.Pages[2].HasIssue(models.IssueDuplicateMetaDesc))
}

func TestAggregate_InputUntouched(t *testing.T) {
	records := sampleRecords()
	cfg := models.DefaultAuditConfig()
	cfg.StartURL = "https://example.com/"
	Aggregate(cfg, records, "run-x", models.CrawlCompleted)

	assert.False(t, records[0].HasIssue(models.IssueDuplicateTitle))
}

func TestAggregate_KeepsCrawlerInboundCounts(t *testing.T) {
	// Inbound totals come from the crawler's uncapped link lists; the
	// aggregator must carry them through unchanged.
	report := testAggregate(t)

	byURL := map[string]int{}
	for _, p := range report.Pages {
		byURL[p.URL] = p.InboundLinkCount
	}
	assert.Equal(t, 1, byURL["https://example.com/"])
	assert.Equal(t, 1, byURL["https://example.com/a"])
	assert.Equal(t, 2, byURL["https://example.com/b"])
}

func TestAggregate_IssueCountsIncludeDuplicates(t *testing.T) {
	report := testAggregate(t)

	assert.Equal(t, 2, report.Summary.IssueCounts[models.IssueDuplicateTitle])
	assert.Equal(t, 2, report.Summary.IssueCounts[models.IssueDuplicateMetaDesc])
	assert.Equal(t, 1, report.Summary.IssueCounts[models.IssueMissingH1])
	assert.Equal(t, 1, report.Summary.IssueCounts[models.IssueFetchFailed])
}

func TestAggregate_SecuritySummary(t *testing.T) {
	report := testAggregate(t)

	assert.Equal(t, 52, report.Security.MinScore)
	assert.Equal(t, 90, report.Security.MaxScore)
	assert.InDelta(t, 68.67, report.Security.MeanScore, 0.01)
	assert.Equal(t, 1, report.Security.GradeHistogram["A"])
	assert.Equal(t, 1, report.Security.GradeHistogram["D"])
	assert.Equal(t, 1, report.Security.GradeHistogram["F"])
	assert.Equal(t, 2, report.Security.FindingCounts["Content-Security-Policy header missing"])
	assert.Equal(t, 2, report.Security.CategoryTotals["security_misconfiguration"])
}

func TestAggregate_EmptyRun(t *testing.T) {
	cfg := models.DefaultAuditConfig()
	cfg.StartURL = "https://example.com/"
	report := Aggregate(cfg, nil, "run-empty", models.CrawlAborted)

	assert.Equal(t, 0, report.Summary.PagesCrawled)
	assert.Equal(t, 0.0, report.Security.MeanScore)
	assert.Equal(t, models.CrawlAborted, report.State)
}

func TestAggregate_JSONRoundTrip(t *testing.T) {
	report := testAggregate(t)

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var restored models.SiteReport
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, report.RunID, restored.RunID)
	assert.Equal(t, report.Summary.IssueCounts, restored.Summary.IssueCounts)
	assert.Len(t, restored.Pages, 4)
}

func TestWorstPages(t *testing.T) {
	worst := WorstPages(sampleRecords(), 2)
	require.Len(t, worst, 2)
	assert.Equal(t, "https://example.com/b", worst[0].URL)
	assert.Equal(t, "https://example.com/a", worst[1].URL)
}

func TestHTMLRenderer(t *testing.T) {
	renderer, err := NewHTMLRenderer()
	require.NoError(t, err)

	out, err := renderer.Render(testAggregate(t))
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, "SiteLynx Audit Report")
	assert.Contains(t, html, "https://example.com/a")
	assert.Contains(t, html, "Shared Title")
	assert.Contains(t, html, "missing h1")
	assert.Contains(t, html, "run-20260830-120000")
}

func TestHTMLRenderer_EscapesMarkup(t *testing.T) {
	records := sampleRecords()
	records[2].Signals.Title = `<script>alert("x")</script>`

	cfg := models.DefaultAuditConfig()
	cfg.StartURL = "https://example.com/"
	report := Aggregate(cfg, records, "run-x", models.CrawlCompleted)

	renderer, err := NewHTMLRenderer()
	require.NoError(t, err)
	out, err := renderer.Render(report)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `<script>alert`)
}
