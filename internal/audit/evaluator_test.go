package audit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/sitelynx/internal/urlnorm"
	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	normalizer, err := urlnorm.New("https://example.com/", false)
	require.NoError(t, err)
	return New(normalizer, models.DefaultThresholds())
}

func healthyRecord() *models.PageRecord {
	return &models.PageRecord{
		URL:         "https://example.com/page",
		FinalURL:    "https://example.com/page",
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Signals: models.Signals{
			Title:           "A perfectly reasonable page title",
			MetaDescription: strings.Repeat("Good descriptive copy. ", 4),
			CanonicalURL:    "https://example.com/page",
			H1:              []string{"One Heading"},
			TextLength:      1500,
			ContentLength:   8000,
		},
	}
}

func kinds(issues []models.Issue) []models.IssueKind {
	out := make([]models.IssueKind, len(issues))
	for i, is := range issues {
		out[i] = is.Kind
	}
	return out
}

func TestEvaluate_HealthyPage(t *testing.T) {
	issues, indexable := newTestEvaluator(t).Evaluate(healthyRecord(), nil)
	assert.Empty(t, issues)
	assert.True(t, indexable)
}

func TestEvaluate_FetchFailure(t *testing.T) {
	record := &models.PageRecord{
		URL:        "https://example.com/down",
		FetchError: "fetch https://example.com/down: timeout: deadline exceeded",
	}
	issues, indexable := newTestEvaluator(t).Evaluate(record, nil)
	require.Len(t, issues, 1)
	assert.Equal(t, models.IssueFetchFailed, issues[0].Kind)
	assert.False(t, indexable)
}

func TestEvaluate_BrokenLinkSkipsContentRules(t *testing.T) {
	record := healthyRecord()
	record.StatusCode = 404
	record.Signals = models.Signals{}

	issues, indexable := newTestEvaluator(t).Evaluate(record, nil)
	assert.Equal(t, []models.IssueKind{models.IssueBrokenLink}, kinds(issues))
	assert.Equal(t, "HTTP 404", issues[0].Detail)
	assert.False(t, indexable)
}

func TestEvaluate_NonHTML(t *testing.T) {
	record := healthyRecord()
	record.ContentType = "application/pdf"
	record.Signals = models.Signals{}

	issues, indexable := newTestEvaluator(t).Evaluate(record, nil)
	assert.Equal(t, []models.IssueKind{models.IssueNonHTMLContent}, kinds(issues))
	assert.True(t, indexable)
}

func TestEvaluate_TitleRules(t *testing.T) {
	e := newTestEvaluator(t)
	cases := []struct {
		name  string
		title string
		want  models.IssueKind
	}{
		{"missing", "", models.IssueMissingTitle},
		{"too short", "Home", models.IssueTitleTooShort},
		{"too long", strings.Repeat("long title ", 8), models.IssueTitleTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record := healthyRecord()
			record.Signals.Title = tc.title
			issues, _ := e.Evaluate(record, nil)
			assert.Contains(t, kinds(issues), tc.want)
		})
	}
}

func TestEvaluate_MetaDescriptionRules(t *testing.T) {
	e := newTestEvaluator(t)
	cases := []struct {
		name string
		desc string
		want models.IssueKind
	}{
		{"missing", "", models.IssueMissingMetaDesc},
		{"too short", "Brief.", models.IssueMetaDescTooShort},
		{"too long", strings.Repeat("padding words here ", 12), models.IssueMetaDescTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record := healthyRecord()
			record.Signals.MetaDescription = tc.desc
			issues, _ := e.Evaluate(record, nil)
			assert.Contains(t, kinds(issues), tc.want)
		})
	}
}

func TestEvaluate_LengthRulesCountCharacters(t *testing.T) {
	// Multi-byte titles and descriptions must be judged by character count,
	// not byte length.
	record := healthyRecord()
	record.Signals.Title = strings.Repeat("汉", 25)
	record.Signals.MetaDescription = strings.Repeat("述", 60)

	issues, _ := newTestEvaluator(t).Evaluate(record, nil)
	assert.NotContains(t, kinds(issues), models.IssueTitleTooLong)
	assert.NotContains(t, kinds(issues), models.IssueMetaDescTooLong)
	assert.Empty(t, issues)
}

func TestEvaluate_H1Rules(t *testing.T) {
	e := newTestEvaluator(t)

	record := healthyRecord()
	record.Signals.H1 = nil
	issues, _ := e.Evaluate(record, nil)
	assert.Contains(t, kinds(issues), models.IssueMissingH1)

	record = healthyRecord()
	record.Signals.H1 = []string{"First", "Second", "Third"}
	issues, _ = e.Evaluate(record, nil)
	assert.Contains(t, kinds(issues), models.IssueMultipleH1)
}

func TestEvaluate_CanonicalRules(t *testing.T) {
	e := newTestEvaluator(t)
	cases := []struct {
		name      string
		canonical string
		want      models.IssueKind
	}{
		{"missing", "", models.IssueMissingCanonical},
		{"unparseable", "://bad", models.IssueCanonicalInvalid},
		{"bad scheme", "ftp://example.com/page", models.IssueCanonicalInvalid},
		{"offsite", "https://other.com/page", models.IssueCanonicalOffsite},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record := healthyRecord()
			record.Signals.CanonicalURL = tc.canonical
			issues, _ := e.Evaluate(record, nil)
			assert.Contains(t, kinds(issues), tc.want)
		})
	}

	// www and default port differences stay on-site.
	record := healthyRecord()
	record.Signals.CanonicalURL = "https://www.example.com:443/page"
	issues, _ := e.Evaluate(record, nil)
	assert.Empty(t, issues)
}

func TestEvaluate_RelativeCanonicalResolvesAgainstFinalURL(t *testing.T) {
	e := newTestEvaluator(t)

	record := healthyRecord()
	record.Signals.CanonicalURL = "/page"
	issues, _ := e.Evaluate(record, nil)
	assert.Empty(t, issues)

	// Path-relative form resolves against the redirect target, not the
	// requested URL.
	record = healthyRecord()
	record.URL = "https://example.com/old"
	record.FinalURL = "https://example.com/docs/intro"
	record.Signals.CanonicalURL = "intro"
	issues, _ = e.Evaluate(record, nil)
	assert.Empty(t, issues)
}

func TestEvaluate_Noindex(t *testing.T) {
	e := newTestEvaluator(t)

	record := healthyRecord()
	record.Signals.RobotsMeta = []string{"noindex", "nofollow"}
	issues, indexable := e.Evaluate(record, nil)
	assert.Contains(t, kinds(issues), models.IssueNoindex)
	assert.False(t, indexable)

	record = healthyRecord()
	record.XRobotsTag = "noindex"
	issues, indexable = e.Evaluate(record, nil)
	require.Len(t, issues, 1)
	assert.Equal(t, "X-Robots-Tag header", issues[0].Detail)
	assert.False(t, indexable)
}

func TestEvaluate_ThinContentAndCSR(t *testing.T) {
	e := newTestEvaluator(t)

	record := healthyRecord()
	record.Signals.TextLength = 80
	record.Signals.ContentLength = 3000
	issues, _ := e.Evaluate(record, nil)
	assert.Contains(t, kinds(issues), models.IssueThinContent)
	assert.NotContains(t, kinds(issues), models.IssueLikelyCSR)

	record.Signals.ContentLength = 50000
	record.Signals.LikelyCSR = true
	issues, _ = e.Evaluate(record, nil)
	assert.Contains(t, kinds(issues), models.IssueThinContent)
	assert.Contains(t, kinds(issues), models.IssueLikelyCSR)
}

func TestEvaluate_SecurityFindingMapping(t *testing.T) {
	issues, _ := newTestEvaluator(t).Evaluate(healthyRecord(), []string{
		"non_https", "missing_csp", "missing_hsts", "cors_wildcard",
		"server_disclosure", "insecure_cookies", "unknown_rule",
	})
	got := kinds(issues)
	assert.Contains(t, got, models.IssueNotHTTPS)
	assert.Contains(t, got, models.IssueCORSWildcard)
	assert.Contains(t, got, models.IssueServerDisclosure)
	assert.Contains(t, got, models.IssueInsecureCookie)

	gaps := 0
	for _, k := range got {
		if k == models.IssueSecurityHeaderGap {
			gaps++
		}
	}
	assert.Equal(t, 2, gaps)
}
