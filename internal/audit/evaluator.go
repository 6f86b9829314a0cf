// Package audit turns a fetched page record into its list of issues.
// Evaluation is pure: the same record always yields the same issues, in
// rule-table order. Cross-page issues such as duplicate titles are the
// report aggregator's job.
package audit

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/bl4ck0w1/sitelynx/internal/urlnorm"
	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// securityIssueKinds maps scorer rule names onto issue kinds.
var securityIssueKinds = map[string]models.IssueKind{
	"non_https":                       models.IssueNotHTTPS,
	"missing_hsts":                    models.IssueSecurityHeaderGap,
	"missing_csp":                     models.IssueSecurityHeaderGap,
	"missing_clickjacking_protection": models.IssueSecurityHeaderGap,
	"missing_nosniff":                 models.IssueSecurityHeaderGap,
	"missing_referrer_policy":         models.IssueSecurityHeaderGap,
	"missing_permissions_policy":      models.IssueSecurityHeaderGap,
	"cors_wildcard":                   models.IssueCORSWildcard,
	"server_disclosure":               models.IssueServerDisclosure,
	"powered_by_disclosure":           models.IssueServerDisclosure,
	"mixed_content":                   models.IssueMixedContent,
	"insecure_cookies":                models.IssueInsecureCookie,
	"insecure_form_action":            models.IssueInsecureForm,
	"external_script_no_sri":          models.IssueScriptMissingSRI,
}

type rule struct {
	applies func(r *models.PageRecord, t models.Thresholds) *models.Issue
}

// Evaluator applies the page-level issue taxonomy.
type Evaluator struct {
	normalizer *urlnorm.Normalizer
	thresholds models.Thresholds
	rules      []rule
}

func New(normalizer *urlnorm.Normalizer, thresholds models.Thresholds) *Evaluator {
	e := &Evaluator{normalizer: normalizer, thresholds: thresholds}
	e.rules = []rule{
		{e.checkBrokenLink},
		{e.checkContentType},
		{e.checkTitle},
		{e.checkMetaDescription},
		{e.checkH1},
		{e.checkCanonical},
		{e.checkNoindex},
		{e.checkThinContent},
		{e.checkLikelyCSR},
	}
	return e
}

// Evaluate returns the issues for one record and whether the page is
// indexable. Failed fetches get the single fetch_failed issue; non-HTML
// responses skip the content rules.
func (e *Evaluator) Evaluate(record *models.PageRecord, securityFindings []string) (issues []models.Issue, indexable bool) {
	if record.Failed() {
		return []models.Issue{{
			Kind:   models.IssueFetchFailed,
			Detail: record.FetchError,
		}}, false
	}

	for _, r := range e.rules {
		if issue := r.applies(record, e.thresholds); issue != nil {
			issues = append(issues, *issue)
		}
	}

	for _, name := range securityFindings {
		if kind, ok := securityIssueKinds[name]; ok {
			issues = append(issues, models.Issue{Kind: kind, Detail: name})
		}
	}

	return issues, record.StatusCode == 200 && !e.hasNoindex(record)
}

func (e *Evaluator) checkBrokenLink(r *models.PageRecord, _ models.Thresholds) *models.Issue {
	if r.StatusCode < 400 {
		return nil
	}
	return &models.Issue{
		Kind:   models.IssueBrokenLink,
		Detail: fmt.Sprintf("HTTP %d", r.StatusCode),
	}
}

func (e *Evaluator) checkContentType(r *models.PageRecord, _ models.Thresholds) *models.Issue {
	if r.StatusCode >= 400 || isHTML(r.ContentType) {
		return nil
	}
	return &models.Issue{
		Kind:   models.IssueNonHTMLContent,
		Detail: r.ContentType,
	}
}

func (e *Evaluator) checkTitle(r *models.PageRecord, t models.Thresholds) *models.Issue {
	if r.StatusCode >= 400 || !isHTML(r.ContentType) {
		return nil
	}
	title := r.Signals.Title
	length := utf8.RuneCountInString(title)
	switch {
	case title == "":
		return &models.Issue{Kind: models.IssueMissingTitle}
	case length < t.TitleMinLength:
		return &models.Issue{Kind: models.IssueTitleTooShort,
			Detail: fmt.Sprintf("%d chars", length)}
	case length > t.TitleMaxLength:
		return &models.Issue{Kind: models.IssueTitleTooLong,
			Detail: fmt.Sprintf("%d chars", length)}
	}
	return nil
}

func (e *Evaluator) checkMetaDescription(r *models.PageRecord, t models.Thresholds) *models.Issue {
	if r.StatusCode >= 400 || !isHTML(r.ContentType) {
		return nil
	}
	desc := r.Signals.MetaDescription
	length := utf8.RuneCountInString(desc)
	switch {
	case desc == "":
		return &models.Issue{Kind: models.IssueMissingMetaDesc}
	case length < t.MetaDescMinLength:
		return &models.Issue{Kind: models.IssueMetaDescTooShort,
			Detail: fmt.Sprintf("%d chars", length)}
	case length > t.MetaDescMaxLength:
		return &models.Issue{Kind: models.IssueMetaDescTooLong,
			Detail: fmt.Sprintf("%d chars", length)}
	}
	return nil
}

func (e *Evaluator) checkH1(r *models.PageRecord, _ models.Thresholds) *models.Issue {
	if r.StatusCode >= 400 || !isHTML(r.ContentType) {
		return nil
	}
	switch n := len(r.Signals.H1); {
	case n == 0:
		return &models.Issue{Kind: models.IssueMissingH1}
	case n > 1:
		return &models.Issue{Kind: models.IssueMultipleH1,
			Detail: fmt.Sprintf("%d h1 elements", n)}
	}
	return nil
}

func (e *Evaluator) checkCanonical(r *models.PageRecord, _ models.Thresholds) *models.Issue {
	if r.StatusCode >= 400 || !isHTML(r.ContentType) {
		return nil
	}
	canonical := r.Signals.CanonicalURL
	if canonical == "" {
		return &models.Issue{Kind: models.IssueMissingCanonical}
	}
	// Relative canonicals are valid; resolve against the page's final URL
	// before checking site scope.
	resolved := canonical
	base := r.FinalURL
	if base == "" {
		base = r.URL
	}
	if bu, err := url.Parse(base); err == nil {
		if ref, err := url.Parse(canonical); err == nil {
			resolved = bu.ResolveReference(ref).String()
		}
	}
	u, err := url.Parse(resolved)
	if err != nil || u.Scheme == "" || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &models.Issue{Kind: models.IssueCanonicalInvalid, Detail: canonical}
	}
	if !e.normalizer.SameSite(resolved) {
		return &models.Issue{Kind: models.IssueCanonicalOffsite, Detail: canonical}
	}
	return nil
}

func (e *Evaluator) checkNoindex(r *models.PageRecord, _ models.Thresholds) *models.Issue {
	if r.StatusCode >= 400 {
		return nil
	}
	if !e.hasNoindex(r) {
		return nil
	}
	source := "robots meta"
	if strings.Contains(strings.ToLower(r.XRobotsTag), "noindex") {
		source = "X-Robots-Tag header"
	}
	return &models.Issue{Kind: models.IssueNoindex, Detail: source}
}

func (e *Evaluator) checkThinContent(r *models.PageRecord, t models.Thresholds) *models.Issue {
	if r.StatusCode >= 400 || !isHTML(r.ContentType) {
		return nil
	}
	if r.Signals.TextLength >= t.ThinTextLength {
		return nil
	}
	return &models.Issue{Kind: models.IssueThinContent,
		Detail: fmt.Sprintf("%d chars of visible text", r.Signals.TextLength)}
}

func (e *Evaluator) checkLikelyCSR(r *models.PageRecord, _ models.Thresholds) *models.Issue {
	if r.StatusCode >= 400 || !isHTML(r.ContentType) || !r.Signals.LikelyCSR {
		return nil
	}
	return &models.Issue{Kind: models.IssueLikelyCSR,
		Detail: fmt.Sprintf("%d bytes of HTML, %d chars of text",
			r.Signals.ContentLength, r.Signals.TextLength)}
}

func (e *Evaluator) hasNoindex(r *models.PageRecord) bool {
	for _, d := range r.Signals.RobotsMeta {
		if d == "noindex" || d == "none" {
			return true
		}
	}
	return strings.Contains(strings.ToLower(r.XRobotsTag), "noindex")
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "xhtml")
}
