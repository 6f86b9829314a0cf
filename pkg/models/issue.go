package models

import "fmt"

// IssueKind identifies one entry of the fixed audit taxonomy.
type IssueKind string

const (
	IssueMissingTitle       IssueKind = "missing_title"
	IssueTitleTooShort      IssueKind = "title_too_short"
	IssueTitleTooLong       IssueKind = "title_too_long"
	IssueDuplicateTitle     IssueKind = "duplicate_title"
	IssueMissingMetaDesc    IssueKind = "missing_meta_description"
	IssueMetaDescTooShort   IssueKind = "meta_description_too_short"
	IssueMetaDescTooLong    IssueKind = "meta_description_too_long"
	IssueDuplicateMetaDesc  IssueKind = "duplicate_meta_description"
	IssueMissingH1          IssueKind = "missing_h1"
	IssueMultipleH1         IssueKind = "multiple_h1"
	IssueMissingCanonical   IssueKind = "missing_canonical"
	IssueCanonicalOffsite   IssueKind = "canonical_offsite"
	IssueCanonicalInvalid   IssueKind = "canonical_invalid"
	IssueNoindex            IssueKind = "noindex"
	IssueThinContent        IssueKind = "thin_content"
	IssueLikelyCSR          IssueKind = "likely_csr"
	IssueBrokenLink         IssueKind = "broken_link"
	IssueNonHTMLContent     IssueKind = "non_html_content_type"
	IssueFetchFailed        IssueKind = "fetch_failed"
	IssueSecurityHeaderGap  IssueKind = "security_header_gap"
	IssueMixedContent       IssueKind = "mixed_content"
	IssueInsecureCookie     IssueKind = "insecure_cookie"
	IssueServerDisclosure   IssueKind = "server_disclosure"
	IssueInsecureForm       IssueKind = "insecure_form"
	IssueScriptMissingSRI   IssueKind = "external_script_no_sri"
	IssueCORSWildcard       IssueKind = "cors_wildcard"
	IssueNotHTTPS           IssueKind = "not_https"
)

// Issue is a single classified audit deficiency attached to a page. It has no
// identity beyond its parent record.
type Issue struct {
	Kind   IssueKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

func (i Issue) String() string {
	if i.Detail == "" {
		return string(i.Kind)
	}
	return fmt.Sprintf("%s: %s", i.Kind, i.Detail)
}
