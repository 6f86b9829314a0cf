// Package security scores a page's transport and response-header posture on
// a 0-100 scale with a letter grade. The checks are passive: only the URL
// scheme, the response headers, and DOM signals already extracted feed in.
package security

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// OWASP-style categories used for roll-ups in the site report.
const (
	CategoryCrypto     = "cryptographic_failures"
	CategoryMisconfig  = "security_misconfiguration"
	CategoryAuth       = "identification_auth_failures"
	CategoryIntegrity  = "software_data_integrity"
	CategoryDisclosure = "information_disclosure"
)

type checkResult struct {
	deduction int
	finding   string
}

type check struct {
	name     string
	category string
	apply    func(in input) *checkResult
}

type input struct {
	https   bool
	headers http.Header
	signals *models.Signals
}

// Scorer applies a fixed deduction table. Every check is independent, so a
// page failing both HSTS and CSP loses points for each.
type Scorer struct {
	checks []check
}

func NewScorer() *Scorer {
	return &Scorer{checks: []check{
		{"non_https", CategoryCrypto, func(in input) *checkResult {
			if in.https {
				return nil
			}
			return &checkResult{20, "Page served over plain HTTP"}
		}},
		{"missing_hsts", CategoryCrypto, func(in input) *checkResult {
			if !in.https || in.headers.Get("Strict-Transport-Security") != "" {
				return nil
			}
			return &checkResult{10, "Strict-Transport-Security header missing"}
		}},
		{"missing_csp", CategoryMisconfig, func(in input) *checkResult {
			if in.headers.Get("Content-Security-Policy") != "" {
				return nil
			}
			return &checkResult{10, "Content-Security-Policy header missing"}
		}},
		{"missing_clickjacking_protection", CategoryMisconfig, func(in input) *checkResult {
			if in.headers.Get("X-Frame-Options") != "" {
				return nil
			}
			if strings.Contains(strings.ToLower(in.headers.Get("Content-Security-Policy")), "frame-ancestors") {
				return nil
			}
			return &checkResult{5, "No clickjacking protection (X-Frame-Options or CSP frame-ancestors)"}
		}},
		{"missing_nosniff", CategoryMisconfig, func(in input) *checkResult {
			if strings.EqualFold(strings.TrimSpace(in.headers.Get("X-Content-Type-Options")), "nosniff") {
				return nil
			}
			return &checkResult{5, "X-Content-Type-Options is not set to nosniff"}
		}},
		{"missing_referrer_policy", CategoryMisconfig, func(in input) *checkResult {
			if in.headers.Get("Referrer-Policy") != "" {
				return nil
			}
			return &checkResult{3, "Referrer-Policy header missing"}
		}},
		{"missing_permissions_policy", CategoryMisconfig, func(in input) *checkResult {
			if in.headers.Get("Permissions-Policy") != "" {
				return nil
			}
			return &checkResult{3, "Permissions-Policy header missing"}
		}},
		{"cors_wildcard", CategoryMisconfig, func(in input) *checkResult {
			if strings.TrimSpace(in.headers.Get("Access-Control-Allow-Origin")) != "*" {
				return nil
			}
			return &checkResult{5, "Access-Control-Allow-Origin allows any origin"}
		}},
		{"server_disclosure", CategoryDisclosure, func(in input) *checkResult {
			v := in.headers.Get("Server")
			if v == "" {
				return nil
			}
			return &checkResult{2, fmt.Sprintf("Server header discloses software: %s", v)}
		}},
		{"powered_by_disclosure", CategoryDisclosure, func(in input) *checkResult {
			v := in.headers.Get("X-Powered-By")
			if v == "" {
				return nil
			}
			return &checkResult{2, fmt.Sprintf("X-Powered-By header discloses platform: %s", v)}
		}},
		{"mixed_content", CategoryCrypto, func(in input) *checkResult {
			n := in.signals.MixedContentCount
			if n == 0 {
				return nil
			}
			return &checkResult{capAt(2*n, 10),
				fmt.Sprintf("%d resource(s) loaded over plain HTTP on an HTTPS page", n)}
		}},
		{"insecure_cookies", CategoryAuth, func(in input) *checkResult {
			n := countInsecureCookies(in.headers, in.https)
			if n == 0 {
				return nil
			}
			return &checkResult{capAt(5*n, 10),
				fmt.Sprintf("%d cookie(s) set without Secure, HttpOnly or SameSite", n)}
		}},
		{"insecure_form_action", CategoryAuth, func(in input) *checkResult {
			n := in.signals.InsecureFormActions
			if n == 0 {
				return nil
			}
			return &checkResult{capAt(10*n, 10),
				fmt.Sprintf("%d password form(s) submit over plain HTTP", n)}
		}},
		{"external_script_no_sri", CategoryIntegrity, func(in input) *checkResult {
			n := in.signals.ExternalScriptsNoSRI
			if n == 0 {
				return nil
			}
			return &checkResult{capAt(3*n, 6),
				fmt.Sprintf("%d external script(s) loaded without subresource integrity", n)}
		}},
	}}
}

// Score evaluates one page. finalURL is the post-redirect URL; signals may
// not be nil.
func (s *Scorer) Score(finalURL string, headers http.Header, signals *models.Signals) models.SecurityAssessment {
	if headers == nil {
		headers = http.Header{}
	}
	in := input{
		https:   strings.HasPrefix(strings.ToLower(finalURL), "https://"),
		headers: headers,
		signals: signals,
	}

	score := 100
	assessment := models.SecurityAssessment{CategoryHits: map[string]int{}}
	for _, c := range s.checks {
		result := c.apply(in)
		if result == nil {
			continue
		}
		score -= result.deduction
		assessment.Findings = append(assessment.Findings, result.finding)
		assessment.CategoryHits[c.category]++
	}

	if score < 0 {
		score = 0
	}
	assessment.Score = score
	assessment.Grade = gradeFor(score)
	return assessment
}

// FindingNames returns the rule names that fired, in table order. The audit
// evaluator maps these onto issue kinds.
func (s *Scorer) FindingNames(finalURL string, headers http.Header, signals *models.Signals) []string {
	if headers == nil {
		headers = http.Header{}
	}
	in := input{
		https:   strings.HasPrefix(strings.ToLower(finalURL), "https://"),
		headers: headers,
		signals: signals,
	}
	var names []string
	for _, c := range s.checks {
		if c.apply(in) != nil {
			names = append(names, c.name)
		}
	}
	return names
}

// Categories lists every category the rule table can report, sorted.
func (s *Scorer) Categories() []string {
	seen := map[string]bool{}
	for _, c := range s.checks {
		seen[c.category] = true
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

func gradeFor(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// countInsecureCookies inspects every Set-Cookie header. A cookie counts
// once no matter how many flags it misses. Secure is only expected on
// HTTPS responses.
func countInsecureCookies(headers http.Header, https bool) int {
	count := 0
	for _, raw := range headers.Values("Set-Cookie") {
		flags := map[string]bool{}
		parts := strings.Split(raw, ";")
		for _, part := range parts[1:] {
			attr := strings.ToLower(strings.TrimSpace(part))
			if name, _, found := strings.Cut(attr, "="); found {
				attr = name
			}
			flags[attr] = true
		}
		insecure := !flags["httponly"] || !flags["samesite"]
		if https && !flags["secure"] {
			insecure = true
		}
		if insecure {
			count++
		}
	}
	return count
}

func capAt(value, limit int) int {
	if value > limit {
		return limit
	}
	return value
}
