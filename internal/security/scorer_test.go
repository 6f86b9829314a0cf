package security

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

func hardenedHeaders() http.Header {
	h := http.Header{}
	h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
	h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy", "camera=(), microphone=()")
	return h
}

func TestScore_HardenedPageGetsA(t *testing.T) {
	a := NewScorer().Score("https://example.com/", hardenedHeaders(), &models.Signals{})
	assert.Equal(t, 100, a.Score)
	assert.Equal(t, "A", a.Grade)
	assert.Empty(t, a.Findings)
}

func TestScore_BareHTTPSDeductionsStack(t *testing.T) {
	// Missing HSTS and CSP are separate checks and both deduct: no CSP also
	// forfeits the frame-ancestors path, so clickjacking fires too.
	a := NewScorer().Score("https://example.com/", http.Header{}, &models.Signals{})

	// 100 - 10 (hsts) - 10 (csp) - 5 (clickjacking) - 5 (nosniff)
	//     - 3 (referrer) - 3 (permissions) = 64
	assert.Equal(t, 64, a.Score)
	assert.Equal(t, "D", a.Grade)
	assert.Contains(t, a.Findings, "Strict-Transport-Security header missing")
	assert.Contains(t, a.Findings, "Content-Security-Policy header missing")
	assert.Len(t, a.Findings, 6)
}

func TestScore_PlainHTTPSkipsHSTS(t *testing.T) {
	a := NewScorer().Score("http://example.com/", hardenedHeaders(), &models.Signals{})

	// 100 - 20 (non_https); HSTS is not expected on HTTP responses.
	assert.Equal(t, 80, a.Score)
	assert.Equal(t, "B", a.Grade)
	assert.Contains(t, a.Findings, "Page served over plain HTTP")
	for _, f := range a.Findings {
		assert.NotContains(t, f, "Strict-Transport-Security")
	}
}

func TestScore_ClickjackingSatisfiedByEitherHeader(t *testing.T) {
	scorer := NewScorer()
	base := hardenedHeaders()

	xfo := base.Clone()
	xfo.Set("Content-Security-Policy", "default-src 'self'")
	xfo.Set("X-Frame-Options", "DENY")
	assert.Equal(t, 100, scorer.Score("https://example.com/", xfo, &models.Signals{}).Score)

	neither := base.Clone()
	neither.Set("Content-Security-Policy", "default-src 'self'")
	a := scorer.Score("https://example.com/", neither, &models.Signals{})
	assert.Equal(t, 95, a.Score)
	assert.Contains(t, a.Findings, "No clickjacking protection (X-Frame-Options or CSP frame-ancestors)")
}

func TestScore_DisclosureAndCORS(t *testing.T) {
	h := hardenedHeaders()
	h.Set("Server", "nginx/1.24.0")
	h.Set("X-Powered-By", "PHP/8.2")
	h.Set("Access-Control-Allow-Origin", "*")

	a := NewScorer().Score("https://example.com/", h, &models.Signals{})

	assert.Equal(t, 91, a.Score) // 100 - 2 - 2 - 5
	assert.Equal(t, 1, a.CategoryHits[CategoryMisconfig])
	assert.Equal(t, 2, a.CategoryHits[CategoryDisclosure])
}

func TestScore_InsecureCookies(t *testing.T) {
	h := hardenedHeaders()
	h.Add("Set-Cookie", "session=abc; Secure; HttpOnly; SameSite=Lax")
	h.Add("Set-Cookie", "pref=dark")
	h.Add("Set-Cookie", "track=1; Path=/")
	h.Add("Set-Cookie", "extra=2")

	a := NewScorer().Score("https://example.com/", h, &models.Signals{})

	// Three bad cookies at 5 apiece, capped at 10.
	assert.Equal(t, 90, a.Score)
	assert.Contains(t, a.Findings, "3 cookie(s) set without Secure, HttpOnly or SameSite")
	assert.Equal(t, 1, a.CategoryHits[CategoryAuth])
}

func TestScore_DOMSignalCaps(t *testing.T) {
	a := NewScorer().Score("https://example.com/", hardenedHeaders(), &models.Signals{
		MixedContentCount:    8,
		InsecureFormActions:  2,
		ExternalScriptsNoSRI: 5,
	})

	// mixed 2*8 capped 10, form 10*2 capped 10, sri 3*5 capped 6.
	assert.Equal(t, 100-10-10-6, a.Score)
	assert.Equal(t, "C", a.Grade)
}

func TestScore_NeverBelowZero(t *testing.T) {
	h := http.Header{}
	h.Set("Server", "Apache/2.4")
	h.Set("X-Powered-By", "Express")
	h.Set("Access-Control-Allow-Origin", "*")
	for i := 0; i < 5; i++ {
		h.Add("Set-Cookie", "c=1")
	}

	a := NewScorer().Score("http://example.com/", h, &models.Signals{
		MixedContentCount:    50,
		InsecureFormActions:  5,
		ExternalScriptsNoSRI: 9,
	})

	assert.GreaterOrEqual(t, a.Score, 0)
	assert.Equal(t, "F", a.Grade)
}

func TestScore_Deterministic(t *testing.T) {
	h := http.Header{}
	h.Set("Server", "nginx")
	signals := &models.Signals{MixedContentCount: 2}

	first := NewScorer().Score("http://example.com/", h, signals)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, NewScorer().Score("http://example.com/", h, signals))
	}
}

func TestGradeBands(t *testing.T) {
	cases := map[int]string{100: "A", 90: "A", 89: "B", 80: "B", 79: "C", 70: "C", 69: "D", 60: "D", 59: "F", 0: "F"}
	for score, want := range cases {
		assert.Equal(t, want, gradeFor(score), "score %d", score)
	}
}

func TestFindingNames_MatchScore(t *testing.T) {
	names := NewScorer().FindingNames("http://example.com/", http.Header{}, &models.Signals{})
	assert.Contains(t, names, "non_https")
	assert.Contains(t, names, "missing_csp")
	assert.NotContains(t, names, "missing_hsts")
}
