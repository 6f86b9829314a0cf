package extract

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/sitelynx/internal/urlnorm"
	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	normalizer, err := urlnorm.New("https://example.com/", false)
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(normalizer, models.DefaultThresholds(), logger)
}

func TestExtract_BasicSignals(t *testing.T) {
	body := `<html><head>
		<title>  Welcome   Home </title>
		<meta name="Description" content=" A fine example page. ">
		<meta name="keywords" content="go, crawling">
		<meta name="robots" content="NOINDEX, nofollow">
		<link rel="canonical" href="https://example.com/welcome">
	</head><body>
		<h1>Main Heading</h1>
		<h2>Sub One</h2><h2>Sub Two</h2>
		<p>Some body copy here.</p>
		<a href="/about">About</a>
		<a href="https://example.com/contact?utm_source=x">Contact</a>
		<a href="https://other.com/elsewhere">Elsewhere</a>
	</body></html>`

	signals, _ := newTestExtractor(t).Extract("https://example.com/", body)

	assert.Equal(t, "Welcome Home", signals.Title)
	assert.Equal(t, "A fine example page.", signals.MetaDescription)
	assert.Equal(t, "go, crawling", signals.MetaKeywords)
	assert.Equal(t, "https://example.com/welcome", signals.CanonicalURL)
	assert.Equal(t, []string{"noindex", "nofollow"}, signals.RobotsMeta)
	assert.Equal(t, []string{"Main Heading"}, signals.H1)
	assert.Equal(t, []string{"Sub One", "Sub Two"}, signals.H2)
	assert.Equal(t, []string{
		"https://example.com/about",
		"https://example.com/contact",
	}, signals.Links)
	// The off-site link counts but is not stored.
	assert.Equal(t, 3, signals.LinkCount)
	assert.Equal(t, len(body), signals.ContentLength)
}

func TestExtract_TextStripsScriptsAndStyles(t *testing.T) {
	body := `<html><body>
		<script>var hidden = "should not appear";</script>
		<style>body { color: red; }</style>
		<noscript>enable js</noscript>
		<p>visible   text
		only</p>
	</body></html>`

	signals, _ := newTestExtractor(t).Extract("https://example.com/", body)

	assert.Equal(t, "visible text only", signals.TextPreview)
	assert.Equal(t, len("visible text only"), signals.TextLength)
	assert.Greater(t, signals.ScriptBytes, 0)
}

func TestExtract_PreviewTruncatedAt500(t *testing.T) {
	body := "<html><body><p>" + strings.Repeat("word ", 300) + "</p></body></html>"

	signals, _ := newTestExtractor(t).Extract("https://example.com/", body)

	assert.Len(t, signals.TextPreview, 500)
	assert.Greater(t, signals.TextLength, 500)
}

func TestExtract_TextMetricsCountCharacters(t *testing.T) {
	// Multi-byte text: lengths and the preview cut must be per character,
	// never per byte.
	body := "<html><body><p>" + strings.Repeat("汉字内容", 150) + "</p></body></html>"

	signals, _ := newTestExtractor(t).Extract("https://example.com/", body)

	assert.Equal(t, 600, signals.TextLength)
	assert.Equal(t, 500, utf8.RuneCountInString(signals.TextPreview))
	assert.True(t, utf8.ValidString(signals.TextPreview))
}

func TestExtract_HeadingAndLinkCaps(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "<h2>heading %d</h2>", i)
	}
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&b, `<a href="/page-%d">p</a>`, i)
	}
	b.WriteString("</body></html>")

	signals, links := newTestExtractor(t).Extract("https://example.com/", b.String())

	assert.Len(t, signals.H2, 20)
	assert.Len(t, signals.Links, 100)
	assert.Len(t, links, 150)
	assert.Equal(t, 150, signals.LinkCount)
}

func TestExtract_LikelyCSR(t *testing.T) {
	// Big HTML payload, almost no visible text: the client-side rendering
	// pattern the thin-content heuristic alone would misreport.
	body := `<html><body><div id="root"></div><script>` +
		strings.Repeat("x", 50000) + `</script></body></html>`

	signals, _ := newTestExtractor(t).Extract("https://example.com/", body)

	assert.Less(t, signals.TextLength, 200)
	assert.GreaterOrEqual(t, signals.ContentLength, 20000)
	assert.True(t, signals.LikelyCSR)
}

func TestExtract_ShortStaticPageNotCSR(t *testing.T) {
	signals, _ := newTestExtractor(t).Extract("https://example.com/",
		"<html><body><p>tiny page</p></body></html>")
	assert.False(t, signals.LikelyCSR)
}

func TestExtract_MixedContent(t *testing.T) {
	body := `<html><body>
		<img src="http://cdn.example.com/a.png">
		<script src="http://example.com/app.js"></script>
		<link rel="stylesheet" href="http://example.com/site.css">
		<img src="https://example.com/safe.png">
	</body></html>`

	signals, _ := newTestExtractor(t).Extract("https://example.com/", body)
	assert.Equal(t, 3, signals.MixedContentCount)

	// Same markup on a plain HTTP page is not mixed content.
	signals, _ = newTestExtractor(t).Extract("http://example.com/", body)
	assert.Equal(t, 0, signals.MixedContentCount)
}

func TestExtract_InsecureFormActions(t *testing.T) {
	body := `<html><body>
		<form action="http://example.com/login"><input type="password"></form>
		<form action="https://example.com/login"><input type="password"></form>
		<form action="http://example.com/search"><input type="text"></form>
	</body></html>`

	signals, _ := newTestExtractor(t).Extract("https://example.com/", body)
	assert.Equal(t, 1, signals.InsecureFormActions)
}

func TestExtract_ExternalScriptsWithoutSRI(t *testing.T) {
	body := `<html><body>
		<script src="https://cdn.other.com/lib.js"></script>
		<script src="https://cdn.other.com/ok.js" integrity="sha384-abc"></script>
		<script src="/local.js"></script>
	</body></html>`

	signals, _ := newTestExtractor(t).Extract("https://example.com/", body)
	assert.Equal(t, 1, signals.ExternalScriptsNoSRI)
}

func TestExtract_MalformedHTMLDoesNotPanic(t *testing.T) {
	signals, _ := newTestExtractor(t).Extract("https://example.com/",
		"<html><body><div><p>unclosed everywhere")
	assert.NotNil(t, signals)
	assert.Contains(t, signals.TextPreview, "unclosed everywhere")
}
