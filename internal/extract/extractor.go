// Package extract pulls SEO and content signals out of fetched HTML.
package extract

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/internal/urlnorm"
	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

const (
	maxHeadings    = 20
	maxStoredLinks = 100
	previewLength  = 500
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// Extractor parses page HTML into Signals. It is tolerant of malformed
// markup and never fails; an unparseable document yields empty signals.
type Extractor struct {
	normalizer *urlnorm.Normalizer
	thresholds models.Thresholds
	logger     *logrus.Logger
}

func New(normalizer *urlnorm.Normalizer, thresholds models.Thresholds, logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Extractor{
		normalizer: normalizer,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Extract parses body and returns the page signals plus the full deduped
// same-site link list. Signals.Links holds the first 100 of those links;
// LinkCount additionally counts resolvable off-site links. pageURL is the
// final URL after redirects; relative links resolve against it.
func (e *Extractor) Extract(pageURL, body string) (*models.Signals, []string) {
	signals := &models.Signals{ContentLength: len(body)}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		e.logger.WithError(err).Warnf("HTML parse failed for %s", pageURL)
		return signals, nil
	}

	signals.Title = cleanText(doc.Find("title").First().Text())
	signals.MetaDescription = metaContent(doc, "description")
	signals.MetaKeywords = metaContent(doc, "keywords")
	signals.CanonicalURL = strings.TrimSpace(attrOf(doc.Find(`link[rel="canonical"]`).First(), "href"))
	signals.RobotsMeta = robotsDirectives(doc)

	signals.H1 = headingTexts(doc, "h1", 0)
	signals.H2 = headingTexts(doc, "h2", maxHeadings)
	signals.H3 = headingTexts(doc, "h3", maxHeadings)

	links := e.extractLinks(doc, pageURL, signals)
	e.extractText(doc, signals)
	e.extractSecuritySignals(doc, pageURL, signals)

	signals.LikelyCSR = signals.TextLength < e.thresholds.ThinTextLength &&
		signals.ContentLength >= e.thresholds.CSRMinHTMLBytes

	return signals, links
}

// extractLinks returns every deduped same-site link, uncapped; only the
// stored Signals.Links slice is bounded. LinkCount counts off-site links
// too, so LinkCount >= len(returned) >= len(Signals.Links).
func (e *Extractor) extractLinks(doc *goquery.Document, pageURL string, signals *models.Signals) []string {
	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})

	seen := make(map[string]struct{}, len(hrefs))
	var onsite []string
	for _, href := range hrefs {
		u, ok := e.normalizer.Resolve(href, pageURL)
		if !ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		signals.LinkCount++
		if e.normalizer.SameSite(u) {
			onsite = append(onsite, u)
		}
	}

	signals.Links = onsite
	if len(onsite) > maxStoredLinks {
		signals.Links = onsite[:maxStoredLinks]
	}
	return onsite
}

func (e *Extractor) extractText(doc *goquery.Document, signals *models.Signals) {
	clone := doc.Clone()
	clone.Find("script").Each(func(_ int, s *goquery.Selection) {
		signals.ScriptBytes += len(s.Text())
	})
	clone.Find("script, style, noscript, template").Remove()

	root := clone.Find("body")
	if root.Length() == 0 {
		root = clone
	}
	text := cleanText(root.Text())

	signals.TextLength = utf8.RuneCountInString(text)
	if signals.TextLength > previewLength {
		text = string([]rune(text)[:previewLength])
	}
	signals.TextPreview = text
}

// extractSecuritySignals collects the DOM-level inputs the security scorer
// consumes: mixed content on HTTPS pages, password forms submitting over
// plain HTTP, and offsite scripts loaded without subresource integrity.
func (e *Extractor) extractSecuritySignals(doc *goquery.Document, pageURL string, signals *models.Signals) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return
	}

	if base.Scheme == "https" {
		doc.Find("img[src], script[src], iframe[src], audio[src], video[src], source[src]").Each(func(_ int, s *goquery.Selection) {
			if strings.HasPrefix(strings.TrimSpace(attrOf(s, "src")), "http://") {
				signals.MixedContentCount++
			}
		})
		doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
			if strings.HasPrefix(strings.TrimSpace(attrOf(s, "href")), "http://") {
				signals.MixedContentCount++
			}
		})
	}

	doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		if s.Find(`input[type="password"]`).Length() == 0 {
			return
		}
		action := strings.TrimSpace(attrOf(s, "action"))
		target := base
		if action != "" {
			ref, err := url.Parse(action)
			if err != nil {
				return
			}
			target = base.ResolveReference(ref)
		}
		if target.Scheme == "http" {
			signals.InsecureFormActions++
		}
	})

	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(attrOf(s, "src"))
		if src == "" {
			return
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if e.normalizer.SameSite(abs.String()) {
			return
		}
		if _, hasSRI := s.Attr("integrity"); !hasSRI {
			signals.ExternalScriptsNoSRI++
		}
	})
}

func metaContent(doc *goquery.Document, name string) string {
	var content string
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(attrOf(s, "name"), name) {
			content = strings.TrimSpace(attrOf(s, "content"))
			return false
		}
		return true
	})
	return content
}

func robotsDirectives(doc *goquery.Document) []string {
	raw := metaContent(doc, "robots")
	if raw == "" {
		return nil
	}
	var directives []string
	for _, part := range strings.Split(raw, ",") {
		if d := strings.ToLower(strings.TrimSpace(part)); d != "" {
			directives = append(directives, d)
		}
	}
	return directives
}

func headingTexts(doc *goquery.Document, tag string, limit int) []string {
	var out []string
	doc.Find(tag).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		out = append(out, cleanText(s.Text()))
		return limit == 0 || len(out) < limit
	})
	return out
}

func attrOf(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return v
}

func cleanText(text string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
}
