// Package crawl runs the breadth-first audit over one site: frontier and
// visited-set management, the politeness delay, and per-page pipeline
// dispatch into the extractor, scorer and evaluator.
package crawl

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/bl4ck0w1/sitelynx/internal/audit"
	"github.com/bl4ck0w1/sitelynx/internal/extract"
	"github.com/bl4ck0w1/sitelynx/internal/fetch"
	"github.com/bl4ck0w1/sitelynx/internal/security"
	"github.com/bl4ck0w1/sitelynx/internal/urlnorm"
	"github.com/bl4ck0w1/sitelynx/pkg/models"
	"github.com/bl4ck0w1/sitelynx/pkg/utils"
)

// ErrAlreadyRan marks a second Run call on the same Orchestrator. Runs do
// not share state; callers build a new one each time.
var ErrAlreadyRan = errors.New("crawl orchestrator is single-use, create a new one per run")

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// Fetcher retrieves one page. *fetch.Client is the production implementation;
// tests substitute a canned one.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Response, error)
}

// HTMLSink receives raw page bodies for archival, keyed by final URL. Sink
// errors are logged and never interrupt the crawl.
type HTMLSink func(url, body string) error

// Orchestrator drives one crawl run. It is single-use: build a fresh one per
// run so the visited set and frontier start empty.
type Orchestrator struct {
	cfg        models.AuditConfig
	fetcher    Fetcher
	normalizer *urlnorm.Normalizer
	extractor  *extract.Extractor
	scorer     *security.Scorer
	evaluator  *audit.Evaluator
	limiter    *rate.Limiter
	metrics    *utils.MetricsCollector
	logger     *logrus.Logger
	htmlSink   HTMLSink

	mu        sync.Mutex
	state     State
	frontier  []models.CrawlTarget
	visited   map[string]bool
	records   []models.PageRecord
	inbound   map[string]int
	htmlSaved int
}

func New(cfg models.AuditConfig, fetcher Fetcher, metrics *utils.MetricsCollector, logger *logrus.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = logrus.New()
	}
	normalizer, err := urlnorm.New(cfg.StartURL, cfg.KeepQuery)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Delay), 1)
	}

	o := &Orchestrator{
		cfg:        cfg,
		fetcher:    fetcher,
		normalizer: normalizer,
		extractor:  extract.New(normalizer, cfg.Thresholds, logger),
		scorer:     security.NewScorer(),
		evaluator:  audit.New(normalizer, cfg.Thresholds),
		limiter:    limiter,
		metrics:    metrics,
		logger:     logger,
		state:      StateIdle,
		visited:    make(map[string]bool),
		inbound:    make(map[string]int),
	}
	o.registerMetrics()
	return o, nil
}

// SetHTMLSink installs the raw-body archiver. Must be called before Run.
func (o *Orchestrator) SetHTMLSink(sink HTMLSink) {
	o.htmlSink = sink
}

func (o *Orchestrator) registerMetrics() {
	if o.metrics == nil {
		return
	}
	_ = o.metrics.RegisterCounter("sitelynx_pages_fetched_total", "Pages fetched, by status class", "status_class")
	_ = o.metrics.RegisterCounter("sitelynx_fetch_failures_total", "Fetch failures, by kind", "kind")
	_ = o.metrics.RegisterCounter("sitelynx_issues_total", "Issues found, by kind", "kind")
	_ = o.metrics.RegisterGauge("sitelynx_frontier_size", "URLs queued for crawling")
	_ = o.metrics.RegisterHistogram("sitelynx_fetch_duration_seconds", "Page fetch latency", nil)
}

// Run executes the crawl and returns every record collected, including
// failure records. On context cancellation it returns the partial record set
// with StateAborted and a nil error; records gathered so far are never lost.
func (o *Orchestrator) Run(ctx context.Context) ([]models.PageRecord, State, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return nil, o.state, ErrAlreadyRan
	}
	o.state = StateRunning
	o.mu.Unlock()

	start, err := urlnorm.Canonicalize(o.cfg.StartURL, o.cfg.KeepQuery)
	if err != nil {
		o.setState(StateAborted)
		return nil, StateAborted, err
	}

	o.visited[start] = true
	o.frontier = []models.CrawlTarget{{URL: start, Depth: 0}}

	o.logger.WithFields(logrus.Fields{
		"start_url": start,
		"max_pages": o.cfg.MaxPages,
		"max_depth": o.cfg.MaxDepth,
		"delay":     o.cfg.Delay.String(),
	}).Info("Crawl started")

	for len(o.frontier) > 0 && len(o.records) < o.cfg.MaxPages {
		if ctx.Err() != nil {
			return o.finish(StateAborted)
		}

		target := o.frontier[0]
		o.frontier = o.frontier[1:]
		o.gauge("sitelynx_frontier_size", float64(len(o.frontier)))

		if target.Depth > o.cfg.MaxDepth {
			continue
		}

		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return o.finish(StateAborted)
			}
		}

		record, links := o.processTarget(ctx, target)
		o.records = append(o.records, record)

		if ctx.Err() != nil {
			return o.finish(StateAborted)
		}
		if record.Failed() {
			continue
		}

		if target.Depth < o.cfg.MaxDepth {
			o.enqueueLinks(links, target.Depth+1)
		}
	}

	return o.finish(StateCompleted)
}

func (o *Orchestrator) processTarget(ctx context.Context, target models.CrawlTarget) (models.PageRecord, []string) {
	record := models.PageRecord{
		Timestamp: time.Now().UTC(),
		URL:       target.URL,
		Depth:     target.Depth,
	}

	resp, err := o.fetcher.Fetch(ctx, target.URL)
	if err != nil {
		record.FetchError = err.Error()
		record.Issues, record.Indexable = o.evaluator.Evaluate(&record, nil)
		o.counter("sitelynx_fetch_failures_total", failureKind(err))
		o.countIssues(record.Issues)
		o.logger.WithField("depth", target.Depth).Warnf("Fetch failed: %s (%v)", target.URL, err)
		return record, nil
	}

	record.FinalURL = resp.FinalURL
	record.StatusCode = resp.StatusCode
	record.ContentType = resp.ContentType
	record.ContentEncoding = resp.ContentEncoding
	record.XRobotsTag = resp.Header.Get("X-Robots-Tag")
	record.ElapsedMS = resp.ResponseTime.Milliseconds()

	signals := &models.Signals{ContentLength: len(resp.Body)}
	var links []string
	if isHTML(resp.ContentType) {
		signals, links = o.extractor.Extract(resp.FinalURL, resp.Body)
		o.archiveHTML(resp.FinalURL, resp.Body)
	}
	record.Signals = *signals
	for _, link := range links {
		o.inbound[link]++
	}

	record.Security = o.scorer.Score(resp.FinalURL, resp.Header, signals)
	findings := o.scorer.FindingNames(resp.FinalURL, resp.Header, signals)
	record.Issues, record.Indexable = o.evaluator.Evaluate(&record, findings)

	o.counter("sitelynx_pages_fetched_total", statusClass(resp.StatusCode))
	o.countIssues(record.Issues)
	if o.metrics != nil {
		o.metrics.ObserveHistogram("sitelynx_fetch_duration_seconds",
			resp.ResponseTime.Seconds(), prometheus.Labels{})
	}

	o.logger.WithFields(logrus.Fields{
		"status": resp.StatusCode,
		"depth":  target.Depth,
		"score":  record.Security.Score,
		"issues": len(record.Issues),
	}).Infof("Audited %s", target.URL)

	return record, links
}

func (o *Orchestrator) enqueueLinks(links []string, depth int) {
	for _, link := range links {
		if o.visited[link] {
			continue
		}
		o.visited[link] = true
		o.frontier = append(o.frontier, models.CrawlTarget{URL: link, Depth: depth})
	}
	o.gauge("sitelynx_frontier_size", float64(len(o.frontier)))
}

func (o *Orchestrator) archiveHTML(url, body string) {
	if o.htmlSink == nil || o.htmlSaved >= o.cfg.SaveHTMLLimit {
		return
	}
	if err := o.htmlSink(url, body); err != nil {
		o.logger.WithError(err).Warnf("Raw HTML archive failed for %s", url)
		return
	}
	o.htmlSaved++
}

func (o *Orchestrator) finish(state State) ([]models.PageRecord, State, error) {
	o.fillInboundCounts()
	o.setState(state)
	o.logger.WithFields(logrus.Fields{
		"state":   string(state),
		"pages":   len(o.records),
		"visited": len(o.visited),
	}).Info("Crawl finished")
	return o.records, state, nil
}

// fillInboundCounts assigns each record the number of links pointing at its
// canonical final URL, counted over the uncapped per-page link lists.
func (o *Orchestrator) fillInboundCounts() {
	for i := range o.records {
		r := &o.records[i]
		key := r.URL
		if r.FinalURL != "" {
			if c, err := urlnorm.Canonicalize(r.FinalURL, o.cfg.KeepQuery); err == nil {
				key = c
			}
		}
		r.InboundLinkCount = o.inbound[key]
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// GetStats reports crawl progress for the CLI summary.
func (o *Orchestrator) GetStats() map[string]interface{} {
	o.mu.Lock()
	defer o.mu.Unlock()

	failed := 0
	for i := range o.records {
		if o.records[i].Failed() {
			failed++
		}
	}
	return map[string]interface{}{
		"state":           string(o.state),
		"pages_crawled":   len(o.records),
		"pages_failed":    failed,
		"frontier_size":   len(o.frontier),
		"urls_discovered": len(o.visited),
		"html_saved":      o.htmlSaved,
	}
}

func (o *Orchestrator) counter(name, label string) {
	if o.metrics == nil {
		return
	}
	key := "status_class"
	if name == "sitelynx_fetch_failures_total" {
		key = "kind"
	}
	o.metrics.IncCounter(name, 1, prometheus.Labels{key: label})
}

func (o *Orchestrator) countIssues(issues []models.Issue) {
	if o.metrics == nil {
		return
	}
	for _, is := range issues {
		o.metrics.IncCounter("sitelynx_issues_total", 1, prometheus.Labels{"kind": string(is.Kind)})
	}
}

func (o *Orchestrator) gauge(name string, v float64) {
	if o.metrics == nil {
		return
	}
	o.metrics.SetGauge(name, v, prometheus.Labels{})
}

func failureKind(err error) string {
	if fe, ok := err.(*fetch.FetchError); ok {
		return string(fe.Kind)
	}
	return "unknown"
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "xhtml")
}
