package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/bl4ck0w1/sitelynx/internal/crawl"
	"github.com/bl4ck0w1/sitelynx/internal/fetch"
	"github.com/bl4ck0w1/sitelynx/internal/report"
	"github.com/bl4ck0w1/sitelynx/internal/storage"
	"github.com/bl4ck0w1/sitelynx/pkg/models"
	"github.com/bl4ck0w1/sitelynx/pkg/utils"
)

type auditResult struct {
	Report   *models.SiteReport
	JSONPath string
	HTMLPath string
	PDFPath  string
	Duration time.Duration
}

// executeAudit runs the full pipeline for one crawl: orchestrator, aggregate,
// persist, optional PDF. Shared by the audit and schedule commands; each call
// builds fresh crawl state.
func executeAudit(ctx context.Context, cfg models.AuditConfig, logger *logrus.Logger) (*auditResult, error) {
	start := time.Now()
	runID := utils.GenerateRunID()
	logger.WithField("run_id", runID).Infof("Starting audit of %s", cfg.StartURL)

	store, err := storage.NewLocalStorage(cfg.OutputDir, viper.GetDuration("audit.retention"), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	metrics := startMetrics(ctx, logger)

	client := fetch.NewClient(cfg.Timeout, cfg.MaxRedirects, cfg.UserAgent, logger)
	orchestrator, err := crawl.New(cfg, client, metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize crawler: %w", err)
	}
	if cfg.SaveHTML {
		orchestrator.SetHTMLSink(func(pageURL, body string) error {
			return store.SaveRawHTML(runID, pageURL, body)
		})
	}

	records, state, err := orchestrator.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("crawl failed: %w", err)
	}

	reportState := models.CrawlCompleted
	if state == crawl.StateAborted {
		reportState = models.CrawlAborted
	}
	siteReport := report.Aggregate(cfg, records, runID, reportState)

	renderer, err := report.NewHTMLRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize HTML renderer: %w", err)
	}
	if dir := viper.GetString("audit.template_dir"); dir != "" {
		if err := renderer.LoadTemplateDir(dir); err != nil {
			return nil, fmt.Errorf("failed to load templates from %s: %w", dir, err)
		}
	}
	html, err := renderer.Render(siteReport)
	if err != nil {
		return nil, err
	}

	jsonPath, htmlPath, err := store.SaveReport(siteReport, html)
	if err != nil {
		return nil, fmt.Errorf("failed to persist report: %w", err)
	}

	result := &auditResult{
		Report:   siteReport,
		JSONPath: jsonPath,
		HTMLPath: htmlPath,
		Duration: time.Since(start),
	}

	if cfg.RenderPDF {
		if pdfPath, err := renderPDF(htmlPath, store.PDFPath(runID), cfg.Timeout, logger); err != nil {
			logger.WithError(err).Warn("PDF rendering failed, JSON and HTML reports are intact")
		} else {
			result.PDFPath = pdfPath
		}
	}

	return result, nil
}

func renderPDF(htmlPath, pdfPath string, timeout time.Duration, logger *logrus.Logger) (string, error) {
	renderer := report.NewPDFRenderer(timeout, logger)
	defer renderer.Close()
	if err := renderer.RenderFile(htmlPath, pdfPath); err != nil {
		return "", err
	}
	return pdfPath, nil
}

// startMetrics exposes the Prometheus endpoint for the crawl's lifetime when
// an address is configured, and returns the collector either way.
func startMetrics(ctx context.Context, logger *logrus.Logger) *utils.MetricsCollector {
	metrics := utils.NewMetricsCollector(true)
	if addr := viper.GetString("audit.metrics_addr"); addr != "" {
		go func() {
			if err := metrics.StartServerWithContext(ctx, addr); err != nil {
				logger.WithError(err).Warn("Metrics server stopped")
			}
		}()
		logger.Infof("Metrics available at http://%s/metrics", addr)
	}
	return metrics
}
