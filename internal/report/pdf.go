package report

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

// PDFRenderer prints the HTML report to PDF through headless Chromium.
// Rendering is best effort: the caller treats a PDF failure as a warning,
// the JSON and HTML artifacts are already on disk by then.
type PDFRenderer struct {
	pw            *playwright.Playwright
	browser       playwright.Browser
	timeout       time.Duration
	logger        *logrus.Logger
	mu            sync.Mutex
	isInitialized bool
}

func NewPDFRenderer(timeout time.Duration, logger *logrus.Logger) *PDFRenderer {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PDFRenderer{timeout: timeout, logger: logger}
}

func (r *PDFRenderer) initialize() error {
	if r.isInitialized {
		return nil
	}

	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		r.logger.WithError(err).Warn("Playwright browser install failed (continuing if already installed)")
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start Playwright: %w", err)
	}
	r.pw = pw

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-dev-shm-usage",
			"--disable-gpu",
		},
	})
	if err != nil {
		_ = pw.Stop()
		r.pw = nil
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	r.browser = browser
	r.isInitialized = true
	r.logger.Info("PDF renderer initialized")
	return nil
}

// RenderFile prints the HTML document at htmlPath to pdfPath. Only the local
// report file is loaded; no network navigation happens here.
func (r *PDFRenderer) RenderFile(htmlPath, pdfPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.initialize(); err != nil {
		return err
	}

	absHTML, err := filepath.Abs(htmlPath)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", htmlPath, err)
	}

	page, err := r.browser.NewPage()
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	if _, err := page.Goto("file://"+absHTML, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(r.timeout.Milliseconds())),
	}); err != nil {
		return fmt.Errorf("failed to load report HTML: %w", err)
	}

	if _, err := page.PDF(playwright.PagePdfOptions{
		Path:            playwright.String(pdfPath),
		Format:          playwright.String("A4"),
		PrintBackground: playwright.Bool(true),
	}); err != nil {
		return fmt.Errorf("failed to print PDF: %w", err)
	}

	r.logger.Infof("PDF report written to %s", pdfPath)
	return nil
}

func (r *PDFRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			return err
		}
		r.browser = nil
	}
	if r.pw != nil {
		if err := r.pw.Stop(); err != nil {
			return err
		}
		r.pw = nil
	}
	r.isInitialized = false
	return nil
}
