package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AuditConfig is the full configuration surface consumed by one crawl-and-audit
// run. All fields are plain scalars; Validate is called before any fetch.
type AuditConfig struct {
	StartURL      string        `yaml:"start_url" json:"start_url"`
	MaxPages      int           `yaml:"max_pages" json:"max_pages"`
	MaxDepth      int           `yaml:"max_depth" json:"max_depth"`
	Delay         time.Duration `yaml:"delay" json:"delay"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	MaxRedirects  int           `yaml:"max_redirects" json:"max_redirects"`
	KeepQuery     bool          `yaml:"keep_query" json:"keep_query"`
	SaveHTML      bool          `yaml:"save_html" json:"save_html"`
	SaveHTMLLimit int           `yaml:"save_html_limit" json:"save_html_limit"`
	OutputDir     string        `yaml:"output_dir" json:"output_dir"`
	RenderPDF     bool          `yaml:"render_pdf" json:"render_pdf"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent"`
	Thresholds    Thresholds    `yaml:"thresholds" json:"thresholds"`
}

// Thresholds holds the heuristic constants used by page evaluation.
type Thresholds struct {
	ThinTextLength    int `yaml:"thin_text_length" json:"thin_text_length"`
	CSRMinHTMLBytes   int `yaml:"csr_min_html_bytes" json:"csr_min_html_bytes"`
	TitleMinLength    int `yaml:"title_min_length" json:"title_min_length"`
	TitleMaxLength    int `yaml:"title_max_length" json:"title_max_length"`
	MetaDescMinLength int `yaml:"meta_desc_min_length" json:"meta_desc_min_length"`
	MetaDescMaxLength int `yaml:"meta_desc_max_length" json:"meta_desc_max_length"`
}

const (
	DefaultMaxPages      = 60
	DefaultMaxDepth      = 3
	DefaultDelay         = 500 * time.Millisecond
	DefaultTimeout       = 30 * time.Second
	DefaultMaxRedirects  = 10
	DefaultSaveHTMLLimit = 60
	DefaultOutputDir     = "./data"

	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// DefaultThresholds returns the documented default heuristic constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ThinTextLength:    200,
		CSRMinHTMLBytes:   20000,
		TitleMinLength:    10,
		TitleMaxLength:    60,
		MetaDescMinLength: 50,
		MetaDescMaxLength: 160,
	}
}

// DefaultAuditConfig returns a config with every default applied except the
// start URL, which has no meaningful default.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		MaxPages:      DefaultMaxPages,
		MaxDepth:      DefaultMaxDepth,
		Delay:         DefaultDelay,
		Timeout:       DefaultTimeout,
		MaxRedirects:  DefaultMaxRedirects,
		SaveHTML:      true,
		SaveHTMLLimit: DefaultSaveHTMLLimit,
		OutputDir:     DefaultOutputDir,
		RenderPDF:     true,
		UserAgent:     DefaultUserAgent,
		Thresholds:    DefaultThresholds(),
	}
}

// Validate checks bounds and the start URL. A non-nil error here is fatal:
// the crawl must not start.
func (c *AuditConfig) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.StartURL))
	if err != nil {
		return fmt.Errorf("invalid start URL %q: %w", c.StartURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("start URL must be http or https, got %q", c.StartURL)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("start URL has no host: %q", c.StartURL)
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("max_pages must be >= 1, got %d", c.MaxPages)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0, got %d", c.MaxDepth)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must be >= 0, got %v", c.Delay)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	if c.SaveHTML && c.SaveHTMLLimit < 0 {
		return fmt.Errorf("save_html_limit must be >= 0, got %d", c.SaveHTMLLimit)
	}
	return nil
}
