package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

func NewAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit [url]",
		Short: "Crawl a site and audit every page",
		Long: `Crawl a single site breadth-first from the start URL, extracting SEO
signals, scoring security headers, and classifying issues on every page.
Results are written as JSON and HTML, optionally printed to PDF.`,
		Args: cobra.ExactArgs(1),
		RunE: runAudit,
	}

	cmd.Flags().IntP("max-pages", "n", models.DefaultMaxPages, "Maximum number of pages to fetch")
	cmd.Flags().IntP("max-depth", "d", models.DefaultMaxDepth, "Maximum link depth from the start URL")
	cmd.Flags().Duration("delay", models.DefaultDelay, "Minimum delay between requests")
	cmd.Flags().DurationP("timeout", "t", models.DefaultTimeout, "Per-request timeout")
	cmd.Flags().Bool("keep-query", false, "Keep non-tracking query strings in URL identity")
	cmd.Flags().Bool("save-html", true, "Archive raw HTML bodies alongside the report")
	cmd.Flags().Int("save-html-limit", models.DefaultSaveHTMLLimit, "Maximum raw HTML bodies to archive")
	cmd.Flags().StringP("output", "o", "", "Output directory (default from config)")
	cmd.Flags().Bool("pdf", true, "Render the HTML report to PDF via headless Chromium")
	cmd.Flags().String("user-agent", "", "Override the User-Agent header")
	cmd.Flags().String("template-dir", "", "Directory of custom report templates")
	cmd.Flags().String("metrics-addr", "", "Expose Prometheus metrics on this address during the crawl")

	_ = viper.BindPFlag("audit.max_pages", cmd.Flags().Lookup("max-pages"))
	_ = viper.BindPFlag("audit.max_depth", cmd.Flags().Lookup("max-depth"))
	_ = viper.BindPFlag("audit.delay", cmd.Flags().Lookup("delay"))
	_ = viper.BindPFlag("audit.timeout", cmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("audit.keep_query", cmd.Flags().Lookup("keep-query"))
	_ = viper.BindPFlag("audit.save_html", cmd.Flags().Lookup("save-html"))
	_ = viper.BindPFlag("audit.save_html_limit", cmd.Flags().Lookup("save-html-limit"))
	_ = viper.BindPFlag("audit.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("audit.pdf", cmd.Flags().Lookup("pdf"))
	_ = viper.BindPFlag("audit.user_agent", cmd.Flags().Lookup("user-agent"))
	_ = viper.BindPFlag("audit.template_dir", cmd.Flags().Lookup("template-dir"))
	_ = viper.BindPFlag("audit.metrics_addr", cmd.Flags().Lookup("metrics-addr"))

	return cmd
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := auditConfigFromViper(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		logrus.Info("Received interrupt signal, finishing up and flushing partial results...")
		cancel()
	}()

	result, err := executeAudit(ctx, cfg, logrus.StandardLogger())
	if err != nil {
		return err
	}

	printAuditSummary(result)
	return nil
}

// auditConfigFromViper assembles the run configuration from flags, config
// file and environment, then validates it.
func auditConfigFromViper(startURL string) (models.AuditConfig, error) {
	cfg := models.DefaultAuditConfig()
	cfg.StartURL = startURL
	cfg.MaxPages = viper.GetInt("audit.max_pages")
	cfg.MaxDepth = viper.GetInt("audit.max_depth")
	cfg.Delay = viper.GetDuration("audit.delay")
	cfg.Timeout = viper.GetDuration("audit.timeout")
	cfg.KeepQuery = viper.GetBool("audit.keep_query")
	cfg.SaveHTML = viper.GetBool("audit.save_html")
	cfg.SaveHTMLLimit = viper.GetInt("audit.save_html_limit")
	cfg.RenderPDF = viper.GetBool("audit.pdf")

	if out := viper.GetString("audit.output"); out != "" {
		cfg.OutputDir = out
	} else if out := viper.GetString("output_directory"); out != "" {
		cfg.OutputDir = out
	}
	if ua := viper.GetString("audit.user_agent"); ua != "" {
		cfg.UserAgent = ua
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid audit configuration: %w", err)
	}
	return cfg, nil
}

func printAuditSummary(result *auditResult) {
	r := result.Report
	fmt.Printf(`
Audit Summary:
═══════════════════════════════════════════════════════════════
Start URL:        %s
Run ID:           %s
State:            %s
Pages Crawled:    %d (failed: %d, non-indexable: %d)
Security Score:   mean %.1f (range %d-%d)
Issue Kinds:      %d
Duration:         %s
Report:           %s
═══════════════════════════════════════════════════════════════
`,
		r.StartURL,
		r.RunID,
		r.State,
		r.Summary.PagesCrawled, r.Summary.PagesFailed, r.Summary.NonIndexable,
		r.Security.MeanScore, r.Security.MinScore, r.Security.MaxScore,
		len(r.Summary.IssueCounts),
		result.Duration.Round(time.Millisecond),
		result.HTMLPath,
	)
	if result.PDFPath != "" {
		fmt.Printf("PDF:              %s\n", result.PDFPath)
	}
}
