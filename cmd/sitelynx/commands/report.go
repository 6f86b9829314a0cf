package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bl4ck0w1/sitelynx/internal/report"
	"github.com/bl4ck0w1/sitelynx/internal/storage"
	"github.com/bl4ck0w1/sitelynx/pkg/utils"
)

func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Work with stored audit reports",
		Long:  `List stored audit runs and re-render their HTML or PDF artifacts from the saved JSON.`,
	}

	cmd.AddCommand(newReportListCommand())
	cmd.AddCommand(newReportShowCommand())
	cmd.AddCommand(newReportRenderCommand())
	return cmd
}

func newReportListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored audit runs",
		RunE:  runReportList,
	}
}

func newReportShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the summary of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  runReportShow,
	}
}

func newReportRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <run-id>",
		Short: "Re-render HTML (and optionally PDF) from a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  runReportRender,
	}
	cmd.Flags().Bool("pdf", false, "Also print the report to PDF")
	cmd.Flags().String("template-dir", "", "Directory of custom report templates")
	_ = viper.BindPFlag("report.pdf", cmd.Flags().Lookup("pdf"))
	_ = viper.BindPFlag("report.template_dir", cmd.Flags().Lookup("template-dir"))
	return cmd
}

func openStorage() (*storage.LocalStorage, error) {
	return storage.NewLocalStorage(viper.GetString("output_directory"), 0, logrus.StandardLogger())
}

func runReportList(cmd *cobra.Command, args []string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	runs, err := store.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No stored audit runs.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTART URL\tSTATE\tPAGES\tMEAN SCORE\tGENERATED")
	for _, id := range runs {
		r, err := store.LoadReport(id)
		if err != nil {
			fmt.Fprintf(w, "%s\t(unreadable: %v)\t\t\t\t\n", id, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.1f\t%s\n",
			r.RunID,
			utils.TruncateString(r.StartURL, 48),
			r.State,
			r.Summary.PagesCrawled,
			r.Security.MeanScore,
			r.GeneratedAt.Format(time.RFC3339),
		)
	}
	return w.Flush()
}

func runReportShow(cmd *cobra.Command, args []string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	r, err := store.LoadReport(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Run %s (%s)\n", r.RunID, r.State)
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("Start URL:      %s\n", r.StartURL)
	fmt.Printf("Generated:      %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Printf("Pages:          %d (failed %d, non-indexable %d)\n",
		r.Summary.PagesCrawled, r.Summary.PagesFailed, r.Summary.NonIndexable)
	fmt.Printf("Security:       mean %.1f, range %d-%d\n",
		r.Security.MeanScore, r.Security.MinScore, r.Security.MaxScore)

	if len(r.Security.GradeHistogram) > 0 {
		fmt.Println("\nGrades:")
		for _, grade := range []string{"A", "B", "C", "D", "F"} {
			if n := r.Security.GradeHistogram[grade]; n > 0 {
				fmt.Printf("  %s: %d\n", grade, n)
			}
		}
	}

	if len(r.Summary.IssueCounts) > 0 {
		fmt.Println("\nIssues:")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for kind, n := range r.Summary.IssueCounts {
			fmt.Fprintf(w, "  %s\t%d\n", kind, n)
		}
		w.Flush()
	}
	return nil
}

func runReportRender(cmd *cobra.Command, args []string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	r, err := store.LoadReport(args[0])
	if err != nil {
		return err
	}

	renderer, err := report.NewHTMLRenderer()
	if err != nil {
		return err
	}
	if dir := viper.GetString("report.template_dir"); dir != "" {
		if err := renderer.LoadTemplateDir(dir); err != nil {
			return fmt.Errorf("failed to load templates from %s: %w", dir, err)
		}
	}
	html, err := renderer.Render(r)
	if err != nil {
		return err
	}

	_, htmlPath, err := store.SaveReport(r, html)
	if err != nil {
		return err
	}
	logrus.Infof("HTML report rendered to %s", htmlPath)

	if viper.GetBool("report.pdf") {
		pdfPath, err := renderPDF(htmlPath, store.PDFPath(r.RunID), 30*time.Second, logrus.StandardLogger())
		if err != nil {
			return fmt.Errorf("PDF rendering failed: %w", err)
		}
		logrus.Infof("PDF report rendered to %s", pdfPath)
	}
	return nil
}
