package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule [url]",
		Short: "Run recurring audits on a schedule",
		Long: `Run the audit pipeline repeatedly on a cron schedule or fixed interval.
Each trigger starts a fresh crawl with its own run ID; an audit still in
progress when the next trigger fires causes that trigger to be skipped.
The process runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: runSchedule,
	}

	cmd.Flags().String("cron", "", `Cron expression (e.g. "0 3 * * *" for 03:00 daily)`)
	cmd.Flags().Duration("every", 0, "Fixed interval between audits (e.g. 6h)")
	cmd.Flags().Bool("immediate", false, "Run one audit immediately before waiting for the schedule")

	_ = viper.BindPFlag("schedule.cron", cmd.Flags().Lookup("cron"))
	_ = viper.BindPFlag("schedule.every", cmd.Flags().Lookup("every"))
	_ = viper.BindPFlag("schedule.immediate", cmd.Flags().Lookup("immediate"))

	return cmd
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cronExpr := viper.GetString("schedule.cron")
	every := viper.GetDuration("schedule.every")
	if cronExpr == "" && every == 0 {
		return fmt.Errorf("either --cron or --every is required")
	}
	if cronExpr != "" && every != 0 {
		return fmt.Errorf("--cron and --every are mutually exclusive")
	}
	if cronExpr == "" {
		cronExpr = fmt.Sprintf("@every %s", every)
	}

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
		logrus.Info("Received interrupt signal, stopping scheduler...")
		cancel()
	}()

	logger := logrus.StandardLogger()
	var running sync.Mutex

	trigger := func() {
		if !running.TryLock() {
			logger.Warn("Previous audit still running, skipping this trigger")
			return
		}
		defer running.Unlock()

		result, err := executeAudit(ctx, cfg, logger)
		if err != nil {
			logger.WithError(err).Error("Scheduled audit failed")
			return
		}
		printAuditSummary(result)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cronExpr, trigger); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cronExpr, err)
	}

	if viper.GetBool("schedule.immediate") {
		trigger()
		if ctx.Err() != nil {
			return nil
		}
	}

	logger.Infof("Scheduler started (%s), press Ctrl-C to stop", cronExpr)
	scheduler.Start()

	<-ctx.Done()
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	logger.Info("Scheduler stopped")
	return nil
}
