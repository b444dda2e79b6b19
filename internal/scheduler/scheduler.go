package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/config"
	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/service/notify"
)

const jobTimeout = 2 * time.Minute

// Reporter publishes the daily production report.
type Reporter interface {
	Yesterday() time.Time
	PublishDailyReport(ctx context.Context, day time.Time) (models.DailyReport, error)
}

// AlertSource lists open health alerts.
type AlertSource interface {
	Alerts(ctx context.Context) ([]models.HealthRecord, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	reporter Reporter
	alerts   AlertSource
	notifier notify.Notifier
	cfg      config.ReportingConfig
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler instance running in loc.
func NewScheduler(cfg config.ReportingConfig, loc *time.Location, reporter Reporter, alerts AlertSource, notifier notify.Notifier, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		reporter: reporter,
		alerts:   alerts,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start registers the jobs and starts the scheduler. An invalid schedule is
// returned before anything runs.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("report_schedule", s.cfg.CronSchedule),
		zap.String("alert_schedule", s.cfg.AlertSchedule))

	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.sendDailyReport); err != nil {
		return fmt.Errorf("schedule daily report: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.AlertSchedule, s.sendAlertDigest); err != nil {
		return fmt.Errorf("schedule alert digest: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sendDailyReport() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.RunDailyReport(ctx); err != nil {
		s.logger.Error("daily report job failed", zap.Error(err))
	}
}

func (s *Scheduler) sendAlertDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.RunAlertDigest(ctx); err != nil {
		s.logger.Error("alert digest job failed", zap.Error(err))
	}
}

// RunDailyReport publishes yesterday's report and sends it to the manager.
func (s *Scheduler) RunDailyReport(ctx context.Context) error {
	day := s.reporter.Yesterday()
	s.logger.Info("generating daily report", zap.String("date", day.Format(models.DateLayout)))

	report, err := s.reporter.PublishDailyReport(ctx, day)
	if err != nil {
		return fmt.Errorf("publish report: %w", err)
	}

	if err := s.notifier.SendDailyReport(ctx, report); err != nil {
		return fmt.Errorf("send report: %w", err)
	}

	s.logger.Info("daily report sent successfully")
	return nil
}

// RunAlertDigest sends the open health alerts to the manager.
func (s *Scheduler) RunAlertDigest(ctx context.Context) error {
	alerts, err := s.alerts.Alerts(ctx)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}

	if err := s.notifier.SendAlertDigest(ctx, alerts); err != nil {
		return fmt.Errorf("send alert digest: %w", err)
	}

	s.logger.Info("alert digest processed", zap.Int("alerts", len(alerts)))
	return nil
}
