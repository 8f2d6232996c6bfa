package scheduler

import (
	"context"
	"fmt"
	"time"

	"lowkey_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	fullRefreshTimeout = 2 * time.Minute
	deliveryTimeout    = 50 * time.Second
)

// Deliverer fires reminders whose time has come.
type Deliverer interface {
	DeliverDue(ctx context.Context) (*app.DeliveryReport, error)
}

type ReminderScheduler struct {
	cronEngine          *cron.Cron
	refresher           app.Refresher
	deliverer           Deliverer
	logger              *logrus.Entry
	cronSpecFullRefresh string
	cronSpecDelivery    string
}

func NewReminderScheduler(
	refresher app.Refresher,
	deliverer Deliverer,
	logger *logrus.Entry,
	loc *time.Location,
	cronSpecFullRefresh string, // e.g., "0 */6 * * *" (every six hours)
	cronSpecDelivery string, // e.g., "* * * * *" (every minute)
) *ReminderScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &ReminderScheduler{
		// SkipIfStillRunning keeps a slow pass from stacking up behind itself.
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		refresher:           refresher,
		deliverer:           deliverer,
		logger:              logger,
		cronSpecFullRefresh: cronSpecFullRefresh,
		cronSpecDelivery:    cronSpecDelivery,
	}
}

// Start registers both jobs and starts the cron engine. A bad cron spec is
// returned before anything runs.
func (s *ReminderScheduler) Start() error {
	s.logger.Info("Starting reminder scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpecFullRefresh, s.runFullRefresh); err != nil {
		return fmt.Errorf("could not add full refresh cron job %q: %w", s.cronSpecFullRefresh, err)
	}
	if _, err := s.cronEngine.AddFunc(s.cronSpecDelivery, s.runDelivery); err != nil {
		return fmt.Errorf("could not add delivery cron job %q: %w", s.cronSpecDelivery, err)
	}

	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{
		"full_refresh": s.cronSpecFullRefresh,
		"delivery":     s.cronSpecDelivery,
	}).Info("Reminder scheduler started with jobs.")
	return nil
}

func (s *ReminderScheduler) runFullRefresh() {
	log := s.logger.WithField("job", "full_refresh")
	log.Debug("Cron job triggered for full refresh.")
	ctx, cancel := context.WithTimeout(context.Background(), fullRefreshTimeout)
	defer cancel()

	report, err := s.refresher.FullRefresh(ctx)
	if err != nil {
		log.WithError(err).Error("Error during scheduled full refresh")
		return
	}
	log.WithFields(logrus.Fields{
		"permission": report.PermissionGranted,
		"reserved":   report.Reserved,
		"failed":     report.Failed,
	}).Info("Scheduled full refresh finished")
}

func (s *ReminderScheduler) runDelivery() {
	log := s.logger.WithField("job", "delivery")
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	report, err := s.deliverer.DeliverDue(ctx)
	if err != nil {
		log.WithError(err).Error("Error during reminder delivery")
		return
	}
	if report.Due > 0 {
		log.WithFields(logrus.Fields{
			"due":       report.Due,
			"delivered": report.Delivered,
			"failed":    report.Failed,
		}).Info("Delivery pass finished")
	}
}

func (s *ReminderScheduler) Stop() {
	s.logger.Info("Stopping reminder scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Reminder scheduler gracefully stopped.")
}
