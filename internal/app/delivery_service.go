// internal/app/delivery_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"lowkey_bot/internal/domain/notification"
	domainTelegram "lowkey_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DeliveryService fires due reminders from the local queue as Telegram
// messages to the owner.
type DeliveryService struct {
	queue          notification.Queue
	permission     notification.PermissionChecker
	telegramClient domainTelegram.Client
	ownerChatID    int64
	limiter        *rate.Limiter
	now            func() time.Time
	logger         *logrus.Entry
}

// DeliveryReport counts the outcome of one delivery pass.
type DeliveryReport struct {
	Due       int
	Delivered int
	Failed    int
}

// NewDeliveryService paces sends at ratePerSec messages per second.
// A non-positive rate disables pacing.
func NewDeliveryService(
	q notification.Queue,
	permission notification.PermissionChecker,
	tc domainTelegram.Client,
	ownerChatID int64,
	ratePerSec float64,
	logger *logrus.Entry,
) *DeliveryService {
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &DeliveryService{
		queue:          q,
		permission:     permission,
		telegramClient: tc,
		ownerChatID:    ownerChatID,
		limiter:        rate.NewLimiter(limit, 1),
		now:            time.Now,
		logger:         logger,
	}
}

func (s *DeliveryService) WithClock(now func() time.Time) *DeliveryService {
	s.now = now
	return s
}

// DeliverDue sends every reminder whose fire time has passed. A delivered
// reminder leaves the queue; a failed send stays queued for the next pass.
func (s *DeliveryService) DeliverDue(ctx context.Context) (*DeliveryReport, error) {
	report := &DeliveryReport{}

	enabled, err := s.permission.NotificationsEnabled(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to read notification permission: %w", err)
	}
	if !enabled {
		s.logger.Debug("Reminders are paused; nothing delivered")
		return report, nil
	}

	due, err := s.queue.ListDue(ctx, s.now())
	if err != nil {
		return report, fmt.Errorf("failed to list due reminders: %w", err)
	}
	report.Due = len(due)

	for _, r := range due {
		if err := s.limiter.Wait(ctx); err != nil {
			return report, fmt.Errorf("delivery interrupted: %w", err)
		}

		log := s.logger.WithFields(logrus.Fields{
			"identifier": r.Identifier,
			"contact_id": r.ContactID,
			"fire_at":    r.FireAt,
		})
		message := notification.ReminderTitle + "\n" + r.DisplayText
		if err := s.telegramClient.SendText(s.ownerChatID, message); err != nil {
			report.Failed++
			log.WithError(err).Error("Failed to deliver reminder")
			continue
		}
		if err := s.queue.MarkDelivered(ctx, r.Identifier); err != nil {
			// Sent but still queued, so it may be sent once more.
			log.WithError(err).Error("Failed to mark reminder delivered")
		}
		report.Delivered++
		log.Info("Reminder delivered")
	}
	return report, nil
}
