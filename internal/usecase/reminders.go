package usecase

import (
	"context"
	"time"

	"github.com/lifeleveling/lifeleveling/internal/alarm"
	"github.com/lifeleveling/lifeleveling/internal/domain"
	pkglog "github.com/lifeleveling/lifeleveling/pkg/log"
)

const (
	tagScheduler = "ReminderScheduler"
	tagReceiver  = "ReminderReceiver"

	// ActionReminder routes reminder alarms to the reminder receiver.
	ActionReminder = "lifeleveling.action.REMINDER"

	defaultReminderTitle = "Reminder"
)

// AlarmService registers exact one-shot alarms.
type AlarmService interface {
	SetExactAndAllowWhileIdle(a alarm.Alarm)
	Cancel(requestCode int32) bool
}

type ReminderScheduler struct {
	logger pkglog.Logger
	alarms AlarmService
}

func NewReminderScheduler(logger pkglog.Logger, alarms AlarmService) *ReminderScheduler {
	return &ReminderScheduler{logger: logger, alarms: alarms}
}

// Schedule arms the alarm of r at its due time, replacing any pending alarm
// for the same reminder id. A reminder without a due time fails with a
// *domain.PreconditionError wrapping domain.ErrMissingDueDate.
func (s *ReminderScheduler) Schedule(r domain.Reminder) error {
	if r.DueAt == nil {
		err := &domain.PreconditionError{Op: "schedule reminder " + r.ID, Err: domain.ErrMissingDueDate}
		s.logger.Error(tagScheduler, "reminder has no due date", err, pkglog.Fields{"reminder_id": r.ID})
		return err
	}
	code := domain.RequestCode(r.ID)
	s.alarms.SetExactAndAllowWhileIdle(alarm.Alarm{
		RequestCode: code,
		Action:      ActionReminder,
		At:          *r.DueAt,
		Extras:      r.Extras(),
	})
	s.logger.Info(tagScheduler, "reminder scheduled", pkglog.Fields{"reminder_id": r.ID, "request_code": code, "due_at": r.DueAt})
	return nil
}

// Cancel removes the pending alarm of reminderID, if any.
func (s *ReminderScheduler) Cancel(reminderID string) {
	if s.alarms.Cancel(domain.RequestCode(reminderID)) {
		s.logger.Info(tagScheduler, "reminder cancelled", pkglog.Fields{"reminder_id": reminderID})
	}
}

// ReminderReceiver runs when a reminder alarm fires.
type ReminderReceiver struct {
	logger    pkglog.Logger
	renderer  domain.NotificationRenderer
	scheduler *ReminderScheduler
	now       func() time.Time
}

// NewReminderReceiver builds the receiver. scheduler may be nil, in which
// case repeating reminders are not re-armed.
func NewReminderReceiver(logger pkglog.Logger, renderer domain.NotificationRenderer, scheduler *ReminderScheduler) *ReminderReceiver {
	return &ReminderReceiver{logger: logger, renderer: renderer, scheduler: scheduler, now: time.Now}
}

func (r *ReminderReceiver) OnReceive(ctx context.Context, a alarm.Alarm) {
	if ctx == nil || r.renderer == nil {
		r.logger.Error(tagReceiver, "cannot show reminder", domain.ErrNoContext, pkglog.Fields{"request_code": a.RequestCode})
		return
	}
	title := a.Extras[domain.ExtraTitle]
	if title == "" {
		title = defaultReminderTitle
	}
	body := a.Extras[domain.ExtraMessage]
	if body == "" {
		body = title
	}
	n := domain.Notification{
		ID:      a.RequestCode,
		Channel: domain.ChannelReminders,
		Title:   title,
		Body:    body,
		Action:  domain.ActionOpenMain,
		Data:    map[string]string{domain.ExtraReminderID: a.Extras[domain.ExtraReminderID]},
	}
	// Re-arm first so a Cancel issued while rendering still removes the
	// next occurrence.
	r.rearm(a)
	if err := r.renderer.Render(ctx, n); err != nil {
		r.logger.Error(tagReceiver, "render reminder failed", err, pkglog.Fields{"request_code": a.RequestCode})
	}
}

func (r *ReminderReceiver) rearm(a alarm.Alarm) {
	if r.scheduler == nil {
		return
	}
	rem := domain.ReminderFromExtras(a.Extras)
	next, ok := rem.NextDue(r.now())
	if !ok {
		return
	}
	rem.DueAt = &next
	if err := r.scheduler.Schedule(rem); err != nil {
		r.logger.Error(tagReceiver, "re-arm repeating reminder failed", err, pkglog.Fields{"reminder_id": rem.ID})
	}
}
