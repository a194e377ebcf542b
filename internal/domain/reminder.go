package domain

import (
	"strconv"
	"time"
)

type Reminder struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	DueAt               *time.Time `json:"dueAt"`
	RepeatDaily         bool       `json:"repeatDaily"`
	OccurrencesPerDay   int        `json:"occurrencesPerDay"`
	OccurrencesPerMonth int        `json:"occurrencesPerMonth"`
}

// Alarm extras carried by a reminder alarm.
const (
	ExtraReminderID    = "reminder_id"
	ExtraTitle         = "title"
	ExtraMessage       = "message"
	ExtraDueAt         = "due_at"
	ExtraRepeatDaily   = "repeat_daily"
	ExtraTimesPerDay   = "times_per_day"
	ExtraTimesPerMonth = "times_per_month"
)

// RequestCode derives the alarm identity from a reminder id. It matches the
// 32-bit string hash used by the mobile client so both sides agree.
func RequestCode(reminderID string) int32 {
	var h int32
	for _, r := range reminderID {
		if r > 0xFFFF {
			hi, lo := utf16Pair(r)
			h = 31*h + int32(hi)
			h = 31*h + int32(lo)
			continue
		}
		h = 31*h + int32(r)
	}
	return h
}

func utf16Pair(r rune) (uint16, uint16) {
	r -= 0x10000
	return uint16(0xD800 + (r>>10)&0x3FF), uint16(0xDC00 + r&0x3FF)
}

func (r Reminder) Extras() map[string]string {
	extras := map[string]string{
		ExtraReminderID:    r.ID,
		ExtraTitle:         r.Title,
		ExtraRepeatDaily:   strconv.FormatBool(r.RepeatDaily),
		ExtraTimesPerDay:   strconv.Itoa(r.OccurrencesPerDay),
		ExtraTimesPerMonth: strconv.Itoa(r.OccurrencesPerMonth),
	}
	if r.DueAt != nil {
		extras[ExtraDueAt] = strconv.FormatInt(r.DueAt.UnixMilli(), 10)
	}
	return extras
}

// ReminderFromExtras rebuilds the reminder carried by an alarm.
func ReminderFromExtras(extras map[string]string) Reminder {
	r := Reminder{ID: extras[ExtraReminderID], Title: extras[ExtraTitle]}
	r.RepeatDaily, _ = strconv.ParseBool(extras[ExtraRepeatDaily])
	r.OccurrencesPerDay, _ = strconv.Atoi(extras[ExtraTimesPerDay])
	r.OccurrencesPerMonth, _ = strconv.Atoi(extras[ExtraTimesPerMonth])
	if ms, err := strconv.ParseInt(extras[ExtraDueAt], 10, 64); err == nil {
		due := time.UnixMilli(ms)
		r.DueAt = &due
	}
	return r
}

// NextDue returns the next fire time of a repeating reminder after fired.
// Only daily repetition re-arms; ok is false otherwise.
func (r Reminder) NextDue(fired time.Time) (time.Time, bool) {
	if !r.RepeatDaily || r.DueAt == nil {
		return time.Time{}, false
	}
	n := r.OccurrencesPerDay
	if n < 1 {
		n = 1
	}
	step := 24 * time.Hour / time.Duration(n)
	next := r.DueAt.Add(step)
	for !next.After(fired) {
		next = next.Add(step)
	}
	return next, true
}
