package domain

import "context"

// Channel groups notifications of one feature.
type Channel struct {
	ID          string
	Name        string
	Description string
}

var (
	ChannelMessaging = Channel{ID: "messaging", Name: "Messages", Description: "Messages pushed by Life Leveling"}
	ChannelReminders = Channel{ID: "reminders", Name: "Reminders", Description: "Scheduled reminder alerts"}
)

// ActionOpenMain re-opens the application's main entry point when tapped.
const ActionOpenMain = "open_main"

type Notification struct {
	ID      int32
	Channel Channel
	Title   string
	Body    string
	Action  string
	Data    map[string]string
}

// NotificationRenderer shows a local notification to the user.
type NotificationRenderer interface {
	Render(ctx context.Context, n Notification) error
}
