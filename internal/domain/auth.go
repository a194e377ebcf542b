package domain

import "time"

// AuthLog is one append-only audit entry written after a successful login.
type AuthLog struct {
	ID       string    `gorm:"primaryKey;type:text" json:"-" firestore:"-"`
	TS       time.Time `gorm:"column:ts;index" json:"ts" firestore:"ts"`
	Source   string    `gorm:"type:text" json:"source" firestore:"source"`
	Provider string    `gorm:"type:text" json:"provider" firestore:"provider"`
	UID      string    `gorm:"column:uid;type:text;index" json:"uid" firestore:"uid"`
	Email    string    `gorm:"type:text" json:"email" firestore:"email"`
	Name     string    `gorm:"type:text" json:"name" firestore:"name"`
}

func (AuthLog) TableName() string { return "auth_log" }

// PushToken is the device registration token of a user.
type PushToken struct {
	UserID    string    `gorm:"primaryKey;type:text" json:"userId" firestore:"userId"`
	Token     string    `gorm:"type:text;not null" json:"token" firestore:"token"`
	DeviceID  string    `gorm:"type:text" json:"deviceId" firestore:"deviceId"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt" firestore:"updatedAt"`
}

func (PushToken) TableName() string { return "push_token" }

// AuthState is the observable UI state of the auth state holder.
type AuthState struct {
	User      *Identity `json:"user"`
	IsLoading bool      `json:"isLoading"`
	Error     string    `json:"error,omitempty"`
}
