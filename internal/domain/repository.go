package domain

import "context"

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	// Upsert writes user, keeping an existing creation time.
	Upsert(ctx context.Context, user *User) error
	Update(ctx context.Context, uid string, fields UserFields) error
	FindByID(ctx context.Context, uid string) (*User, error)
	Delete(ctx context.Context, uid string) error
}

type AuthLogRepository interface {
	Append(ctx context.Context, entry *AuthLog) error
}

type PushTokenRepository interface {
	Upsert(ctx context.Context, token *PushToken) error
	Delete(ctx context.Context, uid string) error
}
