// Package firestore stores application records in the users, authLogs and
// pushTokens collections of the document store.
package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lifeleveling/lifeleveling/internal/domain"
)

const (
	UsersCollection      = "users"
	AuthLogsCollection   = "authLogs"
	PushTokensCollection = "pushTokens"
)

type userRepo struct{ client *firestore.Client }

type authLogRepo struct{ client *firestore.Client }

type pushTokenRepo struct{ client *firestore.Client }

func NewUserRepository(c *firestore.Client) domain.UserRepository { return &userRepo{client: c} }
func NewAuthLogRepository(c *firestore.Client) domain.AuthLogRepository {
	return &authLogRepo{client: c}
}
func NewPushTokenRepository(c *firestore.Client) domain.PushTokenRepository {
	return &pushTokenRepo{client: c}
}

func (r *userRepo) doc(uid string) *firestore.DocumentRef {
	return r.client.Collection(UsersCollection).Doc(uid)
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	_, err := r.doc(user.UserID).Set(ctx, user)
	return err
}

func (r *userRepo) Upsert(ctx context.Context, user *domain.User) error {
	ref := r.doc(user.UserID)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return tx.Create(ref, user)
		}
		if err != nil {
			return err
		}
		return tx.Set(ref, map[string]interface{}{
			domain.FieldUserID:      user.UserID,
			domain.FieldDisplayName: user.DisplayName,
			domain.FieldEmail:       user.Email,
			domain.FieldPhotoURL:    user.PhotoURL,
			domain.FieldUpdatedAt:   user.UpdatedAt,
		}, firestore.MergeAll)
	})
}

func (r *userRepo) Update(ctx context.Context, uid string, fields domain.UserFields) error {
	updates := make([]firestore.Update, 0, len(fields)+1)
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	updates = append(updates, firestore.Update{Path: domain.FieldUpdatedAt, Value: time.Now()})
	_, err := r.doc(uid).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return domain.ErrNotFound
	}
	return err
}

func (r *userRepo) FindByID(ctx context.Context, uid string) (*domain.User, error) {
	snap, err := r.doc(uid).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var user domain.User
	if err := snap.DataTo(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Delete(ctx context.Context, uid string) error {
	_, err := r.doc(uid).Delete(ctx)
	return err
}

func (r *authLogRepo) Append(ctx context.Context, entry *domain.AuthLog) error {
	ref, _, err := r.client.Collection(AuthLogsCollection).Add(ctx, entry)
	if err != nil {
		return err
	}
	entry.ID = ref.ID
	return nil
}

func (r *pushTokenRepo) Upsert(ctx context.Context, token *domain.PushToken) error {
	if token.UpdatedAt.IsZero() {
		token.UpdatedAt = time.Now()
	}
	_, err := r.client.Collection(PushTokensCollection).Doc(token.UserID).Set(ctx, token)
	return err
}

func (r *pushTokenRepo) Delete(ctx context.Context, uid string) error {
	_, err := r.client.Collection(PushTokensCollection).Doc(uid).Delete(ctx)
	return err
}
