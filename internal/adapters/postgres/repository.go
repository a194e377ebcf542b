package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lifeleveling/lifeleveling/internal/domain"
)

type userRepo struct{ db *gorm.DB }

type authLogRepo struct{ db *gorm.DB }

type pushTokenRepo struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) domain.UserRepository           { return &userRepo{db: db} }
func NewAuthLogRepository(db *gorm.DB) domain.AuthLogRepository     { return &authLogRepo{db: db} }
func NewPushTokenRepository(db *gorm.DB) domain.PushTokenRepository { return &pushTokenRepo{db: db} }

// Models lists the tables owned by this adapter, in migration order.
func Models() []interface{} {
	return []interface{}{&domain.User{}, &domain.AuthLog{}, &domain.PushToken{}}
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) Upsert(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "email", "photo_url", "updated_at"}),
		}).
		Create(user).Error
}

func (r *userRepo) Update(ctx context.Context, uid string, fields domain.UserFields) error {
	cols := fields.Columns()
	cols["updated_at"] = time.Now()
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("user_id = ?", uid).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, uid string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).Where("user_id = ?", uid).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Delete(ctx context.Context, uid string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", uid).Delete(&domain.User{}).Error
}

func (r *authLogRepo) Append(ctx context.Context, entry *domain.AuthLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *pushTokenRepo) Upsert(ctx context.Context, token *domain.PushToken) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "device_id", "updated_at"}),
		}).
		Create(token).Error
}

func (r *pushTokenRepo) Delete(ctx context.Context, uid string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", uid).Delete(&domain.PushToken{}).Error
}
