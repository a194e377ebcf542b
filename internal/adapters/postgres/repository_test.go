package repo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/lifeleveling/lifeleveling/internal/domain"
)

// These tests need a disposable database in LL_TEST_POSTGRES_DSN.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("LL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LL_TEST_POSTGRES_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(Models()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestUserUpsertKeepsCreatedAt(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db)
	ctx := context.Background()
	uid := "uid-" + uuid.NewString()
	created := time.Now().Add(-time.Hour).UTC().Truncate(time.Microsecond)

	require.NoError(t, users.Upsert(ctx, &domain.User{UserID: uid, DisplayName: "first", CreatedAt: created, UpdatedAt: created}))
	require.NoError(t, users.Upsert(ctx, &domain.User{UserID: uid, DisplayName: "second", CreatedAt: time.Now(), UpdatedAt: time.Now()}))

	got, err := users.FindByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "second", got.DisplayName)
	assert.True(t, got.CreatedAt.Equal(created), "created_at changed to %v", got.CreatedAt)
}

func TestUserUpdateAndDelete(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db)
	ctx := context.Background()
	uid := "uid-" + uuid.NewString()

	assert.ErrorIs(t, users.Update(ctx, uid, domain.UserFields{domain.FieldDisplayName: "x"}), domain.ErrNotFound)

	require.NoError(t, users.Create(ctx, domain.NewUser(uid, domain.UserFields{domain.FieldEmail: "a@example.com"}, time.Now())))
	require.NoError(t, users.Update(ctx, uid, domain.UserFields{domain.FieldDisplayName: "Ada"}))
	got, err := users.FindByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.DisplayName)
	assert.Equal(t, "a@example.com", got.Email)

	require.NoError(t, users.Delete(ctx, uid))
	_, err = users.FindByID(ctx, uid)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuthLogAndPushToken(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	uid := "uid-" + uuid.NewString()

	entry := &domain.AuthLog{TS: time.Now(), Source: "email_sign_in", Provider: domain.ProviderPassword, UID: uid}
	require.NoError(t, NewAuthLogRepository(db).Append(ctx, entry))
	assert.NotEmpty(t, entry.ID)

	tokens := NewPushTokenRepository(db)
	require.NoError(t, tokens.Upsert(ctx, &domain.PushToken{UserID: uid, Token: "t1", DeviceID: "d"}))
	require.NoError(t, tokens.Upsert(ctx, &domain.PushToken{UserID: uid, Token: "t2", DeviceID: "d"}))
	var stored domain.PushToken
	require.NoError(t, db.Where("user_id = ?", uid).First(&stored).Error)
	assert.Equal(t, "t2", stored.Token)
	require.NoError(t, tokens.Delete(ctx, uid))
}
