package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/lifeleveling/lifeleveling/internal/domain"
	pkglog "github.com/lifeleveling/lifeleveling/pkg/log"
)

const tagUsers = "UserRepository"

var ErrNothingToUpdate = errors.New("no editable fields supplied")

// Session exposes the signed-in identity.
type Session interface {
	CurrentUser() *domain.Identity
}

type UserService interface {
	// Create stores a record keyed by the signed-in identity. It returns
	// domain.ErrNotAuthenticated when nobody is signed in.
	Create(ctx context.Context, fields domain.UserFields) (*domain.User, error)
	Edit(ctx context.Context, fields domain.UserFields) error
	Fetch(ctx context.Context, uid string) (*domain.User, error)
	// Ensure upserts the record of a freshly signed-in identity.
	Ensure(ctx context.Context, user *domain.Identity) error
	// SaveToken stores a push registration token for the signed-in user. With
	// nobody signed in it logs a warning and returns nil.
	SaveToken(ctx context.Context, token string) error
}

type userService struct {
	logger   pkglog.Logger
	session  Session
	users    domain.UserRepository
	tokens   domain.PushTokenRepository
	deviceID string
	now      func() time.Time
}

func NewUserService(logger pkglog.Logger, session Session, users domain.UserRepository, tokens domain.PushTokenRepository, deviceID string) UserService {
	return &userService{logger: logger, session: session, users: users, tokens: tokens, deviceID: deviceID, now: time.Now}
}

func (s *userService) Create(ctx context.Context, fields domain.UserFields) (*domain.User, error) {
	cur := s.session.CurrentUser()
	if cur == nil {
		s.logger.Warn(tagUsers, "create user without authenticated identity", domain.ErrNotAuthenticated)
		return nil, domain.ErrNotAuthenticated
	}
	user := domain.NewUser(cur.UID, fields, s.now())
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Error(tagUsers, "create user failed", err, pkglog.Fields{"uid": cur.UID})
		return nil, err
	}
	s.logger.Info(tagUsers, "user created", pkglog.Fields{"uid": user.UserID})
	return user, nil
}

func (s *userService) Edit(ctx context.Context, fields domain.UserFields) error {
	cur := s.session.CurrentUser()
	if cur == nil {
		return domain.ErrNotAuthenticated
	}
	editable, ok := fields.Editable()
	if !ok {
		return ErrNothingToUpdate
	}
	if err := s.users.Update(ctx, cur.UID, editable); err != nil {
		s.logger.Error(tagUsers, "edit user failed", err, pkglog.Fields{"uid": cur.UID})
		return err
	}
	return nil
}

func (s *userService) Fetch(ctx context.Context, uid string) (*domain.User, error) {
	return s.users.FindByID(ctx, uid)
}

func (s *userService) Ensure(ctx context.Context, user *domain.Identity) error {
	now := s.now()
	return s.users.Upsert(ctx, &domain.User{
		UserID:      user.UID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		PhotoURL:    user.PhotoURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (s *userService) SaveToken(ctx context.Context, token string) error {
	cur := s.session.CurrentUser()
	if cur == nil {
		s.logger.Warn(tagUsers, "push token not saved: no authenticated user", nil)
		return nil
	}
	if err := s.tokens.Upsert(ctx, &domain.PushToken{UserID: cur.UID, Token: token, DeviceID: s.deviceID, UpdatedAt: s.now()}); err != nil {
		s.logger.Error(tagUsers, "save push token failed", err, pkglog.Fields{"uid": cur.UID})
		return err
	}
	s.logger.Debug(tagUsers, "push token saved", pkglog.Fields{"uid": cur.UID})
	return nil
}
