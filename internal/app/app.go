package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	nats "github.com/nats-io/nats.go"

	"github.com/lifeleveling/lifeleveling/config"
	"github.com/lifeleveling/lifeleveling/internal/adapters/google"
	httpadapter "github.com/lifeleveling/lifeleveling/internal/adapters/http"
	apiv1 "github.com/lifeleveling/lifeleveling/internal/adapters/http/api/v1"
	handlers "github.com/lifeleveling/lifeleveling/internal/adapters/http/api/v1/handlers"
	apimw "github.com/lifeleveling/lifeleveling/internal/adapters/http/middleware"
	"github.com/lifeleveling/lifeleveling/internal/adapters/identity"
	natsadapter "github.com/lifeleveling/lifeleveling/internal/adapters/nats"
	"github.com/lifeleveling/lifeleveling/internal/adapters/notify"
	"github.com/lifeleveling/lifeleveling/internal/alarm"
	"github.com/lifeleveling/lifeleveling/internal/domain"
	"github.com/lifeleveling/lifeleveling/internal/usecase"
	pkglog "github.com/lifeleveling/lifeleveling/pkg/log"
)

type App struct {
	cfg      *config.Config
	logger   pkglog.Logger
	stores   *stores
	natsConn *nats.Conn
	echo     *echo.Echo
	auth     usecase.AuthService
	state    *usecase.AuthState
	push     *usecase.PushReceiver
	alarms   *alarm.Manager

	removeTokenSync func()
	// tracks token syncs started by sign-ins; Close waits on it before
	// tearing down the stores they write to.
	syncWG sync.WaitGroup
}

func New(ctx context.Context) (*App, error) {
	cfg := config.MustLoad()
	logger := pkglog.New(cfg.AppEnv, cfg.SentryDSN)

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	idp := identity.NewHTTPClient(cfg.IdentityBaseURL, cfg.SecureTokenBaseURL, cfg.FirebaseAPIKey, cfg.IdentityTimeout)
	var googleClient google.Client
	if cfg.GoogleClientID != "" {
		googleClient = google.NewClient(google.Options{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
	}

	auth := usecase.NewAuthService(logger, idp, googleClient, st.users, st.tokens)
	users := usecase.NewUserService(logger, auth, st.users, st.tokens, cfg.DeviceID)
	state := usecase.NewAuthState(logger, auth, users, st.audit, usecase.AuthStateOptions{
		Workers: cfg.BookkeepingWorkers,
		Timeout: cfg.BookkeepingTimeout,
	})

	renderer := notify.Fanout{notify.NewLogRenderer(logger)}
	if cfg.SlackWebhookURL != "" {
		renderer = append(renderer, notify.NewSlackRenderer(cfg.SlackWebhookURL, cfg.AppName))
	}

	nc := connectNATS(ctx, cfg, logger)
	var tokenSource usecase.TokenSource
	if nc != nil {
		tokenSource = natsadapter.NewTokenRequester(nc, cfg.PushRegisterSubject, cfg.DeviceID)
	}
	push := usecase.NewPushReceiver(logger, users, renderer, tokenSource, usecase.PushReceiverOptions{
		AppName:          cfg.AppName,
		LongRunningTasks: cfg.LongRunningTasks,
		JobWorkers:       cfg.PushJobWorkers,
		JobTimeout:       cfg.PushJobTimeout,
	})
	if nc != nil {
		ph := natsadapter.NewPushHandler(push, logger, cfg.ReceiverDeadline)
		msgSubject := fmt.Sprintf(cfg.PushMessageSubject, cfg.DeviceID)
		tokenSubject := fmt.Sprintf(cfg.PushTokenSubject, cfg.DeviceID)
		if _, err := ph.Subscribe(nc, msgSubject, tokenSubject, cfg.AppName); err != nil {
			logger.Error(tagApp, "push subscribe failed", err)
		}
	}

	alarms := alarm.NewManager(logger, alarm.Options{
		Deadline:      cfg.ReceiverDeadline,
		SweepInterval: cfg.AlarmSweepInterval,
	})
	scheduler := usecase.NewReminderScheduler(logger, alarms)
	receiver := usecase.NewReminderReceiver(logger, renderer, scheduler)
	alarms.RegisterReceiver(usecase.ActionReminder, receiver.OnReceive)

	a := &App{
		cfg:      cfg,
		logger:   logger,
		stores:   st,
		natsConn: nc,
		auth:     auth,
		state:    state,
		push:     push,
		alarms:   alarms,
	}
	a.removeTokenSync = auth.AddStateListener(a.syncTokenOnSignIn)

	apiKey := apimw.NewAPIKeyMiddleware(cfg.APIKeyHash)
	router := httpadapter.NewRouter(cfg, logger, apiv1.NewRouter(
		handlers.NewAuthHandler(state, auth),
		handlers.NewUserHandler(users),
		handlers.NewReminderHandler(scheduler),
		handlers.NewPushHandler(push),
		apiKey.Handler,
	))
	e := echo.New()
	router.Setup(e)
	a.echo = e

	return a, nil
}

// syncTokenOnSignIn fetches and stores the push token whenever a user signs
// in. It runs on the listener goroutine, so the request is made async.
func (a *App) syncTokenOnSignIn(user *domain.Identity) {
	if user == nil {
		return
	}
	a.syncWG.Add(1)
	go func() {
		defer a.syncWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ReceiverDeadline)
		defer cancel()
		_ = a.push.SyncToken(ctx)
	}()
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.echo.Shutdown(shutdownCtx)
	}()
	go watchSession(ctx, a.cfg.SessionCheckInterval, a.auth.Reload, a.logger)
	go func() {
		addr := fmt.Sprintf("%s:%s", a.cfg.HTTPHost, a.cfg.HTTPPort)
		a.logger.Info(tagApp, "control api listening", pkglog.Fields{"addr": addr})
		errCh <- a.echo.Start(addr)
	}()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) Close() {
	if a.removeTokenSync != nil {
		a.removeTokenSync()
	}
	a.syncWG.Wait()
	a.state.Close()
	a.push.Close()
	a.alarms.Stop()
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
	}
	a.stores.close()
	pkglog.Flush(a.logger, 2*time.Second)
}

// watchSession re-validates the session every interval until ctx is done.
func watchSession(ctx context.Context, interval time.Duration, reload func(context.Context) error, logger pkglog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rctx, cancel := context.WithTimeout(ctx, interval)
			if err := reload(rctx); err != nil {
				logger.Warn(tagApp, "session check failed", err)
			}
			cancel()
		}
	}
}
