package usecase

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/workerpool"

	"github.com/lifeleveling/lifeleveling/internal/domain"
	pkglog "github.com/lifeleveling/lifeleveling/pkg/log"
)

const tagPush = "PushReceiver"

// Data keys that classify a push payload.
const (
	DataLongRunning = "long_running"
	DataTask        = "task"
)

type RemoteMessage struct {
	MessageID    string              `json:"message_id"`
	From         string              `json:"from"`
	Data         map[string]string   `json:"data,omitempty"`
	Notification *RemoteNotification `json:"notification,omitempty"`
}

type RemoteNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// DataHandler processes the data section of a push message.
type DataHandler func(ctx context.Context, msg RemoteMessage) error

// TokenSource asks the push platform for this device's registration token.
type TokenSource interface {
	RequestToken(ctx context.Context) (string, error)
}

type PushReceiverOptions struct {
	AppName string
	// LongRunningTasks lists data "task" values that are always deferred.
	LongRunningTasks []string
	JobWorkers       int
	JobTimeout       time.Duration
	// Handler processes data payloads; nil only logs them.
	Handler DataHandler
}

// PushReceiver is invoked by the push platform for every delivered message
// and for every new registration token.
type PushReceiver struct {
	logger   pkglog.Logger
	users    UserService
	renderer domain.NotificationRenderer
	tokens   TokenSource
	opts     PushReceiverOptions
	long     map[string]bool
	jobs     *workerpool.WorkerPool
	nextID   atomic.Int32

	mu     sync.Mutex
	closed bool
}

func NewPushReceiver(logger pkglog.Logger, users UserService, renderer domain.NotificationRenderer, tokens TokenSource, opts PushReceiverOptions) *PushReceiver {
	if opts.JobWorkers <= 0 {
		opts.JobWorkers = 1
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 10 * time.Minute
	}
	if opts.AppName == "" {
		opts.AppName = "Life Leveling"
	}
	long := make(map[string]bool, len(opts.LongRunningTasks))
	for _, t := range opts.LongRunningTasks {
		long[t] = true
	}
	return &PushReceiver{
		logger:   logger,
		users:    users,
		renderer: renderer,
		tokens:   tokens,
		opts:     opts,
		long:     long,
		jobs:     workerpool.New(opts.JobWorkers),
	}
}

func (r *PushReceiver) OnMessageReceived(ctx context.Context, msg RemoteMessage) {
	r.logger.Debug(tagPush, "message received", pkglog.Fields{"from": msg.From, "message_id": msg.MessageID})

	if len(msg.Data) > 0 {
		if r.needsDeferral(msg.Data) {
			r.scheduleJob(msg)
		} else {
			r.handleNow(ctx, msg)
		}
	}

	if msg.Notification != nil {
		title := msg.Notification.Title
		if title == "" {
			title = r.opts.AppName
		}
		n := domain.Notification{
			ID:      r.nextID.Add(1),
			Channel: domain.ChannelMessaging,
			Title:   title,
			Body:    msg.Notification.Body,
			Action:  domain.ActionOpenMain,
			Data:    msg.Data,
		}
		if err := r.renderer.Render(ctx, n); err != nil {
			r.logger.Error(tagPush, "render notification failed", err, pkglog.Fields{"message_id": msg.MessageID})
		}
	}
}

// OnNewToken persists token for the signed-in user. Without one the token
// is dropped until the next sign-in.
func (r *PushReceiver) OnNewToken(ctx context.Context, token string) {
	r.logger.Debug(tagPush, "refreshed token", pkglog.Fields{"token_len": len(token)})
	if err := r.users.SaveToken(ctx, token); err != nil {
		r.logger.Error(tagPush, "persist token failed", err)
	}
}

// SyncToken fetches the current registration token and persists it.
func (r *PushReceiver) SyncToken(ctx context.Context) error {
	if r.tokens == nil {
		return nil
	}
	token, err := r.tokens.RequestToken(ctx)
	if err != nil {
		r.logger.Warn(tagPush, "fetch registration token failed", err)
		return err
	}
	r.OnNewToken(ctx, token)
	return nil
}

// Close waits for deferred jobs already queued.
func (r *PushReceiver) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.jobs.StopWait()
}

func (r *PushReceiver) needsDeferral(data map[string]string) bool {
	if v, ok := data[DataLongRunning]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return r.long[data[DataTask]]
}

func (r *PushReceiver) scheduleJob(msg RemoteMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.logger.Warn(tagPush, "job dropped: receiver closed", nil, pkglog.Fields{"message_id": msg.MessageID})
		return
	}
	r.jobs.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.JobTimeout)
		defer cancel()
		if err := r.handle(ctx, msg); err != nil {
			r.logger.Error(tagPush, "deferred job failed", err, pkglog.Fields{"message_id": msg.MessageID, "task": msg.Data[DataTask]})
			return
		}
		r.logger.Debug(tagPush, "deferred job done", pkglog.Fields{"message_id": msg.MessageID})
	})
	r.logger.Debug(tagPush, "job scheduled", pkglog.Fields{"message_id": msg.MessageID, "queued": r.jobs.WaitingQueueSize()})
}

func (r *PushReceiver) handleNow(ctx context.Context, msg RemoteMessage) {
	if err := r.handle(ctx, msg); err != nil {
		r.logger.Error(tagPush, "message handling failed", err, pkglog.Fields{"message_id": msg.MessageID})
		return
	}
	r.logger.Debug(tagPush, "short lived task is done", pkglog.Fields{"message_id": msg.MessageID})
}

func (r *PushReceiver) handle(ctx context.Context, msg RemoteMessage) error {
	if r.opts.Handler == nil {
		r.logger.Info(tagPush, "message data payload", pkglog.Fields{"message_id": msg.MessageID, "data": msg.Data})
		return nil
	}
	return r.opts.Handler(ctx, msg)
}
