package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeleveling/lifeleveling/internal/domain"
	pkglog "github.com/lifeleveling/lifeleveling/pkg/log"
)

type handledLog struct {
	mu       sync.Mutex
	ids      []string
	deferred []bool
}

func (h *handledLog) handler(ctx context.Context, msg RemoteMessage) error {
	_, hasDeadline := ctx.Deadline()
	h.mu.Lock()
	h.ids = append(h.ids, msg.MessageID)
	h.deferred = append(h.deferred, hasDeadline)
	h.mu.Unlock()
	return nil
}

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) RequestToken(context.Context) (string, error) { return s.token, s.err }

func newTestPush(session Session, tokens *memTokens, renderer *recordingRenderer, h *handledLog, src TokenSource) *PushReceiver {
	users := NewUserService(pkglog.Nop(), session, newMemUsers(), tokens, "dev")
	return NewPushReceiver(pkglog.Nop(), users, renderer, src, PushReceiverOptions{
		AppName:          "Life Leveling",
		LongRunningTasks: []string{"sync_quests"},
		Handler:          h.handler,
	})
}

func TestPushDataRouting(t *testing.T) {
	h := &handledLog{}
	r := newTestPush(staticSession{}, newMemTokens(), &recordingRenderer{}, h, nil)

	r.OnMessageReceived(context.Background(), RemoteMessage{MessageID: "short", Data: map[string]string{"k": "v"}})
	r.OnMessageReceived(context.Background(), RemoteMessage{MessageID: "flag", Data: map[string]string{DataLongRunning: "true"}})
	r.OnMessageReceived(context.Background(), RemoteMessage{MessageID: "task", Data: map[string]string{DataTask: "sync_quests"}})
	r.OnMessageReceived(context.Background(), RemoteMessage{MessageID: "empty"})
	r.Close()

	require.Len(t, h.ids, 3)
	got := map[string]bool{}
	for i, id := range h.ids {
		got[id] = h.deferred[i]
	}
	assert.Equal(t, map[string]bool{"short": false, "flag": true, "task": true}, got)
}

func TestPushNotificationRendered(t *testing.T) {
	renderer := &recordingRenderer{}
	r := newTestPush(staticSession{}, newMemTokens(), renderer, &handledLog{}, nil)
	defer r.Close()

	r.OnMessageReceived(context.Background(), RemoteMessage{MessageID: "m1", Notification: &RemoteNotification{Body: "Quest complete"}})
	r.OnMessageReceived(context.Background(), RemoteMessage{MessageID: "m2", Notification: &RemoteNotification{Title: "Level up", Body: "You reached 5"}})

	seen := renderer.Seen()
	require.Len(t, seen, 2)
	assert.Equal(t, "Life Leveling", seen[0].Title)
	assert.Equal(t, "Quest complete", seen[0].Body)
	assert.Equal(t, domain.ChannelMessaging, seen[0].Channel)
	assert.Equal(t, domain.ActionOpenMain, seen[0].Action)
	assert.Equal(t, "Level up", seen[1].Title)
	assert.NotEqual(t, seen[0].ID, seen[1].ID)
}

func TestPushTokenWithoutUserIsDropped(t *testing.T) {
	tokens := newMemTokens()
	r := newTestPush(staticSession{}, tokens, &recordingRenderer{}, &handledLog{}, nil)
	defer r.Close()

	assert.NotPanics(t, func() { r.OnNewToken(context.Background(), "tok-1") })
	assert.Zero(t, tokens.Len())
}

func TestPushTokenPersistedForUser(t *testing.T) {
	tokens := newMemTokens()
	r := newTestPush(staticSession{user: &domain.Identity{UID: "u1"}}, tokens, &recordingRenderer{}, &handledLog{}, staticTokens{token: "tok-2"})
	defer r.Close()

	require.NoError(t, r.SyncToken(context.Background()))
	assert.Equal(t, "tok-2", tokens.tokens["u1"].Token)
}

func TestPushSyncTokenError(t *testing.T) {
	boom := errors.New("no route")
	r := newTestPush(staticSession{user: &domain.Identity{UID: "u1"}}, newMemTokens(), &recordingRenderer{}, &handledLog{}, staticTokens{err: boom})
	defer r.Close()

	assert.ErrorIs(t, r.SyncToken(context.Background()), boom)
}
