package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	nats "github.com/nats-io/nats.go"

	"github.com/lifeleveling/lifeleveling/internal/usecase"
	pkglog "github.com/lifeleveling/lifeleveling/pkg/log"
)

const tagPush = "NATSPush"

// PushSink receives decoded push deliveries.
type PushSink interface {
	OnMessageReceived(ctx context.Context, msg usecase.RemoteMessage)
	OnNewToken(ctx context.Context, token string)
}

// PushHandler feeds messages and token rotations published for this device
// into a PushSink.
type PushHandler struct {
	sink      PushSink
	logger    pkglog.Logger
	deadline  time.Duration
	respondFn func(msg *nats.Msg, resp ackResponse)
}

type tokenEvent struct {
	Token string `json:"token"`
}

type ackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NewPushHandler builds a handler whose callbacks run with deadline.
func NewPushHandler(sink PushSink, logger pkglog.Logger, deadline time.Duration) *PushHandler {
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	return &PushHandler{sink: sink, logger: logger, deadline: deadline, respondFn: respond}
}

// Subscribe listens on the message and token subjects. All subscriptions
// share queue so that only one process per device consumes a delivery.
func (h *PushHandler) Subscribe(conn *nats.Conn, messageSubject, tokenSubject, queue string) ([]*nats.Subscription, error) {
	if conn == nil {
		return nil, errors.New("nats connection is nil")
	}
	msgSub, err := conn.QueueSubscribe(messageSubject, queue, h.handleMessage)
	if err != nil {
		return nil, err
	}
	tokSub, err := conn.QueueSubscribe(tokenSubject, queue, h.handleToken)
	if err != nil {
		_ = msgSub.Unsubscribe()
		return nil, err
	}
	return []*nats.Subscription{msgSub, tokSub}, nil
}

func (h *PushHandler) handleMessage(msg *nats.Msg) {
	var rm usecase.RemoteMessage
	if err := json.Unmarshal(msg.Data, &rm); err != nil {
		h.logger.Warn(tagPush, "undecodable push message", err, pkglog.Fields{"subject": msg.Subject})
		h.ack(msg, ackResponse{OK: false, Error: "invalid_payload"})
		return
	}
	if rm.From == "" {
		rm.From = msg.Subject
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.deadline)
	defer cancel()
	h.sink.OnMessageReceived(ctx, rm)
	h.ack(msg, ackResponse{OK: true})
}

func (h *PushHandler) handleToken(msg *nats.Msg) {
	var ev tokenEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil || ev.Token == "" {
		h.logger.Warn(tagPush, "undecodable token event", err, pkglog.Fields{"subject": msg.Subject})
		h.ack(msg, ackResponse{OK: false, Error: "invalid_payload"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.deadline)
	defer cancel()
	h.sink.OnNewToken(ctx, ev.Token)
	h.ack(msg, ackResponse{OK: true})
}

// ack replies only to request-style deliveries.
func (h *PushHandler) ack(msg *nats.Msg, resp ackResponse) {
	if msg.Reply == "" {
		return
	}
	h.respondFn(msg, resp)
}

func respond(msg *nats.Msg, resp ackResponse) {
	data, _ := json.Marshal(resp)
	_ = msg.Respond(data)
}
