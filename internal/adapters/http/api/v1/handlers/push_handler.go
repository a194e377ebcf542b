package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lifeleveling/lifeleveling/internal/usecase"
	res "github.com/lifeleveling/lifeleveling/pkg/http"
)

// PushReceiver consumes push deliveries posted by a local bridge.
type PushReceiver interface {
	OnMessageReceived(ctx context.Context, msg usecase.RemoteMessage)
	OnNewToken(ctx context.Context, token string)
}

type PushHandler struct {
	receiver PushReceiver
}

func NewPushHandler(r PushReceiver) *PushHandler { return &PushHandler{receiver: r} }

type tokenRequest struct {
	Token string `json:"token"`
}

func (h *PushHandler) Deliver(c echo.Context) error {
	msg := new(usecase.RemoteMessage)
	if err := c.Bind(msg); err != nil {
		return badRequest(c)
	}
	h.receiver.OnMessageReceived(c.Request().Context(), *msg)
	return c.NoContent(http.StatusAccepted)
}

func (h *PushHandler) NewToken(c echo.Context) error {
	req := new(tokenRequest)
	if err := c.Bind(req); err != nil || req.Token == "" {
		return badRequest(c)
	}
	h.receiver.OnNewToken(c.Request().Context(), req.Token)
	return res.JSON(c, http.StatusAccepted, map[string]string{"status": "accepted"})
}
