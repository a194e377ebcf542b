package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
)

const requestTimeout = 3 * time.Second

// TokenRequester registers this device with the push gateway and returns
// the registration token it issues.
type TokenRequester struct {
	conn     *nats.Conn
	subject  string
	deviceID string
}

func NewTokenRequester(conn *nats.Conn, subject, deviceID string) *TokenRequester {
	return &TokenRequester{conn: conn, subject: subject, deviceID: deviceID}
}

type registerResponse struct {
	OK    bool   `json:"ok"`
	Token string `json:"token"`
	Error string `json:"error"`
}

func (c *TokenRequester) RequestToken(ctx context.Context) (string, error) {
	payload := map[string]interface{}{"device_id": c.deviceID}
	var resp registerResponse
	if err := request(ctx, c.conn, c.subject, payload, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		if resp.Error != "" {
			return "", errors.New(resp.Error)
		}
		return "", fmt.Errorf("request to %s failed", c.subject)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("empty token from %s", c.subject)
	}
	return resp.Token, nil
}

func request(ctx context.Context, conn *nats.Conn, subject string, payload, out interface{}) error {
	if conn == nil {
		return errors.New("nats connection is nil")
	}
	data, _ := json.Marshal(payload)
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	msg, err := conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return err
	}
	if msg == nil {
		return fmt.Errorf("empty response from %s", subject)
	}
	return json.Unmarshal(msg.Data, out)
}
