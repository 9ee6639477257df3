package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultSendEndpoint is the FCM HTTP v1 send endpoint; %s is the project id.
const DefaultSendEndpoint = "https://fcm.googleapis.com/v1/projects/%s/messages:send"

// SendEndpoint resolves the per-project send URL. A template without %s is
// used verbatim.
func SendEndpoint(template, projectID string) string {
	if template == "" {
		template = DefaultSendEndpoint
	}
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, projectID)
	}
	return template
}

// SendError reports a push the provider refused.
type SendError struct {
	StatusCode int
	// Code is the FCM error code (UNREGISTERED, INVALID_ARGUMENT, ...) when present.
	Code    string
	Details json.RawMessage
}

func (e *SendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("fcm: received status %d (%s)", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("fcm: received status %d", e.StatusCode)
}

// TokenFatal reports whether the error means the device token is dead.
func (e *SendError) TokenFatal() bool {
	switch e.Code {
	case "UNREGISTERED", "SENDER_ID_MISMATCH", "INVALID_ARGUMENT":
		return true
	default:
		return false
	}
}

// FCMProvider sends data-only messages through the FCM HTTP v1 API.
type FCMProvider struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func NewFCMProvider(endpoint string, timeout time.Duration, logger *slog.Logger) *FCMProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FCMProvider{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (p *FCMProvider) Name() string {
	return "fcm"
}

type v1Request struct {
	Message v1Message `json:"message"`
}

type v1Message struct {
	Token   string            `json:"token"`
	Data    map[string]string `json:"data"`
	Android v1Android         `json:"android"`
}

type v1Android struct {
	Priority string `json:"priority"`
}

type v1ErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// Send delivers data to the device addressed by token and returns the raw
// provider result.
func (p *FCMProvider) Send(ctx context.Context, bearer, token string, data map[string]string) (json.RawMessage, error) {
	if token == "" {
		return nil, fmt.Errorf("fcm: no token supplied")
	}

	body, err := json.Marshal(v1Request{
		Message: v1Message{
			Token:   token,
			Data:    data,
			Android: v1Android{Priority: "high"},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 300 {
		sendErr := &SendError{
			StatusCode: resp.StatusCode,
			Details:    asJSON(raw),
		}
		var eb v1ErrorBody
		if json.Unmarshal(raw, &eb) == nil {
			sendErr.Code = eb.Error.Status
			for _, d := range eb.Error.Details {
				if d.ErrorCode != "" {
					sendErr.Code = d.ErrorCode
					break
				}
			}
		}
		p.logger.Warn("fcm rejected message",
			slog.Int("status", resp.StatusCode),
			slog.String("code", sendErr.Code))
		return nil, sendErr
	}

	return asJSON(raw), nil
}

// asJSON keeps valid JSON verbatim and quotes anything else.
func asJSON(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(string(trimmed))
	return quoted
}
