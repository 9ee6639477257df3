package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/gate-control/pkg/logger"
)

func TestSendEndpoint(t *testing.T) {
	assert.Equal(t, "https://fcm.googleapis.com/v1/projects/gate/messages:send", SendEndpoint("", "gate"))
	assert.Equal(t, "http://localhost:9/send", SendEndpoint("http://localhost:9/send", "gate"))
}

func TestFCMProvider_Send(t *testing.T) {
	var got v1Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ya29.token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"name":"projects/gate/messages/0:1"}`))
	}))
	defer srv.Close()

	p := NewFCMProvider(srv.URL, time.Second, logger.Discard())
	data := map[string]string{"commandId": "c-1", "command": "open_gate"}

	result, err := p.Send(context.Background(), "ya29.token", "device-token", data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"projects/gate/messages/0:1"}`, string(result))
	assert.Equal(t, "device-token", got.Message.Token)
	assert.Equal(t, data, got.Message.Data)
	assert.Equal(t, "high", got.Message.Android.Priority)
}

func TestFCMProvider_SendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND",
			"details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"UNREGISTERED"}]}}`))
	}))
	defer srv.Close()

	_, err := NewFCMProvider(srv.URL, time.Second, logger.Discard()).
		Send(context.Background(), "b", "dead-token", map[string]string{})

	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr))
	assert.Equal(t, http.StatusNotFound, sendErr.StatusCode)
	assert.Equal(t, "UNREGISTERED", sendErr.Code)
	assert.True(t, sendErr.TokenFatal())
	assert.Contains(t, string(sendErr.Details), "Requested entity was not found.")
}

func TestFCMProvider_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	_, err := NewFCMProvider(srv.URL, time.Second, logger.Discard()).
		Send(context.Background(), "b", "t", nil)

	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.False(t, sendErr.TokenFatal())
	assert.Equal(t, `"upstream unavailable"`, string(sendErr.Details))
}

func TestFCMProvider_EmptyToken(t *testing.T) {
	_, err := NewFCMProvider("http://127.0.0.1:1", time.Second, logger.Discard()).
		Send(context.Background(), "b", "", nil)
	assert.Error(t, err)
}
