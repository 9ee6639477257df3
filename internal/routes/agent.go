package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CyberwizD/gate-control/internal/agent"
	"github.com/CyberwizD/gate-control/internal/models"
	"github.com/CyberwizD/gate-control/internal/repository"
	"github.com/CyberwizD/gate-control/pkg/metrics"
)

// Error codes of the agent control surface.
const (
	CodeInvalidArgs      = "INVALID_ARGS"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeSMSError         = "SMS_ERROR"
	CodeBroadcastError   = "BROADCAST_ERROR"
	CodeStartError       = "START_ERROR"
)

// PushHandler consumes a data-only push.
type PushHandler interface {
	HandlePush(ctx context.Context, data map[string]string) error
}

// SMSDispatcher sends an SMS directly.
type SMSDispatcher interface {
	Dispatch(ctx context.Context, to, body string) error
}

// SMSMailbox queues SMS messages for the dispatch worker.
type SMSMailbox interface {
	Start() error
	Enqueue(msg models.SMSMessage) error
}

// ResultSink accepts carrier results for a result channel.
type ResultSink interface {
	Deliver(channel string, code models.ResultCode) bool
}

// AgentDeps groups the collaborators of the agent router.
type AgentDeps struct {
	Push       PushHandler
	Dispatcher SMSDispatcher
	Mailbox    SMSMailbox
	Results    ResultSink
	Metrics    *metrics.Metrics
	Started    time.Time
}

type smsRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

type resultRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Channel     string `json:"channel"`
	Result      string `json:"result"`
}

// NewAgentRouter serves the push-receipt endpoint and the SMS control surface.
func NewAgentRouter(deps AgentDeps, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(logger), Recovery(logger))
	registerOps(r, "gate agent", deps.Metrics, deps.Started)

	h := &agentHandler{deps: deps, logger: logger}
	r.POST("/push", h.push)
	r.POST("/sms/send", h.sendSMS)
	r.POST("/sms/broadcast", h.broadcastSMS)
	r.POST("/sms/results", h.deliverResult)
	r.POST("/service/start", h.startService)
	return r
}

type agentHandler struct {
	deps   AgentDeps
	logger *slog.Logger
}

func success(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"success": msg})
}

func failure(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": msg}})
}

func (h *agentHandler) push(c *gin.Context) {
	var data map[string]string
	if err := c.ShouldBindJSON(&data); err != nil {
		failure(c, http.StatusBadRequest, CodeInvalidArgs, "push body must be a JSON object of strings")
		return
	}
	if err := h.deps.Push.HandlePush(c.Request.Context(), data); err != nil {
		switch {
		case errors.Is(err, repository.ErrCommandNotFound):
			failure(c, http.StatusNotFound, CodeInvalidArgs, err.Error())
		case errors.Is(err, agent.ErrInvalidArgs), errors.Is(err, agent.ErrNoGateNumber):
			failure(c, http.StatusBadRequest, CodeInvalidArgs, err.Error())
		case errors.Is(err, agent.ErrMailboxFull), errors.Is(err, agent.ErrMailboxStopped):
			failure(c, http.StatusServiceUnavailable, CodeBroadcastError, err.Error())
		default:
			failure(c, http.StatusInternalServerError, CodeSMSError, err.Error())
		}
		return
	}
	success(c, "Push handled")
}

func bindSMS(c *gin.Context) (smsRequest, bool) {
	var req smsRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.PhoneNumber) == "" || req.Message == "" {
		failure(c, http.StatusBadRequest, CodeInvalidArgs, "Phone number and message are required")
		return req, false
	}
	return req, true
}

func (h *agentHandler) sendSMS(c *gin.Context) {
	req, ok := bindSMS(c)
	if !ok {
		return
	}
	err := h.deps.Dispatcher.Dispatch(c.Request.Context(), req.PhoneNumber, req.Message)
	switch {
	case err == nil:
		success(c, "SMS sent successfully")
	case errors.Is(err, agent.ErrInvalidArgs):
		failure(c, http.StatusBadRequest, CodeInvalidArgs, err.Error())
	case agent.IsPermissionDenied(err):
		failure(c, http.StatusForbidden, CodePermissionDenied, "SMS permission not granted")
	default:
		failure(c, http.StatusInternalServerError, CodeSMSError, "Failed to send SMS: "+err.Error())
	}
}

func (h *agentHandler) broadcastSMS(c *gin.Context) {
	req, ok := bindSMS(c)
	if !ok {
		return
	}
	if err := h.deps.Mailbox.Enqueue(models.SMSMessage{To: req.PhoneNumber, Body: req.Message}); err != nil {
		failure(c, http.StatusServiceUnavailable, CodeBroadcastError, "Failed to queue SMS: "+err.Error())
		return
	}
	success(c, "SMS queued")
}

func (h *agentHandler) startService(c *gin.Context) {
	if err := h.deps.Mailbox.Start(); err != nil {
		failure(c, http.StatusInternalServerError, CodeStartError, "Failed to start service: "+err.Error())
		return
	}
	success(c, "Service started")
}

func (h *agentHandler) deliverResult(c *gin.Context) {
	var req resultRequest
	err := c.ShouldBindJSON(&req)
	phone := strings.TrimSpace(req.PhoneNumber)
	if err != nil || req.Result == "" || (req.Channel == "" && phone == "") {
		failure(c, http.StatusBadRequest, CodeInvalidArgs, "result and channel or phone number are required")
		return
	}
	channel := req.Channel
	if channel == "" {
		channel = agent.ResultChannel(phone)
	}
	code := models.ParseResultCode(req.Result)
	if !h.deps.Results.Deliver(channel, code) {
		h.logger.Debug("no listener for carrier result", slog.String("channel", channel), slog.String("result", code.String()))
		success(c, "No listener registered")
		return
	}
	success(c, "Result delivered")
}
