// Package lark pushes pending-approval events to role chats through the
// Lark bot messaging API.
package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/crestline-erp/approvalflow/internal/application/port"
)

// Config holds Lark bot configuration
type Config struct {
	AppID      string
	AppSecret  string
	APITimeout time.Duration
	RoleChats  map[string]string // role -> chat_id
}

// Notifier delivers pending events as bot messages. Roles without a
// configured chat are skipped silently.
type Notifier struct {
	client  *lark.Client
	timeout time.Duration
	chats   map[string]string
	logger  *zap.Logger
}

// NewNotifier creates a new Lark notifier
func NewNotifier(cfg Config, logger *zap.Logger) *Notifier {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)

	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Notifier{
		client:  client,
		timeout: timeout,
		chats:   cfg.RoleChats,
		logger:  logger,
	}
}

// Emit sends a text message to the role's chat. Delivery is best effort;
// failures are logged and never surfaced to the caller.
func (n *Notifier) Emit(ctx context.Context, role string, evt port.PendingEvent) {
	chatID, ok := n.chats[role]
	if !ok {
		return
	}

	text := fmt.Sprintf("[%s] record %s awaiting approval at level %d: %s",
		evt.WorkflowID, evt.RecordID, evt.Level, evt.Message)
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		n.logger.Error("Failed to encode message content", zap.Error(err))
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType("chat_id").
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := n.client.Im.Message.Create(sendCtx, req)
	if err != nil {
		n.logger.Error("Failed to send message",
			zap.String("role", role),
			zap.String("chat_id", chatID),
			zap.Error(err))
		return
	}

	if !resp.Success() {
		n.logger.Error("API returned failure",
			zap.String("role", role),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return
	}

	n.logger.Info("Pending notification pushed",
		zap.String("role", role),
		zap.String("record_id", evt.RecordID))
}

// Verify interface compliance
var _ port.EventSink = (*Notifier)(nil)
