package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"AgentLink-Chain/internal/agent"
	"AgentLink-Chain/internal/message"
	"AgentLink-Chain/pkg/logger"
)

// responseMarker 是问候响应的正文前缀。带有该前缀的消息
// 不会再次命中谓词，这就是本处理器的环路防护。
const responseMarker = "Hello back!"

// Hello 对包含问候语的消息做出回应。
type Hello struct{}

// NewHello 创建问候处理器。
func NewHello() *Hello {
	return &Hello{}
}

// CanHandle 命中 HELLO 类型或正文包含 "hello" 的消息，
// 但排除自己生成的响应。
func (h *Hello) CanHandle(msg message.Message) bool {
	if strings.HasPrefix(msg.Content, responseMarker) {
		return false
	}
	return msg.Type == message.TypeHello || msg.ContainsFold("hello")
}

// Handle 生成一条带环路防护标记的问候响应。
func (h *Hello) Handle(_ context.Context, msg message.Message) ([]message.Message, error) {
	logger.L().Info("收到问候消息", slog.String("content", msg.Content))

	content := fmt.Sprintf("%s Received: %s", responseMarker, msg.Content)
	reply := message.New(message.TypeHello, content, message.Metadata{
		"original_message": message.Text(msg.Content),
		"is_response":      message.Bool(true),
	})
	return []message.Message{reply}, nil
}

// ensure interface compliance at compile time
var _ agent.MessageHandler = (*Hello)(nil)
