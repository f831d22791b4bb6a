package archive

import (
	"context"

	"AgentLink-Chain/internal/message"
)

// Direction 表示消息相对于智能体的流向。
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Record 是归档中的一条消息记录。
type Record struct {
	ID        string           `json:"id"`
	Agent     string           `json:"agent"`
	Direction Direction        `json:"direction"`
	Type      message.Type     `json:"type"`
	Content   string           `json:"content"`
	Metadata  message.Metadata `json:"metadata,omitempty"`
	CreatedAt int64            `json:"created_at"`
}

// Store 抽象了会话归档的持久化接口。
// 归档是可选的运维设施，运行时核心不依赖它，写入失败也只记日志。
type Store interface {
	Append(ctx context.Context, record *Record) error
	ListRecent(ctx context.Context, limit int) ([]*Record, error)
	Close() error
}
