package bus

import (
	"context"

	xerrors "AgentLink-Chain/internal/errors"
	"AgentLink-Chain/internal/message"
)

// ErrClosed 表示总线已经关闭，后续的读写都会失败。
var ErrClosed = xerrors.New(xerrors.CodeBusClosed, "message bus closed")

// Producer 负责向总线投递消息。
type Producer interface {
	Put(ctx context.Context, msg message.Message) error
}

// Consumer 负责从总线取出消息。
type Consumer interface {
	Get(ctx context.Context) (message.Message, error)
}

// Bus 是智能体的收件箱或发件箱：一个并发安全的无界 FIFO 队列。
// 同一个实例可以被两个智能体共享（一方的发件箱即另一方的收件箱），
// 从而组成一条单向通道。保证单生产者的投递顺序，不保证跨生产者的全局顺序。
type Bus interface {
	Producer
	Consumer
	Close() error
}
