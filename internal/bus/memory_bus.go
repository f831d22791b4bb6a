package bus

import (
	"context"
	"sync"

	"AgentLink-Chain/internal/message"
)

// MemoryBus 是进程内的核心总线实现：无界 FIFO 队列，
// 支持任意多个生产者并发 Put 与一个长期存活的消费循环。
type MemoryBus struct {
	mu      sync.Mutex
	pending []message.Message
	notify  chan struct{}
	done    chan struct{}
	closed  bool
}

// NewMemoryBus 创建一个内存总线。
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Put 将消息追加到队尾。不会阻塞，也不会因为队列容量失败。
func (b *MemoryBus) Put(_ context.Context, msg message.Message) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.pending = append(b.pending, msg)
	b.mu.Unlock()

	// 唤醒挂起的消费者。通知信号有容量 1，重复唤醒会被合并。
	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

// Get 取出并返回最早的未处理消息。队列为空时挂起等待，
// 直到有新消息、上下文被取消或总线被关闭。
func (b *MemoryBus) Get(ctx context.Context) (message.Message, error) {
	for {
		b.mu.Lock()
		if len(b.pending) > 0 {
			msg := b.pending[0]
			b.pending = b.pending[1:]
			b.mu.Unlock()
			return msg, nil
		}
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return message.Message{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return message.Message{}, ctx.Err()
		case <-b.done:
			// 回到循环顶部，统一走关闭分支返回 ErrClosed。
		case <-b.notify:
		}
	}
}

// Len 返回当前积压的消息数量，主要用于测试与观测。
func (b *MemoryBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close 关闭总线并丢弃积压的消息。重复关闭是无害的。
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		b.pending = nil
		close(b.done)
	}
	b.mu.Unlock()
	return nil
}

// ensure interface compliance at compile time
var _ Bus = (*MemoryBus)(nil)
