package bus

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	xerrors "AgentLink-Chain/internal/errors"
	"AgentLink-Chain/internal/message"
)

// RabbitMQBusConfig 描述 RabbitMQ 总线的连接参数。
type RabbitMQBusConfig struct {
	URL        string
	Queue      string
	Prefetch   int
	Durable    bool
	AutoDelete bool
}

// RabbitMQBus 使用 RabbitMQ 实现总线。
type RabbitMQBus struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
	closed     bool
}

// NewRabbitMQBus 创建 RabbitMQ 总线实例。
func NewRabbitMQBus(cfg RabbitMQBusConfig) (*RabbitMQBus, error) {
	if cfg.URL == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "RabbitMQ URL 不能为空")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "agentlink.bus"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeBusFailure, err, "连接 RabbitMQ 失败")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, xerrors.Wrap(xerrors.CodeBusFailure, err, "创建 RabbitMQ channel 失败")
	}
	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			ch.Close()
			conn.Close()
			return nil, xerrors.Wrap(xerrors.CodeBusFailure, err, "设置 RabbitMQ QOS 失败")
		}
	}
	if _, err := ch.QueueDeclare(queue, cfg.Durable, cfg.AutoDelete, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, xerrors.Wrap(xerrors.CodeBusFailure, err, "声明 RabbitMQ 队列失败")
	}
	return &RabbitMQBus{conn: conn, ch: ch, queue: queue}, nil
}

// Put 将消息序列化后投递到 RabbitMQ。
func (b *RabbitMQBus) Put(ctx context.Context, msg message.Message) error {
	if b == nil || b.ch == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "RabbitMQ 总线未初始化")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeBusFailure, err, "序列化消息失败")
	}
	return b.ch.PublishWithContext(ctx, "", b.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
}

// Get 从 RabbitMQ 取出一条消息并手动确认。
func (b *RabbitMQBus) Get(ctx context.Context) (message.Message, error) {
	deliveries, err := b.consumeChannel()
	if err != nil {
		return message.Message{}, err
	}
	for {
		select {
		case <-ctx.Done():
			return message.Message{}, ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return message.Message{}, ErrClosed
			}
			var msg message.Message
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				// 无法解析的消息直接确认丢弃，避免反复投递毒消息。
				_ = delivery.Ack(false)
				return message.Message{}, xerrors.Wrap(xerrors.CodeBusFailure, err, "解析消息失败")
			}
			if err := delivery.Ack(false); err != nil {
				return message.Message{}, xerrors.Wrap(xerrors.CodeBusFailure, err, "确认消息失败")
			}
			return msg, nil
		}
	}
}

func (b *RabbitMQBus) consumeChannel() (<-chan amqp.Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if b.deliveries != nil {
		return b.deliveries, nil
	}
	if b.ch == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "RabbitMQ 总线未初始化")
	}
	deliveries, err := b.ch.Consume(b.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeBusFailure, err, "订阅 RabbitMQ 队列失败")
	}
	b.deliveries = deliveries
	return deliveries, nil
}

// Close 关闭 RabbitMQ 连接。
func (b *RabbitMQBus) Close() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// ensure interface compliance at compile time
var _ Bus = (*RabbitMQBus)(nil)
