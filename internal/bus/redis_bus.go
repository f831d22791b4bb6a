package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	xerrors "AgentLink-Chain/internal/errors"
	"AgentLink-Chain/internal/message"
)

// RedisBusConfig 描述 Redis 总线的连接参数。
type RedisBusConfig struct {
	Address   string
	Password  string
	DB        int
	Key       string
	BlockWait time.Duration
}

// RedisBus 使用 Redis list 实现总线，适合需要跨进程投递的部署。
// 核心契约仍由内存总线定义，Redis 实现属于可选的运维选项。
type RedisBus struct {
	client *redis.Client
	key    string
	wait   time.Duration
}

// NewRedisBus 创建 Redis 总线实例。
func NewRedisBus(cfg RedisBusConfig) (*RedisBus, error) {
	if cfg.Address == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Redis address 不能为空")
	}
	key := cfg.Key
	if key == "" {
		key = "agentlink:bus"
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeBusFailure, err, "连接 Redis 失败")
	}
	return &RedisBus{client: client, key: key, wait: wait}, nil
}

// Put 将消息序列化后投递到 Redis。
func (b *RedisBus) Put(ctx context.Context, msg message.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeBusFailure, err, "序列化消息失败")
	}
	if err := b.client.LPush(ctx, b.key, payload).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeBusFailure, err, "Redis 投递消息失败")
	}
	return nil
}

// Get 通过 BRPOP 取出最早的消息，空队列时按 BlockWait 周期阻塞等待。
func (b *RedisBus) Get(ctx context.Context) (message.Message, error) {
	for {
		select {
		case <-ctx.Done():
			return message.Message{}, ctx.Err()
		default:
		}
		values, err := b.client.BRPop(ctx, b.wait, b.key).Result()
		if err != nil {
			if errors.Is(err, redis.ErrClosed) {
				return message.Message{}, ErrClosed
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return message.Message{}, err
			}
			if err == redis.Nil {
				continue
			}
			return message.Message{}, xerrors.Wrap(xerrors.CodeBusFailure, err, "Redis 取消息失败")
		}
		if len(values) != 2 {
			continue
		}
		var msg message.Message
		if err := json.Unmarshal([]byte(values[1]), &msg); err != nil {
			return message.Message{}, xerrors.Wrap(xerrors.CodeBusFailure, err, fmt.Sprintf("解析消息失败: %s", values[1]))
		}
		return msg, nil
	}
}

// Close 关闭 Redis 连接。
func (b *RedisBus) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

// ensure interface compliance at compile time
var _ Bus = (*RedisBus)(nil)
