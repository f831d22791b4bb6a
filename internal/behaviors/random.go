package behaviors

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"AgentLink-Chain/internal/agent"
	xerrors "AgentLink-Chain/internal/errors"
	"AgentLink-Chain/internal/message"
)

// RandomWords 周期性地产出由两个随机词组成的消息。
// 词表在构造时注入，而不是写死在包级常量里。
type RandomWords struct {
	interval time.Duration
	words    []string
	rng      *rand.Rand
}

// NewRandomWords 创建随机消息行为。词表至少需要两个词。
func NewRandomWords(interval time.Duration, words []string) (*RandomWords, error) {
	if interval <= 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "执行间隔必须为正值")
	}
	if len(words) < 2 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "词表至少需要两个词")
	}
	return &RandomWords{
		interval: interval,
		words:    append([]string(nil), words...),
		// 行为不会被重入，rng 无需加锁。
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Interval 实现 agent.Behavior。
func (b *RandomWords) Interval() time.Duration {
	return b.interval
}

// Execute 随机挑选两个不同的词拼成一条 RANDOM 消息。
func (b *RandomWords) Execute(_ context.Context) ([]message.Message, error) {
	first := b.rng.Intn(len(b.words))
	second := b.rng.Intn(len(b.words) - 1)
	if second >= first {
		second++
	}
	content := fmt.Sprintf("%s %s", b.words[first], b.words[second])
	return []message.Message{message.New(message.TypeRandom, content, nil)}, nil
}

// ensure interface compliance at compile time
var _ agent.Behavior = (*RandomWords)(nil)
