package agent

import (
	"context"
	"time"

	"AgentLink-Chain/internal/message"
)

// Behavior 是周期性的消息生产者。注册到智能体后，
// 运行时会按 Interval 返回的间隔反复调用 Execute，
// 并把产出的消息推送到智能体的发件箱。
//
// 同一个 Behavior 实例不会被并发调用：一次 Execute 结束之后
// 才会开始下一次计时。Execute 返回错误只会被记录，不会中断调度。
type Behavior interface {
	// Interval 返回两次执行之间的间隔，必须为正值，构造后不再变化。
	Interval() time.Duration
	// Execute 产出零条或多条消息。失败时返回错误而不是 panic。
	Execute(ctx context.Context) ([]message.Message, error)
}

// MessageHandler 是反应式的消息消费者。
//
// 派发策略是"全量匹配"：收件箱中的每条消息都会对所有已注册处理器求值
// CanHandle，谓词为真的处理器全部执行，而不是只执行第一个命中的。
// 谓词重叠时多个处理器会对同一条消息各自产生响应。
//
// 环路防护是处理器自身的契约：会对某类消息做出响应的处理器，
// 必须保证 CanHandle 对自己生成的响应返回 false（通常通过在响应正文
// 打上标记并在谓词中排除该标记实现）。运行时无法区分"原始"与"响应"
// 流量，不做任何通用的环路拦截。
type MessageHandler interface {
	// CanHandle 是无副作用的谓词，判断处理器是否关心这条消息。
	CanHandle(msg message.Message) bool
	// Handle 对消息做出反应，产出零条或多条响应消息。
	Handle(ctx context.Context, msg message.Message) ([]message.Message, error)
}
