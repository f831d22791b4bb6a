package agent

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"AgentLink-Chain/internal/archive"
	"AgentLink-Chain/internal/bus"
	xerrors "AgentLink-Chain/internal/errors"
	"AgentLink-Chain/internal/message"
	"AgentLink-Chain/internal/observability/alerting"
	"AgentLink-Chain/pkg/logger"
)

// State 表示智能体的生命周期状态。
type State string

const (
	StateCreated  State = "created"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// Agent 拥有一个收件箱、一个发件箱、一组行为和一组处理器，
// 驱动调度循环与派发循环，并管理自身的启停生命周期。
type Agent struct {
	name      string
	id        string
	logger    *slog.Logger
	alerter   alerting.Dispatcher
	archive   archive.Store
	behaviors []Behavior
	handlers  []MessageHandler

	mu     sync.Mutex
	inbox  bus.Bus
	outbox bus.Bus
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// WithInbox 替换默认的内存收件箱。
func WithInbox(b bus.Bus) Option {
	return func(a *Agent) {
		if b != nil {
			a.inbox = b
		}
	}
}

// WithOutbox 替换默认的内存发件箱。
func WithOutbox(b bus.Bus) Option {
	return func(a *Agent) {
		if b != nil {
			a.outbox = b
		}
	}
}

// WithLogger 指定日志输出。
func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) {
		if log != nil {
			a.logger = log
		}
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) Option {
	return func(a *Agent) {
		a.alerter = dispatcher
	}
}

// WithArchive 配置会话归档。归档写入失败只记日志，不影响派发。
func WithArchive(store archive.Store) Option {
	return func(a *Agent) {
		a.archive = store
	}
}

// New 创建一个智能体。默认的收发件箱都是进程内的内存总线。
func New(name string, opts ...Option) *Agent {
	ag := &Agent{
		name:   name,
		id:     uuid.NewString(),
		inbox:  bus.NewMemoryBus(),
		outbox: bus.NewMemoryBus(),
		state:  StateCreated,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	if ag.logger == nil {
		ag.logger = logger.Named("agent")
	}
	return ag
}

// Name 返回智能体名称。
func (a *Agent) Name() string {
	return a.name
}

// State 返回当前生命周期状态。
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Inbox 返回收件箱总线。
func (a *Agent) Inbox() bus.Bus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inbox
}

// Outbox 返回发件箱总线。
func (a *Agent) Outbox() bus.Bus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outbox
}

// RegisterBehavior 注册一个行为，必须在启动之前完成。
func (a *Agent) RegisterBehavior(b Behavior) error {
	if b == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "behavior 不能为空")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateCreated {
		return xerrors.New(xerrors.CodeLifecycle, fmt.Sprintf("智能体 %s 已启动，无法注册行为", a.name))
	}
	a.behaviors = append(a.behaviors, b)
	return nil
}

// RegisterHandler 注册一个处理器，必须在启动之前完成。
func (a *Agent) RegisterHandler(h MessageHandler) error {
	if h == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "handler 不能为空")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateCreated {
		return xerrors.New(xerrors.CodeLifecycle, fmt.Sprintf("智能体 %s 已启动，无法注册处理器", a.name))
	}
	a.handlers = append(a.handlers, h)
	return nil
}

// Connect 将两个智能体交叉接线：a 的发件箱指向 b 的收件箱，反之亦然。
// 两个方向在同一次调用里完成赋值，避免出现只接了一半的状态。
// 必须在任一智能体启动之前调用。
func Connect(a, b *Agent) error {
	if a == nil || b == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "待接线的智能体不能为空")
	}
	if a == b {
		return xerrors.New(xerrors.CodeInvalidArgument, "不能将智能体与自身接线")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()
	if a.state != StateCreated || b.state != StateCreated {
		return xerrors.New(xerrors.CodeLifecycle, "接线必须在两个智能体都未启动时进行")
	}
	a.outbox = b.inbox
	b.outbox = a.inbox
	return nil
}

// Run 启动所有行为调度循环和派发循环，阻塞直到智能体被停止
// 或传入的上下文被取消。重复启动会返回生命周期错误。
func (a *Agent) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateCreated {
		state := a.state
		a.mu.Unlock()
		return xerrors.New(xerrors.CodeLifecycle, fmt.Sprintf("智能体 %s 处于 %s 状态，无法启动", a.name, state))
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.state = StateRunning
	behaviors := append([]Behavior(nil), a.behaviors...)
	handlers := append([]MessageHandler(nil), a.handlers...)
	inbox := a.inbox
	a.mu.Unlock()
	defer cancel()

	a.logger.Info("智能体启动",
		slog.String("agent", a.name),
		slog.String("agent_id", a.id),
		slog.Int("behaviors", len(behaviors)),
		slog.Int("handlers", len(handlers)),
	)

	var wg sync.WaitGroup
	for _, b := range behaviors {
		wg.Add(1)
		go func(b Behavior) {
			defer wg.Done()
			a.runBehavior(runCtx, b)
		}(b)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.runDispatch(runCtx, inbox, handlers)
	}()
	wg.Wait()

	a.mu.Lock()
	a.state = StateStopped
	a.mu.Unlock()
	close(a.done)

	a.logger.Info("智能体已停止", slog.String("agent", a.name), slog.String("agent_id", a.id))
	return ctx.Err()
}

// Stop 通知所有内部任务退出并等待它们结束。
// 幂等：重复调用无害，在 Run 之前调用没有任何效果。
func (a *Agent) Stop() {
	a.mu.Lock()
	switch a.state {
	case StateCreated, StateStopped:
		a.mu.Unlock()
		return
	case StateStopping:
		done := a.done
		a.mu.Unlock()
		<-done
		return
	}
	a.state = StateStopping
	cancel := a.cancel
	done := a.done
	a.mu.Unlock()

	cancel()
	<-done
}

// runBehavior 驱动单个行为的周期循环：等待间隔、执行、投递产出。
// 执行与等待严格串行，同一个行为不会被重入。
func (a *Agent) runBehavior(ctx context.Context, b Behavior) {
	interval := b.Interval()
	name := componentName(b)
	if interval <= 0 {
		a.logger.Warn("行为未提供有效的执行间隔，回退为 1s",
			slog.String("agent", a.name),
			slog.String("behavior", name),
		)
		interval = time.Second
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		msgs, err := a.executeBehavior(ctx, b)
		if err != nil {
			// 单次失败只记录并告警，下一个周期照常触发。
			a.logger.Error("行为执行失败",
				slog.String("agent", a.name),
				slog.String("behavior", name),
				slog.Any("error", err),
			)
			a.emitAlert(ctx, xerrors.CodeBehaviorFailure, err, name, "")
		}
		a.publish(ctx, msgs)
		timer.Reset(interval)
	}
}

// executeBehavior 在调度边界调用协作方代码，panic 也会被收敛为错误。
func (a *Agent) executeBehavior(ctx context.Context, b Behavior) (msgs []message.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			msgs = nil
			err = xerrors.New(xerrors.CodeBehaviorFailure, fmt.Sprintf("行为 panic: %v", r))
		}
	}()
	return b.Execute(ctx)
}

// runDispatch 是每个智能体唯一的派发循环：按 FIFO 逐条取出收件箱消息，
// 对每条消息求值所有处理器的谓词，命中的处理器并发执行。
// 上一条消息的所有反应结束后才会取下一条，保证入站流不被重排。
func (a *Agent) runDispatch(ctx context.Context, inbox bus.Bus, handlers []MessageHandler) {
	for {
		msg, err := inbox.Get(ctx)
		if err != nil {
			if stdErrors.Is(err, context.Canceled) || stdErrors.Is(err, context.DeadlineExceeded) || stdErrors.Is(err, bus.ErrClosed) {
				return
			}
			// 总线故障对派发循环是致命的。
			a.logger.Error("读取收件箱失败，派发循环退出",
				slog.String("agent", a.name),
				slog.Any("error", err),
			)
			a.emitAlert(ctx, xerrors.CodeBusFailure, err, "dispatch", "")
			return
		}

		a.record(ctx, archive.DirectionInbound, msg)

		var wg sync.WaitGroup
		for _, h := range handlers {
			if !a.canHandle(h, msg) {
				continue
			}
			wg.Add(1)
			go func(h MessageHandler) {
				defer wg.Done()
				name := componentName(h)
				replies, err := a.handleMessage(ctx, h, msg)
				if err != nil {
					// 失败只隔离到这一个处理器，其余命中的处理器照常执行。
					a.logger.Error("处理器执行失败",
						slog.String("agent", a.name),
						slog.String("handler", name),
						slog.String("message_type", string(msg.Type)),
						slog.Any("error", err),
					)
					a.emitAlert(ctx, xerrors.CodeHandlerFailure, err, name, string(msg.Type))
					return
				}
				a.publish(ctx, replies)
			}(h)
		}
		wg.Wait()
	}
}

// canHandle 在派发边界求值谓词，panic 视为不匹配。
func (a *Agent) canHandle(h MessageHandler, msg message.Message) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			a.logger.Error("处理器谓词 panic",
				slog.String("agent", a.name),
				slog.String("handler", componentName(h)),
				slog.Any("panic", r),
			)
		}
	}()
	return h.CanHandle(msg)
}

// handleMessage 在派发边界调用协作方代码，panic 也会被收敛为错误。
func (a *Agent) handleMessage(ctx context.Context, h MessageHandler, msg message.Message) (replies []message.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			replies = nil
			err = xerrors.New(xerrors.CodeHandlerFailure, fmt.Sprintf("处理器 panic: %v", r))
		}
	}()
	return h.Handle(ctx, msg)
}

// publish 将产出的消息逐条推送到发件箱并归档。
func (a *Agent) publish(ctx context.Context, msgs []message.Message) {
	if len(msgs) == 0 {
		return
	}
	outbox := a.Outbox()
	for _, msg := range msgs {
		if err := outbox.Put(ctx, msg); err != nil {
			if stdErrors.Is(err, bus.ErrClosed) || stdErrors.Is(err, context.Canceled) {
				a.logger.Debug("发件箱已不可用，丢弃消息",
					slog.String("agent", a.name),
					slog.String("message_type", string(msg.Type)),
				)
				return
			}
			a.logger.Error("投递消息到发件箱失败",
				slog.String("agent", a.name),
				slog.String("message_type", string(msg.Type)),
				slog.Any("error", err),
			)
			continue
		}
		a.record(ctx, archive.DirectionOutbound, msg)
	}
}

// record 将消息写入会话归档（如已配置）。
func (a *Agent) record(ctx context.Context, direction archive.Direction, msg message.Message) {
	if a.archive == nil {
		return
	}
	err := a.archive.Append(ctx, &archive.Record{
		Agent:     a.name,
		Direction: direction,
		Type:      msg.Type,
		Content:   msg.Content,
		Metadata:  msg.Metadata,
	})
	if err != nil {
		a.logger.Error("写入会话归档失败",
			slog.String("agent", a.name),
			slog.String("direction", string(direction)),
			slog.Any("error", err),
		)
	}
}

func (a *Agent) emitAlert(ctx context.Context, code xerrors.Code, cause error, component, msgType string) {
	if a == nil || a.alerter == nil {
		return
	}
	attrs := xerrors.AttributesOf(code)
	msg := attrs.Message
	if cause != nil {
		msg = cause.Error()
	}
	event := alerting.Event{
		Code:        code,
		Message:     msg,
		Severity:    attrs.Severity,
		Agent:       a.name,
		Component:   component,
		MessageType: msgType,
		OccurredAt:  time.Now(),
	}
	if err := a.alerter.Notify(ctx, event); err != nil {
		a.logger.Error("告警通知失败",
			slog.String("agent", a.name),
			slog.String("component", component),
			slog.Any("error", err),
		)
	}
}

func componentName(v any) string {
	return fmt.Sprintf("%T", v)
}
