package inbox

import (
	"context"
	"log/slog"

	"Merem-Agent/internal/agent"
	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/internal/observability/alerting"
	"Merem-Agent/internal/observability/metrics"
	"Merem-Agent/pkg/logger"
	"Merem-Agent/pkg/plugin"
)

// defaultMaxAttempts 是可重试错误的最大投递次数。
const defaultMaxAttempts = 3

// MessageHandler 定义了处理器所需的 Runtime 能力。
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg plugin.Memory) (*agent.Result, error)
}

// Processor 负责从队列消费消息并交给 Runtime 处理。
type Processor struct {
	handler     MessageHandler
	consumer    Consumer
	producer    Producer
	workerCount int
	maxAttempts int
	logger      *slog.Logger
	alerter     alerting.Dispatcher
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(log *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = log
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithMaxAttempts 设置可重试错误的最大投递次数。
func WithMaxAttempts(attempts int) ProcessorOption {
	return func(p *Processor) {
		if attempts > 0 {
			p.maxAttempts = attempts
		}
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerter = dispatcher
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(handler MessageHandler, queue Queue, opts ...ProcessorOption) *Processor {
	p := &Processor{
		handler:     handler,
		consumer:    queue,
		producer:    queue,
		workerCount: 1,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.logger == nil {
		p.logger = logger.Named("inbox")
	}
	return p
}

// Start 启动消费循环，直到 ctx 取消。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil || p.handler == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置消息消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

func (p *Processor) handle(ctx context.Context, env Envelope) error {
	env.Attempts++
	result, err := p.handler.HandleMessage(ctx, env.Message)
	if err == nil {
		metrics.ObserveInbox("ok")
		logger.Audit().Info("异步消息处理完成",
			slog.String("envelope_id", env.ID),
			slog.String("room_id", env.Message.RoomID.String()),
			slog.String("action", result.Action),
			slog.Bool("success", result.Success),
		)
		return nil
	}

	retry := xerrors.RetryableError(err) && env.Attempts < p.maxAttempts
	p.logger.Warn("异步消息处理失败",
		slog.String("envelope_id", env.ID),
		slog.Int("attempts", env.Attempts),
		slog.Bool("retry", retry),
		slog.Any("error", err),
	)
	if retry {
		metrics.ObserveInbox("retry")
		if pubErr := p.producer.Publish(ctx, env); pubErr != nil {
			p.logger.Error("重新投递消息失败", slog.String("envelope_id", env.ID), slog.Any("error", pubErr))
			return pubErr
		}
		return nil
	}

	metrics.ObserveInbox("failed")
	if p.alerter != nil && xerrors.ShouldAlert(err) {
		event := alerting.EventFromError(err, "inbox")
		event.RoomID = env.Message.RoomID.String()
		event.MessageID = env.ID
		if alertErr := p.alerter.Notify(ctx, event); alertErr != nil {
			p.logger.Warn("告警发送失败", slog.Any("error", alertErr))
		}
	}
	return err
}
