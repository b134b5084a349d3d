package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"Merem-Agent/internal/config"
	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/pkg/plugin"
)

// Envelope 是投递到异步队列中的一条用户消息。
type Envelope struct {
	ID         string        `json:"id"`
	Message    plugin.Memory `json:"message"`
	Attempts   int           `json:"attempts"`
	EnqueuedAt int64         `json:"enqueued_at"`
}

// NewEnvelope 为消息分配 ID 并封装为信封。
func NewEnvelope(msg plugin.Memory) Envelope {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	return Envelope{ID: msg.ID.String(), Message: msg, EnqueuedAt: time.Now().UnixMilli()}
}

func encodeEnvelope(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeQueueFailure, err, "序列化消息信封失败")
	}
	return data, nil
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, xerrors.Wrap(xerrors.CodeQueueFailure, err, "解析消息信封失败")
	}
	return env, nil
}

// Handler 处理来自消息队列的信封。
type Handler func(ctx context.Context, env Envelope) error

// Producer 负责向队列投递消息。
type Producer interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// Consumer 负责从队列中消费消息。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时具备生产者与消费者能力。
type Queue interface {
	Producer
	Consumer
}

// Open 根据配置创建队列。
func Open(ctx context.Context, cfg config.QueueConfig) (Queue, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemoryQueue(cfg.Buffer), nil
	case "redis":
		q, err := NewRedisQueue(ctx, RedisQueueConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Queue:    cfg.Redis.Key,
		})
		if err != nil {
			return nil, err
		}
		return q, nil
	case "rabbitmq":
		q, err := NewRabbitMQQueue(RabbitMQConfig{
			URL:      cfg.RabbitMQ.URL,
			Queue:    cfg.RabbitMQ.Queue,
			Prefetch: cfg.Workers,
			Durable:  true,
		})
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("不支持的队列驱动 %s", cfg.Driver))
	}
}
