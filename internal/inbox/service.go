package inbox

import (
	"context"
	"strings"

	"github.com/google/uuid"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/pkg/plugin"
)

// Service 校验并投递异步消息。
type Service struct {
	producer Producer
}

// NewService 创建投递服务。
func NewService(producer Producer) *Service {
	return &Service{producer: producer}
}

// Enqueue 投递消息并返回信封 ID。
func (s *Service) Enqueue(ctx context.Context, msg plugin.Memory) (string, error) {
	if s == nil || s.producer == nil {
		return "", xerrors.New(xerrors.CodeInitializationFailure, "未配置消息队列")
	}
	if strings.TrimSpace(msg.Content.Text) == "" && msg.Content.Action == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "消息内容不能为空")
	}
	if msg.RoomID == uuid.Nil || msg.UserID == uuid.Nil {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "room id 与 user id 不能为空")
	}
	env := NewEnvelope(msg)
	if err := s.producer.Publish(ctx, env); err != nil {
		return "", xerrors.Wrap(xerrors.CodeQueueFailure, err, "投递消息失败")
	}
	return env.ID, nil
}
