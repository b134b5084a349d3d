package agent

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/internal/observability/alerting"
	"Merem-Agent/internal/observability/metrics"
	"Merem-Agent/pkg/plugin"
)

// NoAction 表示没有选中任何动作。
const NoAction = "NONE"

// Result 汇总一次消息处理的结果。
type Result struct {
	MessageID uuid.UUID        `json:"message_id"`
	RoomID    uuid.UUID        `json:"room_id"`
	Action    string           `json:"action"`
	Success   bool             `json:"success"`
	Error     string           `json:"error,omitempty"`
	Responses []plugin.Content `json:"responses"`
}

const actionSelectionTemplate = `You are %s. Decide which action best answers the last message.

Available actions:
%s

Recent messages:
%s

Last message: %s

Reply with only the action name, or NONE if no action fits.`

// HandleMessage 保存用户消息、选择并执行动作，最后运行评估器。
// 动作处理器的错误只体现在 Result 中，返回的 error 仅用于输入非法或存储失败。
func (r *Runtime) HandleMessage(ctx context.Context, msg plugin.Memory) (*Result, error) {
	if err := r.prepare(&msg); err != nil {
		return nil, err
	}
	if r.msgTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.msgTimeout)
		defer cancel()
	}
	if r.messages == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置消息存储")
	}
	if err := r.messages.CreateMemory(ctx, msg); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "保存用户消息失败")
	}

	state, err := r.ComposeState(ctx, &msg)
	if err != nil {
		return nil, err
	}

	result := &Result{MessageID: msg.ID, RoomID: msg.RoomID, Action: NoAction, Responses: []plugin.Content{}}
	log := r.log.With(slog.String("room_id", msg.RoomID.String()), slog.String("message_id", msg.ID.String()))

	if action := r.selectAction(ctx, &msg, state); action != nil {
		name := action.Spec().Name
		result.Action = name
		if !action.Validate(ctx, r, &msg) {
			log.InfoContext(ctx, "动作校验未通过", slog.String("action", name))
			metrics.ObserveAction(name, metrics.OutcomeRejected)
			result.Error = "action validation failed"
		} else {
			r.runAction(ctx, log, action, &msg, state, result)
		}
	}

	r.runEvaluators(ctx, log, &msg, state)
	return result, nil
}

func (r *Runtime) prepare(msg *plugin.Memory) error {
	if strings.TrimSpace(msg.Content.Text) == "" && msg.Content.Action == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "消息内容不能为空")
	}
	if msg.RoomID == uuid.Nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "room id 不能为空")
	}
	if msg.UserID == uuid.Nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "user id 不能为空")
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.AgentID = r.agentID
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().UnixMilli()
	}
	return nil
}

// selectAction 先按显式标签匹配名称或别名，否则用一次 SMALL 模型调用选择。
func (r *Runtime) selectAction(ctx context.Context, msg *plugin.Memory, state *plugin.State) plugin.Action {
	r.mu.RLock()
	actions := append([]plugin.Action(nil), r.actions...)
	r.mu.RUnlock()
	if len(actions) == 0 {
		return nil
	}

	if tag := strings.TrimSpace(msg.Content.Action); tag != "" {
		if action := findAction(actions, tag); action != nil {
			return action
		}
		r.log.InfoContext(ctx, "未知的动作标签", slog.String("action", tag))
		return nil
	}

	prompt := fmt.Sprintf(actionSelectionTemplate, r.character.Name, state.Actions, state.RecentMessages, msg.Content.Text)
	out, err := r.GenerateText(ctx, plugin.TextRequest{
		Context:    prompt,
		ModelClass: plugin.ModelSmall,
		Stop:       []string{"\n"},
	})
	if err != nil {
		r.log.WarnContext(ctx, "动作选择失败", slog.Any("error", err))
		return nil
	}
	name := plugin.CleanToken(out)
	if name == "" || name == NoAction {
		return nil
	}
	return findAction(actions, name)
}

func findAction(actions []plugin.Action, name string) plugin.Action {
	for _, a := range actions {
		if a.Spec().Matches(name) {
			return a
		}
	}
	return nil
}

func (r *Runtime) runAction(ctx context.Context, log *slog.Logger, action plugin.Action, msg *plugin.Memory, state *plugin.State, result *Result) {
	name := action.Spec().Name
	callback := func(_ context.Context, c plugin.Content) error {
		result.Responses = append(result.Responses, c)
		return nil
	}

	ok, err := safeHandle(ctx, r, action, msg, state, callback)
	switch {
	case err != nil:
		log.ErrorContext(ctx, "动作执行失败", slog.String("action", name), slog.Any("error", err))
		metrics.ObserveAction(name, metrics.OutcomeError)
		result.Error = err.Error()
		r.alert(ctx, err, name, msg)
	case !ok:
		log.InfoContext(ctx, "动作返回失败结果", slog.String("action", name))
		metrics.ObserveAction(name, metrics.OutcomeFailed)
	default:
		metrics.ObserveAction(name, metrics.OutcomeSuccess)
		result.Success = true
	}
}

// safeHandle 将处理器中的 panic 转换为 ACTION_FAILED 错误。
func safeHandle(ctx context.Context, rt plugin.Runtime, action plugin.Action, msg *plugin.Memory, state *plugin.State, cb plugin.HandlerCallback) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			err = xerrors.New(xerrors.CodeActionFailed, fmt.Sprintf("handler panic: %v", rec),
				xerrors.WithMetadata("stack", string(debug.Stack())))
		}
	}()
	return action.Handle(ctx, rt, msg, state, nil, cb)
}

func (r *Runtime) runEvaluators(ctx context.Context, log *slog.Logger, msg *plugin.Memory, state *plugin.State) {
	r.mu.RLock()
	evaluators := append([]plugin.Evaluator(nil), r.evaluators...)
	r.mu.RUnlock()

	for _, ev := range evaluators {
		spec := ev.Spec()
		if !spec.AlwaysRun && !ev.Validate(ctx, r, msg) {
			continue
		}
		if err := ev.Handle(ctx, r, msg, state); err != nil {
			log.WarnContext(ctx, "评估器执行失败", slog.String("evaluator", spec.Name), slog.Any("error", err))
			r.alert(ctx, err, spec.Name, msg)
		}
	}
}

func (r *Runtime) alert(ctx context.Context, err error, component string, msg *plugin.Memory) {
	if r.alerter == nil || !xerrors.ShouldAlert(err) {
		return
	}
	event := alerting.EventFromError(err, component)
	event.RoomID = msg.RoomID.String()
	event.MessageID = msg.ID.String()
	if notifyErr := r.alerter.Notify(ctx, event); notifyErr != nil {
		r.log.WarnContext(ctx, "告警发送失败", slog.Any("error", notifyErr))
	}
}
