package agent

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/internal/knowledge"
	"Merem-Agent/internal/llm"
	"Merem-Agent/internal/observability/alerting"
	"Merem-Agent/internal/observability/metrics"
	"Merem-Agent/pkg/logger"
	"Merem-Agent/pkg/plugin"
)

// defaultMemoryDepth 是组合状态时读取的最近消息数量的默认值。
const defaultMemoryDepth = 20

// Runtime 承载插件组件并处理用户消息，实现 plugin.Runtime。
type Runtime struct {
	agentID     uuid.UUID
	character   plugin.Character
	llmClient   llm.Client
	messages    plugin.MemoryManager
	facts       plugin.MemoryManager
	knowledge   knowledge.Provider
	alerter     alerting.Dispatcher
	settings    map[string]string
	log         *slog.Logger
	memoryDepth int
	llmTimeout  time.Duration
	msgTimeout  time.Duration

	mu         sync.RWMutex
	actions    []plugin.Action
	providers  []plugin.Provider
	evaluators []plugin.Evaluator
}

// Option 定义可选的 Runtime 配置。
type Option func(*Runtime)

// WithMemoryDepth 设置组合状态时读取的最近消息数量。
func WithMemoryDepth(depth int) Option {
	return func(r *Runtime) {
		r.memoryDepth = depth
	}
}

// WithLLMTimeout 设置调用大模型的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(r *Runtime) {
		if timeout <= 0 {
			r.llmTimeout = 0
			return
		}
		r.llmTimeout = timeout
	}
}

// WithMessageTimeout 限制单条消息从保存到评估器结束的总耗时。
func WithMessageTimeout(timeout time.Duration) Option {
	return func(r *Runtime) {
		r.msgTimeout = max(timeout, 0)
	}
}

// WithFactsStore 配置事实存储。
func WithFactsStore(store plugin.MemoryManager) Option {
	return func(r *Runtime) {
		r.facts = store
	}
}

// WithKnowledgeProvider 配置知识库，用于在组合状态时补充上下文。
func WithKnowledgeProvider(provider knowledge.Provider) Option {
	return func(r *Runtime) {
		r.knowledge = provider
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) Option {
	return func(r *Runtime) {
		r.alerter = dispatcher
	}
}

// WithSettings 提供插件通过 Setting 读取的配置项，优先于环境变量。
func WithSettings(settings map[string]string) Option {
	return func(r *Runtime) {
		for k, v := range settings {
			r.settings[k] = v
		}
	}
}

// WithLogger 指定日志输出。
func WithLogger(log *slog.Logger) Option {
	return func(r *Runtime) {
		r.log = log
	}
}

// New 创建一个 Runtime。未配置事实存储时与消息共用同一存储。
func New(agentID uuid.UUID, character plugin.Character, client llm.Client, messages plugin.MemoryManager, opts ...Option) *Runtime {
	rt := &Runtime{
		agentID:     agentID,
		character:   character,
		llmClient:   client,
		messages:    messages,
		settings:    make(map[string]string),
		memoryDepth: defaultMemoryDepth,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(rt)
		}
	}
	if rt.memoryDepth <= 0 {
		rt.memoryDepth = defaultMemoryDepth
	}
	if rt.facts == nil {
		rt.facts = messages
	}
	if rt.log == nil {
		rt.log = logger.Named("agent")
	}
	return rt
}

// RegisterComponents 注册插件组件，动作名称（不区分大小写）必须唯一。
func (r *Runtime) RegisterComponents(c plugin.Components) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(r.actions)+len(c.Actions))
	for _, a := range r.actions {
		seen[strings.ToUpper(a.Spec().Name)] = struct{}{}
	}
	for _, a := range c.Actions {
		name := strings.ToUpper(a.Spec().Name)
		if name == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, "动作名称不能为空")
		}
		if _, dup := seen[name]; dup {
			return xerrors.New(xerrors.CodeConflict, fmt.Sprintf("动作 %s 重复注册", a.Spec().Name))
		}
		seen[name] = struct{}{}
	}

	r.actions = append(r.actions, c.Actions...)
	r.providers = append(r.providers, c.Providers...)
	r.evaluators = append(r.evaluators, c.Evaluators...)
	return nil
}

// Actions 返回已注册动作的描述。
func (r *Runtime) Actions() []plugin.ActionSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]plugin.ActionSpec, 0, len(r.actions))
	for _, a := range r.actions {
		specs = append(specs, a.Spec())
	}
	return specs
}

// ListMemories 返回房间内最近的消息记录。
func (r *Runtime) ListMemories(ctx context.Context, roomID uuid.UUID, limit int) ([]plugin.Memory, error) {
	if r.messages == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置消息存储")
	}
	if roomID == uuid.Nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "room id 不能为空")
	}
	if limit <= 0 {
		limit = r.memoryDepth
	}
	items, err := r.messages.GetMemories(ctx, plugin.MemoryQuery{RoomID: roomID, Count: limit})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询消息记录失败")
	}
	return items, nil
}

// AgentID 实现 plugin.Runtime。
func (r *Runtime) AgentID() uuid.UUID { return r.agentID }

// Character 实现 plugin.Runtime。
func (r *Runtime) Character() plugin.Character { return r.character }

// Messages 实现 plugin.Runtime。
func (r *Runtime) Messages() plugin.MemoryManager { return r.messages }

// Facts 实现 plugin.Runtime。
func (r *Runtime) Facts() plugin.MemoryManager { return r.facts }

// Logger 实现 plugin.Runtime。
func (r *Runtime) Logger() *slog.Logger { return r.log }

// Setting 读取配置项，未配置时回落到同名环境变量。
func (r *Runtime) Setting(key string) string {
	if v, ok := r.settings[key]; ok {
		return v
	}
	return os.Getenv(key)
}

// GenerateText 调用大模型，应用超时与默认模型等级。
func (r *Runtime) GenerateText(ctx context.Context, req plugin.TextRequest) (string, error) {
	if r.llmClient == nil {
		return "", xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	if req.ModelClass == "" {
		req.ModelClass = plugin.ModelMedium
	}

	llmCtx := ctx
	if r.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, r.llmTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := r.llmClient.GenerateText(llmCtx, req)
	metrics.ObserveModelRequest(string(req.ModelClass), err, time.Since(start))
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return "", xerrors.Wrap(xerrors.CodeTimeout, err, "大模型推理超时")
		}
		return "", xerrors.Wrap(xerrors.CodeModelFailure, err, "大模型推理失败")
	}
	return text, nil
}

var _ plugin.Runtime = (*Runtime)(nil)
