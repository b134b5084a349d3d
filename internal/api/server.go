package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"Merem-Agent/internal/agent"
	"Merem-Agent/internal/observability/metrics"
	"Merem-Agent/internal/web3"
	"Merem-Agent/pkg/logger"
	"Merem-Agent/pkg/plugin"
)

// Agent 是 API 层依赖的 Runtime 能力。
type Agent interface {
	HandleMessage(ctx context.Context, msg plugin.Memory) (*agent.Result, error)
	ListMemories(ctx context.Context, roomID uuid.UUID, limit int) ([]plugin.Memory, error)
	Actions() []plugin.ActionSpec
}

// Enqueuer 投递异步消息。
type Enqueuer interface {
	Enqueue(ctx context.Context, msg plugin.Memory) (string, error)
}

// ChainLister 返回已配置链的快照。
type ChainLister interface {
	Snapshots(ctx context.Context) ([]web3.ChainSnapshot, map[string]error)
}

// Server 负责暴露 REST 接口，供外部向智能体发送消息。
type Server struct {
	addr     string
	agent    Agent
	inbox    Enqueuer
	chains   ChainLister
	token    string
	metrics  bool
	log      *slog.Logger
	validate *validator.Validate
}

// Option 定义可选的 Server 配置。
type Option func(*Server)

// WithInbox 启用异步消息接口。
func WithInbox(inbox Enqueuer) Option {
	return func(s *Server) { s.inbox = inbox }
}

// WithChains 启用链快照接口。
func WithChains(chains ChainLister) Option {
	return func(s *Server) { s.chains = chains }
}

// WithAPIToken 要求 /api 路由携带 Bearer Token。
func WithAPIToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithMetrics 控制是否暴露 /metrics。
func WithMetrics(enabled bool) Option {
	return func(s *Server) { s.metrics = enabled }
}

// WithLogger 指定日志输出。
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, ag Agent, opts ...Option) *Server {
	s := &Server{addr: addr, agent: ag, metrics: true, validate: validator.New()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.log == nil {
		s.log = logger.Named("api")
	}
	return s
}

// Handler 返回完整的路由。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.observe)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(bearerAuth(s.token))
		r.Post("/messages", s.handleCreateMessage)
		r.Post("/messages/async", s.handleEnqueueMessage)
		r.Get("/rooms/{roomID}/memories", s.handleListMemories)
		r.Get("/actions", s.handleListActions)
		r.Get("/chains", s.handleListChains)
	})
	return r
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("API 服务已启动", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
