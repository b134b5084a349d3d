package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"Merem-Agent/internal/agent"
	"Merem-Agent/internal/api"
	"Merem-Agent/internal/config"
	"Merem-Agent/internal/feeds/birdeye"
	"Merem-Agent/internal/feeds/newsapi"
	"Merem-Agent/internal/inbox"
	"Merem-Agent/internal/knowledge"
	"Merem-Agent/internal/llm"
	"Merem-Agent/internal/llm/anthropic"
	"Merem-Agent/internal/llm/gemini"
	"Merem-Agent/internal/llm/ollama"
	"Merem-Agent/internal/llm/openai"
	"Merem-Agent/internal/llm/pythonbridge"
	"Merem-Agent/internal/memory"
	"Merem-Agent/internal/observability/alerting"
	"Merem-Agent/internal/web3/provider"
	"Merem-Agent/pkg/logger"
	"Merem-Agent/pkg/plugin"
	"Merem-Agent/plugins/merem"
	"Merem-Agent/plugins/testplugin"
)

// main 是 Merem 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("meremd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("MEREM_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "merem.yaml")
	}
	if _, err := os.Stat(configPath); err != nil {
		configPath = ""
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.Outputs,
		Rotation: logger.RotationConfig{
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		},
		Audit: logger.AuditConfig{
			Enabled:    cfg.Log.AuditPath != "",
			Path:       cfg.Log.AuditPath,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		},
	}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logr := logger.Named("meremd")

	// 初始化大模型客户端。
	llmClient, err := createLLMClient(ctx, cfg)
	if err != nil {
		return err
	}
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	if cfg.Memory.Driver == "file" {
		if err := os.MkdirAll(cfg.Memory.DataDir, 0o755); err != nil {
			return err
		}
	}
	messages, err := memory.Open(ctx, cfg.Memory, memory.TableMessages)
	if err != nil {
		return err
	}
	defer messages.Close()
	facts, err := memory.Open(ctx, cfg.Memory, memory.TableFacts)
	if err != nil {
		return err
	}
	defer facts.Close()

	var knowledgeProvider knowledge.Provider
	if cfg.Knowledge.Path != "" {
		kp, err := knowledge.LoadStaticProvider(cfg.Knowledge.Path, cfg.Knowledge.MaxResults)
		if err != nil {
			return err
		}
		knowledgeProvider = kp
	}

	notifiers := []alerting.Notifier{&alerting.LogNotifier{Logger: logger.Named("alert")}}
	if webhook := alerting.NewWebhookNotifier(cfg.Alerting.WebhookURL, cfg.Alerting.Timeout); webhook != nil {
		notifiers = append(notifiers, webhook)
	}
	alerts := alerting.NewFanout(notifiers...)

	chainRegistry, err := provider.NewRegistry(ctx, cfg.Web3)
	if err != nil {
		return err
	}
	defer chainRegistry.Close()

	agentID, err := resolveAgentID(cfg.Agent)
	if err != nil {
		return err
	}
	runtime := agent.New(agentID, plugin.Character{
		Name:   cfg.Agent.Name,
		Bio:    cfg.Agent.Bio,
		Lore:   cfg.Agent.Lore,
		Topics: cfg.Agent.Topics,
	}, llmClient, messages,
		agent.WithMemoryDepth(cfg.Agent.MemoryDepth),
		agent.WithLLMTimeout(cfg.LLM.Timeout),
		agent.WithMessageTimeout(cfg.Agent.Timeout),
		agent.WithFactsStore(facts),
		agent.WithKnowledgeProvider(knowledgeProvider),
		agent.WithAlertDispatcher(alerts),
		agent.WithSettings(map[string]string{
			"BIRDEYE_API_KEY": cfg.Birdeye.APIKey,
			"NEWS_API_KEY":    cfg.News.APIKey,
			"SOLANA_RPC_URL":  cfg.Web3.Solana.RPCURL,
		}),
	)

	manager, err := createPluginManager(cfg, chainRegistry)
	if err != nil {
		return err
	}
	if err := registerBuiltins(manager, cfg); err != nil {
		return err
	}
	if err := manager.StartAll(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := manager.StopAll(stopCtx); err != nil {
			logr.Warn("停止插件失败", slog.Any("error", err))
		}
	}()
	if err := runtime.RegisterComponents(manager.Components()); err != nil {
		return err
	}
	for _, info := range manager.Infos() {
		logr.Info("插件已加载", slog.String("id", info.ID), slog.String("version", info.Version))
	}

	queue, err := inbox.Open(ctx, cfg.Queue)
	if err != nil {
		return err
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logr.Warn("关闭消息队列失败", slog.Any("error", err))
		}
	}()

	processor := inbox.NewProcessor(runtime, queue,
		inbox.WithWorkerCount(cfg.Queue.Workers),
		inbox.WithAlertDispatcher(alerts),
	)
	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()
	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			logr.Error("消息处理器异常退出", slog.Any("error", err))
		}
	}()

	server := api.NewServer(cfg.Server.Address, runtime,
		api.WithInbox(inbox.NewService(queue)),
		api.WithChains(chainRegistry),
		api.WithAPIToken(cfg.Server.APIToken),
		api.WithMetrics(cfg.Metrics.Enabled),
	)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// resolveAgentID 优先使用配置的 UUID，否则由名称派生稳定的 ID。
func resolveAgentID(cfg config.AgentConfig) (uuid.UUID, error) {
	if raw := strings.TrimSpace(cfg.ID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, fmt.Errorf("agent.id 不是合法的 UUID: %w", err)
		}
		return id, nil
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("merem-agent:"+cfg.Name)), nil
}

func createPluginManager(cfg *config.Config, registry *provider.Registry) (*plugin.Manager, error) {
	managerCfg := plugin.ManagerConfig{
		Defaults: plugin.IsolationPolicy{AllowedCapabilities: []plugin.Capability{
			plugin.CapabilityNetwork,
			plugin.CapabilityWallet,
		}},
	}
	if cfg.Plugins.Config != "" {
		loaded, err := plugin.LoadManagerConfig(cfg.Plugins.Config)
		if err != nil {
			return nil, err
		}
		managerCfg = loaded
	}

	solanaCfg := cfg.Web3.Solana
	openWallet := merem.WalletOpener(func(context.Context) (merem.Wallet, error) {
		w, err := provider.OpenSolanaWallet(registry, solanaCfg)
		if err != nil {
			return nil, err
		}
		return w, nil
	})

	return plugin.NewManager(managerCfg,
		plugin.WithResource(plugin.ResourceLogger, logger.Named("plugin")),
		plugin.WithResource(plugin.ResourceNewsFeed, newsapi.NewClient(newsapi.Config{
			APIKey:  cfg.News.APIKey,
			BaseURL: cfg.News.BaseURL,
			Timeout: cfg.News.Timeout,
		})),
		plugin.WithResource(plugin.ResourcePriceFeed, birdeye.NewClient(birdeye.Config{
			APIKey:  cfg.Birdeye.APIKey,
			BaseURL: cfg.Birdeye.BaseURL,
			Timeout: cfg.Birdeye.Timeout,
		})),
		plugin.WithResource(plugin.ResourceWallet, openWallet),
	)
}

func registerBuiltins(manager *plugin.Manager, cfg *config.Config) error {
	builtins := []struct {
		id     string
		plugin plugin.Plugin
		config map[string]any
	}{
		{merem.ID, merem.New(), map[string]any{"tokens": cfg.Birdeye.Tokens}},
		{testplugin.ID, testplugin.New(), map[string]any{"fact_every": cfg.Agent.FactEvery}},
	}
	enabled := make(map[string]bool, len(cfg.Plugins.Enabled))
	for _, id := range cfg.Plugins.Enabled {
		enabled[strings.TrimSpace(id)] = true
	}
	for _, b := range builtins {
		if !enabled[b.id] {
			continue
		}
		if err := manager.RegisterBuiltin(b.id, b.plugin, b.config); err != nil {
			if errors.Is(err, plugin.ErrDisabled) {
				continue
			}
			return fmt.Errorf("注册插件 %s 失败: %w", b.id, err)
		}
	}
	return nil
}

func createLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	models := llm.Models{
		Small:  cfg.LLM.Models.Small,
		Medium: cfg.LLM.Models.Medium,
		Large:  cfg.LLM.Models.Large,
	}
	apiKey := strings.TrimSpace(cfg.LLM.APIKey)
	switch cfg.LLM.Provider {
	case "python_bridge":
		scriptPath := pythonbridge.ResolveScriptPath(cfg.LLM.Python.WorkingDir, cfg.LLM.Python.ScriptPath)
		return pythonbridge.NewClient(cfg.LLM.Python.PythonExecutable, scriptPath, cfg.LLM.Python.WorkingDir)
	case "", "openai":
		if apiKey == "" {
			return nil, errors.New("OpenAI provider 需要配置 api_key、api_key_env 或 OPENAI_API_KEY")
		}
		return openai.NewClient(openai.Config{APIKey: apiKey, BaseURL: cfg.LLM.BaseURL, Models: models, Timeout: cfg.LLM.Timeout})
	case "anthropic":
		return anthropic.NewClient(anthropic.Config{APIKey: apiKey, BaseURL: cfg.LLM.BaseURL, Models: models, Timeout: cfg.LLM.Timeout})
	case "gemini":
		return gemini.NewClient(ctx, gemini.Config{APIKey: apiKey, Models: models})
	case "ollama":
		return ollama.NewClient(ollama.Config{Host: cfg.LLM.BaseURL, Models: models, Timeout: cfg.LLM.Timeout})
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}
