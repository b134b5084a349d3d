package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakePlugin struct {
	info       Info
	initErr    error
	configured map[string]any
	resources  map[string]any
	started    bool
	stopped    bool
	comps      Components
}

func (f *fakePlugin) Info() Info { return f.info }

func (f *fakePlugin) Configure(cfg map[string]any) error {
	f.configured = cfg
	return nil
}

func (f *fakePlugin) Init(ctx *ExecutionContext) error {
	f.resources = ctx.Resources
	return f.initErr
}

func (f *fakePlugin) Start(*ExecutionContext) error {
	f.started = true
	return nil
}

func (f *fakePlugin) Stop(*ExecutionContext) error {
	f.stopped = true
	return nil
}

func (f *fakePlugin) Components() Components { return f.comps }

type namedProvider string

func (p namedProvider) Name() string { return string(p) }

func (p namedProvider) Get(context.Context, Runtime, *Memory, *State) (string, error) {
	return string(p), nil
}

func TestManagerLifecycle(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	p := &fakePlugin{info: Info{ID: "clock", Name: "clock"}, comps: Components{Providers: []Provider{namedProvider("time")}}}
	if err := mgr.Register("clock", p, nil, IsolationPolicy{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := mgr.Register("clock", p, nil, IsolationPolicy{}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if got := len(mgr.Components().Providers); got != 0 {
		t.Fatalf("components of unstarted plugins must be hidden, got %d", got)
	}
	if err := mgr.StartAll(context.Background()); err != nil {
		t.Fatalf("start all: %v", err)
	}
	status, _ := mgr.Status("clock")
	if status != StatusStarted || !p.started {
		t.Fatalf("unexpected status %s", status)
	}
	if got := len(mgr.Components().Providers); got != 1 {
		t.Fatalf("expected one provider, got %d", got)
	}
	if err := mgr.StopAll(context.Background()); err != nil {
		t.Fatalf("stop all: %v", err)
	}
	status, _ = mgr.Status("clock")
	if status != StatusStopped || !p.stopped {
		t.Fatalf("unexpected status after stop %s", status)
	}
}

func TestManagerInitFailureKeepsPluginRegistered(t *testing.T) {
	mgr, _ := NewManager(ManagerConfig{})
	p := &fakePlugin{info: Info{ID: "broken"}, initErr: errors.New("boom")}
	if err := mgr.Register("broken", p, nil, IsolationPolicy{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := mgr.Start(context.Background(), "broken"); err == nil {
		t.Fatalf("expected init error")
	}
	status, _ := mgr.Status("broken")
	if status != StatusRegistered {
		t.Fatalf("expected registered status, got %s", status)
	}
}

func TestWalletResourceRequiresCapability(t *testing.T) {
	mgr, _ := NewManager(ManagerConfig{}, WithResource(ResourceWallet, "wallet"), WithResource(ResourceNewsFeed, "news"))

	plain := &fakePlugin{info: Info{ID: "plain"}}
	wallet := &fakePlugin{info: Info{ID: "wallet", Capabilities: []Capability{CapabilityWallet}}}
	if err := mgr.Register("plain", plain, nil, IsolationPolicy{}); err != nil {
		t.Fatalf("register plain: %v", err)
	}
	if err := mgr.Register("wallet", wallet, nil, IsolationPolicy{AllowedCapabilities: []Capability{CapabilityWallet}}); err != nil {
		t.Fatalf("register wallet: %v", err)
	}
	if err := mgr.StartAll(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, ok := plain.resources[ResourceWallet]; ok {
		t.Fatalf("plugin without wallet capability received the wallet")
	}
	if plain.resources[ResourceNewsFeed] != "news" {
		t.Fatalf("shared resources must still be visible")
	}
	if wallet.resources[ResourceWallet] != "wallet" {
		t.Fatalf("wallet plugin did not receive the wallet")
	}
}

func TestCapabilityPolicies(t *testing.T) {
	mgr, _ := NewManager(ManagerConfig{})
	p := &fakePlugin{info: Info{ID: "net", Capabilities: []Capability{CapabilityNetwork}}}
	if err := mgr.Register("net", p, nil, IsolationPolicy{}); err == nil {
		t.Fatalf("expected missing policy to be rejected")
	}
	denied := IsolationPolicy{AllowedCapabilities: []Capability{CapabilityNetwork}, DeniedCapabilities: []Capability{CapabilityNetwork}}
	if err := mgr.Register("net", p, nil, denied); err == nil {
		t.Fatalf("expected denied capability to be rejected")
	}
	allowed := IsolationPolicy{AllowedCapabilities: []Capability{CapabilityNetwork}}
	if err := mgr.Register("net", p, nil, allowed); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestBuiltinOverridesFromConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugins.yaml")
	content := `
defaults:
  allowedCapabilities: [network, wallet]
plugins:
  merem:
    enabled: true
    builtin: true
    config:
      news_page_size: 3
  test:
    enabled: false
    builtin: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadManagerConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	merem := &fakePlugin{info: Info{ID: "merem", Capabilities: []Capability{CapabilityNetwork}}}
	if err := mgr.RegisterBuiltin("merem", merem, map[string]any{"default": "kept"}); err != nil {
		t.Fatalf("register builtin: %v", err)
	}
	if merem.configured["news_page_size"] != 3 || merem.configured["default"] != "kept" {
		t.Fatalf("unexpected merged config %#v", merem.configured)
	}
	if err := mgr.RegisterBuiltin("test", &fakePlugin{info: Info{ID: "test"}}, nil); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if len(mgr.Infos()) != 1 {
		t.Fatalf("expected one registered plugin")
	}
}

func TestResolveSymbol(t *testing.T) {
	p := &fakePlugin{info: Info{ID: "x"}}
	var asIface Plugin = p
	ctor := func() Plugin { return p }
	for _, sym := range []any{p, &asIface, ctor, &ctor} {
		got, err := resolveSymbol(sym)
		if err != nil || got != p {
			t.Fatalf("resolve %T: %v", sym, err)
		}
	}
	if _, err := resolveSymbol(42); err == nil {
		t.Fatalf("expected error for unsupported symbol")
	}
}
