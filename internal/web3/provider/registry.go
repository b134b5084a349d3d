package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"Merem-Agent/internal/config"
	"Merem-Agent/internal/web3"
	"Merem-Agent/internal/web3/ethereum"
	"Merem-Agent/internal/web3/solana"
)

// Registry manages a set of chain clients keyed by human readable names.
type Registry struct {
	defaultChain string
	clients      map[string]web3.Client
}

// NewRegistry loads chain definitions and instantiates concrete clients.
// Without a chain file a single Solana chain is built from web3.solana.rpc_url.
func NewRegistry(ctx context.Context, cfg config.Web3Config) (*Registry, error) {
	defs, err := web3.LoadChainDefinitions(cfg.ChainConfig)
	if err != nil {
		return nil, err
	}
	if len(defs.Chains) == 0 {
		name := cfg.DefaultChain
		if name == "" {
			name = "solana"
		}
		defs.Chains[name] = web3.ChainDefinition{Type: web3.TypeSolana, RPCURL: cfg.Solana.RPCURL}
		cfg.DefaultChain = name
	}

	reg := &Registry{clients: make(map[string]web3.Client)}
	for name, chain := range defs.Chains {
		client, err := newClient(ctx, name, chain)
		if err != nil {
			reg.Close()
			return nil, fmt.Errorf("初始化链 %s 失败: %w", name, err)
		}
		reg.clients[name] = client
	}

	reg.defaultChain = cfg.DefaultChain
	if reg.defaultChain == "" {
		reg.defaultChain = reg.Chains()[0]
	}
	if _, ok := reg.clients[reg.defaultChain]; !ok {
		reg.Close()
		return nil, fmt.Errorf("默认链 %s 未在配置中找到", reg.defaultChain)
	}
	return reg, nil
}

// NewStaticRegistry builds a registry from ready clients.
func NewStaticRegistry(defaultChain string, clients map[string]web3.Client) (*Registry, error) {
	if _, ok := clients[defaultChain]; !ok {
		return nil, fmt.Errorf("默认链 %s 未在注册表中", defaultChain)
	}
	return &Registry{defaultChain: defaultChain, clients: clients}, nil
}

func newClient(ctx context.Context, name string, chain web3.ChainDefinition) (web3.Client, error) {
	switch strings.ToLower(strings.TrimSpace(chain.Type)) {
	case web3.TypeSolana:
		return solana.NewClient(ctx, solana.Config{
			Name:       name,
			RPCURL:     chain.RPCURL,
			Commitment: chain.Commitment,
			Notes:      chain.Description,
		})
	case web3.TypeEVM, "":
		return ethereum.NewClient(ctx, ethereum.Config{
			Name:   name,
			RPCURL: chain.RPCURL,
			Symbol: chain.Symbol,
			Notes:  chain.Description,
		})
	default:
		return nil, fmt.Errorf("不支持的链类型 %s", chain.Type)
	}
}

// DefaultClient returns the client configured as default chain.
func (r *Registry) DefaultClient() (web3.Client, error) {
	if r == nil {
		return nil, errors.New("未初始化的链客户端注册表")
	}
	client, ok := r.clients[r.defaultChain]
	if !ok {
		return nil, fmt.Errorf("默认链 %s 未在注册表中", r.defaultChain)
	}
	return client, nil
}

// FirstOfType returns the default chain if it matches chainType, otherwise the
// first chain of that type by name.
func (r *Registry) FirstOfType(chainType string) (web3.Client, bool) {
	if r == nil {
		return nil, false
	}
	if client, ok := r.clients[r.defaultChain]; ok && clientType(client) == chainType {
		return client, true
	}
	for _, name := range r.Chains() {
		if client := r.clients[name]; clientType(client) == chainType {
			return client, true
		}
	}
	return nil, false
}

func clientType(c web3.Client) string {
	switch c.(type) {
	case *solana.Client:
		return web3.TypeSolana
	case *ethereum.Client:
		return web3.TypeEVM
	default:
		return ""
	}
}

// Client returns the chain client identified by name.
func (r *Registry) Client(name string) (web3.Client, bool) {
	if r == nil {
		return nil, false
	}
	client, ok := r.clients[name]
	return client, ok
}

// Snapshots queries every chain. Failed chains are reported in the error map.
func (r *Registry) Snapshots(ctx context.Context) ([]web3.ChainSnapshot, map[string]error) {
	var (
		snaps []web3.ChainSnapshot
		errs  map[string]error
	)
	for _, name := range r.Chains() {
		snap, err := r.clients[name].Snapshot(ctx)
		if err != nil {
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[name] = err
			continue
		}
		if snap.Name == "" {
			snap.Name = name
		}
		snaps = append(snaps, snap)
	}
	return snaps, errs
}

// Close releases all clients managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	for name, client := range r.clients {
		if client != nil {
			client.Close()
		}
		delete(r.clients, name)
	}
}

// Chains returns the list of registered chain names.
func (r *Registry) Chains() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
