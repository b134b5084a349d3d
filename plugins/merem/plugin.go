package merem

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"Merem-Agent/internal/feeds/birdeye"
	"Merem-Agent/internal/feeds/newsapi"
	"Merem-Agent/pkg/plugin"
)

// ID is the identifier the plugin registers under.
const ID = "merem"

// NewsFeed searches news articles.
type NewsFeed interface {
	Everything(ctx context.Context, query string) ([]newsapi.Article, error)
}

// PriceFeed returns the current price of a token mint address.
type PriceFeed interface {
	TokenPrice(ctx context.Context, address string) (*birdeye.Price, error)
}

// Wallet is the Solana wallet SolanaTools reads balances from.
type Wallet interface {
	Address() string
	Balance(ctx context.Context) (decimal.Decimal, error)
}

// WalletOpener builds the wallet from the host credential. The host exposes it
// under plugin.ResourceWallet; it is called once during Init.
type WalletOpener func(ctx context.Context) (Wallet, error)

// Plugin holds the collaborators shared by the merem actions.
type Plugin struct {
	mu     sync.RWMutex
	tokens map[string]string
	news   NewsFeed
	prices PriceFeed
	wallet Wallet
	log    *slog.Logger
}

var _ plugin.Plugin = (*Plugin)(nil)

// New returns the plugin with the default token table.
func New() *Plugin {
	return &Plugin{tokens: DefaultTokens(), log: slog.Default()}
}

func (p *Plugin) Info() plugin.Info {
	return plugin.Info{
		ID:           ID,
		Name:         "Merem skills",
		Description:  "News search, Birdeye token prices and Solana wallet tools.",
		Author:       "Merem",
		Version:      "1.0.0",
		Category:     plugin.TypeSkill,
		Capabilities: []plugin.Capability{plugin.CapabilityNetwork, plugin.CapabilityWallet},
	}
}

// Configure reads the optional "tokens" block, a symbol to mint address map
// that overrides or extends the default table.
func (p *Plugin) Configure(cfg map[string]any) error {
	raw, ok := cfg["tokens"]
	if !ok || raw == nil {
		return nil
	}
	overrides := map[string]string{}
	switch value := raw.(type) {
	case map[string]string:
		for k, v := range value {
			overrides[k] = v
		}
	case map[string]any:
		for k, v := range value {
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("token %s: address must be a string, got %T", k, v)
			}
			overrides[k] = s
		}
	default:
		return fmt.Errorf("tokens must be a map, got %T", raw)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = MergeTokens(p.tokens, overrides)
	return nil
}

// Init picks up the feeds and opens the wallet. A wallet that cannot be opened
// is logged and left unset so SolanaTools fails validation.
func (p *Plugin) Init(ctx *plugin.ExecutionContext) error {
	log := ctx.Logger().With("plugin", ID)
	news, _ := ctx.Resources[plugin.ResourceNewsFeed].(NewsFeed)
	prices, _ := ctx.Resources[plugin.ResourcePriceFeed].(PriceFeed)

	var wallet Wallet
	if open, ok := ctx.Resources[plugin.ResourceWallet].(WalletOpener); ok && open != nil {
		w, err := open(ctx.C)
		if err != nil {
			log.Warn("solana wallet unavailable", "error", err)
		} else {
			wallet = w
			log.Info("solana wallet ready", "address", w.Address())
		}
	} else {
		log.Warn("no wallet resource granted, solana tools disabled")
	}
	if news == nil {
		log.Warn("news feed not configured")
	}
	if prices == nil {
		log.Warn("price feed not configured")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = log
	p.news = news
	p.prices = prices
	p.wallet = wallet
	return nil
}

func (p *Plugin) Start(*plugin.ExecutionContext) error { return nil }

func (p *Plugin) Stop(*plugin.ExecutionContext) error { return nil }

func (p *Plugin) Components() plugin.Components {
	return plugin.Components{
		Actions: []plugin.Action{
			&currentNews{p: p},
			&solanaTools{p: p},
			&birdeyeToken{p: p},
			helloWorld{},
		},
		Providers: []plugin.Provider{newEmotionProvider(nil)},
	}
}

func (p *Plugin) newsFeed() NewsFeed {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.news
}

func (p *Plugin) priceFeed() PriceFeed {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prices
}

func (p *Plugin) solanaWallet() Wallet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.wallet
}

func (p *Plugin) logger() *slog.Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.log
}

// TokenAddress looks up the mint address of symbol. Symbols are matched upper-case.
func (p *Plugin) TokenAddress(symbol string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	addr, ok := p.tokens[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok || addr == "" {
		return "", false
	}
	return addr, true
}

// TokenSymbols lists the known symbols in table order.
func (p *Plugin) TokenSymbols() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return symbols(p.tokens)
}
