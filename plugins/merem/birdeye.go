package merem

import (
	"context"
	"fmt"
	"strings"

	"Merem-Agent/pkg/plugin"
)

const symbolTemplate = "Extract the token symbol from the user's message. Valid tokens are: %s. This message is: %s. Only respond with the token symbol in uppercase. Do not include any other text."

type birdeyeToken struct {
	p *Plugin
}

func (a *birdeyeToken) Spec() plugin.ActionSpec {
	ask := func(text, reply string) []plugin.ActionExample {
		return []plugin.ActionExample{
			{User: "{{user1}}", Content: plugin.Content{Text: text}},
			{User: "{{user2}}", Content: plugin.Content{Text: reply, Action: "GET_TOKEN_PRICE"}},
		}
	}
	return plugin.ActionSpec{
		Name:        "BirdeyeToken",
		Similes:     []string{"GET_TOKEN_PRICE", "BIRDEYE_GET_TOKEN_PRICE", "CHECK_TOKEN_PRICE"},
		Description: "Get the current token price from Birdeye API if asked by the user",
		Examples: [][]plugin.ActionExample{
			ask("what's the current SOL price?", "Let me check the SOL price for you"),
			ask("how much is BONK worth?", "Fetching current BONK price"),
			ask("check USDC price", "Getting USDC price data"),
			ask("show me JTO price", "Fetching JTO price data"),
		},
	}
}

func (a *birdeyeToken) Validate(context.Context, plugin.Runtime, *plugin.Memory) bool { return true }

func (a *birdeyeToken) Handle(ctx context.Context, rt plugin.Runtime, msg *plugin.Memory, _ *plugin.State, _ map[string]any, cb plugin.HandlerCallback) (bool, error) {
	text, ok := a.quote(ctx, rt, msg)
	tag := TagPriceResponse
	if !ok {
		tag = TagPriceError
	}
	if err := respond(ctx, rt, msg, text, tag, cb); err != nil {
		return false, err
	}
	return ok, nil
}

// quote returns the reply text and whether a price was obtained.
func (a *birdeyeToken) quote(ctx context.Context, rt plugin.Runtime, msg *plugin.Memory) (string, bool) {
	log := a.p.logger()
	symbols := a.p.TokenSymbols()
	raw, err := rt.GenerateText(ctx, plugin.TextRequest{
		Context:    fmt.Sprintf(symbolTemplate, strings.Join(symbols, ", "), msg.Content.Text),
		ModelClass: plugin.ModelSmall,
		Stop:       []string{"\n"},
	})
	if err != nil {
		log.Warn("token symbol extraction failed", "error", err)
		return a.apology(symbols), false
	}
	symbol := plugin.CleanToken(raw)
	if symbol == "" {
		return a.apology(symbols), false
	}
	address, ok := a.p.TokenAddress(symbol)
	if !ok {
		log.Info("token symbol not priced", "symbol", symbol)
		return a.apology(symbols), false
	}
	feed := a.p.priceFeed()
	if feed == nil {
		return a.apology(symbols), false
	}
	price, err := feed.TokenPrice(ctx, address)
	if err != nil {
		log.Warn("birdeye price fetch failed", "symbol", symbol, "error", err)
		return a.apology(symbols), false
	}
	return fmt.Sprintf("Current price of %s: $%s\n24h change: %s%%\nVolume 24h: $%s",
		symbol, price.Value.String(), price.PriceChange24h.String(), price.Volume24h.String()), true
}

func (a *birdeyeToken) apology(symbols []string) string {
	return "Sorry, I couldn't get the token price right now. I can check prices for: " + strings.Join(symbols, ", ") + "."
}
