package merem

import (
	"context"
	"time"

	"github.com/google/uuid"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/pkg/plugin"
)

// Response record tags.
const (
	TagNewsResponse   = "CURRENT_NEWS_RESPONSE"
	TagNewsError      = "CURRENT_NEWS_ERROR"
	TagSolanaResponse = "SOLANA_TOOLS_RESPONSE"
	TagSolanaError    = "SOLANA_TOOLS_ERROR"
	TagPriceResponse  = "BIRDEYE_TOKEN_PRICE_RESPONSE"
	TagPriceError     = "BIRDEYE_TOKEN_PRICE_ERROR"
)

// respond writes the agent's reply as a new memory and hands its content to cb.
func respond(ctx context.Context, rt plugin.Runtime, msg *plugin.Memory, text, tag string, cb plugin.HandlerCallback) error {
	replyTo := msg.ID
	record := plugin.Memory{
		ID:      uuid.New(),
		UserID:  rt.AgentID(),
		AgentID: rt.AgentID(),
		RoomID:  msg.RoomID,
		Content: plugin.Content{
			Text:      text,
			Action:    tag,
			Source:    msg.Content.Source,
			InReplyTo: &replyTo,
		},
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := rt.Messages().CreateMemory(ctx, record); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "persist "+tag)
	}
	if cb == nil {
		return nil
	}
	return cb(ctx, record.Content)
}
