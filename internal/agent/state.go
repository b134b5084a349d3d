package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/internal/knowledge"
	"Merem-Agent/pkg/plugin"
)

// ComposeState 读取最近消息并运行所有 provider，生成本次处理使用的只读状态。
// provider 失败只记录日志，不影响其他 provider。
func (r *Runtime) ComposeState(ctx context.Context, msg *plugin.Memory) (*plugin.State, error) {
	if msg == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "消息不能为空")
	}
	state := &plugin.State{
		AgentID:   r.agentID,
		AgentName: r.character.Name,
		RoomID:    msg.RoomID,
		Bio:       strings.Join(r.character.Bio, "\n"),
		Lore:      strings.Join(r.character.Lore, "\n"),
		Topics:    strings.Join(r.character.Topics, ", "),
	}

	if r.messages != nil {
		recent, err := r.messages.GetMemories(ctx, plugin.MemoryQuery{RoomID: msg.RoomID, Count: r.memoryDepth})
		if err != nil {
			r.log.WarnContext(ctx, "加载最近消息失败", slog.String("room_id", msg.RoomID.String()), slog.Any("error", err))
		} else {
			state.Recent = recent
			state.RecentMessages = r.formatMessages(recent)
		}
	}

	r.mu.RLock()
	providers := append([]plugin.Provider(nil), r.providers...)
	actions := append([]plugin.Action(nil), r.actions...)
	r.mu.RUnlock()

	state.Actions = formatActions(actions)

	blocks := make([]string, 0, len(providers)+1)
	for _, p := range providers {
		text, err := p.Get(ctx, r, msg, state)
		if err != nil {
			r.log.WarnContext(ctx, "provider 执行失败", slog.String("provider", p.Name()), slog.Any("error", err))
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			blocks = append(blocks, text)
		}
	}
	if r.knowledge != nil {
		if block := knowledge.Format(r.knowledge.Query(msg.Content.Text, msg.Content.Action)); block != "" {
			blocks = append(blocks, block)
		}
	}
	state.Providers = strings.Join(blocks, "\n\n")
	return state, nil
}

// formatMessages 按时间正序输出 "名称: 文本"。
func (r *Runtime) formatMessages(recent []plugin.Memory) string {
	lines := make([]string, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		text := strings.TrimSpace(m.Content.Text)
		if text == "" {
			continue
		}
		name := "user-" + m.UserID.String()[:8]
		if m.UserID == r.agentID {
			name = r.character.Name
		}
		line := name + ": " + text
		if m.Content.Action != "" {
			line += fmt.Sprintf(" (%s)", m.Content.Action)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatActions(actions []plugin.Action) string {
	lines := make([]string, 0, len(actions))
	for _, a := range actions {
		spec := a.Spec()
		lines = append(lines, fmt.Sprintf("- %s: %s", spec.Name, spec.Description))
	}
	return strings.Join(lines, "\n")
}
