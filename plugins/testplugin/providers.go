package testplugin

import (
	"context"
	"strings"
	"time"

	"Merem-Agent/pkg/plugin"
)

// factsShown caps how many facts the provider lists.
const factsShown = 10

type timeProvider struct {
	now func() time.Time
}

func (timeProvider) Name() string { return "time" }

func (p timeProvider) Get(context.Context, plugin.Runtime, *plugin.Memory, *plugin.State) (string, error) {
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	return "The current date and time is " + now().UTC().Format(time.RFC1123) +
		". Please use this as your reference for any time-based operations or responses.", nil
}

type factsProvider struct{}

func (factsProvider) Name() string { return "facts" }

func (factsProvider) Get(ctx context.Context, rt plugin.Runtime, msg *plugin.Memory, _ *plugin.State) (string, error) {
	facts, err := rt.Facts().GetMemories(ctx, plugin.MemoryQuery{RoomID: msg.RoomID, Count: factsShown})
	if err != nil {
		return "", err
	}
	if len(facts) == 0 {
		return "", nil
	}
	var b strings.Builder
	b.WriteString("Key facts that " + rt.Character().Name + " knows:")
	for _, f := range facts {
		b.WriteString("\n- " + f.Content.Text)
	}
	return b.String(), nil
}
