package merem

import (
	"context"
	"fmt"
	"strings"

	"Merem-Agent/pkg/plugin"
)

const (
	maxArticles       = 5
	maxArticleContent = 500
	newsUnavailable   = "Sorry, I couldn't fetch the news at the moment."
)

const searchTermTemplate = "Extract the search term from the user's message. This message is %s only respond with the search term do not include any other text"

type currentNews struct {
	p *Plugin
}

func (a *currentNews) Spec() plugin.ActionSpec {
	return plugin.ActionSpec{
		Name:        "CurrentNews",
		Similes:     []string{"NEWS", "GET_NEWS", "GET_CURRENT_NEWS"},
		Description: "Get the current news for a search term if asked by the user",
		Examples: [][]plugin.ActionExample{{
			{User: "{{user1}}", Content: plugin.Content{Text: "what's the latest crypto news?"}},
			{User: "{{user2}}", Content: plugin.Content{Text: "Let me check the latest crypto news for you", Action: "GET_NEWS"}},
		}},
	}
}

func (a *currentNews) Validate(context.Context, plugin.Runtime, *plugin.Memory) bool { return true }

func (a *currentNews) Handle(ctx context.Context, rt plugin.Runtime, msg *plugin.Memory, _ *plugin.State, _ map[string]any, cb plugin.HandlerCallback) (bool, error) {
	term, err := rt.GenerateText(ctx, plugin.TextRequest{
		Context:    fmt.Sprintf(searchTermTemplate, msg.Content.Text),
		ModelClass: plugin.ModelSmall,
		Stop:       []string{"\n"},
	})
	if err != nil {
		a.p.logger().Warn("news search term generation failed", "room_id", msg.RoomID.String(), "error", err)
		if err := respond(ctx, rt, msg, newsUnavailable, TagNewsError, cb); err != nil {
			return false, err
		}
		return false, nil
	}
	term = strings.TrimSpace(term)

	block := a.fetch(ctx, term)
	text := fmt.Sprintf("The current news for the search term \"%s\" is:\n\n%s", term, block)
	if err := respond(ctx, rt, msg, text, TagNewsResponse, cb); err != nil {
		return false, err
	}
	return true, nil
}

// fetch never fails; a feed error becomes the apology block.
func (a *currentNews) fetch(ctx context.Context, term string) string {
	feed := a.p.newsFeed()
	if feed == nil {
		return newsUnavailable
	}
	articles, err := feed.Everything(ctx, term)
	if err != nil {
		a.p.logger().Warn("news fetch failed", "term", term, "error", err)
		return newsUnavailable
	}
	if len(articles) > maxArticles {
		articles = articles[:maxArticles]
	}
	parts := make([]string, 0, len(articles))
	for _, art := range articles {
		parts = append(parts, art.Title+"\n"+art.URL+"\n"+truncateRunes(art.Content, maxArticleContent))
	}
	return strings.Join(parts, "\n\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
