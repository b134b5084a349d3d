package testplugin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"Merem-Agent/pkg/plugin"
)

const factTemplate = `TASK: Extract claims from the conversation as an array of claims in JSON format.

# START OF EXAMPLES
[
  {"claim": "User lives in Oakland", "type": "fact", "in_bio": false, "already_known": false},
  {"claim": "User went to the beach", "type": "status", "in_bio": false, "already_known": false}
]
# END OF EXAMPLES

Agent: %s
Bio: %s

Known facts:
%s

Recent messages:
%s

Claim types: "fact" is true about the world or the user and stays true, "status" is true now but may change, "opinion" is a belief.
Set in_bio to true when the claim is already stated in the bio, already_known to true when it is listed under known facts.
Respond with a JSON array only.`

// claim is one item of the extraction output.
type claim struct {
	Claim        string `json:"claim"`
	Type         string `json:"type"`
	InBio        bool   `json:"in_bio"`
	AlreadyKnown bool   `json:"already_known"`
}

type factEvaluator struct {
	every int
}

func (e *factEvaluator) Spec() plugin.EvaluatorSpec {
	return plugin.EvaluatorSpec{
		Name:        "GET_FACTS",
		Similes:     []string{"GET_CLAIMS", "EXTRACT_CLAIMS", "EXTRACT_FACTS"},
		Description: "Extract factual information about the people in the conversation and the world.",
	}
}

// Validate fires on every n-th message of the room. FACT_EVERY overrides the configured cadence.
func (e *factEvaluator) Validate(ctx context.Context, rt plugin.Runtime, msg *plugin.Memory) bool {
	every := e.every
	if raw := strings.TrimSpace(rt.Setting("FACT_EVERY")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			every = n
		}
	}
	if every <= 0 {
		every = DefaultFactEvery
	}
	count, err := rt.Messages().CountMemories(ctx, msg.RoomID)
	if err != nil {
		rt.Logger().Warn("count room messages failed", "room_id", msg.RoomID.String(), "error", err)
		return false
	}
	return count > 0 && count%every == 0
}

func (e *factEvaluator) Handle(ctx context.Context, rt plugin.Runtime, msg *plugin.Memory, state *plugin.State) error {
	log := rt.Logger().With("evaluator", "GET_FACTS", "room_id", msg.RoomID.String())

	known, err := rt.Facts().GetMemories(ctx, plugin.MemoryQuery{RoomID: msg.RoomID, Count: factsShown})
	if err != nil {
		return err
	}
	knownText := make(map[string]struct{}, len(known))
	var knownLines []string
	for _, f := range known {
		knownText[normalizeClaim(f.Content.Text)] = struct{}{}
		knownLines = append(knownLines, "- "+f.Content.Text)
	}

	var recent, bio string
	if state != nil {
		recent, bio = state.RecentMessages, state.Bio
	}
	if recent == "" {
		recent = msg.Content.Text
	}

	raw, err := rt.GenerateText(ctx, plugin.TextRequest{
		Context:    fmt.Sprintf(factTemplate, rt.Character().Name, bio, strings.Join(knownLines, "\n"), recent),
		ModelClass: plugin.ModelSmall,
	})
	if err != nil {
		return err
	}
	var claims []claim
	if err := plugin.ParseJSONArray(raw, &claims); err != nil {
		log.Warn("fact extraction output ignored", "error", err)
		return nil
	}

	stored := 0
	for _, c := range claims {
		text := strings.TrimSpace(c.Claim)
		if text == "" || !strings.EqualFold(c.Type, "fact") || c.InBio || c.AlreadyKnown {
			continue
		}
		key := normalizeClaim(text)
		if _, dup := knownText[key]; dup {
			continue
		}
		knownText[key] = struct{}{}
		fact := plugin.Memory{
			ID:        uuid.New(),
			UserID:    rt.AgentID(),
			AgentID:   rt.AgentID(),
			RoomID:    msg.RoomID,
			Content:   plugin.Content{Text: text, Source: msg.Content.Source, Metadata: map[string]any{"type": "fact"}},
			CreatedAt: time.Now().UnixMilli(),
		}
		if err := rt.Facts().CreateMemory(ctx, fact); err != nil {
			return err
		}
		stored++
	}
	log.Debug("facts extracted", "claims", len(claims), "stored", stored)
	return nil
}

func normalizeClaim(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
