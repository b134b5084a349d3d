package merem

import (
	"context"
	"math/rand/v2"

	"Merem-Agent/pkg/plugin"
)

var emotions = []string{
	"The agent feels a surge of joy, a broad smile spreading across its face.",
	"The agent looks downcast, its eyes filled with melancholy and a slow sigh escapes.",
	"The agent's face turns red with frustration, fists clenching in controlled rage.",
	"The agent takes a step back, eyes wide with panic and heart pounding in its chest.",
	"The agent's eyes widen and eyebrows lift in shock, a gasp of astonishment escapes.",
	"The agent's face contorts into a grimace of repulsion, nose wrinkling in distaste.",
	"The agent tilts its head slightly, eyes narrowing with interest and wonder.",
	"The agent scratches its head, furrowing its brow as it tries to make sense of things.",
	"The agent reclines peacefully, a calm and serene expression on its face.",
	"The agent's gaze softens, eyes filled with warmth and affection.",
}

type emotionProvider struct {
	pick func(n int) int
}

func newEmotionProvider(pick func(n int) int) *emotionProvider {
	if pick == nil {
		pick = rand.IntN
	}
	return &emotionProvider{pick: pick}
}

func (p *emotionProvider) Name() string { return "randomEmotion" }

func (p *emotionProvider) Get(_ context.Context, rt plugin.Runtime, _ *plugin.Memory, _ *plugin.State) (string, error) {
	return rt.Character().Name + ": " + emotions[p.pick(len(emotions))], nil
}
