package merem

import (
	"context"

	"Merem-Agent/pkg/plugin"
)

type helloWorld struct{}

func (helloWorld) Spec() plugin.ActionSpec {
	var examples [][]plugin.ActionExample
	for _, text := range []string{
		"Can you show me a Hello World in ascii",
		"can you show me a hello world?",
		"How would you print Hello World ?",
		"How about a Hello World in Rust?",
	} {
		examples = append(examples, []plugin.ActionExample{
			{User: "{{user1}}", Content: plugin.Content{Text: text, Action: "NONE"}},
			{User: "{{user2}}", Content: plugin.Content{Text: ";", Action: "HELLO_WORLD"}},
		})
	}
	return plugin.ActionSpec{
		Name:        "Hello_World",
		Similes:     []string{"HELLO"},
		Description: "Replies with hello world.",
		Examples:    examples,
	}
}

func (helloWorld) Validate(context.Context, plugin.Runtime, *plugin.Memory) bool { return true }

// Handle only calls back; nothing is persisted.
func (helloWorld) Handle(ctx context.Context, _ plugin.Runtime, _ *plugin.Memory, _ *plugin.State, _ map[string]any, cb plugin.HandlerCallback) (bool, error) {
	if cb != nil {
		if err := cb(ctx, plugin.Content{Text: "hello world"}); err != nil {
			return false, err
		}
	}
	return true, nil
}
