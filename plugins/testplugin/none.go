package testplugin

import (
	"context"

	"Merem-Agent/pkg/plugin"
)

type noneAction struct{}

func (noneAction) Spec() plugin.ActionSpec {
	return plugin.ActionSpec{
		Name:        "NONE",
		Similes:     []string{"NO_ACTION", "NO_RESPONSE", "NO_REACTION"},
		Description: "Respond but perform no additional action. This is the default if the agent is speaking and not doing anything additional.",
	}
}

func (noneAction) Validate(context.Context, plugin.Runtime, *plugin.Memory) bool { return true }

func (noneAction) Handle(context.Context, plugin.Runtime, *plugin.Memory, *plugin.State, map[string]any, plugin.HandlerCallback) (bool, error) {
	return true, nil
}
