package testplugin

import (
	"fmt"
	"strconv"
	"time"

	"Merem-Agent/pkg/plugin"
)

// ID is the identifier the plugin registers under.
const ID = "test"

// DefaultFactEvery is how many room messages pass between fact extractions.
const DefaultFactEvery = 10

// Plugin bundles the baseline components.
type Plugin struct {
	factEvery int
	now       func() time.Time
}

var _ plugin.Plugin = (*Plugin)(nil)

func New() *Plugin {
	return &Plugin{factEvery: DefaultFactEvery, now: time.Now}
}

func (p *Plugin) Info() plugin.Info {
	return plugin.Info{
		ID:          ID,
		Name:        "Baseline context",
		Description: "NONE action, time and facts providers, fact extraction.",
		Author:      "Merem",
		Version:     "1.0.0",
		Category:    plugin.TypeContext,
	}
}

// Configure accepts "fact_every" as a number or numeric string.
func (p *Plugin) Configure(cfg map[string]any) error {
	raw, ok := cfg["fact_every"]
	if !ok || raw == nil {
		cfg["fact_every"] = p.factEvery
		return nil
	}
	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("fact_every: %w", err)
		}
		n = parsed
	default:
		return fmt.Errorf("fact_every must be a number, got %T", raw)
	}
	if n < 1 {
		return fmt.Errorf("fact_every must be positive, got %d", n)
	}
	p.factEvery = n
	return nil
}

func (p *Plugin) Init(*plugin.ExecutionContext) error { return nil }

func (p *Plugin) Start(*plugin.ExecutionContext) error { return nil }

func (p *Plugin) Stop(*plugin.ExecutionContext) error { return nil }

func (p *Plugin) Components() plugin.Components {
	return plugin.Components{
		Actions:    []plugin.Action{noneAction{}},
		Providers:  []plugin.Provider{timeProvider{now: p.now}, factsProvider{}},
		Evaluators: []plugin.Evaluator{&factEvaluator{every: p.factEvery}},
	}
}
