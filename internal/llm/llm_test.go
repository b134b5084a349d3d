package llm

import (
	"testing"

	"Merem-Agent/pkg/plugin"
)

func TestModelsResolve(t *testing.T) {
	models := Models{Small: "mini", Large: "big"}
	if got := models.Resolve(plugin.ModelSmall, "fallback"); got != "mini" {
		t.Fatalf("small resolved to %q", got)
	}
	if got := models.Resolve(plugin.ModelMedium, "fallback"); got != "fallback" {
		t.Fatalf("medium resolved to %q", got)
	}
	models = models.WithDefaults("x", "mid", "y")
	if got := models.Resolve(plugin.ModelMedium, "fallback"); got != "mid" {
		t.Fatalf("medium resolved to %q", got)
	}
	if got := models.Resolve("", "fallback"); got != "mid" {
		t.Fatalf("unknown class resolved to %q", got)
	}
}

func TestTrimStop(t *testing.T) {
	if got := TrimStop("bitcoin\nand more", []string{"\n"}); got != "bitcoin" {
		t.Fatalf("unexpected trim %q", got)
	}
	if got := TrimStop(" solana ", nil); got != "solana" {
		t.Fatalf("unexpected trim %q", got)
	}
}
