package plugin

// Type represents the functional category of a plugin.
type Type string

const (
	// TypeSkill plugins contribute actions that answer user messages.
	TypeSkill Type = "skill"
	// TypeContext plugins only contribute providers and evaluators.
	TypeContext Type = "context"
)

// Capability expresses optional features a plugin may request access to.
type Capability string

const (
	CapabilityFilesystem Capability = "filesystem"
	CapabilityNetwork    Capability = "network"
	CapabilityExecution  Capability = "execution"
	// CapabilityWallet grants access to the host's chain wallet resource.
	CapabilityWallet Capability = "wallet"
)

// Info contains descriptive metadata for a plugin implementation.
type Info struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Author       string       `json:"author,omitempty"`
	Version      string       `json:"version,omitempty"`
	Category     Type         `json:"category"`
	Capabilities []Capability `json:"capabilities,omitempty"`
}

// Status represents the lifecycle position of a plugin instance.
type Status string

const (
	StatusRegistered  Status = "registered"
	StatusInitialised Status = "initialised"
	StatusStarted     Status = "started"
	StatusStopped     Status = "stopped"
)

// Well-known keys of ExecutionContext.Resources supplied by the host.
const (
	ResourceLogger    = "logger"
	ResourcePriceFeed = "feeds.prices"
	ResourceNewsFeed  = "feeds.news"
	ResourceWallet    = "web3.wallet"
)
