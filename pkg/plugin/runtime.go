package plugin

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Content is the payload of a memory record.
type Content struct {
	Text      string         `json:"text"`
	Action    string         `json:"action,omitempty"`
	Source    string         `json:"source,omitempty"`
	InReplyTo *uuid.UUID     `json:"in_reply_to,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Memory is a single message or fact stored by the runtime. Incoming messages
// are treated as immutable input; response records are written once.
type Memory struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	AgentID   uuid.UUID `json:"agent_id"`
	RoomID    uuid.UUID `json:"room_id"`
	Content   Content   `json:"content"`
	CreatedAt int64     `json:"created_at"`
}

// Character describes the persona the runtime speaks as.
type Character struct {
	Name   string   `json:"name"`
	Bio    []string `json:"bio,omitempty"`
	Lore   []string `json:"lore,omitempty"`
	Topics []string `json:"topics,omitempty"`
}

// State is the per-message context composed from providers and recent history.
// Handlers must treat it as read-only.
type State struct {
	AgentID        uuid.UUID
	AgentName      string
	RoomID         uuid.UUID
	Bio            string
	Lore           string
	Topics         string
	Providers      string
	Actions        string
	RecentMessages string
	Recent         []Memory
}

// ModelClass selects the size of model used for a generation call.
type ModelClass string

const (
	ModelSmall  ModelClass = "small"
	ModelMedium ModelClass = "medium"
	ModelLarge  ModelClass = "large"
)

// TextRequest is a single text generation call.
type TextRequest struct {
	Context     string
	ModelClass  ModelClass
	Stop        []string
	Temperature float32
	MaxTokens   int
}

// MemoryQuery selects memories of one room, newest first.
type MemoryQuery struct {
	RoomID uuid.UUID
	Count  int
}

// MemoryManager persists memory records.
type MemoryManager interface {
	CreateMemory(ctx context.Context, m Memory) error
	GetMemories(ctx context.Context, q MemoryQuery) ([]Memory, error)
	CountMemories(ctx context.Context, roomID uuid.UUID) (int, error)
}

// HandlerCallback delivers a response to the user.
type HandlerCallback func(ctx context.Context, c Content) error

// Runtime is what plugins see of the host agent.
type Runtime interface {
	AgentID() uuid.UUID
	Character() Character
	GenerateText(ctx context.Context, req TextRequest) (string, error)
	Messages() MemoryManager
	Facts() MemoryManager
	Setting(key string) string
	Logger() *slog.Logger
}

// ActionExample is one line of a sample conversation.
type ActionExample struct {
	User    string  `json:"user"`
	Content Content `json:"content"`
}

// ActionSpec is the static description of an action.
type ActionSpec struct {
	Name        string            `json:"name"`
	Similes     []string          `json:"similes,omitempty"`
	Description string            `json:"description"`
	Examples    [][]ActionExample `json:"examples,omitempty"`
}

// Matches reports whether name equals the action name or one of its similes.
func (s ActionSpec) Matches(name string) bool {
	if equalFold(s.Name, name) {
		return true
	}
	for _, simile := range s.Similes {
		if equalFold(simile, name) {
			return true
		}
	}
	return false
}

// Action answers a user message.
//
// Validate must be side-effect free. Handle returns false when it produced an
// error reply instead of the requested result; a returned error is reserved
// for failures the handler could not turn into a reply.
type Action interface {
	Spec() ActionSpec
	Validate(ctx context.Context, rt Runtime, msg *Memory) bool
	Handle(ctx context.Context, rt Runtime, msg *Memory, state *State, opts map[string]any, cb HandlerCallback) (bool, error)
}

// Provider contributes a block of text to the composed state.
type Provider interface {
	Name() string
	Get(ctx context.Context, rt Runtime, msg *Memory, state *State) (string, error)
}

// EvaluatorSpec is the static description of an evaluator.
type EvaluatorSpec struct {
	Name        string   `json:"name"`
	Similes     []string `json:"similes,omitempty"`
	Description string   `json:"description"`
	AlwaysRun   bool     `json:"always_run"`
}

// Evaluator runs after a message has been handled.
type Evaluator interface {
	Spec() EvaluatorSpec
	Validate(ctx context.Context, rt Runtime, msg *Memory) bool
	Handle(ctx context.Context, rt Runtime, msg *Memory, state *State) error
}
