// Package llm defines the text generation contract used by the agent runtime
// and its plugins. Provider adapters live in sub-packages: openai, anthropic,
// gemini, ollama and pythonbridge.
package llm
