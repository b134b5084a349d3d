// Package config loads the Merem runtime configuration from a YAML or JSON
// file, an optional .env file next to it and MEREM_-prefixed environment
// variables. The plugin-era variable names (OPENAI_API_KEY, BIRDEYE_API_KEY,
// NEWS_API_KEY, SOLANA_*) are honoured as fallbacks.
package config
