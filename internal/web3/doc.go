// Package web3 houses blockchain connectivity for the agent: a read-only
// Client abstraction over Solana and EVM networks, the Wallet that binds a
// client to its owner address, and YAML chain definitions consumed by the
// provider registry.
package web3
