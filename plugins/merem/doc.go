// Package merem is the built-in skill plugin of the agent. It answers news
// searches through NewsAPI, token prices through Birdeye, Solana wallet
// requests through the host wallet, and a hello-world smoke action. It also
// contributes the randomEmotion provider.
//
// Every action persists exactly one response record through the runtime's
// message manager before delivering it, except Hello_World which only calls
// back.
package merem
