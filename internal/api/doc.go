// Package api exposes the agent over REST: synchronous and queued message
// submission, room history, the registered actions and chain snapshots.
package api
