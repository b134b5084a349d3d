// Package agent hosts plugin components and handles user messages: it stores
// the incoming message, composes state from providers, picks at most one
// action, runs it with a collecting callback and then runs the evaluators.
package agent
