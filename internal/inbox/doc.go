// Package inbox queues user messages for asynchronous handling. Envelopes are
// published to an in-memory channel, a Redis list or a RabbitMQ queue and
// consumed by a Processor that hands each message to the agent runtime.
package inbox
