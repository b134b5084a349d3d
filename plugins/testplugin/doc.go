// Package testplugin contributes the conversational baseline: the NONE
// action, the time and facts providers and the GET_FACTS evaluator that
// distils durable claims out of recent conversation.
package testplugin
