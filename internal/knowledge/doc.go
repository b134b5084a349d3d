// Package knowledge serves static reference snippets that the runtime adds to
// the composed state when a message mentions one of their keywords.
package knowledge
