// Package llm provides a chat-completions client for OpenAI-compatible
// endpoints (OpenRouter by default) that always requests JSON output.
//
// The novel package builds its parser, script, and storyboard generators on
// CompleteJSON and DecodeJSON.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx, empty model content, and network
// timeouts with exponential backoff (base 1s, max 15s, four attempts by
// default). Retry-After headers are honoured. Context cancellation aborts
// retries immediately.
package llm
