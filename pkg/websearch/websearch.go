// Package websearch streams answers from web-search-capable chat models and
// aggregates the event stream into a single result with source citations.
//
// Two wire protocols are understood. ProtocolResponses consumes the typed
// event stream of the Responses API (response.output_text.delta,
// response.completed, ...). ProtocolChatCompletions consumes incremental
// chat-completion chunks (choices[0].delta.content). Both arrive with
// SSE-style framing: data: lines grouped into blocks separated by a blank
// line, terminated either by a [DONE] sentinel or by the end of the body.
// The Aggregator reduces either stream to one Result while forwarding text
// fragments to a Sink as they arrive.
package websearch

import (
	"fmt"
	"net/http"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn sent with the request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Citation is one source reference harvested from the stream. Title is empty
// when the provider did not send one. The first title seen for a URL wins;
// later occurrences of the same URL are dropped entirely.
type Citation struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Result is the aggregate outcome of one streamed response.
type Result struct {
	// Message is the final answer text. It is empty only when the stream
	// carried no structured data at all.
	Message string
	// Citations lists harvested sources in first-seen order.
	Citations []Citation
	// Displayed reports whether at least one text fragment reached the sink
	// while the stream was live. When false, Message was recovered from
	// final payloads and has not been shown incrementally.
	Displayed bool
}

// Sink receives text fragments in arrival order during streaming. It is
// invoked synchronously and never concurrently. A non-nil error aborts the
// whole run.
type Sink func(fragment string) error

// Protocol selects how stream payloads are interpreted.
type Protocol int

const (
	// ProtocolResponses interprets typed Responses API events.
	ProtocolResponses Protocol = iota
	// ProtocolChatCompletions interprets chat-completion delta chunks.
	ProtocolChatCompletions
)

func (p Protocol) String() string {
	if p == ProtocolChatCompletions {
		return "chat_completions"
	}
	return "responses"
}

// APIError is returned when the endpoint answers the initial request with a
// non-success status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("web search API error (%d): %s", e.StatusCode, e.Body)
}

// Option configures a Client or an Aggregator.
type Option func(*options)

type options struct {
	httpClient *http.Client
	strictJSON bool
}

// WithStrictJSON makes malformed data: payloads abort the run instead of
// being skipped. Blocks without any data: line stay best-effort either way.
func WithStrictJSON(strict bool) Option {
	return func(o *options) { o.strictJSON = strict }
}

// WithHTTPClient replaces the HTTP client used for streaming requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}
