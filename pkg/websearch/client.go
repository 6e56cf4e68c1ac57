package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/renatogalera/ai-chat/pkg/httpx"
)

// readBufferSize is the read size used while draining the response body.
const readBufferSize = 32 * 1024

// Client issues streaming web-search requests against an OpenAI-style API
// and aggregates the replies. The credential is an opaque bearer token.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	strictJSON bool
}

// NewClient builds a Client for the given bearer token and API base URL
// (for example https://api.openai.com/v1).
func NewClient(apiKey, baseURL string, opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = httpx.NewStreamingClient()
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		strictJSON: o.strictJSON,
	}
}

type responsesRequest struct {
	Model string             `json:"model"`
	Input []responsesMessage `json:"input"`
	Tools []toolSpec         `json:"tools,omitempty"`
}

type responsesMessage struct {
	Role    string             `json:"role"`
	Content []responsesContent `json:"content"`
}

type responsesContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolSpec struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// StreamResponse sends the conversation to the endpoint selected by
// protocol and aggregates the streamed reply, forwarding fragments to sink
// as they arrive. Cancelling ctx closes the connection and ends the run.
func (c *Client) StreamResponse(ctx context.Context, model string, messages []Message, protocol Protocol, sink Sink) (*Result, error) {
	req, err := c.newStreamRequest(ctx, model, messages, protocol)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("url", req.URL.String()).Stringer("protocol", protocol).Msg("starting web search stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", protocol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	agg := NewAggregator(protocol, sink, WithStrictJSON(c.strictJSON))
	buf := make([]byte, readBufferSize)
	for !agg.Done() {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if err := agg.Feed(buf[:n]); err != nil {
				return nil, err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read response chunk: %w", readErr)
		}
	}
	return agg.Finish()
}

func (c *Client) newStreamRequest(ctx context.Context, model string, messages []Message, protocol Protocol) (*http.Request, error) {
	var (
		endpoint string
		payload  any
	)
	if protocol == ProtocolChatCompletions {
		endpoint = c.baseURL + "/chat/completions"
		payload = chatRequest{Model: model, Messages: messages, Stream: true}
	} else {
		endpoint = c.baseURL + "/responses?stream=true"
		input := make([]responsesMessage, 0, len(messages))
		for _, m := range messages {
			contentType := "input_text"
			if m.Role == RoleAssistant {
				contentType = "output_text"
			}
			input = append(input, responsesMessage{
				Role:    string(m.Role),
				Content: []responsesContent{{Type: contentType, Text: m.Content}},
			})
		}
		payload = responsesRequest{
			Model: model,
			Input: input,
			Tools: []toolSpec{{Type: "web_search"}},
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	return req, nil
}
