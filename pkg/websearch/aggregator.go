package websearch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// doneSentinel ends the stream as soon as it appears on a data: line,
// independent of transport closure.
const doneSentinel = "[DONE]"

var (
	crlf     = []byte("\r\n")
	lf       = []byte("\n")
	blockSep = []byte("\n\n")
)

// eventKind classifies the type discriminator of a structured event.
type eventKind int

const (
	eventUnrecognized eventKind = iota
	eventTextDelta
	eventAnnotation
	eventFullText
	eventCompleted
	eventMessage
	eventError
)

func classifyEvent(typ string) eventKind {
	switch {
	case typ == "response.output_text.delta":
		return eventTextDelta
	case strings.HasPrefix(typ, "response.output_text.annotation"):
		return eventAnnotation
	case typ == "response.output_text":
		return eventFullText
	case typ == "response.completed":
		return eventCompleted
	case typ == "message":
		return eventMessage
	case typ == "response.error":
		return eventError
	}
	return eventUnrecognized
}

// Aggregator reduces one SSE-style byte stream to a Result. It owns the
// whole state of a single run and must not be shared between goroutines or
// reused after Finish. Chunk boundaries carry no meaning: any split of the
// same byte sequence fed through Feed leads to the same final state.
type Aggregator struct {
	protocol   Protocol
	sink       Sink
	strictJSON bool

	carry     []byte
	pendingCR bool
	done      bool
	finished  bool

	textBuffer strings.Builder
	seenURLs   map[string]struct{}
	citations  []Citation
	displayed  bool

	finalText        string
	finalResponse    any
	hasFinalResponse bool
	finalMessage     any
	hasFinalMessage  bool
}

// NewAggregator returns an Aggregator for one streamed response. Fragments
// extracted while the stream is live are handed to sink in arrival order; a
// nil sink aggregates without forwarding.
func NewAggregator(protocol Protocol, sink Sink, opts ...Option) *Aggregator {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if sink == nil {
		sink = func(string) error { return nil }
	}
	return &Aggregator{
		protocol:   protocol,
		sink:       sink,
		strictJSON: o.strictJSON,
		seenURLs:   make(map[string]struct{}),
	}
}

// Done reports whether the stream already terminated via the sentinel.
// Further input is ignored once it did.
func (a *Aggregator) Done() bool { return a.done }

// Feed ingests the next chunk of the raw stream body, draining every
// complete event block it can. A trailing \r is held back until the next
// chunk so a \r\n pair split across chunks still collapses to one newline.
func (a *Aggregator) Feed(chunk []byte) error {
	if a.done || a.finished {
		return nil
	}
	if a.pendingCR {
		chunk = append([]byte{'\r'}, chunk...)
		a.pendingCR = false
	}
	if n := len(chunk); n > 0 && chunk[n-1] == '\r' {
		a.pendingCR = true
		chunk = chunk[:n-1]
	}
	a.carry = append(a.carry, bytes.ReplaceAll(chunk, crlf, lf)...)
	for {
		idx := bytes.Index(a.carry, blockSep)
		if idx < 0 {
			return nil
		}
		block := string(a.carry[:idx])
		a.carry = a.carry[idx+2:]
		if err := a.processBlock(block); err != nil {
			return err
		}
		if a.done {
			a.carry = nil
			return nil
		}
	}
}

// Finish flushes any unterminated trailing block and resolves the final
// Result. The aggregator must not be used afterwards.
func (a *Aggregator) Finish() (*Result, error) {
	if a.finished {
		return nil, errors.New("aggregation already finished")
	}
	a.finished = true
	if !a.done {
		if a.pendingCR {
			a.carry = append(a.carry, '\r')
			a.pendingCR = false
		}
		tail := string(a.carry)
		a.carry = nil
		if strings.TrimSpace(tail) != "" {
			if err := a.processBlock(tail); err != nil {
				return nil, err
			}
		}
	}
	if a.protocol == ProtocolChatCompletions {
		return a.finishChat(), nil
	}
	return a.finishResponses(), nil
}

// processBlock handles one event block: sentinel detection, data: payload
// joining, JSON parsing, and dispatch to the active protocol handler.
func (a *Aggregator) processBlock(block string) error {
	var payloads []string
	for _, line := range strings.Split(block, "\n") {
		rest, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data := strings.TrimSpace(rest)
		if data == doneSentinel {
			a.done = true
			return nil
		}
		if data != "" {
			payloads = append(payloads, data)
		}
	}
	if len(payloads) == 0 {
		raw := strings.TrimSpace(block)
		if raw == "" {
			return nil
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			log.Debug().Err(err).Msg("stream block without data lines is not JSON, skipping")
			return nil
		}
		return a.handlePayload(v)
	}
	var v any
	if err := json.Unmarshal([]byte(strings.Join(payloads, "\n")), &v); err != nil {
		if a.strictJSON {
			return fmt.Errorf("malformed stream payload: %w", err)
		}
		log.Debug().Err(err).Msg("skipping malformed stream payload")
		return nil
	}
	return a.handlePayload(v)
}

func (a *Aggregator) handlePayload(v any) error {
	harvestCitations(v, a.seenURLs, &a.citations)
	if a.protocol == ProtocolChatCompletions {
		return a.handleChatPayload(v)
	}
	return a.handleResponsesPayload(v)
}

// handleResponsesPayload dispatches one structured event on its type field.
// Payloads without a usable type but exposing an output field are treated
// as a complete response document.
func (a *Aggregator) handleResponsesPayload(v any) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	typ, ok := obj["type"].(string)
	if !ok {
		if _, hasOutput := obj["output"]; hasOutput {
			if parsed := parseResponseOutput(obj); parsed != "" {
				a.finalText = parsed
			}
			a.finalResponse = v
			a.hasFinalResponse = true
		}
		return nil
	}
	log.Debug().Str("event", typ).Msg("stream event")
	switch classifyEvent(typ) {
	case eventTextDelta:
		if delta, ok := obj["delta"]; ok {
			if _, err := a.emitDeltaValue(delta); err != nil {
				return err
			}
		}
	case eventAnnotation:
		// Citations were already harvested from the full payload.
	case eventFullText:
		if output, ok := obj["output"]; ok {
			for _, segment := range extractTextSegments(output) {
				if err := a.emit(segment); err != nil {
					return err
				}
			}
		}
	case eventCompleted:
		if resp, ok := obj["response"]; ok {
			a.finalResponse = resp
			a.hasFinalResponse = true
		}
	case eventMessage:
		a.applyMessageEvent(obj)
	case eventError:
		return fmt.Errorf("stream error event: %s", eventErrorMessage(obj))
	}
	return nil
}

// applyMessageEvent aggregates a synthesized full-message event: the text
// of its content parts, else any text the generic walk finds, else the
// serialized payload. Non-empty text seeds the buffer when nothing has
// streamed yet and always becomes the final text.
func (a *Aggregator) applyMessageEvent(obj map[string]any) {
	var aggregated strings.Builder
	if parts, ok := obj["content"].([]any); ok {
		for _, part := range parts {
			pm, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if s, ok := pm["text"].(string); ok {
				aggregated.WriteString(s)
			}
			if s, ok := pm["text_delta"].(string); ok {
				aggregated.WriteString(s)
			}
		}
	}
	text := aggregated.String()
	if text == "" {
		if joined, ok := extractJoinedText(obj); ok {
			text = joined
		}
	}
	if text == "" {
		if raw, ok := marshalCompact(obj); ok {
			text = raw
		}
	}
	if text != "" {
		if a.textBuffer.Len() == 0 {
			a.textBuffer.WriteString(text)
		}
		a.finalText = text
	}
	if !a.hasFinalResponse {
		a.finalResponse = obj
		a.hasFinalResponse = true
	}
}

// handleChatPayload interprets one chat-completion chunk. Payloads without
// a choices array seed the text buffer via the generic walk when nothing
// has been captured yet.
func (a *Aggregator) handleChatPayload(v any) error {
	obj, _ := v.(map[string]any)
	choices, ok := obj["choices"].([]any)
	if !ok {
		if a.textBuffer.Len() == 0 {
			if joined, ok := extractJoinedText(v); ok {
				a.textBuffer.WriteString(joined)
			}
		}
		return nil
	}
	if len(choices) == 0 {
		return nil
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return nil
	}
	if delta, ok := choice["delta"]; ok {
		if err := a.applyChatDelta(delta); err != nil {
			return err
		}
	}
	if msg, ok := choice["message"]; ok {
		a.finalMessage = msg
		a.hasFinalMessage = true
	}
	return nil
}

// applyChatDelta forwards the content carried by choices[0].delta, which
// may be a plain string, an array of parts, or an arbitrary nested value.
func (a *Aggregator) applyChatDelta(delta any) error {
	dm, _ := delta.(map[string]any)
	content, ok := dm["content"]
	if !ok {
		return nil
	}
	switch c := content.(type) {
	case string:
		return a.emit(c)
	case []any:
		for _, item := range c {
			if _, err := a.emitDeltaValue(item); err != nil {
				return err
			}
		}
	default:
		if _, err := a.emitDeltaValue(content); err != nil {
			return err
		}
	}
	return nil
}

// emit forwards one non-empty fragment to the sink and appends it to the
// running buffer. A sink failure is terminal for the run.
func (a *Aggregator) emit(fragment string) error {
	if fragment == "" {
		return nil
	}
	if err := a.sink(fragment); err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	a.textBuffer.WriteString(fragment)
	a.displayed = true
	return nil
}

// emitDeltaValue forwards the text carried by a delta payload, either a
// plain string or a structured value holding segments. It reports whether
// anything was emitted.
func (a *Aggregator) emitDeltaValue(delta any) (bool, error) {
	if s, ok := delta.(string); ok {
		if s == "" {
			return false, nil
		}
		return true, a.emit(s)
	}
	emitted := false
	for _, segment := range extractTextSegments(delta) {
		if err := a.emit(segment); err != nil {
			return emitted, err
		}
		emitted = true
	}
	return emitted, nil
}

// finishResponses resolves the structured-event result: the recorded final
// text, else the live buffer, else text recovered from the retained
// response document, serializing it whole as the last resort.
func (a *Aggregator) finishResponses() *Result {
	finalText := a.finalText
	if finalText == "" {
		if strings.TrimSpace(a.textBuffer.String()) != "" {
			finalText = a.textBuffer.String()
		} else if a.hasFinalResponse {
			if parsed := parseResponseOutput(a.finalResponse); parsed != "" {
				finalText = parsed
			} else if joined, ok := extractJoinedText(a.finalResponse); ok {
				finalText = joined
			}
			harvestCitations(a.finalResponse, a.seenURLs, &a.citations)
		}
	}
	if finalText == "" && a.hasFinalResponse {
		if joined, ok := extractJoinedText(a.finalResponse); ok {
			finalText = joined
		} else if raw, ok := marshalCompact(a.finalResponse); ok {
			finalText = raw
		}
	}
	return &Result{Message: finalText, Citations: a.citations, Displayed: a.displayed}
}

// finishChat resolves the delta-choice result. Deltas already buffered win;
// otherwise the retained final message fills the text, falling back from
// direct content extraction to the generic walk to full serialization.
func (a *Aggregator) finishChat() *Result {
	if a.hasFinalMessage {
		if a.textBuffer.Len() == 0 {
			if content, ok := extractMessageContent(a.finalMessage); ok && content != "" {
				a.textBuffer.WriteString(content)
			}
		}
		if a.textBuffer.Len() == 0 {
			if joined, ok := extractJoinedText(a.finalMessage); ok {
				a.textBuffer.WriteString(joined)
			} else if raw, ok := marshalCompact(a.finalMessage); ok {
				a.textBuffer.WriteString(raw)
			}
		}
		harvestCitations(a.finalMessage, a.seenURLs, &a.citations)
	}
	return &Result{Message: a.textBuffer.String(), Citations: a.citations, Displayed: a.displayed}
}

func eventErrorMessage(obj map[string]any) string {
	if errObj, ok := obj["error"].(map[string]any); ok {
		if msg, ok := errObj["message"].(string); ok {
			return msg
		}
	}
	return "Unknown error"
}
