package websearch

import (
	"encoding/json"
	"sort"
	"strings"
)

// Key precedence for citation candidates. The first key present wins, even
// when its value turns out not to be a string.
var (
	citationURLKeys   = []string{"url", "source_url", "href", "uri"}
	citationTitleKeys = []string{"title", "name", "source", "page_title"}
)

// harvestCitations walks v depth first and records every object carrying a
// URL-shaped field. Object keys are visited in sorted order so the citation
// sequence is stable for a given document. A URL already in seen is skipped
// without touching its recorded title.
func harvestCitations(v any, seen map[string]struct{}, out *[]Citation) {
	switch val := v.(type) {
	case map[string]any:
		if raw, ok := firstPresent(val, citationURLKeys); ok {
			if url, isStr := raw.(string); isStr {
				if _, dup := seen[url]; !dup {
					seen[url] = struct{}{}
					c := Citation{URL: url}
					if t, ok := firstPresent(val, citationTitleKeys); ok {
						if title, isStr := t.(string); isStr {
							c.Title = title
						}
					}
					*out = append(*out, c)
				}
			}
		}
		for _, k := range sortedKeys(val) {
			harvestCitations(val[k], seen, out)
		}
	case []any:
		for _, item := range val {
			harvestCitations(item, seen, out)
		}
	}
}

// collectTextSegments appends every displayable text segment found in v, in
// document order. A "text" field counts only when the sibling "type" is
// absent, empty, or one of the known textual part kinds; "text_delta"
// counts unconditionally. A bare string at the top level is not a segment.
func collectTextSegments(v any, segments *[]string) {
	switch val := v.(type) {
	case map[string]any:
		if text, ok := val["text"].(string); ok {
			switch typ, _ := val["type"].(string); typ {
			case "", "output_text", "text", "summary_text", "output":
				*segments = append(*segments, text)
			}
		}
		if delta, ok := val["text_delta"].(string); ok {
			*segments = append(*segments, delta)
		}
		for _, k := range sortedKeys(val) {
			switch k {
			case "text", "text_delta":
				// Already consumed above.
			case "content", "messages", "output", "choices", "items", "parts":
				collectTextSegments(val[k], segments)
			default:
				switch val[k].(type) {
				case map[string]any, []any:
					collectTextSegments(val[k], segments)
				}
			}
		}
	case []any:
		for _, item := range val {
			collectTextSegments(item, segments)
		}
	}
}

// extractTextSegments returns the non-empty text segments of v.
func extractTextSegments(v any) []string {
	var collected []string
	collectTextSegments(v, &collected)
	segments := collected[:0]
	for _, seg := range collected {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

// extractJoinedText joins all non-empty text segments of v with a blank
// line. It reports false when v holds no text at all.
func extractJoinedText(v any) (string, bool) {
	segments := extractTextSegments(v)
	if len(segments) == 0 {
		return "", false
	}
	return strings.Join(segments, "\n\n"), true
}

// extractMessageContent pulls displayable text out of a chat message value.
// A plain string content is returned as is, even when empty; structured
// content falls back to the generic segment walk.
func extractMessageContent(message any) (string, bool) {
	obj, ok := message.(map[string]any)
	if !ok {
		return "", false
	}
	content, ok := obj["content"]
	if !ok {
		return "", false
	}
	switch c := content.(type) {
	case string:
		return c, true
	case []any:
		var segments []string
		for _, item := range c {
			segments = append(segments, extractTextSegments(item)...)
		}
		if len(segments) > 0 {
			return strings.Join(segments, "\n\n"), true
		}
	default:
		if joined, ok := extractJoinedText(content); ok {
			return joined, true
		}
	}
	return "", false
}

// parseResponseOutput flattens the output array of a complete Responses
// document: items typed "message" contribute the text (and text_delta) of
// each of their content parts, concatenated without separators.
func parseResponseOutput(v any) string {
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	output, ok := obj["output"].([]any)
	if !ok {
		return ""
	}
	var text strings.Builder
	for _, item := range output {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if typ, _ := m["type"].(string); typ != "message" {
			continue
		}
		parts, ok := m["content"].([]any)
		if !ok {
			continue
		}
		for _, part := range parts {
			pm, isObj := part.(map[string]any)
			if !isObj {
				if s, ok := part.(string); ok {
					text.WriteString(s)
				}
				continue
			}
			if typ, _ := pm["type"].(string); typ == "output_text" {
				if s, ok := pm["text"].(string); ok {
					text.WriteString(s)
				}
				if s, ok := pm["text_delta"].(string); ok {
					text.WriteString(s)
				}
				continue
			}
			if s, ok := pm["text"].(string); ok {
				text.WriteString(s)
			}
		}
	}
	return text.String()
}

// marshalCompact renders v as compact JSON without HTML escaping, for the
// serialize-everything fallback shown to the user when no text could be
// extracted.
func marshalCompact(v any) (string, bool) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", false
	}
	return strings.TrimSuffix(sb.String(), "\n"), true
}

func firstPresent(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
