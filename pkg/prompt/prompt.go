package prompt

import (
	"strings"

	"github.com/renatogalera/ai-chat/pkg/persona"
)

// DefaultTranslateTemplate is used when no custom translate template is
// configured.
const DefaultTranslateTemplate = `Translate the following text into {LANGUAGE}, following these rules:
- Preserve meaning, tone, and formatting (including markdown).
- Do not translate content inside code blocks.
- Reply with the translation only, no preamble or commentary.

Text:
{TEXT}
`

// DefaultSummaryTemplate asks for the one-line session summaries shown in
// the session picker.
const DefaultSummaryTemplate = `Summarize the following conversation in a single line of at most 80 characters.
- Capture the main topic, not the greetings.
- Reply with the summary only, without quotes and without a trailing period.

Conversation:
{TRANSCRIPT}
`

const defaultDiffContextTemplate = `Answer the question using the staged git diff below as context. When the
question is about the changes, ground every claim in the diff.

Question:
{QUESTION}

Diff:
{DIFF}
`

// BuildSystemPrompt picks the system prompt for a conversation: an explicit
// prompt wins, otherwise the persona seed.
func BuildSystemPrompt(explicit, personaName string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	return persona.SeedPrompt(personaName)
}

// BuildTranslatePrompt builds the prompt for the translate command.
func BuildTranslatePrompt(text, language, promptTemplate string) string {
	finalTemplate := promptTemplate
	if strings.TrimSpace(finalTemplate) == "" {
		finalTemplate = DefaultTranslateTemplate
	}

	promptText := strings.ReplaceAll(finalTemplate, "{LANGUAGE}", language)
	promptText = strings.ReplaceAll(promptText, "{TEXT}", text)
	return promptText
}

// BuildSummaryPrompt builds the prompt used to ask the AI for a one-line
// session summary.
func BuildSummaryPrompt(transcript, promptTemplate string) string {
	finalTemplate := promptTemplate
	if strings.TrimSpace(finalTemplate) == "" {
		finalTemplate = DefaultSummaryTemplate
	}
	return strings.ReplaceAll(finalTemplate, "{TRANSCRIPT}", transcript)
}

// BuildDiffContextPrompt wraps a question with staged-diff context.
func BuildDiffContextPrompt(question, diff string) string {
	promptText := strings.ReplaceAll(defaultDiffContextTemplate, "{QUESTION}", question)
	promptText = strings.ReplaceAll(promptText, "{DIFF}", diff)
	return promptText
}
