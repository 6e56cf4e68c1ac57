package persona

import "strings"

// A persona selects the assistant's voice for a conversation. An explicit
// system prompt from config or flags always wins over the persona seed.
type Persona struct {
	Name   string
	Prompt string
}

var personas = []Persona{
	{
		Name:   "default",
		Prompt: "You are a helpful, accurate assistant. Answer directly and keep replies concise unless asked otherwise.",
	},
	{
		Name:   "developer",
		Prompt: "You are a senior software engineer. Prefer working code over prose, name trade-offs explicitly, and flag anything that smells like a bug.",
	},
	{
		Name:   "reviewer",
		Prompt: "You are a meticulous code reviewer. Point out correctness issues first, then style. Suggest concrete fixes in bullet points prefixed with \"- \". If nothing is wrong, say \"No issues found.\"",
	},
	{
		Name:   "teacher",
		Prompt: "You are a patient teacher. Explain step by step, define terms on first use, and check understanding with a short example.",
	},
	{
		Name:   "translator",
		Prompt: "You are a professional translator. Preserve meaning, tone, and formatting, and reply with the translation only.",
	},
}

func IsValid(name string) bool {
	for _, p := range personas {
		if p.Name == name {
			return true
		}
	}
	return false
}

func AllNames() []string {
	names := make([]string, 0, len(personas))
	for _, p := range personas {
		names = append(names, p.Name)
	}
	return names
}

// SeedPrompt returns the system prompt for a persona, falling back to the
// default persona for unknown or empty names.
func SeedPrompt(name string) string {
	name = strings.TrimSpace(name)
	for _, p := range personas {
		if p.Name == name {
			return p.Prompt
		}
	}
	return personas[0].Prompt
}
