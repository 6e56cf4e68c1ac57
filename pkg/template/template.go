package template

import "strings"

// ApplyTemplate replaces well-known tokens in an output template.
// Supported tokens:
//
//	{RESPONSE} - the assistant reply
//	{PROVIDER} - the active provider name
//	{MODEL}    - the active model name
func ApplyTemplate(templateStr, response, provider, model string) string {
	result := strings.ReplaceAll(templateStr, "{RESPONSE}", response)
	result = strings.ReplaceAll(result, "{PROVIDER}", provider)
	result = strings.ReplaceAll(result, "{MODEL}", model)
	return result
}
