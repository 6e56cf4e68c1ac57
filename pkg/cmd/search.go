package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/renatogalera/ai-chat/pkg/websearch"
)

var (
	sourcesHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Underline(true)

	sourceTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250"))

	sourceURLStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

func newSearchCmd() *cobra.Command {
	var (
		chatProtocol bool
		strictJSON   bool
		searchModel  string
	)

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Answer a query with live web search and cited sources",
		Long: `Streams a web-search-grounded answer from the OpenAI responses API and
prints the cited sources afterwards. --chat-protocol switches to the
chat-completions streaming protocol for endpoints that only offer it.`,
		Run: func(cmd *cobra.Command, args []string) {
			runSearchCommand(args, chatProtocol, strictJSON, searchModel)
		},
	}

	cmd.Flags().BoolVar(&chatProtocol, "chat-protocol", false, "stream via the chat-completions protocol")
	cmd.Flags().BoolVar(&strictJSON, "strict-json", false, "abort on malformed stream payloads instead of skipping them")
	cmd.Flags().StringVar(&searchModel, "search-model", "", "model used for the search request")
	return cmd
}

func runSearchCommand(args []string, chatProtocol, strictJSON bool, searchModel string) {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	query, err := gatherPrompt(args)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read query")
	}
	if query == "" {
		log.Fatal().Msg("Nothing to search for: pass a query or pipe text on stdin")
	}

	key, baseURL, model, err := openaiCredentials(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Web search needs OpenAI credentials")
	}
	if searchModel != "" {
		model = searchModel
	}

	protocol := websearch.ProtocolResponses
	if chatProtocol {
		protocol = websearch.ProtocolChatCompletions
	}

	client := websearch.NewClient(key, baseURL, websearch.WithStrictJSON(strictJSON))
	messages := []websearch.Message{{Role: websearch.RoleUser, Content: query}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result, err := client.StreamResponse(ctx, model, messages, protocol, func(fragment string) error {
		_, werr := fmt.Fprint(os.Stdout, fragment)
		return werr
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Web search failed")
	}

	if result.Displayed {
		fmt.Println()
	} else if result.Message != "" {
		// Nothing streamed live; the answer was recovered from final
		// payloads.
		fmt.Println(result.Message)
	}

	if out := formatSources(result.Citations); out != "" {
		fmt.Println()
		fmt.Print(out)
	}
}

// formatSources renders the citation list, one numbered source per entry.
func formatSources(citations []websearch.Citation) string {
	if len(citations) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(sourcesHeaderStyle.Render("Sources:") + "\n")
	for i, c := range citations {
		if c.Title != "" {
			b.WriteString(sourceTitleStyle.Render(fmt.Sprintf("%2d. %s", i+1, c.Title)) + "\n")
			b.WriteString(sourceURLStyle.Render("    "+c.URL) + "\n")
			continue
		}
		b.WriteString(sourceTitleStyle.Render(fmt.Sprintf("%2d. %s", i+1, c.URL)) + "\n")
	}
	return b.String()
}
