package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/renatogalera/ai-chat/pkg/ai"
	"github.com/renatogalera/ai-chat/pkg/gitctx"
	"github.com/renatogalera/ai-chat/pkg/prompt"
	"github.com/renatogalera/ai-chat/pkg/template"
)

// maxDiffChars bounds how much staged diff is sent along with --diff.
const maxDiffChars = 20000

func newAskCmd() *cobra.Command {
	var (
		useDiff     bool
		templateStr string
		plain       bool
	)

	cmd := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Ask a one-shot question",
		Long: `Sends a single prompt to the active provider and prints the reply.
The prompt is read from the arguments, from piped stdin, or both; --diff adds
the staged git diff of the current repository as context.`,
		Run: func(cmd *cobra.Command, args []string) {
			runAskCommand(args, useDiff, templateStr, plain)
		},
	}

	cmd.Flags().BoolVar(&useDiff, "diff", false, "include the staged git diff as context")
	cmd.Flags().StringVar(&templateStr, "template", "",
		`output template (e.g. "{RESPONSE}\n-- {PROVIDER}/{MODEL}")`)
	cmd.Flags().BoolVar(&plain, "plain", false, "skip markdown rendering of the reply")
	return cmd
}

func runAskCommand(args []string, useDiff bool, templateStr string, plain bool) {
	ctx, cancel, cfg, aiClient, err := setupAIEnvironment()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up AI environment")
	}
	defer cancel()

	question, err := gatherPrompt(args)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read prompt")
	}
	if question == "" {
		log.Fatal().Msg("Nothing to ask: pass a prompt or pipe text on stdin")
	}

	if useDiff {
		diff, err := stagedDiffContext(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read staged diff")
		}
		question = prompt.BuildDiffContextPrompt(question, diff)
	}

	systemPrompt := prompt.BuildSystemPrompt(cfg.SystemPrompt, cfg.Persona)
	messages := ai.Conversation(systemPrompt, question)

	// Templated output is printed exactly once, so the reply is not
	// streamed in that mode.
	if templateStr != "" {
		text, err := aiClient.GetChatResponse(ctx, messages)
		if err != nil {
			log.Fatal().Err(err).Msg("AI request failed")
		}
		fmt.Println(template.ApplyTemplate(templateStr, ai.SanitizeResponse(text), cfg.Provider, activeModel(cfg)))
		return
	}

	text, printed, err := respond(ctx, aiClient, messages, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("AI request failed")
	}
	text = strings.TrimSpace(text)

	renderWanted := !plain && cfg.RenderMarkdown && stdoutIsTerminal()
	switch {
	case !printed && renderWanted:
		fmt.Print(renderMarkdownOut(text))
	case !printed:
		fmt.Println(text)
	case renderWanted && strings.Contains(text, "\n"):
		// The raw stream is already on screen; repeat multi-line replies
		// rendered, separated by a rule.
		fmt.Println(strings.Repeat("-", 40))
		fmt.Print(renderMarkdownOut(text))
	}
}

// stagedDiffContext collects the staged diff with lock files removed and
// the tail truncated to a provider-friendly size.
func stagedDiffContext(ctx context.Context) (string, error) {
	if !gitctx.IsRepository(ctx) {
		return "", fmt.Errorf("not a git repository")
	}
	diff, err := gitctx.StagedDiff(ctx)
	if err != nil {
		return "", err
	}
	diff = gitctx.FilterLockFiles(diff, gitctx.DefaultLockFiles)
	if strings.TrimSpace(diff) == "" {
		return "", fmt.Errorf("no staged changes found")
	}
	return gitctx.Truncate(diff, maxDiffChars), nil
}
