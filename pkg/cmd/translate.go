package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/renatogalera/ai-chat/pkg/ai"
	"github.com/renatogalera/ai-chat/pkg/persona"
	"github.com/renatogalera/ai-chat/pkg/prompt"
)

func newTranslateCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "translate [text...]",
		Short: "Translate text into a target language",
		Long: `Translates the given text (arguments, piped stdin, or both) into the
target language. --to accepts a BCP 47 tag such as en, pt-BR or ja; the
default comes from translateTarget in the config file.`,
		Run: func(cmd *cobra.Command, args []string) {
			runTranslateCommand(args, target)
		},
	}

	cmd.Flags().StringVar(&target, "to", "", "target language tag (e.g. en, pt-BR, ja)")
	return cmd
}

func runTranslateCommand(args []string, target string) {
	ctx, cancel, cfg, aiClient, err := setupAIEnvironment()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up AI environment")
	}
	defer cancel()

	text, err := gatherPrompt(args)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read text")
	}
	if text == "" {
		log.Fatal().Msg("Nothing to translate: pass text or pipe it on stdin")
	}

	if target == "" {
		target = cfg.TranslateTarget
	}
	langName, err := languageName(target)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid target language")
	}

	translatePrompt := prompt.BuildTranslatePrompt(text, langName, "")
	messages := ai.Conversation(persona.SeedPrompt("translator"), translatePrompt)

	reply, printed, err := respond(ctx, aiClient, messages, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("Translation failed")
	}
	if !printed {
		fmt.Println(strings.TrimSpace(reply))
	}
}

// languageName canonicalizes a BCP 47 tag and returns its English display
// name, which reads better in the translation prompt than the raw tag.
func languageName(tag string) (string, error) {
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("invalid language tag %q: %w", tag, err)
	}
	name := display.English.Languages().Name(parsed)
	if name == "" {
		return tag, nil
	}
	return name, nil
}
