// Package cmd wires the CLI commands for ai-chat.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/renatogalera/ai-chat/pkg/ai"
	"github.com/renatogalera/ai-chat/pkg/config"
	"github.com/renatogalera/ai-chat/pkg/image"
	"github.com/renatogalera/ai-chat/pkg/persona"
	"github.com/renatogalera/ai-chat/pkg/prompt"
	"github.com/renatogalera/ai-chat/pkg/provider/registry"
	"github.com/renatogalera/ai-chat/pkg/session"
	"github.com/renatogalera/ai-chat/pkg/summarizer"
	"github.com/renatogalera/ai-chat/pkg/ui"

	_ "github.com/renatogalera/ai-chat/pkg/provider/anthropic"
	_ "github.com/renatogalera/ai-chat/pkg/provider/deepseek"
	_ "github.com/renatogalera/ai-chat/pkg/provider/google"
	_ "github.com/renatogalera/ai-chat/pkg/provider/ollama"
	_ "github.com/renatogalera/ai-chat/pkg/provider/openai"
	_ "github.com/renatogalera/ai-chat/pkg/provider/openrouter"
)

var (
	flagProvider string
	flagModel    string
	flagAPIKey   string
	flagBaseURL  string
	flagPersona  string
	flagVerbose  bool
	flagResume   bool
)

var rootCmd = &cobra.Command{
	Use:   "ai-chat",
	Short: "Chat with AI providers from the terminal",
	Long: `ai-chat is a terminal assistant backed by pluggable AI providers.
Run it without arguments to open the interactive chat TUI; subcommands cover
one-shot questions, web search with cited sources, translation, image
generation and saved-session management.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
	Run: runChatCommand,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagProvider, "provider", "", "AI provider to use (see config providers)")
	pf.StringVar(&flagModel, "model", "", "model override for the active provider")
	pf.StringVar(&flagAPIKey, "api-key", "", "API key override for the active provider")
	pf.StringVar(&flagBaseURL, "base-url", "", "API base URL override for the active provider")
	pf.StringVar(&flagPersona, "persona", "", "assistant persona for the seed prompt")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.Flags().BoolVar(&flagResume, "resume", false, "pick a saved session to continue")

	rootCmd.AddCommand(
		newAskCmd(),
		newSearchCmd(),
		newTranslateCmd(),
		newImageCmd(),
		newSessionCmd(),
		newVersionCmd(),
	)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runChatCommand opens the interactive chat TUI, optionally resuming a
// stored session picked through the fuzzy finder.
func runChatCommand(cmd *cobra.Command, args []string) {
	ctx, cancel, cfg, aiClient, err := setupAIEnvironment()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up AI environment")
	}
	defer cancel()

	store, err := openSessionStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer store.Close()

	var resume *session.Session
	if flagResume {
		resume, err = summarizer.PickSession(ctx, aiClient, store, cfg.PromptTemplate)
		if err != nil && !errors.Is(err, fuzzyfinder.ErrAbort) {
			log.Fatal().Err(err).Msg("Failed to pick a session")
		}
	}

	imgClient, err := newImageClient(cfg)
	if err != nil {
		log.Debug().Err(err).Msg("image commands disabled: no OpenAI credentials")
		imgClient = nil
	}

	ps := registry.MergeDefaults(cfg.Provider, cfg.GetProviderSettings(cfg.Provider))
	systemPrompt := prompt.BuildSystemPrompt(cfg.SystemPrompt, cfg.Persona)

	model := ui.NewChatModel(aiClient, store, imgClient,
		cfg.Provider, ps.Model, systemPrompt, cfg.RenderMarkdown, resume)
	if _, err := ui.NewProgram(model).Run(); err != nil {
		log.Fatal().Err(err).Msg("Error running chat TUI")
	}
}

// setupAIEnvironment loads the configuration, applies flag overrides and
// builds the AI client for the active provider.
func setupAIEnvironment() (context.Context, context.CancelFunc, *config.Config, ai.AIClient, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	aiClient, err := buildAIClient(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, nil, err
	}
	return ctx, cancel, cfg, aiClient, nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrCreateConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cm := config.NewConfigManager(cfg)
	cm.RegisterFlag("provider", flagProvider)
	cm.RegisterFlag("persona", flagPersona)
	cfg = cm.MergeConfiguration()
	cfg = cm.MergeProviderOverrides(cfg.Provider, flagAPIKey, flagModel, flagBaseURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Persona != "" && !persona.IsValid(cfg.Persona) {
		return nil, fmt.Errorf("unknown persona %q (available: %s)",
			cfg.Persona, strings.Join(persona.AllNames(), ", "))
	}
	return cfg, nil
}

func buildAIClient(ctx context.Context, cfg *config.Config) (ai.AIClient, error) {
	name := cfg.Provider
	if name == "" {
		name = config.DefaultProvider
	}
	ps := registry.MergeDefaults(name, cfg.GetProviderSettings(name))

	if registry.RequiresAPIKey(name) {
		key, err := config.ResolveAPIKey(flagAPIKey, config.APIKeyEnvVar(name), ps.APIKey, name)
		if err != nil {
			return nil, err
		}
		ps.APIKey = key
	}

	aiClient, err := registry.NewClient(ctx, name, ps)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AI client: %w", err)
	}
	return aiClient, nil
}

// activeModel reports the resolved model name of the active provider, for
// output templates and status lines.
func activeModel(cfg *config.Config) string {
	return registry.MergeDefaults(cfg.Provider, cfg.GetProviderSettings(cfg.Provider)).Model
}

func openSessionStore(cfg *config.Config) (session.Store, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return session.NewStore(cfg.SessionStore, dir)
}

// openaiCredentials resolves key, base URL and model of the OpenAI provider
// entry, which backs the web-search and image endpoints regardless of the
// active chat provider.
func openaiCredentials(cfg *config.Config) (key, baseURL, model string, err error) {
	ps := registry.MergeDefaults(config.DefaultProvider, cfg.GetProviderSettings(config.DefaultProvider))

	keyFlag := flagAPIKey
	if cfg.Provider != config.DefaultProvider {
		// --api-key targets the active provider, not this entry.
		keyFlag = ""
	}
	key, err = config.ResolveAPIKey(keyFlag, config.APIKeyEnvVar(config.DefaultProvider), ps.APIKey, config.DefaultProvider)
	if err != nil {
		return "", "", "", err
	}
	return key, ps.BaseURL, ps.Model, nil
}

func newImageClient(cfg *config.Config) (*image.Client, error) {
	key, baseURL, _, err := openaiCredentials(cfg)
	if err != nil {
		return nil, err
	}
	return image.NewClient(key, baseURL), nil
}

// readPipedInput returns stdin's content when the command receives a pipe,
// and an empty string on an interactive terminal.
func readPipedInput() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// gatherPrompt merges argument words with piped stdin; piped text follows
// the argument prompt as context.
func gatherPrompt(args []string) (string, error) {
	promptText := strings.TrimSpace(strings.Join(args, " "))
	piped, err := readPipedInput()
	if err != nil {
		return "", err
	}
	return joinPromptParts(promptText, piped), nil
}

func joinPromptParts(promptText, piped string) string {
	switch {
	case promptText == "":
		return piped
	case piped == "":
		return promptText
	default:
		return promptText + "\n\n" + piped
	}
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// renderMarkdownOut renders s for the terminal, falling back to the raw
// text when rendering is unavailable.
func renderMarkdownOut(s string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return s
	}
	out, err := r.Render(s)
	if err != nil {
		return s
	}
	return out
}

// respond prints the reply to w. Streaming providers write deltas as they
// arrive; the returned bool reports whether anything was already printed.
func respond(ctx context.Context, client ai.AIClient, messages []ai.Message, w io.Writer) (string, bool, error) {
	if sc, ok := client.(ai.StreamingAIClient); ok {
		text, err := sc.StreamChatResponse(ctx, messages, func(delta string) {
			fmt.Fprint(w, delta)
		})
		if err != nil {
			return text, true, err
		}
		fmt.Fprintln(w)
		return text, true, nil
	}
	text, err := client.GetChatResponse(ctx, messages)
	return text, false, err
}
