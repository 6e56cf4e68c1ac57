package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/renatogalera/ai-chat/pkg/ai"
	"github.com/renatogalera/ai-chat/pkg/session"
	"github.com/renatogalera/ai-chat/pkg/ui/picker"
)

var (
	sessionNameStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("63"))

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	roleUserStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	roleAssistantStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("63"))

	roleSystemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage saved chat sessions",
	}
	cmd.AddCommand(
		newSessionListCmd(),
		newSessionShowCmd(),
		newSessionDeleteCmd(),
		newSessionBrowseCmd(),
	)
	return cmd
}

func newSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved sessions",
		Run: func(cmd *cobra.Command, args []string) {
			store, ctx, cancel := mustOpenStore()
			defer cancel()
			defer store.Close()

			sessions, err := store.List(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to list sessions")
			}
			if len(sessions) == 0 {
				fmt.Println("No saved sessions.")
				return
			}
			for _, s := range sessions {
				fmt.Println(sessionLine(s))
			}
		},
	}
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session transcript",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id := mustSessionID(args[0])
			store, ctx, cancel := mustOpenStore()
			defer cancel()
			defer store.Close()

			s, err := store.Load(ctx, id)
			if err != nil {
				if errors.Is(err, session.ErrNotFound) {
					log.Fatal().Msgf("Session %d does not exist", id)
				}
				log.Fatal().Err(err).Msg("Failed to load session")
			}
			printSession(s)
		},
	}
}

func newSessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved session",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id := mustSessionID(args[0])
			store, ctx, cancel := mustOpenStore()
			defer cancel()
			defer store.Close()

			if err := store.Delete(ctx, id); err != nil {
				if errors.Is(err, session.ErrNotFound) {
					log.Fatal().Msgf("Session %d does not exist", id)
				}
				log.Fatal().Err(err).Msg("Failed to delete session")
			}
			fmt.Printf("Deleted session %d.\n", id)
		},
	}
}

func newSessionBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse sessions in a list picker",
		Run: func(cmd *cobra.Command, args []string) {
			store, ctx, cancel := mustOpenStore()
			defer cancel()
			defer store.Close()

			sessions, err := store.List(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to list sessions")
			}
			if len(sessions) == 0 {
				fmt.Println("No saved sessions.")
				return
			}

			chosen, err := picker.Run(sessions, "Saved sessions")
			if err != nil {
				log.Fatal().Err(err).Msg("Session picker failed")
			}
			if chosen == nil {
				return
			}
			printSession(chosen)
		},
	}
}

func mustOpenStore() (session.Store, context.Context, context.CancelFunc) {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	store, err := openSessionStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return store, ctx, cancel
}

func mustSessionID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		log.Fatal().Msgf("Invalid session id %q", arg)
	}
	return id
}

func sessionLabel(s session.Session) string {
	if strings.TrimSpace(s.Name) != "" {
		return s.Name
	}
	return fmt.Sprintf("session %d", s.ID)
}

// sessionLine formats one row of `session list`.
func sessionLine(s session.Session) string {
	parts := []string{
		fmt.Sprintf("%4d", s.ID),
		sessionNameStyle.Render(sessionLabel(s)),
		sessionMetaStyle.Render(humanize.Time(s.UpdatedAt)),
	}
	if s.Summary != "" {
		parts = append(parts, s.Summary)
	}
	return strings.Join(parts, "  ")
}

func printSession(s *session.Session) {
	header := sessionNameStyle.Render(sessionLabel(*s))
	meta := fmt.Sprintf("#%d | %s", s.ID, humanize.Time(s.UpdatedAt))
	if s.Summary != "" {
		meta += " | " + s.Summary
	}
	fmt.Println(header)
	fmt.Println(sessionMetaStyle.Render(meta))
	fmt.Println()

	for _, m := range s.Messages {
		switch m.Role {
		case ai.RoleSystem:
			fmt.Println(roleSystemStyle.Render("system: " + m.Content))
		case ai.RoleUser:
			fmt.Println(roleUserStyle.Render("You"))
			fmt.Println(m.Content)
		case ai.RoleAssistant:
			fmt.Println(roleAssistantStyle.Render("Assistant"))
			fmt.Println(m.Content)
		}
		fmt.Println()
	}
}
