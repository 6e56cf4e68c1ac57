package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/renatogalera/ai-chat/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the ai-chat version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ai-chat %s\n", version.Version)
			if !check {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			latest, newer, err := version.CheckForUpdate(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to check for updates")
			}
			if newer {
				fmt.Printf("Update available: %s\n", latest)
				return
			}
			fmt.Printf("Up to date (latest release: %s)\n", latest)
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "check GitHub for a newer release")
	return cmd
}
