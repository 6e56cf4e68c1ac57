package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/renatogalera/ai-chat/pkg/image"
)

func newImageCmd() *cobra.Command {
	var (
		editPath   string
		maskPath   string
		outDir     string
		imageModel string
		size       string
		count      int
	)

	cmd := &cobra.Command{
		Use:   "image [prompt...]",
		Short: "Generate or edit images",
		Long: `Generates images from a prompt via the OpenAI images API, or edits an
existing image when --edit is given. Results are written to --out and their
paths printed.`,
		Run: func(cmd *cobra.Command, args []string) {
			runImageCommand(args, editPath, maskPath, outDir, imageModel, size, count)
		},
	}

	cmd.Flags().StringVar(&editPath, "edit", "", "image file to edit instead of generating")
	cmd.Flags().StringVar(&maskPath, "mask", "", "mask file restricting the edited region")
	cmd.Flags().StringVar(&outDir, "out", ".", "directory the images are written to")
	cmd.Flags().StringVar(&imageModel, "image-model", image.DefaultModel, "images API model")
	cmd.Flags().StringVar(&size, "size", image.DefaultSize, "image dimensions")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of images")
	return cmd
}

func runImageCommand(args []string, editPath, maskPath, outDir, imageModel, size string, count int) {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	promptText, err := gatherPrompt(args)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read prompt")
	}
	if promptText == "" {
		log.Fatal().Msg("Nothing to draw: pass a prompt or pipe text on stdin")
	}
	if maskPath != "" && editPath == "" {
		log.Fatal().Msg("--mask requires --edit")
	}

	client, err := newImageClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Image generation needs OpenAI credentials")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var items []image.Data
	if editPath != "" {
		items, err = client.Edit(ctx, imageModel, promptText, count, size, "", editPath, maskPath)
	} else {
		items, err = client.Generate(ctx, imageModel, promptText, count, size, "")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Images API request failed")
	}

	paths, err := client.SaveAll(ctx, items, outDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to save images")
	}
	for _, p := range paths {
		fmt.Println(p)
	}
}
