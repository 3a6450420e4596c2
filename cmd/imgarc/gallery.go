package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"imgarc/pkg/gallery"
	"imgarc/pkg/logger"
	"imgarc/pkg/store"
	"imgarc/pkg/ui"
)

var galleryCmdRoot string

// galleryCmd re-renders the static viewer without touching the remote
var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Re-render the gallery viewer from the local metadata store",
	Long: `Rebuild the static gallery viewer from gallery/metadata.json.

Useful after editing metadata by hand or after upgrading imgarc to pick
up a newer viewer. No network access, no image downloads.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := galleryCmdRoot
		if root == "" {
			root = "gallery"
		}

		if err := logger.Initialize(loggingConfig()); err != nil {
			ui.PrintError("Failed to initialize logging", err.Error())
			os.Exit(1)
		}

		records, err := store.New(filepath.Join(root, "metadata.json")).Load()
		if err != nil {
			ui.PrintError("Failed to load metadata store", err.Error())
			os.Exit(1)
		}

		if err := gallery.NewRenderer(root, logger.GetLogger()).Render(records); err != nil {
			ui.PrintError("Failed to render gallery", err.Error())
			os.Exit(1)
		}

		ui.PrintSuccess(fmt.Sprintf("Gallery rendered with %d images", len(records)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.Flags().StringVarP(&galleryCmdRoot, "gallery", "g", "", "gallery root directory (default: gallery)")
}
