package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"imgarc/internal/importer"
	"imgarc/pkg/logger"
	"imgarc/pkg/ui"
)

var (
	// Import command flags
	importGallery   string
	importCopy      bool
	importRecursive bool
	importTags      []string
	importTitle     string
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <path>...",
	Short: "Add local image files to the gallery",
	Long: `Import local image files into the gallery.

Files are moved (or copied with --copy) into gallery/images/ under a
slugified name, given a fresh id and appended to the metadata store.
Directories need --recursive and are walked for image files.`,
	Example: `  # Move two screenshots into the gallery
  imgarc import shot1.png shot2.png

  # Copy a whole directory tree, tagging everything
  imgarc import ~/Pictures/vacation --copy --recursive --tag vacation,2026`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := importGallery
		if root == "" {
			root = "gallery"
		}

		if err := logger.Initialize(loggingConfig()); err != nil {
			ui.PrintError("Failed to initialize logging", err.Error())
			os.Exit(1)
		}

		imp := importer.New(root, logger.GetLogger())
		imported, err := imp.Import(args, importer.Options{
			Copy:      importCopy,
			Recursive: importRecursive,
			Tags:      splitTags(importTags),
			Title:     importTitle,
		})
		if err != nil {
			ui.PrintError("Import failed", err.Error())
			os.Exit(1)
		}

		for _, rec := range imported {
			ui.PrintInfo(rec.LocalFilename, rec.ID)
		}
		ui.PrintSuccess(fmt.Sprintf("Imported %d image(s)", len(imported)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importGallery, "gallery", "g", "", "gallery root directory (default: gallery)")
	importCmd.Flags().BoolVar(&importCopy, "copy", false, "copy files instead of moving them")
	importCmd.Flags().BoolVarP(&importRecursive, "recursive", "r", false, "recurse into directories")
	importCmd.Flags().StringArrayVar(&importTags, "tag", nil, "tag(s) for imported images, repeatable or comma-separated")
	importCmd.Flags().StringVar(&importTitle, "title", "", "title override for all imported images")
}

// splitTags flattens repeated and comma-separated tag flags
func splitTags(raw []string) []string {
	var tags []string
	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				tags = append(tags, part)
			}
		}
	}
	return tags
}
