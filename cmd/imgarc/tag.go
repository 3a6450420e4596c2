package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"imgarc/internal/tagger"
	"imgarc/pkg/logger"
	"imgarc/pkg/ui"
)

var (
	// Tag command flags
	tagGallery string
	tagIDs     []string
	tagAdd     []string
	tagRemove  []string
	tagClear   bool
)

// tagCmd represents the tag command
var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Edit the tags of archived images",
	Long: `Edit the tags of archived images by record id.

Tags are the only mutable field of a record; titles, timestamps and
filenames never change after archiving. Record ids are visible in
gallery/metadata.json.`,
	Example: `  # Add a tag to two records
  imgarc tag --ids abc123,def456 --add landscape

  # Replace all tags on one record
  imgarc tag --ids abc123 --clear --add portrait --add studio`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := tagGallery
		if root == "" {
			root = "gallery"
		}

		if err := logger.Initialize(loggingConfig()); err != nil {
			ui.PrintError("Failed to initialize logging", err.Error())
			os.Exit(1)
		}

		changed, err := tagger.Apply(root, splitTags(tagIDs), tagger.Changes{
			Clear:  tagClear,
			Add:    splitTags(tagAdd),
			Remove: splitTags(tagRemove),
		}, logger.GetLogger())
		if err != nil {
			ui.PrintError("Tag update failed", err.Error())
			os.Exit(1)
		}

		if changed == 0 {
			ui.PrintWarning("No records changed")
			return nil
		}
		ui.PrintSuccess(fmt.Sprintf("Updated tags on %d record(s)", changed))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tagCmd)

	tagCmd.Flags().StringVarP(&tagGallery, "gallery", "g", "", "gallery root directory (default: gallery)")
	tagCmd.Flags().StringArrayVar(&tagIDs, "ids", nil, "record id(s) to edit, repeatable or comma-separated")
	tagCmd.Flags().StringArrayVar(&tagAdd, "add", nil, "tag(s) to add")
	tagCmd.Flags().StringArrayVar(&tagRemove, "remove", nil, "tag(s) to remove")
	tagCmd.Flags().BoolVar(&tagClear, "clear", false, "clear existing tags first")
	tagCmd.MarkFlagRequired("ids")
}
