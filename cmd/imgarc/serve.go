package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"imgarc/pkg/ui"
)

var (
	// Serve command flags
	serveGallery string
	servePort    int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the gallery over local HTTP",
	Long: `Serve the rendered gallery on a local HTTP port.

The viewer works when opened straight from disk in most browsers, but
some block fetch() on file:// URLs; serving avoids that entirely.`,
	Example: `  # Serve ./gallery on the default port
  imgarc serve

  # Different gallery and port
  imgarc serve --gallery ~/images/archive --port 9000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := serveGallery
		if root == "" {
			root = "gallery"
		}
		if _, err := os.Stat(root); err != nil {
			ui.PrintError("Gallery directory not found", root)
			ui.PrintInfo("Hint", "run 'imgarc sync' or 'imgarc gallery' first")
			os.Exit(1)
		}

		gin.SetMode(gin.ReleaseMode)
		router := gin.New()
		router.Use(gin.Recovery())
		router.StaticFS("/", http.Dir(root))

		addr := fmt.Sprintf(":%d", servePort)
		ui.PrintInfo("Serving gallery", root)
		ui.PrintSuccess(fmt.Sprintf("Open http://localhost%s in your browser", addr))
		if err := router.Run(addr); err != nil {
			ui.PrintError("Server stopped", err.Error())
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveGallery, "gallery", "g", "", "gallery root directory (default: gallery)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to listen on")
}
