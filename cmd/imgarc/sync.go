package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"imgarc/pkg/archiver"
	"imgarc/pkg/auth"
	"imgarc/pkg/config"
	"imgarc/pkg/logger"
	"imgarc/pkg/ui"
)

var (
	// Sync command flags
	galleryRoot     string
	authFile        string
	concurrent      int
	rateLimit       int
	maxRetries      int
	downloadTimeout int
	accountName     string
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Archive new images from the remote library",
	Long: `Sync the local gallery with the remote image library.

The run lists the remote library newest-first, stops paginating once it
only sees already-archived images, downloads everything new with a
bounded worker pool and re-renders the gallery. Re-running against an
unchanged library is a no-op.`,
	Example: `  # Sync with defaults (gallery/ directory, auth.txt credentials)
  imgarc sync

  # Custom gallery location and more workers
  imgarc sync --gallery ~/images/archive --concurrent 16

  # Slow down listing requests
  imgarc sync --rate-limit 30`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	for _, cmd := range []*cobra.Command{syncCmd, rootCmd} {
		cmd.Flags().StringVarP(&galleryRoot, "gallery", "g", "", "gallery root directory (default: gallery)")
		cmd.Flags().StringVar(&authFile, "auth-file", "", "credentials file (default: auth.txt)")
		cmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of concurrent downloads")
		cmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "listing requests per minute")
		cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "retry attempts for transient failures")
		cmd.Flags().IntVar(&downloadTimeout, "download-timeout", 0, "download timeout in seconds")
		cmd.Flags().StringVarP(&accountName, "account", "a", "default", "stored credential profile to use")
	}
}

func runSync(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logging", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("imgarc starting")

	credManager, err := auth.NewManager(cfg.Gallery.AuthFile)
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}
	creds, err := credManager.Resolve(accountName)
	if err != nil {
		ui.PrintError("No usable credentials", err.Error())
		ui.PrintInfo("Hint", "put an auth.txt next to the gallery or run 'imgarc auth login'")
		os.Exit(1)
	}

	arc, err := archiver.New(cfg, creds, log)
	if err != nil {
		ui.PrintError("Failed to set up archiver", err.Error())
		os.Exit(1)
	}
	arc.SetRefresher(&fileRefresher{manager: credManager, profile: accountName, current: creds})

	var progress *ui.Progress
	arc.SetProgress(func(completed, total int) {
		if progress == nil {
			progress = ui.NewProgress(total)
		}
		progress.Update(completed)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := arc.Run(ctx)
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		ui.PrintError("Sync failed", err.Error())
		os.Exit(1)
	}

	printSummary(summary)
	return nil
}

func loadConfig() (*config.Config, error) {
	flags := globalFlags()
	if galleryRoot != "" {
		flags["gallery"] = galleryRoot
	}
	if authFile != "" {
		flags["auth-file"] = authFile
	}
	if concurrent > 0 {
		flags["concurrent"] = concurrent
	}
	if rateLimit > 0 {
		flags["rate-limit"] = rateLimit
	}
	if maxRetries > 0 {
		flags["retry-attempts"] = maxRetries
	}
	if downloadTimeout > 0 {
		flags["download-timeout"] = downloadTimeout
	}
	return config.Load(configFile, flags)
}

func printSummary(summary *archiver.Summary) {
	if summary.Found == 0 {
		ui.PrintSuccess("Already up to date, nothing new to archive")
		return
	}
	ui.PrintInfo("New images found", fmt.Sprintf("%d", summary.Found))
	ui.PrintInfo("Downloaded", fmt.Sprintf("%d", summary.Downloaded))
	if summary.Failed > 0 {
		ui.PrintWarning("Failed (will retry next run)", summary.Failed)
	}
	if summary.Rendered > 0 {
		ui.PrintSuccess(fmt.Sprintf("Gallery rendered with %d images", summary.Rendered))
	}
}

// fileRefresher re-reads credentials from the auth file and stored
// backends when the remote rejects the current ones. It only helps when
// the user has replaced the file since the run started.
type fileRefresher struct {
	manager *auth.Manager
	profile string
	current *auth.Credentials
}

func (f *fileRefresher) Refresh(ctx context.Context) (*auth.Credentials, error) {
	creds, err := f.manager.Resolve(f.profile)
	if err != nil {
		return nil, err
	}
	if creds.Authorization == f.current.Authorization && creds.Cookie == f.current.Cookie {
		return nil, fmt.Errorf("credentials unchanged, update %s and re-run", f.manager.AuthFile())
	}
	f.current = creds
	return creds, nil
}
