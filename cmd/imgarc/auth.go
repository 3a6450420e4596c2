package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"imgarc/pkg/auth"
	"imgarc/pkg/ui"
)

var (
	// Auth command flags
	authCmdFile   string
	authProfile   string
	loginFromFile string
	loginURL      string
	loginToken    string
	loginCookie   string
	loginReferer  string
	loginAgent    string
	loginVersion  string
	loginDevice   string
	loginLanguage string
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage remote library credentials",
	Long: `Manage the credentials used against the remote image library.

Credentials live in a key=value auth.txt file, mirrored into the system
keychain and an encrypted file so a deleted auth.txt can be restored.

To capture the values, open the image library in your browser, open the
network inspector, and copy the listing request's URL and headers.

Never share your credentials or auth file!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store credentials",
	Long: `Store remote library credentials.

Either point --from-file at an existing key=value file, or pass each
value as a flag. Required: url, authorization, cookie, referer and
user-agent.`,
	Example: `  # Adopt a hand-written credentials file
  imgarc auth login --from-file ~/Downloads/auth.txt

  # Pass values directly
  imgarc auth login --url https://... --authorization "Bearer ..." \
    --cookie "..." --referer https://... --user-agent "Mozilla/..."`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which credentials would be used",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials everywhere",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(statusCmd)
	authCmd.AddCommand(logoutCmd)

	authCmd.PersistentFlags().StringVar(&authCmdFile, "auth-file", "auth.txt", "credentials file location")
	authCmd.PersistentFlags().StringVarP(&authProfile, "account", "a", "default", "credential profile name")

	loginCmd.Flags().StringVar(&loginFromFile, "from-file", "", "read credentials from an existing key=value file")
	loginCmd.Flags().StringVar(&loginURL, "url", "", "listing endpoint URL")
	loginCmd.Flags().StringVar(&loginToken, "authorization", "", "Authorization header value")
	loginCmd.Flags().StringVar(&loginCookie, "cookie", "", "Cookie header value")
	loginCmd.Flags().StringVar(&loginReferer, "referer", "", "Referer header value")
	loginCmd.Flags().StringVar(&loginAgent, "user-agent", "", "User-Agent header value")
	loginCmd.Flags().StringVar(&loginVersion, "client-version", "", "client version header (optional)")
	loginCmd.Flags().StringVar(&loginDevice, "device-id", "", "device id header (optional)")
	loginCmd.Flags().StringVar(&loginLanguage, "language", "", "language header (optional)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager(authCmdFile)
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var creds *auth.Credentials
	if loginFromFile != "" {
		creds, err = auth.LoadFile(loginFromFile)
		if err != nil {
			ui.PrintError("Failed to read credentials file", err.Error())
			os.Exit(1)
		}
	} else {
		creds = &auth.Credentials{
			URL:           loginURL,
			Authorization: loginToken,
			Cookie:        loginCookie,
			Referer:       loginReferer,
			UserAgent:     loginAgent,
			ClientVersion: loginVersion,
			DeviceID:      loginDevice,
			Language:      loginLanguage,
		}
	}

	if err := manager.Store(authProfile, creds); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Credentials stored for profile %q", authProfile))
	ui.PrintInfo("Auth file", manager.AuthFile())
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager(authCmdFile)
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	creds, err := manager.Resolve(authProfile)
	if err != nil {
		ui.PrintWarning("No usable credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Credentials found")
	ui.PrintInfo("Listing URL", creds.URL)
	ui.PrintInfo("Authorization", sanitize(creds.Authorization))
	ui.PrintInfo("Cookie", sanitize(creds.Cookie))
	ui.PrintInfo("User-Agent", creds.UserAgent)
	if !creds.LastModified.IsZero() {
		ui.PrintInfo("Last stored", creds.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager(authCmdFile)
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	if err := manager.Delete(authProfile); err != nil {
		ui.PrintError("Failed to remove credentials", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Credentials removed")
	return nil
}

// sanitize shows just enough of a secret to recognize it
func sanitize(value string) string {
	if len(value) <= 12 {
		return "****"
	}
	return value[:8] + "..." + value[len(value)-4:]
}
