package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"flickrdump/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Flickr credentials",
	Long: `Manage stored Flickr API credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

The OAuth token itself comes from Flickr's authorization flow; this tool
only stores and uses it. Never share your credentials or config files.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [account]",
	Short: "Store Flickr credentials securely",
	Long: `Store Flickr API credentials in the system keychain or an encrypted file.

You will be prompted for:
  - Account name (if not provided)
  - API key and API secret (from flickr.com/services/apps)
  - OAuth token and token secret (from a completed authorization flow)

Secrets are hidden as you type.`,
	Example: `  # Interactive login
  flickrdump auth login

  # Login with account name
  flickrdump auth login personal`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:     "logout <account>",
	Short:   "Remove stored credentials",
	Example: `  flickrdump auth logout personal`,
	Args:    cobra.ExactArgs(1),
	Run:     runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored Flickr accounts with sanitized credential information.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize credential manager:", err)
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)

	var name string
	if len(args) > 0 {
		name = args[0]
	} else {
		fmt.Print("Account name: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to read account name:", err)
			os.Exit(1)
		}
		name = strings.TrimSpace(input)
	}
	if name == "" {
		fmt.Fprintln(os.Stderr, "account name is required")
		os.Exit(1)
	}

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("Account '%s' already exists. Update credentials? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Print("API key: ")
	apiKey, _ := reader.ReadString('\n')

	apiSecret, err := promptSecret("API secret: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read API secret:", err)
		os.Exit(1)
	}

	oauthToken, err := promptSecret("OAuth token: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read OAuth token:", err)
		os.Exit(1)
	}

	oauthSecret, err := promptSecret("OAuth token secret: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read OAuth token secret:", err)
		os.Exit(1)
	}

	account := &auth.Account{
		Name:             name,
		APIKey:           strings.TrimSpace(apiKey),
		APISecret:        apiSecret,
		OAuthToken:       oauthToken,
		OAuthTokenSecret: oauthSecret,
		LastModified:     time.Now(),
	}

	if err := manager.Store(account); err != nil {
		fmt.Fprintln(os.Stderr, "failed to store credentials:", err)
		os.Exit(1)
	}

	fmt.Printf("\nCredentials stored for account: %s\n", name)
	fmt.Println("\nRun an export with:")
	fmt.Printf("  flickrdump export --account %s\n", name)
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize credential manager:", err)
		os.Exit(1)
	}

	name := args[0]
	if err := manager.Delete(name); err != nil {
		fmt.Fprintln(os.Stderr, "failed to remove account:", err)
		os.Exit(1)
	}
	fmt.Println("Account removed:", name)
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize credential manager:", err)
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to list accounts:", err)
		os.Exit(1)
	}

	if len(accounts) == 0 {
		fmt.Println("No stored accounts. Use 'flickrdump auth login' to add one.")
		return
	}

	fmt.Println("Stored accounts:")
	fmt.Println()
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. %s\n", i+1, sanitized.Name)
		fmt.Printf("   API key:      %s\n", sanitized.APIKey)
		fmt.Printf("   OAuth token:  %s\n", sanitized.OAuthToken)
		fmt.Printf("   Last change:  %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

// promptSecret reads a value from stdin without echoing when stdin is a
// terminal, falling back to a plain read otherwise.
func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)

	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
