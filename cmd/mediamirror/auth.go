package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mediamirror/pkg/auth"
	"mediamirror/pkg/config"
	"mediamirror/pkg/session"
	"mediamirror/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage site credentials and the saved session",
	Long: `Manage stored site credentials and the persisted login session.

Credentials are kept per site, keyed by the host of site.members_url, using:
  - System keychain (when available)
  - An encrypted file protected by MEDIAMIRROR_PASSPHRASE (when set)
  - Environment variables MEDIAMIRROR_USERNAME and MEDIAMIRROR_PASSWORD

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store site credentials securely",
	Long: `Store the username and password of an account on the configured site
in the system keychain, falling back to the encrypted file.

The password is read without echo when stdin is a terminal.`,
	Example: `  # Interactive login
  mediamirror auth login

  # Login with username
  mediamirror auth login member@example.com`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove stored credentials",
	Long: `Remove stored site credentials.

If no username is provided, you will be shown a list of stored accounts
to choose from. You can also remove all accounts at once.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List the accounts stored for the configured site with masked passwords.`,
	Run:   runList,
}

// resetSessionCmd represents the auth reset-session command
var resetSessionCmd = &cobra.Command{
	Use:   "reset-session",
	Short: "Forget the saved login session",
	Long: `Delete the persisted session state so that the next run logs in from
scratch. Stored credentials are kept.`,
	Args: cobra.NoArgs,
	Run:  runResetSession,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(resetSessionCmd)
}

// credentialManager opens the credential stores for the configured site.
func credentialManager() *auth.Manager {
	cfg, err := config.LoadUnvalidated(configFile, globalFlags())
	exitOnError("Failed to load configuration", err)

	manager, err := auth.NewManager(cfg.Site.MembersURL)
	exitOnError("Failed to initialize credential manager (is site.members_url set?)", err)
	return manager
}

func runLogin(cmd *cobra.Command, args []string) {
	manager := credentialManager()

	var username string
	if len(args) > 0 {
		username = strings.TrimSpace(args[0])
	}

	reader := bufio.NewReader(os.Stdin)

	if username == "" {
		fmt.Print("Username: ")
		input, err := reader.ReadString('\n')
		exitOnError("Failed to read username", err)
		username = strings.TrimSpace(input)
	}
	if username == "" {
		ui.PrintError("Username is required")
		os.Exit(1)
	}

	if existing, _ := manager.Retrieve(username); existing != nil {
		fmt.Printf("Account '%s' already exists. Update credentials? (y/N): ", username)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Print("Password: ")
	password, err := readPassword(reader)
	exitOnError("Failed to read password", err)
	if password == "" {
		ui.PrintError("Password is required")
		os.Exit(1)
	}

	account := &auth.Account{
		Username: username,
		Password: password,
	}
	exitOnError("Failed to store credentials", manager.Store(account))

	ui.PrintSuccess(fmt.Sprintf("Account saved: %s on %s", username, manager.Site()))
	fmt.Println("\nUse it with:")
	fmt.Printf("  mediamirror mirror --account %s\n", username)
}

func runLogout(cmd *cobra.Command, args []string) {
	manager := credentialManager()

	if len(args) > 0 {
		exitOnError("Failed to remove account", manager.Delete(args[0]))
		ui.PrintSuccess("Account removed: " + args[0])
		return
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		ui.PrintError("No stored accounts found")
		return
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Select account to remove:")
	for i, account := range accounts {
		fmt.Printf("  %d. %s\n", i+1, account.Username)
	}
	fmt.Printf("  %d. Remove all accounts\n", len(accounts)+1)
	fmt.Printf("  0. Cancel\n\n")

	fmt.Print("Choice: ")
	input, _ := reader.ReadString('\n')

	var choice int
	fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

	switch {
	case choice == 0:
		return
	case choice == len(accounts)+1:
		fmt.Print("Remove ALL accounts? This cannot be undone! (yes/N): ")
		confirm, _ := reader.ReadString('\n')
		if strings.TrimSpace(confirm) != "yes" {
			return
		}
		exitOnError("Failed to remove all accounts", manager.DeleteAll())
		ui.PrintSuccess("All accounts removed")
	case choice > 0 && choice <= len(accounts):
		account := accounts[choice-1]
		exitOnError("Failed to remove account", manager.Delete(account.Username))
		ui.PrintSuccess("Account removed: " + account.Username)
	default:
		ui.PrintError("Invalid choice")
		os.Exit(1)
	}
}

func runList(cmd *cobra.Command, args []string) {
	manager := credentialManager()

	accounts, err := manager.List()
	exitOnError("Failed to list accounts", err)

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'mediamirror auth login' to add an account")
		return
	}

	ui.Stdout.Highlight("Stored Accounts for " + manager.Site())
	fmt.Println()
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Username: %s\n", i+1, sanitized.Username)
		fmt.Printf("   Password: %s\n", sanitized.Password)
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

func runResetSession(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadUnvalidated(configFile, globalFlags())
	exitOnError("Failed to load configuration", err)

	path, err := cfg.Session.StatePath.Resolve()
	exitOnError("Failed to resolve session state path", err)

	exitOnError("Failed to delete session state", session.NewFileStore(path, nil).Delete())
	ui.PrintSuccess("Session state removed: " + path)
}

// readPassword reads a password from stdin without echoing
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
