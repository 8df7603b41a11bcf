package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mediamirror/pkg/config"
	"mediamirror/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage mediamirror configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (MEDIAMIRROR_*)
  - .env files (./.env and ~/.mediamirror.env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with default values",
	Long: `Create a configuration file holding every option with its default value.

The file is written to ~/.config/mediamirror/config.yaml unless a different
path is given with --config.`,
	Args: cobra.NoArgs,
	Run:  runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging all sources.

The password is masked.`,
	Args: cobra.NoArgs,
	Run:  runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the effective configuration.

This command checks:
  - YAML syntax
  - Required site URLs
  - Value ranges
  - The library filter expression
  - Path accessibility`,
	Args: cobra.NoArgs,
	Run:  runConfigValidate,
}

// getCmd represents the config get command
var getCmd = &cobra.Command{
	Use:     "get <key.path>",
	Short:   "Print one configuration value",
	Example: `  mediamirror config get retry.max_backoff`,
	Args:    cobra.ExactArgs(1),
	Run:     runConfigGet,
}

// setCmd represents the config set command
var setCmd = &cobra.Command{
	Use:   "set <key.path> <value>",
	Short: "Change one value in the configuration file",
	Example: `  mediamirror config set site.videos_url https://example.com/videos
  mediamirror config set library.download_root.linux ~/media`,
	Args: cobra.ExactArgs(2),
	Run:  runConfigSet,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
	configCmd.AddCommand(getCmd)
	configCmd.AddCommand(setCmd)
}

// configPath is the file written by init and set.
func configPath() string {
	if configFile != "" {
		return configFile
	}
	if found := config.FindConfigFile(); found != "" {
		return found
	}
	return config.DefaultConfigPath()
}

func runConfigInit(cmd *cobra.Command, args []string) {
	path := configFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists", path)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", path)
		os.Exit(1)
	}

	exitOnError("Failed to create configuration file", config.DefaultConfig().Save(path))

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set site.members_url and site.videos_url")
	fmt.Println("2. Run 'mediamirror auth login' to store your credentials")
	fmt.Println("3. Run 'mediamirror config validate' to check the configuration")
	fmt.Println("4. Start mirroring with 'mediamirror'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadUnvalidated(configFile, globalFlags())
	exitOnError("Failed to load configuration", err)

	display := *cfg
	if display.Session.Password != "" {
		display.Session.Password = "********"
	}

	data, err := yaml.Marshal(&display)
	exitOnError("Failed to format configuration", err)

	ui.Stdout.Highlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (MEDIAMIRROR_*)")
	fmt.Println("3. .env files")
	if path := configPath(); fileExists(path) {
		fmt.Printf("4. Configuration file: %s\n", path)
	} else {
		fmt.Println("4. Configuration file: (none)")
	}
	fmt.Println("5. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	ui.PrintInfo("Validating configuration", configPath())

	cfg, err := config.Load(configFile, globalFlags())
	exitOnError("Configuration validation failed", err)

	var warnings, problems []string

	if cfg.Session.Username == "" || cfg.Session.Password == "" {
		warnings = append(warnings, "no credentials in configuration; stored accounts will be used")
	}

	if root, err := cfg.Library.DownloadRoot.Resolve(); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot resolve download root: %v", err))
	} else if err := os.MkdirAll(root, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot create download root: %v", err))
	}

	if state, err := cfg.Session.StatePath.Resolve(); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot resolve session state path: %v", err))
	} else if err := os.MkdirAll(filepath.Dir(state), 0700); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot create session state directory: %v", err))
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Listing: %s\n", cfg.Site.VideosURL)
	fmt.Printf("  Library: %s\n", cfg.Library.DownloadRoot)
	fmt.Printf("  Page attempts: %d\n", cfg.Retry.GetAttempts)
	fmt.Printf("  Download attempts: %d\n", cfg.Retry.DownloadAttempts)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}

func runConfigGet(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadUnvalidated(configFile, globalFlags())
	exitOnError("Failed to load configuration", err)

	value, err := cfg.Get(args[0])
	exitOnError("Failed to read key", err)

	switch v := value.(type) {
	case map[string]interface{}, []interface{}:
		data, err := yaml.Marshal(v)
		exitOnError("Failed to format value", err)
		fmt.Print(string(data))
	default:
		fmt.Println(v)
	}
}

func runConfigSet(cmd *cobra.Command, args []string) {
	path := configPath()
	exitOnError("Failed to update configuration", config.SetInFile(path, args[0], args[1]))

	if _, err := config.LoadUnvalidated(path, nil); err != nil {
		ui.PrintWarning("The file no longer loads", err)
	}
	ui.PrintSuccess(fmt.Sprintf("%s updated in %s", args[0], path))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
