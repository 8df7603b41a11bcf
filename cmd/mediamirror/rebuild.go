package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mediamirror/pkg/config"
	"mediamirror/pkg/logger"
	"mediamirror/pkg/scraper"
	"mediamirror/pkg/site"
	"mediamirror/pkg/ui"
)

// rebuildCmd represents the rebuild command
var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Regenerate item details from cached pages",
	Long: `Parse the cached item page of every library item again and rewrite its
details file. No requests are sent to the site, so this is safe to run after
the page parser learned a new field.`,
	Args: cobra.NoArgs,
	Run:  runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadUnvalidated(configFile, globalFlags())
	exitOnError("Failed to load configuration", err)

	log, err := logger.New(&cfg.Logging)
	exitOnError("Failed to initialize logger", err)

	app, err := newApp(cfg, log)
	exitOnError("Failed to open library", err)

	s, err := scraper.New(scraper.Deps{
		Parser:   site.ItemParser{},
		Library:  app.library,
		Metadata: app.metadata,
	}, scraper.Options{}, log)
	exitOnError("Failed to initialize rebuild", err)

	n, err := s.Rebuild(cmd.Context())
	if err != nil {
		ui.PrintError("Some items could not be rebuilt", err.Error())
		ui.PrintInfo("Rebuilt", fmt.Sprintf("%d items", n))
		os.Exit(1)
	}
	ui.PrintSuccess(fmt.Sprintf("Rebuilt %d items", n))
}
