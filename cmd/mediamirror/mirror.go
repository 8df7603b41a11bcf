package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mediamirror/internal/downloader"
	"mediamirror/pkg/auth"
	"mediamirror/pkg/config"
	"mediamirror/pkg/crawler"
	"mediamirror/pkg/fetch"
	"mediamirror/pkg/logger"
	"mediamirror/pkg/metadata"
	"mediamirror/pkg/ratelimit"
	"mediamirror/pkg/scraper"
	"mediamirror/pkg/session"
	"mediamirror/pkg/site"
	"mediamirror/pkg/storage"
	"mediamirror/pkg/ui"
)

var (
	// Mirror command flags
	pageLimit       int
	videoLimit      int
	itemLimit       int
	forceDownload   bool
	metadataOnly    bool
	getRetries      int
	downloadRetries int
	noProgress      bool
	accountName     string
	filterExpr      string
	downloadRoot    string
)

// mirrorCmd represents the mirror command
var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Mirror new items from the site into the library",
	Long: `Walk the video listing and mirror every item into the library.

Each item gets its own folder holding the video, the item page and a
details.json file. Items whose video is already present are skipped unless
--force-download is given, in which case partial files are resumed.

Credentials are taken from, in order:
  - --account (a stored account)
  - session.username and session.password in the config or environment
  - the first stored account (use 'mediamirror auth login' to add one)`,
	Example: `  # Mirror everything new
  mediamirror mirror

  # Fetch only the first listing page and at most 5 items
  mediamirror mirror --page-limit 1 --video-limit 5

  # Refresh metadata without downloading videos
  mediamirror mirror --metadata-only

  # Only mirror popular items
  mediamirror mirror --filter 'views > 1000'`,
	Args: cobra.NoArgs,
	Run:  runMirror,
}

func init() {
	rootCmd.AddCommand(mirrorCmd)
	addMirrorFlags(mirrorCmd)
	// The root command mirrors too, so it accepts the same flags.
	addMirrorFlags(rootCmd)
}

func addMirrorFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&pageLimit, "page-limit", 0, "stop after this many listing pages (0 = no limit)")
	cmd.Flags().IntVar(&videoLimit, "video-limit", 0, "stop after this many items were processed (0 = no limit)")
	cmd.Flags().IntVar(&itemLimit, "item-limit", 0, "stop after the crawler yielded this many links (0 = no limit)")
	cmd.Flags().BoolVar(&forceDownload, "force-download", false, "do not assume existing videos are complete")
	cmd.Flags().BoolVar(&metadataOnly, "metadata-only", false, "save item pages and details without videos")
	cmd.Flags().IntVar(&getRetries, "retries", 0, "attempts for page requests (default from config)")
	cmd.Flags().IntVar(&downloadRetries, "download-retries", 0, "attempts for video downloads (default from config)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress line")
	cmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	cmd.Flags().StringVar(&filterExpr, "filter", "", "only mirror items matching this expression")
	cmd.Flags().StringVarP(&downloadRoot, "output", "o", "", "library directory (default from config)")
}

func mirrorFlags() map[string]interface{} {
	flags := globalFlags()
	if getRetries > 0 {
		flags["retries"] = getRetries
	}
	if downloadRetries > 0 {
		flags["download-retries"] = downloadRetries
	}
	if noProgress {
		flags["no-progress"] = true
	}
	if filterExpr != "" {
		flags["filter"] = filterExpr
	}
	if downloadRoot != "" {
		flags["download-root"] = downloadRoot
	}
	return flags
}

func runMirror(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, mirrorFlags())
	exitOnError("Failed to load configuration", err)

	log, err := logger.New(&cfg.Logging)
	exitOnError("Failed to initialize logger", err)

	exitOnError("Failed to resolve credentials", resolveCredentials(cfg, accountName, log))

	app, err := newApp(cfg, log)
	exitOnError("Failed to prepare library", err)

	dl := downloader.New(app.sess, app.exec, downloader.Options{
		Attempts:  cfg.Retry.DownloadAttempts,
		InPlace:   cfg.Library.DownloadInPlace,
		Bandwidth: ratelimit.NewBandwidth(cfg.RateLimit.MaxBytesPerSecond),
	}, log)

	links := crawler.New(app.exec, site.ListingExtractor{}, crawler.Options{
		StartURL:  cfg.Site.VideosURL,
		PageLimit: pageLimit,
		ItemLimit: itemLimit,
	}, log)

	reporter := ui.NewReporter(dl, ui.ReporterOptions{
		Enabled:  cfg.Progress.Enabled && !quiet,
		Interval: cfg.Progress.Interval,
	}, log)

	var printer *ui.Printer
	if !quiet {
		printer = ui.Stdout
		printer.Info("Library", app.library.Root())
		printer.Info("Listing", cfg.Site.VideosURL)
	}

	s, err := scraper.New(scraper.Deps{
		Session:    app.sess,
		Pages:      app.exec,
		Links:      links,
		Parser:     site.ItemParser{},
		Downloader: dl,
		Library:    app.library,
		Metadata:   app.metadata,
		Reporter:   reporter,
		Printer:    printer,
	}, scraper.Options{
		VideoLimit:    videoLimit,
		ForceDownload: forceDownload,
		MetadataOnly:  metadataOnly,
		Filter:        cfg.Library.Filter,
	}, log)
	exitOnError("Failed to initialize mirror", err)

	summary, err := s.Run(cmd.Context())
	if printer != nil {
		fmt.Println()
		summary.Print(printer)
	}
	if err != nil {
		if cmd.Context().Err() != nil {
			log.Info("Interrupted, partial files kept for the next run")
			ui.PrintWarning("Interrupted")
			return
		}
		ui.PrintError("Mirror failed", err.Error())
		os.Exit(1)
	}
	if !quiet {
		ui.PrintSuccess("Mirror finished")
	}
}

// app holds the components shared by commands that touch the site or the
// library.
type app struct {
	sess     *session.Session
	exec     *fetch.Executor
	library  *storage.Manager
	metadata *metadata.Writer
}

func newApp(cfg *config.Config, log logger.Logger) (*app, error) {
	statePath, err := cfg.Session.StatePath.Resolve()
	if err != nil {
		return nil, fmt.Errorf("session state path: %w", err)
	}
	root, err := cfg.Library.DownloadRoot.Resolve()
	if err != nil {
		return nil, fmt.Errorf("download root: %w", err)
	}

	library, err := storage.NewManager(root)
	if err != nil {
		return nil, err
	}

	sess := session.New(session.Options{
		MembersURL: cfg.Site.MembersURL,
		LoginURL:   cfg.Site.EffectiveLoginURL(),
		Username:   cfg.Session.Username,
		Password:   cfg.Session.Password,
		Timeout:    cfg.Session.Timeout,
		UserAgent:  cfg.Site.UserAgent,
		Store:      session.NewFileStore(statePath, log),
		Limiter:    ratelimit.NewPerMinute(cfg.RateLimit.RequestsPerMinute),
	}, log)

	exec := fetch.New(sess, fetch.Options{
		Attempts:   cfg.Retry.GetAttempts,
		MaxBackoff: cfg.Retry.MaxBackoff,
	}, log)

	return &app{
		sess:    sess,
		exec:    exec,
		library: library,
		metadata: metadata.NewWriter(library, metadata.Options{
			SavePage:        cfg.Library.SaveItemPage,
			PageFilename:    cfg.Library.ItemPageFilename,
			SaveDetails:     cfg.Library.SaveDetails,
			DetailsFilename: cfg.Library.DetailsFilename,
		}),
	}, nil
}

// resolveCredentials fills the session credentials from the credential
// store unless the configuration already carries a complete pair.
func resolveCredentials(cfg *config.Config, account string, log logger.Logger) error {
	if account == "" && cfg.Session.Username != "" && cfg.Session.Password != "" {
		log.Info("Using credentials from configuration")
		return nil
	}

	manager, err := auth.NewManager(cfg.Site.MembersURL)
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var acc *auth.Account
	switch {
	case account != "":
		acc, err = manager.Retrieve(account)
	case cfg.Session.Username != "":
		acc, err = manager.Retrieve(cfg.Session.Username)
	default:
		acc, err = manager.RetrieveDefault()
	}
	if err != nil {
		return fmt.Errorf("%w; run 'mediamirror auth login' to store credentials", err)
	}

	cfg.Session.Username = acc.Username
	cfg.Session.Password = acc.Password
	log.WithField("account", acc.Username).Info("Using stored credentials")
	return nil
}
