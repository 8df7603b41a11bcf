package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mediamirror/internal/downloader"
	"mediamirror/pkg/logger"
	"mediamirror/pkg/metadata"
	"mediamirror/pkg/site"
	"mediamirror/pkg/storage"
	"mediamirror/pkg/ui"
)

// Options controls a mirror run.
type Options struct {
	// VideoLimit stops the run after this many items were processed.
	VideoLimit int
	// ForceDownload resumes items whose video already exists.
	ForceDownload bool
	// MetadataOnly saves pages and details without videos.
	MetadataOnly bool
	// Filter is an expression over item details; empty accepts all.
	Filter string
}

// Deps are the collaborators of a Scraper. Reporter and Printer are
// optional.
type Deps struct {
	Session    Authenticator
	Pages      PageFetcher
	Links      LinkSource
	Parser     ItemParser
	Downloader VideoDownloader
	Library    *storage.Manager
	Metadata   *metadata.Writer
	Reporter   *ui.Reporter
	Printer    *ui.Printer
}

// Scraper mirrors the site into the library one item at a time.
type Scraper struct {
	deps   Deps
	opts   Options
	filter *ItemFilter
	logger logger.Logger
}

// New creates a Scraper.
func New(deps Deps, opts Options, log logger.Logger) (*Scraper, error) {
	filter, err := CompileFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	return &Scraper{
		deps:   deps,
		opts:   opts,
		filter: filter,
		logger: logger.OrNop(log),
	}, nil
}

// Run authenticates, then crawls and mirrors items until the listing ends,
// the video limit is reached or ctx is cancelled. The progress reporter
// runs beside the main loop for the duration.
func (s *Scraper) Run(ctx context.Context) (*ui.Summary, error) {
	runID := uuid.Must(uuid.NewV7()).String()
	log := s.logger.WithField("run_id", runID)
	summary := ui.NewSummary()

	logger.LogComponentStart(log, "mirror", map[string]interface{}{
		"video_limit":    s.opts.VideoLimit,
		"force_download": s.opts.ForceDownload,
		"metadata_only":  s.opts.MetadataOnly,
		"filter":         s.filter.Expression(),
		"library":        s.deps.Library.Root(),
	})

	if err := s.deps.Session.RestoreOrLogin(ctx); err != nil {
		return summary, fmt.Errorf("failed to authenticate: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	reporterCtx, stopReporter := context.WithCancel(gctx)

	if s.deps.Reporter != nil {
		g.Go(func() error {
			return s.deps.Reporter.Run(reporterCtx)
		})
	}
	g.Go(func() error {
		defer stopReporter()
		return s.mirror(gctx, log, summary)
	})

	err := g.Wait()
	stopReporter()

	reason := "finished"
	if err != nil {
		reason = err.Error()
	}
	logger.LogComponentStop(log, "mirror", reason)
	log.InfoWithFields("Mirror run summary", summary.Fields())
	return summary, err
}

func (s *Scraper) mirror(ctx context.Context, log logger.Logger, summary *ui.Summary) error {
	n := 0
	for link, err := range s.deps.Links.Links(ctx) {
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("crawl aborted: %w", err)
		}
		n++

		if err := s.processItem(ctx, log, n, link, summary); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			summary.AddFailed()
			log.WithError(err).WithField("url", link).Error("Item failed, continuing with the next one")
			if s.deps.Printer != nil {
				s.deps.Printer.Error("Item failed", err)
			}
		}

		if s.opts.VideoLimit > 0 && summary.Processed() >= s.opts.VideoLimit {
			log.InfoWithFields("Video limit reached", map[string]interface{}{"limit": s.opts.VideoLimit})
			return nil
		}
	}
	return nil
}

func (s *Scraper) processItem(ctx context.Context, log logger.Logger, n int, link string, summary *ui.Summary) error {
	folder := site.ItemFolderName(link)
	log = log.WithFields(map[string]interface{}{"item": folder, "url": link})

	if !s.opts.ForceDownload && s.deps.Library.HasVideo(folder) {
		log.Info("Video already in library, skipping")
		summary.AddExisting()
		return nil
	}

	log.InfoWithFields("Starting item", map[string]interface{}{"number": n})
	if s.deps.Printer != nil {
		s.deps.Printer.Info(fmt.Sprintf("Item #%d", n), folder)
	}

	resp, err := s.deps.Pages.Get(ctx, link)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		log.WarnWithFields("Item page unavailable, skipping", map[string]interface{}{"status": resp.StatusCode})
		summary.AddSkipped()
		return nil
	}

	pageURL := resp.FinalURL
	if pageURL == "" {
		pageURL = link
	}
	details, err := s.deps.Parser.Parse(resp.Body, pageURL)
	if err != nil {
		return err
	}

	ok, err := s.filter.Match(details)
	if err != nil {
		return err
	}
	if !ok {
		log.Info("Item excluded by filter")
		summary.AddSkipped()
		return nil
	}

	if err := s.deps.Library.EnsureItemDir(folder); err != nil {
		return err
	}
	if err := s.deps.Metadata.Dump(folder, resp.Body, details); err != nil {
		return err
	}

	if s.opts.MetadataOnly {
		summary.AddMetadataOnly()
		return nil
	}

	best, ok := site.BestQuality(details.Downloads)
	if !ok {
		log.Warn("Item page offers no video download")
		summary.AddSkipped()
		return nil
	}
	log.DebugWithFields("Selected quality", map[string]interface{}{"quality": best.Item})

	dest := s.deps.Library.VideoPath(folder)
	res, err := s.deps.Downloader.Download(ctx, best.Link, dest)
	if err != nil {
		logger.LogTransfer(log, best.Link, dest, "failed", 0, err)
		return err
	}
	logger.LogTransfer(log, best.Link, dest, res.Outcome.String(), res.Size, nil)

	switch res.Outcome {
	case downloader.Completed:
		summary.AddCompleted(res.Size)
		s.deps.Library.MarkDownloaded(folder)
	case downloader.AlreadyComplete:
		summary.AddAlreadyComplete()
		s.deps.Library.MarkDownloaded(folder)
	case downloader.Skipped:
		summary.AddSkipped()
	}
	return nil
}

// Rebuild regenerates the details of every library item from its cached
// page without touching the network. It returns how many items were
// rebuilt; items without a cached page are left alone.
func (s *Scraper) Rebuild(ctx context.Context) (int, error) {
	items, err := s.deps.Library.Items()
	if err != nil {
		return 0, err
	}

	rebuilt := 0
	var failures []error
	for _, folder := range items {
		if err := ctx.Err(); err != nil {
			return rebuilt, err
		}
		log := s.logger.WithField("item", folder)

		page, err := s.deps.Metadata.LoadPage(folder)
		if err != nil {
			log.Debug("No cached page, skipping")
			continue
		}

		pageURL := ""
		if old, err := s.deps.Metadata.LoadDetails(folder); err == nil {
			pageURL = old.URL
		}

		details, err := s.deps.Parser.Parse(page, pageURL)
		if err != nil {
			log.WithError(err).Warn("Cached page could not be parsed")
			failures = append(failures, fmt.Errorf("%s: %w", folder, err))
			continue
		}
		if err := s.deps.Metadata.SaveDetails(folder, details); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", folder, err))
			continue
		}
		rebuilt++
	}

	log := s.logger.WithField("rebuilt", rebuilt)
	log.Info("Rebuild finished")
	return rebuilt, errors.Join(failures...)
}
