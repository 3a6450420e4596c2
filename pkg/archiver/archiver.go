// Package archiver orchestrates a sync run: load the metadata store,
// list the remote library, download what is new, commit the records and
// re-render the gallery.
package archiver

import (
	"context"
	"fmt"
	"time"

	"imgarc/internal/downloader"
	"imgarc/pkg/auth"
	"imgarc/pkg/config"
	errs "imgarc/pkg/errors"
	"imgarc/pkg/gallery"
	"imgarc/pkg/library"
	"imgarc/pkg/logger"
	"imgarc/pkg/ratelimit"
	"imgarc/pkg/retry"
	"imgarc/pkg/storage"
	"imgarc/pkg/store"
)

// State identifies a phase of a sync run
type State string

const (
	StateLoadingStore  State = "LOADING_STORE"
	StateListingRemote State = "LISTING_REMOTE"
	StateFiltering     State = "FILTERING"
	StateDownloading   State = "DOWNLOADING"
	StateUpdatingStore State = "UPDATING_STORE"
	StateRendering     State = "RENDERING"
	StateAuthRetry     State = "AUTH_RETRY"
	StateDone          State = "DONE"
	StateFailed        State = "FAILED"
)

// maxAuthRetries bounds how many credential refreshes one run attempts
// before giving up.
const maxAuthRetries = 2

// CredentialRefresher supplies fresh credentials when the remote starts
// rejecting the current ones mid-run. Returning an error declines the
// refresh and fails the run.
type CredentialRefresher interface {
	Refresh(ctx context.Context) (*auth.Credentials, error)
}

// ProgressFunc receives download progress updates
type ProgressFunc func(completed, total int)

// Summary is the outcome of one sync run
type Summary struct {
	Found      int
	Downloaded int
	Failed     int
	Rendered   int
}

// Archiver runs the sync state machine. One Archiver is good for one
// run; state and history are not reset between calls.
type Archiver struct {
	cfg      *config.Config
	client   *library.Client
	fetcher  *library.Fetcher
	store    *store.Store
	storage  *storage.Manager
	renderer *gallery.Renderer
	logger   logger.Logger

	refresher CredentialRefresher
	progress  ProgressFunc
	backoff   retry.BackoffStrategy

	state   State
	history []State
}

// New builds an archiver from configuration and credentials
func New(cfg *config.Config, creds *auth.Credentials, log logger.Logger) (*Archiver, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	client := library.NewClient(creds, cfg.Download.DownloadTimeout, log)
	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)

	manager, err := storage.NewManager(cfg.ImagesDir())
	if err != nil {
		return nil, err
	}

	return &Archiver{
		cfg:      cfg,
		client:   client,
		fetcher:  library.NewFetcher(client, limiter, cfg.Download.RetryAttempts, log),
		store:    store.New(cfg.MetadataPath()),
		storage:  manager,
		renderer: gallery.NewRenderer(cfg.Gallery.Root, log),
		logger:   log,
	}, nil
}

// SetRefresher installs a credential refresher used when the remote
// rejects the current credentials mid-run.
func (a *Archiver) SetRefresher(r CredentialRefresher) {
	a.refresher = r
}

// SetProgress installs a download progress callback
func (a *Archiver) SetProgress(p ProgressFunc) {
	a.progress = p
}

// SetBackoff overrides the retry backoff for page fetches and downloads
func (a *Archiver) SetBackoff(backoff retry.BackoffStrategy) {
	a.backoff = backoff
	a.fetcher.SetBackoff(backoff)
}

// State returns the current phase
func (a *Archiver) State() State {
	return a.state
}

// History returns every phase the run went through, in order
func (a *Archiver) History() []State {
	return a.history
}

func (a *Archiver) setState(s State) {
	a.state = s
	a.history = append(a.history, s)
	a.logger.DebugWithFields("sync state", map[string]interface{}{"state": string(s)})
}

func (a *Archiver) fail(err error) (*Summary, error) {
	a.setState(StateFailed)
	return nil, err
}

// Run executes a full sync and returns the run summary
func (a *Archiver) Run(ctx context.Context) (*Summary, error) {
	a.setState(StateLoadingStore)
	records, err := a.store.Load()
	if err != nil {
		return a.fail(err)
	}
	a.logger.InfoWithFields("metadata store loaded", map[string]interface{}{
		"records": len(records),
	})

	descriptors, err := a.listRemote(ctx, records)
	if err != nil {
		return a.fail(err)
	}

	a.setState(StateFiltering)
	fresh := filterNew(descriptors, records)
	a.logger.InfoWithFields("remote listing filtered", map[string]interface{}{
		"listed": len(descriptors),
		"new":    len(fresh),
	})

	if len(fresh) == 0 {
		// Nothing new: no store write, no render
		a.setState(StateDone)
		return &Summary{}, nil
	}

	a.setState(StateDownloading)
	results, err := a.download(ctx, fresh)
	if err != nil {
		return a.fail(err)
	}

	summary := &Summary{Found: len(fresh)}
	for _, d := range fresh {
		result, ok := results[d.ID]
		if !ok || !result.Success() {
			summary.Failed++
			continue
		}
		summary.Downloaded++
		records[d.ID] = recordFrom(d, result.Filename)
	}

	if summary.Downloaded == 0 {
		a.setState(StateDone)
		a.logger.Warn("no new images could be downloaded, store left untouched")
		return summary, nil
	}

	a.setState(StateUpdatingStore)
	if err := a.store.Save(records); err != nil {
		return a.fail(err)
	}

	a.setState(StateRendering)
	if err := a.renderer.Render(records); err != nil {
		return a.fail(err)
	}
	summary.Rendered = len(records)

	a.setState(StateDone)
	a.logger.InfoWithFields("sync complete", map[string]interface{}{
		"found":      summary.Found,
		"downloaded": summary.Downloaded,
		"failed":     summary.Failed,
		"rendered":   summary.Rendered,
	})
	return summary, nil
}

// listRemote walks the remote listing, pausing for a credential refresh
// when the remote rejects the current ones.
func (a *Archiver) listRemote(ctx context.Context, records map[string]*store.ImageRecord) ([]library.Descriptor, error) {
	known := func(id string) bool {
		_, ok := records[id]
		return ok
	}

	a.setState(StateListingRemote)

	var descriptors []library.Descriptor
	cursor := ""
	refreshes := 0
	for {
		listing, err := a.fetcher.ListFrom(ctx, cursor, known)
		descriptors = append(descriptors, listing.Descriptors...)
		if err == nil {
			return descriptors, nil
		}
		if !errs.IsAuth(err) {
			return nil, err
		}
		if err := a.refreshCredentials(ctx, &refreshes); err != nil {
			return nil, err
		}
		cursor = listing.ResumeCursor
		a.setState(StateListingRemote)
	}
}

// download runs new descriptors through the worker pool. An auth
// failure drains the pool, refreshes credentials and resumes with the
// descriptors that have not succeeded yet.
func (a *Archiver) download(ctx context.Context, fresh []library.Descriptor) (map[string]downloader.Result, error) {
	results := make(map[string]downloader.Result, len(fresh))
	pending := fresh
	refreshes := 0

	for {
		batch, sawAuth := a.downloadBatch(pending, len(fresh), len(results))
		for id, result := range batch {
			results[id] = result
		}
		if !sawAuth {
			return results, nil
		}

		if err := a.refreshCredentials(ctx, &refreshes); err != nil {
			return nil, err
		}
		a.setState(StateDownloading)

		pending = remaining(fresh, results)
		if len(pending) == 0 {
			return results, nil
		}
	}
}

// downloadBatch runs one pool over the given descriptors. It returns
// the per-descriptor results and whether an auth failure aborted the
// batch early.
func (a *Archiver) downloadBatch(descs []library.Descriptor, total, done int) (map[string]downloader.Result, bool) {
	pool := downloader.NewPool(
		a.cfg.Download.ConcurrentDownloads,
		a.client,
		a.storage,
		a.cfg.Download.RetryAttempts,
		a.logger,
	)
	if a.backoff != nil {
		pool.SetBackoff(a.backoff)
	}
	pool.Start()

	results := make(map[string]downloader.Result, len(descs))
	sawAuth := false
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		for result := range pool.Results() {
			results[result.Descriptor.ID] = result
			if result.Err != nil && errs.IsAuth(result.Err) && !sawAuth {
				sawAuth = true
				pool.Abort()
			}
			if a.progress != nil {
				a.progress(done+len(results), total)
			}
		}
	}()

	for _, d := range descs {
		if !pool.Submit(d) {
			break
		}
	}
	pool.Stop()
	<-collected

	return results, sawAuth
}

// refreshCredentials runs one AUTH_RETRY cycle, bounded per run
func (a *Archiver) refreshCredentials(ctx context.Context, refreshes *int) error {
	if a.refresher == nil {
		return errs.New(errs.ErrorTypeAuth, "credentials rejected and no refresher configured", 0)
	}
	if *refreshes >= maxAuthRetries {
		return errs.New(errs.ErrorTypeAuth,
			fmt.Sprintf("credentials still rejected after %d refreshes", *refreshes), 0)
	}

	a.setState(StateAuthRetry)
	*refreshes++

	creds, err := a.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("credential refresh failed: %w", err)
	}
	if err := creds.Validate(); err != nil {
		return fmt.Errorf("refreshed credentials invalid: %w", err)
	}

	a.client.SetCredentials(creds)
	a.logger.Info("credentials refreshed, resuming")
	return nil
}

// filterNew returns listed descriptors absent from the store, deduped
// by id within the listing itself.
func filterNew(descriptors []library.Descriptor, records map[string]*store.ImageRecord) []library.Descriptor {
	seen := make(map[string]bool, len(descriptors))
	fresh := make([]library.Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		if _, known := records[d.ID]; known {
			continue
		}
		fresh = append(fresh, d)
	}
	return fresh
}

// remaining returns descriptors with no successful result yet
func remaining(fresh []library.Descriptor, results map[string]downloader.Result) []library.Descriptor {
	var out []library.Descriptor
	for _, d := range fresh {
		if result, ok := results[d.ID]; ok && result.Success() {
			continue
		}
		out = append(out, d)
	}
	return out
}

// recordFrom builds the persisted record for a downloaded descriptor
func recordFrom(d library.Descriptor, filename string) *store.ImageRecord {
	return &store.ImageRecord{
		ID:               d.ID,
		Title:            d.Title,
		CreatedAt:        d.CreatedAt,
		LocalFilename:    filename,
		SourceURL:        d.URL,
		Tags:             d.Tags,
		Prompt:           d.Prompt,
		Width:            d.Width,
		Height:           d.Height,
		ConversationID:   d.ConversationID,
		MessageID:        d.MessageID,
		ConversationLink: d.ConversationLink(),
	}
}
