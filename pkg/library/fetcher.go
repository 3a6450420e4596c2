package library

import (
	"context"

	"imgarc/pkg/logger"
	"imgarc/pkg/ratelimit"
	"imgarc/pkg/retry"
)

// knownPageGuard is how many consecutive fully-known pages are required
// before pagination stops. The remote lists newest-first, so one fully
// known page usually means everything older is archived too; requiring
// two tolerates a single reordered page.
const knownPageGuard = 2

// Fetcher walks the remote listing newest-first and collects descriptors
// until pagination is exhausted or the listing reaches already-archived
// territory.
type Fetcher struct {
	client        *Client
	limiter       ratelimit.Limiter
	retryAttempts int
	backoff       retry.BackoffStrategy
	logger        logger.Logger
}

// NewFetcher creates a fetcher over the given client. The limiter paces
// page requests; retryAttempts bounds per-page retries of transient
// failures.
func NewFetcher(client *Client, limiter ratelimit.Limiter, retryAttempts int, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &Fetcher{
		client:        client,
		limiter:       limiter,
		retryAttempts: retryAttempts,
		backoff:       retry.DefaultExponentialBackoff(),
		logger:        log,
	}
}

// SetBackoff overrides the retry backoff strategy for page fetches
func (f *Fetcher) SetBackoff(backoff retry.BackoffStrategy) {
	f.backoff = backoff
}

// Listing is the outcome of walking the remote listing. Descriptors are
// in remote order (newest-first) and may include already-known items;
// filtering against the store is the orchestrator's job.
type Listing struct {
	// Descriptors fetched before the walk ended
	Descriptors []Descriptor
	// ResumeCursor is where a re-issued walk should continue after a
	// credential refresh. Empty when the walk completed.
	ResumeCursor string
	// Pages actually fetched
	Pages int
}

// ListFrom fetches listing pages starting at cursor ("" for the first
// page) and stops when: items run out, the response carries no next
// cursor, or knownPageGuard consecutive pages contained only ids for
// which known() is true.
//
// On error the partial Listing collected so far is returned together
// with the error; ResumeCursor points at the failed page so an auth
// refresh can resume instead of restarting.
func (f *Fetcher) ListFrom(ctx context.Context, cursor string, known func(id string) bool) (*Listing, error) {
	listing := &Listing{}
	fullyKnownPages := 0

	for {
		f.limiter.Wait()

		page, err := f.fetchPageWithRetry(ctx, cursor)
		if err != nil {
			listing.ResumeCursor = cursor
			return listing, err
		}
		listing.Pages++

		if len(page.Items) == 0 {
			f.logger.Debug("remote listing exhausted")
			return listing, nil
		}

		newOnPage := 0
		for _, item := range page.Items {
			if !item.Valid() {
				f.logger.WarnWithFields("skipping malformed descriptor", map[string]interface{}{
					"id":  item.ID,
					"url": item.URL,
				})
				continue
			}
			listing.Descriptors = append(listing.Descriptors, item)
			if !known(item.ID) {
				newOnPage++
			}
		}

		if newOnPage == 0 {
			fullyKnownPages++
			if fullyKnownPages >= knownPageGuard {
				f.logger.InfoWithFields("listing reached archived territory, stopping", map[string]interface{}{
					"pages": listing.Pages,
				})
				return listing, nil
			}
		} else {
			fullyKnownPages = 0
		}

		if !page.HasNext() {
			return listing, nil
		}
		cursor = page.Cursor
	}
}

// fetchPageWithRetry wraps one page fetch in bounded retry of transient
// errors. Auth and parsing errors surface immediately.
func (f *Fetcher) fetchPageWithRetry(ctx context.Context, cursor string) (*ListingPage, error) {
	return retry.DoWithResult(func() (*ListingPage, error) {
		return f.client.FetchPage(ctx, cursor)
	}, &retry.Config{
		MaxAttempts: f.retryAttempts,
		Backoff:     f.backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      f.logger,
	})
}
