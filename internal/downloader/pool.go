package downloader

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"imgarc/pkg/library"
	"imgarc/pkg/logger"
	"imgarc/pkg/retry"
)

// ImageFetcher downloads raw image bytes for a descriptor URL
type ImageFetcher interface {
	DownloadImage(ctx context.Context, url string) ([]byte, string, error)
}

// ImageStorage persists downloaded image bytes under a filename
type ImageStorage interface {
	Exists(filename string) bool
	Save(r io.Reader, filename string) error
}

// Result is the outcome of one download job. A failed item never
// aborts the rest of the batch; Err carries the per-item failure.
type Result struct {
	Descriptor library.Descriptor
	Filename   string
	Size       int
	Duration   time.Duration
	Err        error
}

// Success reports whether the job completed
func (r Result) Success() bool {
	return r.Err == nil
}

// Pool is a bounded worker pool fetching image bytes and writing them
// to disk. Each worker processes one descriptor to completion before
// taking the next; the only shared state is the completion counter.
type Pool struct {
	numWorkers    int
	jobQueue      chan library.Descriptor
	resultQueue   chan Result
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	client        ImageFetcher
	storage       ImageStorage
	retryAttempts int
	backoff       retry.BackoffStrategy
	logger        logger.Logger
	completed     atomic.Int64
}

// NewPool creates a download worker pool
func NewPool(
	numWorkers int,
	client ImageFetcher,
	storage ImageStorage,
	retryAttempts int,
	log logger.Logger,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &Pool{
		numWorkers:    numWorkers,
		jobQueue:      make(chan library.Descriptor, numWorkers*2),
		resultQueue:   make(chan Result, numWorkers),
		ctx:           ctx,
		cancel:        cancel,
		client:        client,
		storage:       storage,
		retryAttempts: retryAttempts,
		backoff:       &retry.ConstantBackoff{Delay: time.Second},
		logger:        log,
	}
}

// SetBackoff overrides the per-item retry backoff
func (p *Pool) SetBackoff(backoff retry.BackoffStrategy) {
	p.backoff = backoff
}

// Start launches the workers
func (p *Pool) Start() {
	p.logger.DebugWithFields("starting download pool", map[string]interface{}{
		"workers": p.numWorkers,
	})
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the job queue, waits for in-flight work to finish and
// closes the result channel.
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()
}

// Abort stops dispatching: workers finish their current job and exit,
// leaving queued jobs unprocessed. Used when an auth failure makes
// further downloads pointless until credentials are refreshed.
func (p *Pool) Abort() {
	p.cancel()
}

// Submit adds a descriptor to the queue. Returns false when the pool is
// shutting down.
func (p *Pool) Submit(d library.Descriptor) bool {
	select {
	case p.jobQueue <- d:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// Results returns the result channel
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

// Completed returns how many jobs have finished (success or failure)
func (p *Pool) Completed() int64 {
	return p.completed.Load()
}

// worker is the main worker routine
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}

			result := p.process(job, id)
			p.completed.Add(1)

			select {
			case p.resultQueue <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// process handles a single descriptor: fetch bytes, write file
func (p *Pool) process(d library.Descriptor, workerID int) Result {
	start := time.Now()
	result := Result{Descriptor: d}

	data, contentType, err := p.download(d.URL)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)

		p.logger.ErrorWithFields("download failed", map[string]interface{}{
			"worker_id": workerID,
			"id":        d.ID,
			"error":     err.Error(),
		})
		return result
	}

	result.Filename = d.Filename(contentType)
	result.Size = len(data)

	// The filename derives from the unique remote id, so an existing
	// file is this same image left over from an interrupted run.
	// Overwriting it is harmless and keeps bytes and record in step.
	if err := p.storage.Save(bytes.NewReader(data), result.Filename); err != nil {
		result.Err = err
		result.Duration = time.Since(start)

		p.logger.ErrorWithFields("failed to save image", map[string]interface{}{
			"worker_id": workerID,
			"id":        d.ID,
			"filename":  result.Filename,
			"error":     err.Error(),
		})
		return result
	}

	result.Duration = time.Since(start)

	p.logger.DebugWithFields("image archived", map[string]interface{}{
		"worker_id": workerID,
		"id":        d.ID,
		"filename":  result.Filename,
		"size":      result.Size,
		"duration":  result.Duration,
	})
	return result
}

// download fetches the image bytes with bounded retry of transient
// failures. Auth errors surface immediately so the batch can pause.
func (p *Pool) download(url string) ([]byte, string, error) {
	var data []byte
	var contentType string

	err := retry.Do(func() error {
		var err error
		data, contentType, err = p.client.DownloadImage(p.ctx, url)
		return err
	}, &retry.Config{
		MaxAttempts: p.retryAttempts,
		Backoff:     p.backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     p.ctx,
		Logger:      p.logger,
	})

	return data, contentType, err
}
