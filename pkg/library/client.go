package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"imgarc/pkg/auth"
	errs "imgarc/pkg/errors"
	"imgarc/pkg/logger"
)

// Client talks to the remote library API: the paginated listing endpoint
// and the per-image byte endpoints. Credentials are injected as a value
// and can be swapped mid-run after an auth refresh.
type Client struct {
	httpClient *http.Client
	logger     logger.Logger

	mu    sync.RWMutex
	creds *auth.Credentials
}

// NewClient creates a client for the remote library API
func NewClient(creds *auth.Credentials, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		creds:      creds,
		logger:     log,
	}
}

// SetCredentials replaces the credentials after a refresh
func (c *Client) SetCredentials(creds *auth.Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = creds
}

func (c *Client) credentials() *auth.Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

// FetchPage requests one listing page. An empty cursor fetches the
// first page; otherwise the cursor from the previous response is
// appended as the `after` parameter.
func (c *Client) FetchPage(ctx context.Context, cursor string) (*ListingPage, error) {
	creds := c.credentials()

	pageURL := creds.URL
	if cursor != "" {
		sep := "?"
		if strings.Contains(pageURL, "?") {
			sep = "&"
		}
		pageURL += sep + "after=" + url.QueryEscape(cursor)
	}

	body, status, err := c.get(ctx, pageURL, creds)
	if err != nil {
		return nil, err
	}

	var page ListingPage
	if err := json.Unmarshal(body, &page); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse listing page", map[string]interface{}{
			"url":          pageURL,
			"status":       status,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return nil, errs.Newf(errs.ErrorTypeParsing, status, "failed to parse listing page: %v", err)
	}

	return &page, nil
}

// DownloadImage fetches raw image bytes. Returns the bytes and the
// response content type, used to derive the on-disk extension.
func (c *Client) DownloadImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	creds := c.credentials()

	body, _, err := c.getWithContentType(ctx, imageURL, creds)
	if err != nil {
		return nil, "", err
	}
	return body.data, body.contentType, nil
}

type responseBody struct {
	data        []byte
	contentType string
}

// get performs an authenticated GET and returns the body and status
func (c *Client) get(ctx context.Context, rawURL string, creds *auth.Credentials) ([]byte, int, error) {
	body, status, err := c.getWithContentType(ctx, rawURL, creds)
	if err != nil {
		return nil, status, err
	}
	return body.data, status, nil
}

func (c *Client) getWithContentType(ctx context.Context, rawURL string, creds *auth.Credentials) (*responseBody, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, errs.Newf(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}

	for key, value := range creds.Headers() {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":      rawURL,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, 0, errs.Newf(errs.ErrorTypeNetwork, 0, "network error: %v", err)
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      rawURL,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, resp.StatusCode, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errs.Newf(errs.ErrorTypeNetwork, resp.StatusCode,
			"failed to read response body: %v", err)
	}

	return &responseBody{
		data:        data,
		contentType: resp.Header.Get("Content-Type"),
	}, resp.StatusCode, nil
}

// checkStatus maps HTTP status codes onto the error taxonomy
func checkStatus(statusCode int) error {
	switch {
	case statusCode == http.StatusOK:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return errs.New(errs.ErrorTypeAuth,
			"authentication failed, credentials may be expired", statusCode)
	case statusCode == http.StatusNotFound:
		return errs.New(errs.ErrorTypeNotFound, "resource not found", statusCode)
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return errs.New(errs.ErrorTypeServerError,
			fmt.Sprintf("server returned status %d", statusCode), statusCode)
	default:
		return errs.New(errs.ErrorTypeUnknown,
			fmt.Sprintf("unexpected status %d", statusCode), statusCode)
	}
}
