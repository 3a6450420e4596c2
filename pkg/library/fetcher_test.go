package library

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "imgarc/pkg/errors"
	"imgarc/pkg/ratelimit"
	"imgarc/pkg/retry"
)

// pagedServer serves a fixed sequence of listing pages keyed by cursor
func pagedServer(t *testing.T, pages map[string]ListingPage) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("after")
		page, ok := pages[cursor]
		if !ok {
			t.Errorf("unexpected cursor %q", cursor)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(page)
	}))
}

func desc(id string, createdAt int64) Descriptor {
	return Descriptor{
		ID:        id,
		Title:     "image " + id,
		CreatedAt: createdAt,
		URL:       "https://cdn.example.com/" + id + ".png",
	}
}

func newTestFetcher(serverURL string) *Fetcher {
	client := NewClient(testCredentials(serverURL+"?limit=2"), 5*time.Second, nil)
	return NewFetcher(client, ratelimit.Unlimited{}, 2, nil)
}

func knownSet(ids ...string) func(string) bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(id string) bool { return set[id] }
}

func TestListFromWalksAllPages(t *testing.T) {
	server := pagedServer(t, map[string]ListingPage{
		"":   {Items: []Descriptor{desc("d", 400), desc("c", 300)}, Cursor: "p2"},
		"p2": {Items: []Descriptor{desc("b", 200), desc("a", 100)}, Cursor: ""},
	})
	defer server.Close()

	listing, err := newTestFetcher(server.URL).ListFrom(context.Background(), "", knownSet())
	require.NoError(t, err)

	require.Len(t, listing.Descriptors, 4)
	assert.Equal(t, "d", listing.Descriptors[0].ID)
	assert.Equal(t, "a", listing.Descriptors[3].ID)
	assert.Equal(t, 2, listing.Pages)
	assert.Empty(t, listing.ResumeCursor)
}

func TestListFromStopsAfterTwoFullyKnownPages(t *testing.T) {
	var page3Hit atomic.Bool
	pages := map[string]ListingPage{
		"":   {Items: []Descriptor{desc("new", 500), desc("c", 300)}, Cursor: "p2"},
		"p2": {Items: []Descriptor{desc("b", 200)}, Cursor: "p3"},
		"p3": {Items: []Descriptor{desc("a", 100)}, Cursor: "p4"},
		"p4": {Items: []Descriptor{desc("z", 50)}, Cursor: ""},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("after")
		if cursor == "p4" {
			page3Hit.Store(true)
		}
		json.NewEncoder(w).Encode(pages[cursor])
	}))
	defer server.Close()

	listing, err := newTestFetcher(server.URL).ListFrom(
		context.Background(), "", knownSet("a", "b", "c"))
	require.NoError(t, err)

	// Page 1 had a new item; pages 2 and 3 were fully known, so page 4
	// must never be requested.
	assert.Equal(t, 3, listing.Pages)
	assert.False(t, page3Hit.Load(), "pagination should stop before the fourth page")

	ids := make([]string, 0, len(listing.Descriptors))
	for _, d := range listing.Descriptors {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"new", "c", "b", "a"}, ids)
}

func TestListFromSingleKnownPageDoesNotStop(t *testing.T) {
	server := pagedServer(t, map[string]ListingPage{
		"":   {Items: []Descriptor{desc("c", 300)}, Cursor: "p2"},
		"p2": {Items: []Descriptor{desc("new", 250)}, Cursor: ""},
	})
	defer server.Close()

	// Page 1 is fully known but the guard requires two in a row, so the
	// new item on page 2 is still found.
	listing, err := newTestFetcher(server.URL).ListFrom(context.Background(), "", knownSet("c"))
	require.NoError(t, err)
	assert.Equal(t, 2, listing.Pages)

	var sawNew bool
	for _, d := range listing.Descriptors {
		if d.ID == "new" {
			sawNew = true
		}
	}
	assert.True(t, sawNew)
}

func TestListFromStopsOnEmptyPage(t *testing.T) {
	server := pagedServer(t, map[string]ListingPage{
		"":   {Items: []Descriptor{desc("a", 100)}, Cursor: "p2"},
		"p2": {Items: nil, Cursor: "p3"},
	})
	defer server.Close()

	listing, err := newTestFetcher(server.URL).ListFrom(context.Background(), "", knownSet())
	require.NoError(t, err)
	assert.Len(t, listing.Descriptors, 1)
	assert.Equal(t, 2, listing.Pages)
}

func TestListFromSkipsMalformedDescriptors(t *testing.T) {
	server := pagedServer(t, map[string]ListingPage{
		"": {Items: []Descriptor{
			desc("good", 100),
			{ID: "no-url", CreatedAt: 90},
			{URL: "https://cdn.example.com/orphan.png", CreatedAt: 80},
		}, Cursor: ""},
	})
	defer server.Close()

	listing, err := newTestFetcher(server.URL).ListFrom(context.Background(), "", knownSet())
	require.NoError(t, err)
	require.Len(t, listing.Descriptors, 1)
	assert.Equal(t, "good", listing.Descriptors[0].ID)
}

func TestListFromAuthErrorReturnsResumeCursor(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("after")
		switch cursor {
		case "":
			json.NewEncoder(w).Encode(ListingPage{
				Items: []Descriptor{desc("p1", 200)}, Cursor: "p2",
			})
		case "p2":
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(ListingPage{
				Items: []Descriptor{desc("p2-item", 100)}, Cursor: "",
			})
		}
	}))
	defer server.Close()

	fetcher := newTestFetcher(server.URL)

	listing, err := fetcher.ListFrom(context.Background(), "", knownSet())
	require.Error(t, err)
	assert.True(t, errs.IsAuth(err))
	assert.Equal(t, "p2", listing.ResumeCursor)
	require.Len(t, listing.Descriptors, 1)
	assert.Equal(t, "p1", listing.Descriptors[0].ID)

	// After a credential refresh the walk resumes from page 2, keeping
	// the pre-failure descriptors.
	resumed, err := fetcher.ListFrom(context.Background(), listing.ResumeCursor, knownSet())
	require.NoError(t, err)
	require.Len(t, resumed.Descriptors, 1)
	assert.Equal(t, "p2-item", resumed.Descriptors[0].ID)
}

func TestListFromRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(ListingPage{Items: []Descriptor{desc("a", 100)}, Cursor: ""})
	}))
	defer server.Close()

	client := NewClient(testCredentials(server.URL), 5*time.Second, nil)
	fetcher := NewFetcher(client, ratelimit.Unlimited{}, 3, nil)
	fetcher.SetBackoff(&retry.ConstantBackoff{Delay: time.Millisecond})

	listing, err := fetcher.ListFrom(context.Background(), "", knownSet())
	require.NoError(t, err)
	require.Len(t, listing.Descriptors, 1)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestDescriptorFilename(t *testing.T) {
	d := desc("file-123", 100)

	assert.Equal(t, "file-123.png", d.Filename("image/png"))
	assert.Equal(t, "file-123.jpg", d.Filename("image/jpeg"))
	assert.Equal(t, "file-123.webp", d.Filename("image/webp; charset=binary"))
	assert.Equal(t, "file-123.jpg", d.Filename(""))
	assert.Equal(t, "file-123.jpg", d.Filename("application/octet-stream"))
}

func TestDescriptorConversationLink(t *testing.T) {
	d := Descriptor{ID: "x", URL: "u", ConversationID: "conv-9", MessageID: "msg-3"}
	assert.Equal(t, "https://chat.openai.com/c/conv-9#msg-3", d.ConversationLink())

	d.MessageID = ""
	assert.Equal(t, "https://chat.openai.com/c/conv-9", d.ConversationLink())

	d.ConversationID = ""
	assert.Equal(t, "", d.ConversationLink())
}

func TestDescriptorValid(t *testing.T) {
	tests := []struct {
		d    Descriptor
		want bool
	}{
		{Descriptor{ID: "a", URL: "u"}, true},
		{Descriptor{ID: "a"}, false},
		{Descriptor{URL: "u"}, false},
		{Descriptor{}, false},
	}
	for i, tt := range tests {
		assert.Equal(t, tt.want, tt.d.Valid(), fmt.Sprintf("case %d", i))
	}
}
