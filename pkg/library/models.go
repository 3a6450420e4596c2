package library

import (
	"fmt"
	"mime"
	"strings"
)

// ListingPage is one page of the remote listing endpoint. The cursor for
// the next page comes solely from this response; there is no fixed page
// size assumption.
type ListingPage struct {
	Items  []Descriptor `json:"items"`
	Cursor string       `json:"cursor"`
}

// HasNext reports whether another page can be requested
func (p *ListingPage) HasNext() bool {
	return p.Cursor != ""
}

// Descriptor is the remote-side representation of one image before its
// bytes are downloaded.
type Descriptor struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	CreatedAt      int64    `json:"created_at"`
	URL            string   `json:"url"`
	Prompt         string   `json:"prompt,omitempty"`
	Width          int      `json:"width,omitempty"`
	Height         int      `json:"height,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	MessageID      string   `json:"message_id,omitempty"`
}

// Valid reports whether the descriptor carries the fields needed to
// download and record it
func (d *Descriptor) Valid() bool {
	return d.ID != "" && d.URL != ""
}

// ConversationLink returns the web link to the conversation the image
// was generated in, or "" when the descriptor has no conversation
func (d *Descriptor) ConversationLink() string {
	if d.ConversationID == "" {
		return ""
	}
	link := fmt.Sprintf("https://chat.openai.com/c/%s", d.ConversationID)
	if d.MessageID != "" {
		link += "#" + d.MessageID
	}
	return link
}

// knownExtensions maps common image content types to on-disk extensions
var knownExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
}

// Filename derives the unique on-disk name for the descriptor: the
// remote id plus an extension from the response content type. Ids are
// unique remote-side, so two workers can never produce the same name.
func (d *Descriptor) Filename(contentType string) string {
	return d.ID + extensionFor(contentType)
}

func extensionFor(contentType string) string {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	mediaType = strings.ToLower(mediaType)

	if ext, ok := knownExtensions[mediaType]; ok {
		return ext
	}
	if strings.HasPrefix(mediaType, "image/") {
		if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return ".jpg"
}
