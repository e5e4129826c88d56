// Package history reconstructs a room's conversation into an ordered chat
// context by walking the message history backward in pages.
package history

import (
	"context"

	"github.com/chazbot/chaz/internal/backend"
)

// EventKind tags the content of a history event.
type EventKind int

const (
	// EventText is a plain text message.
	EventText EventKind = iota
	// EventImage is an image message with a downloadable source.
	EventImage
)

// Event is one message from the room history. Events arrive newest first.
type Event struct {
	Sender string
	Kind   EventKind
	// Body is the text body for EventText.
	Body string
	// MediaSource and MimeType describe the media for EventImage.
	MediaSource string
	MimeType    string
}

// Batch is one page of the backward walk. An empty Next token ends it.
type Batch struct {
	Events []Event
	Next   string
}

// Source pages backward through a room's timeline, newest to oldest.
type Source interface {
	// Messages returns the batch before the continuation token. An empty
	// token starts at the newest message.
	Messages(ctx context.Context, roomID, from string) (*Batch, error)
}

// MediaResolver resolves a media source to a locally addressable handle.
// The handle must remain valid until released by the caller.
type MediaResolver interface {
	Resolve(ctx context.Context, source, mimetype string) (backend.MediaHandle, error)
}
