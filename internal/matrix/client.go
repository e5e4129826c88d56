// Package matrix wraps the Matrix client-server API behind the small surface
// the bot needs: a sync loop, backward history pagination, media downloads,
// and room state updates.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/format"
	"maunium.net/go/mautrix/id"

	"github.com/chazbot/chaz/internal/backend"
	"github.com/chazbot/chaz/internal/history"
)

// historyPageSize is the /messages page size for context assembly.
const historyPageSize = 50

// Message is one inbound text message delivered to the bot.
type Message struct {
	RoomID      string
	Sender      string
	Body        string
	Timestamp   time.Time
	MentionsBot bool
}

// Options configures a connection.
type Options struct {
	HomeserverURL string
	Username      string
	Password      string
	// SessionFile persists credentials and the sync token across restarts.
	SessionFile string
	// AllowList gates invite auto-join by inviter. Nil means nobody.
	AllowList *regexp.Regexp
	Log       zerolog.Logger
}

// Client is a logged-in Matrix connection.
type Client struct {
	mx    *mautrix.Client
	store *sessionStore
	allow *regexp.Regexp
	log   zerolog.Logger

	onMessage func(ctx context.Context, msg Message)
}

// Connect restores the saved session if one exists, otherwise performs a
// password login and saves the resulting credentials.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	session, err := loadSession(opts.SessionFile)
	if err != nil {
		return nil, err
	}

	var mx *mautrix.Client
	if session != nil {
		opts.Log.Info().Str("user_id", session.UserID.String()).Msg("restoring saved session")
		mx, err = mautrix.NewClient(session.Homeserver, session.UserID, session.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to create client from session: %w", err)
		}
		mx.DeviceID = session.DeviceID
	} else {
		mx, err = mautrix.NewClient(opts.HomeserverURL, "", "")
		if err != nil {
			return nil, fmt.Errorf("failed to create client for %s: %w", opts.HomeserverURL, err)
		}
		opts.Log.Info().Str("username", opts.Username).Msg("logging in")
		_, err = mx.Login(ctx, &mautrix.ReqLogin{
			Type: mautrix.AuthTypePassword,
			Identifier: mautrix.UserIdentifier{
				Type: mautrix.IdentifierTypeUser,
				User: opts.Username,
			},
			Password:                 opts.Password,
			InitialDeviceDisplayName: "chaz",
			StoreCredentials:         true,
		})
		if err != nil {
			return nil, fmt.Errorf("login failed: %w", err)
		}
		session = &Session{
			Homeserver:  opts.HomeserverURL,
			UserID:      mx.UserID,
			DeviceID:    mx.DeviceID,
			AccessToken: mx.AccessToken,
		}
		if err := saveSession(opts.SessionFile, session); err != nil {
			return nil, err
		}
	}

	c := &Client{
		mx:    mx,
		store: &sessionStore{path: opts.SessionFile, session: session},
		allow: opts.AllowList,
		log:   opts.Log,
	}
	mx.Store = c.store

	syncer := mx.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleMessage)
	syncer.OnEventType(event.StateMember, c.handleMember)
	return c, nil
}

// UserID returns the bot's own user identifier.
func (c *Client) UserID() string {
	return c.mx.UserID.String()
}

// OnMessage registers the handler for inbound text messages. Must be called
// before Run.
func (c *Client) OnMessage(fn func(ctx context.Context, msg Message)) {
	c.onMessage = fn
}

// Run drives the sync loop until the context is cancelled. Sync errors are
// logged and retried with a short backoff.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.mx.SyncWithContext(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return ctx.Err()
		}
		c.log.Error().Err(err).Msg("sync failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	if c.onMessage == nil {
		return
	}
	content := evt.Content.AsMessage()
	if content == nil || content.MsgType != event.MsgText {
		return
	}
	c.onMessage(ctx, Message{
		RoomID:      evt.RoomID.String(),
		Sender:      evt.Sender.String(),
		Body:        content.Body,
		Timestamp:   time.UnixMilli(evt.Timestamp),
		MentionsBot: content.Mentions != nil && content.Mentions.Has(c.mx.UserID),
	})
}

func (c *Client) handleMember(ctx context.Context, evt *event.Event) {
	content := evt.Content.AsMember()
	if content == nil || content.Membership != event.MembershipInvite {
		return
	}
	if evt.GetStateKey() != c.mx.UserID.String() {
		return
	}
	if !senderAllowed(c.allow, evt.Sender.String()) {
		c.log.Info().
			Str("room_id", evt.RoomID.String()).
			Str("sender", evt.Sender.String()).
			Msg("ignoring invite from disallowed sender")
		return
	}
	c.log.Info().
		Str("room_id", evt.RoomID.String()).
		Str("sender", evt.Sender.String()).
		Msg("joining room on invite")
	if _, err := c.mx.JoinRoomByID(ctx, evt.RoomID); err != nil {
		c.log.Error().Err(err).Str("room_id", evt.RoomID.String()).Msg("failed to join room")
	}
}

// senderAllowed reports whether the allow list admits the sender. A nil
// pattern admits nobody.
func senderAllowed(allow *regexp.Regexp, sender string) bool {
	return allow != nil && allow.MatchString(sender)
}

// Messages pages backward through the room timeline.
func (c *Client) Messages(ctx context.Context, roomID, from string) (*history.Batch, error) {
	resp, err := c.mx.Messages(ctx, id.RoomID(roomID), from, "", mautrix.DirectionBackward, nil, historyPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages for %s: %w", roomID, err)
	}
	return &history.Batch{
		Events: convertEvents(resp.Chunk),
		Next:   resp.End,
	}, nil
}

// convertEvents maps timeline events to history events, keeping text and
// image messages. Notices are excluded: the bot's own command output (help
// text, print dumps, error notices) must never feed back into a prompt. The
// bot's conversational replies arrive as m.text and are kept.
func convertEvents(chunk []*event.Event) []history.Event {
	events := make([]history.Event, 0, len(chunk))
	for _, evt := range chunk {
		if evt.Type != event.EventMessage {
			continue
		}
		if evt.Content.Parsed == nil {
			if err := evt.Content.ParseRaw(evt.Type); err != nil {
				continue
			}
		}
		content, ok := evt.Content.Parsed.(*event.MessageEventContent)
		if !ok {
			continue
		}
		switch content.MsgType {
		case event.MsgText:
			events = append(events, history.Event{
				Sender: evt.Sender.String(),
				Kind:   history.EventText,
				Body:   content.Body,
			})
		case event.MsgImage:
			if content.URL == "" {
				continue
			}
			events = append(events, history.Event{
				Sender:      evt.Sender.String(),
				Kind:        history.EventImage,
				MediaSource: string(content.URL),
				MimeType:    content.GetInfo().MimeType,
			})
		}
	}
	return events
}

// mediaHandle is a downloaded media file. Close removes it.
type mediaHandle struct {
	path string
}

func (h *mediaHandle) Path() string { return h.path }
func (h *mediaHandle) Close() error { return os.Remove(h.path) }

// Resolve downloads the media to a temp file so it can be passed to a
// subprocess by path.
func (c *Client) Resolve(ctx context.Context, source, mimetype string) (backend.MediaHandle, error) {
	uri, err := id.ContentURIString(source).Parse()
	if err != nil {
		return nil, fmt.Errorf("invalid media source %s: %w", source, err)
	}
	data, err := c.mx.DownloadBytes(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", source, err)
	}
	f, err := os.CreateTemp("", "chaz-media-*"+extForMime(mimetype))
	if err != nil {
		return nil, fmt.Errorf("failed to create media temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write media temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to close media temp file: %w", err)
	}
	return &mediaHandle{path: f.Name()}, nil
}

func extForMime(mimetype string) string {
	switch mimetype {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

// SendNotice sends a plain-text notice to the room.
func (c *Client) SendNotice(ctx context.Context, roomID, text string) error {
	_, err := c.mx.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    text,
	})
	if err != nil {
		return fmt.Errorf("failed to send notice to %s: %w", roomID, err)
	}
	return nil
}

// SendMarkdown renders the text as markdown and sends it to the room.
func (c *Client) SendMarkdown(ctx context.Context, roomID, text string) error {
	content := format.RenderMarkdown(text, true, false)
	_, err := c.mx.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", roomID, err)
	}
	return nil
}

// JoinedMemberCount returns the number of joined members in the room.
func (c *Client) JoinedMemberCount(ctx context.Context, roomID string) (int, error) {
	resp, err := c.mx.JoinedMembers(ctx, id.RoomID(roomID))
	if err != nil {
		return 0, fmt.Errorf("failed to list members of %s: %w", roomID, err)
	}
	return len(resp.Joined), nil
}

// SetRoomName updates the room's name state event.
func (c *Client) SetRoomName(ctx context.Context, roomID, name string) error {
	_, err := c.mx.SendStateEvent(ctx, id.RoomID(roomID), event.StateRoomName, "", &event.RoomNameEventContent{
		Name: name,
	})
	return err
}

// SetRoomTopic updates the room's topic state event.
func (c *Client) SetRoomTopic(ctx context.Context, roomID, topic string) error {
	_, err := c.mx.SendStateEvent(ctx, id.RoomID(roomID), event.StateTopic, "", &event.TopicEventContent{
		Topic: topic,
	})
	return err
}

// IsForbidden reports whether the server rejected the request for lack of
// permission.
func IsForbidden(err error) bool {
	return errors.Is(err, mautrix.MForbidden)
}
