package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/chazbot/chaz/internal/backend"
	"github.com/chazbot/chaz/internal/role"
	"github.com/chazbot/chaz/internal/tags"
)

// ManagerFunc resolves the backend manager for a room. It is called per
// assembly because tag-defined backends may change between messages.
type ManagerFunc func(ctx context.Context, roomID string) (*backend.Manager, error)

// Builder assembles a room's history into a ChatContext.
type Builder struct {
	Source  Source
	Media   MediaResolver
	Tags    *tags.Store
	Manager ManagerFunc

	// BotUser is the bot's own sender identity; its messages become
	// assistant turns.
	BotUser string
	// RoleName is the configured persona to prepend, resolved against
	// UserRoles then DefaultRoles.
	RoleName     string
	UserRoles    []role.Details
	DefaultRoles []role.Details
	// DisableMedia skips media extraction entirely.
	DisableMedia bool

	Log zerolog.Logger
}

// Assemble walks the room history backward and returns the conversation in
// chronological order. A transport failure aborts the whole assembly; no
// partial context is returned.
//
// Messages and media accumulate newest first and are reversed exactly once
// at the end. Media handles are not correlated with message positions; the
// transcript and the file list are parallel only in ordering.
func (b *Builder) Assemble(ctx context.Context, roomID string) (*backend.ChatContext, error) {
	chat := &backend.ChatContext{
		Role: role.Lookup(b.RoleName, b.UserRoles, b.DefaultRoles),
	}

	from := ""
outer:
	for {
		batch, err := b.Source.Messages(ctx, roomID, from)
		if err != nil {
			chat.CloseMedia()
			return nil, fmt.Errorf("history pagination: %w", err)
		}
		// Batches arrive newest first.
		for _, ev := range batch.Events {
			switch ev.Kind {
			case EventImage:
				b.collectMedia(ctx, chat, ev)
			case EventText:
				if b.scanText(ctx, chat, roomID, ev) {
					break outer
				}
			}
		}
		if batch.Next == "" {
			break
		}
		from = batch.Next
	}

	// The tag store override always wins over anything found in history.
	if b.Tags != nil {
		ts, err := b.Tags.Open(roomID, tags.NamespaceModel)
		if err != nil {
			chat.CloseMedia()
			return nil, fmt.Errorf("model tag lookup: %w", err)
		}
		if model, ok := ts.Get(tags.KeyDefaultModel); ok {
			chat.Model = model
		}
	}

	reverse(chat.Messages)
	reverse(chat.Media)
	return chat, nil
}

// scanText folds one text message into the context. Returns true when a
// clear marker ends the walk; nothing at or before it is admitted.
func (b *Builder) scanText(ctx context.Context, chat *backend.ChatContext, roomID string, ev Event) (stop bool) {
	body := ev.Body
	if !IsCommand(body) {
		chat.Messages = append(chat.Messages, backend.Message{
			Role:    b.roleFor(ev.Sender),
			Content: body,
		})
		return false
	}

	// First model command found wins; it must validate against the
	// backend set as currently resolvable. A tag override may still
	// replace it after the walk.
	if strings.HasPrefix(body, Prefix+" model") && chat.Model == "" {
		if fields := strings.Fields(body); len(fields) >= 3 {
			if mgr, err := b.Manager(ctx, roomID); err == nil && mgr.ValidateModel(fields[2]) == nil {
				chat.Model = fields[2]
			}
		}
	}
	if strings.HasPrefix(body, Prefix+" clear") {
		return true
	}
	if strings.HasPrefix(body, Prefix) {
		rest := strings.TrimSpace(strings.TrimPrefix(body, Prefix))
		if rest == "" {
			return false
		}
		if first := strings.Fields(rest)[0]; ReservedCommand(first) {
			return false
		}
		// Prefixed but not one of ours: keep the remainder.
		chat.Messages = append(chat.Messages, backend.Message{
			Role:    b.roleFor(ev.Sender),
			Content: rest,
		})
	}
	// Commands addressed to other bots contribute nothing.
	return false
}

func (b *Builder) collectMedia(ctx context.Context, chat *backend.ChatContext, ev Event) {
	if b.DisableMedia || b.Media == nil {
		return
	}
	handle, err := b.Media.Resolve(ctx, ev.MediaSource, ev.MimeType)
	if err != nil {
		b.Log.Warn().Err(err).Str("source", ev.MediaSource).Msg("skipping unresolvable media")
		return
	}
	chat.Media = append(chat.Media, handle)
}

func (b *Builder) roleFor(sender string) backend.MessageRole {
	if sender == b.BotUser {
		return backend.RoleAssistant
	}
	return backend.RoleUser
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
