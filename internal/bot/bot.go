// Package bot ties the Matrix frontend to the backend manager: it gates
// inbound messages, dispatches prefixed commands, and turns assembled room
// history into replies.
package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chazbot/chaz/internal/backend"
	"github.com/chazbot/chaz/internal/config"
	"github.com/chazbot/chaz/internal/history"
	"github.com/chazbot/chaz/internal/matrix"
	"github.com/chazbot/chaz/internal/ratelimit"
	"github.com/chazbot/chaz/internal/tags"
)

// Messenger is the outbound room surface the bot needs. *matrix.Client
// implements it.
type Messenger interface {
	UserID() string
	SendNotice(ctx context.Context, roomID, text string) error
	SendMarkdown(ctx context.Context, roomID, text string) error
	JoinedMemberCount(ctx context.Context, roomID string) (int, error)
	SetRoomName(ctx context.Context, roomID, name string) error
	SetRoomTopic(ctx context.Context, roomID, topic string) error
}

type handlerFunc func(ctx context.Context, roomID, sender, args string)

// Bot is the message router. One instance serves all rooms.
type Bot struct {
	cfg     *config.Config
	msg     Messenger
	tags    *tags.Store
	limiter *ratelimit.Limiter
	builder *history.Builder
	allow   *regexp.Regexp
	log     zerolog.Logger

	// startTime fences off messages replayed by the initial sync.
	startTime time.Time
	handlers  map[string]handlerFunc
}

// New wires a bot from its collaborators. The allow list admits nobody when
// nil.
func New(cfg *config.Config, m Messenger, store *tags.Store, limiter *ratelimit.Limiter,
	source history.Source, media history.MediaResolver, allow *regexp.Regexp, log zerolog.Logger) *Bot {
	b := &Bot{
		cfg:       cfg,
		msg:       m,
		tags:      store,
		limiter:   limiter,
		allow:     allow,
		log:       log,
		startTime: time.Now(),
	}
	b.builder = &history.Builder{
		Source:       source,
		Media:        media,
		Tags:         store,
		Manager:      b.backendManager,
		BotUser:      m.UserID(),
		RoleName:     cfg.Role,
		UserRoles:    cfg.Roles,
		DefaultRoles: config.DefaultRoles(),
		DisableMedia: cfg.DisableMediaContext,
		Log:          log,
	}
	b.handlers = map[string]handlerFunc{
		"help":    b.cmdHelp,
		"party":   b.cmdParty,
		"print":   b.cmdPrint,
		"send":    b.cmdSend,
		"model":   b.cmdModel,
		"backend": b.cmdBackend,
		"list":    b.cmdList,
		"clear":   b.cmdClear,
		"rename":  b.cmdRename,
	}
	return b
}

// HandleEvent routes one inbound message. Prefixed messages dispatch to a
// command handler; everything else gets a conversational reply when the room
// is a DM or the bot is mentioned.
func (b *Bot) HandleEvent(ctx context.Context, msg matrix.Message) {
	if msg.Sender == b.msg.UserID() {
		return
	}
	if msg.Timestamp.Before(b.startTime) {
		return
	}
	if b.allow == nil || !b.allow.MatchString(msg.Sender) {
		b.log.Debug().Str("sender", msg.Sender).Msg("ignoring disallowed sender")
		return
	}

	body := strings.TrimSpace(msg.Body)
	if strings.HasPrefix(body, history.Prefix) {
		rest := strings.TrimSpace(strings.TrimPrefix(body, history.Prefix))
		if rest != "" {
			word := strings.Fields(rest)[0]
			if h, ok := b.handlers[strings.ToLower(word)]; ok {
				args := strings.TrimSpace(strings.TrimPrefix(rest, word))
				b.log.Info().
					Str("room_id", msg.RoomID).
					Str("sender", msg.Sender).
					Str("command", strings.ToLower(word)).
					Msg("handling command")
				h(ctx, msg.RoomID, msg.Sender, args)
				return
			}
		}
		// Addressed to the bot but not a recognized command.
		b.respond(ctx, msg.RoomID, msg.Sender)
		return
	}

	if b.isDirect(ctx, msg.RoomID) || msg.MentionsBot {
		b.respond(ctx, msg.RoomID, msg.Sender)
	}
}

// isDirect treats any room with fewer than three joined members as a DM.
func (b *Bot) isDirect(ctx context.Context, roomID string) bool {
	count, err := b.msg.JoinedMemberCount(ctx, roomID)
	if err != nil {
		b.log.Warn().Err(err).Str("room_id", roomID).Msg("failed to count members")
		return false
	}
	return count < 3
}

// rateLimited gates one response attempt. Returns true when the message must
// be dropped; a notify decision owes the sender a notice first.
func (b *Bot) rateLimited(ctx context.Context, roomID, sender string) bool {
	size, err := b.msg.JoinedMemberCount(ctx, roomID)
	if err != nil {
		b.log.Warn().Err(err).Str("room_id", roomID).Msg("failed to count members")
		size = 0
	}
	switch b.limiter.Check(size, sender) {
	case ratelimit.Allow:
		return false
	case ratelimit.BlockSilent:
		b.log.Info().Str("room_id", roomID).Msg("room too large, ignoring")
		return true
	default:
		b.log.Warn().Str("sender", sender).Msg("sender over message limit")
		b.notice(ctx, roomID, fmt.Sprintf(
			"!chaz Error: you have used up your message limit of %d messages.",
			b.limiter.MessageLimit()))
		return true
	}
}

// respond assembles the room history and sends the model's reply.
func (b *Bot) respond(ctx context.Context, roomID, sender string) {
	if b.rateLimited(ctx, roomID, sender) {
		return
	}
	chat, err := b.builder.Assemble(ctx, roomID)
	if err != nil {
		b.log.Error().Err(err).Str("room_id", roomID).Msg("failed to assemble context")
		return
	}
	defer chat.CloseMedia()

	mgr, err := b.backendManager(ctx, roomID)
	if err != nil {
		b.log.Error().Err(err).Str("room_id", roomID).Msg("failed to resolve backends")
		return
	}
	result, err := mgr.Execute(ctx, chat)
	if err != nil {
		b.log.Error().Err(err).Str("room_id", roomID).Msg("backend request failed")
		b.notice(ctx, roomID, "!chaz Error: "+flatten(err.Error()))
		return
	}
	b.log.Info().Str("room_id", roomID).Str("sender", sender).Msg("sending response")
	if err := b.msg.SendMarkdown(ctx, roomID, result); err != nil {
		b.log.Error().Err(err).Str("room_id", roomID).Msg("failed to send response")
	}
}

// backendManager builds the room's backend set: tag-defined backends first,
// with the tagged default swapped to the front, then the configured ones. A
// room with nothing configured falls back to aichat.
func (b *Bot) backendManager(ctx context.Context, roomID string) (*backend.Manager, error) {
	ts, err := b.tags.Open(roomID, tags.NamespaceBackend)
	if err != nil {
		return nil, fmt.Errorf("backend tag lookup: %w", err)
	}

	var backends []backend.Backend
	for _, key := range ts.AllKeys() {
		name, found := strings.CutSuffix(key, ".url")
		if !found {
			continue
		}
		url, _ := ts.Get(key)
		token, ok := ts.Get(name + ".token")
		// A backend needs both halves to be usable.
		if url == "" || !ok {
			continue
		}
		backends = append(backends, backend.Backend{
			Kind:    backend.KindOpenAICompatible,
			Name:    name,
			APIBase: url,
			APIKey:  token,
		})
	}
	if def, ok := ts.Get(tags.KeyDefaultBackend); ok {
		for i := range backends {
			if backends[i].Name == def {
				backends[0], backends[i] = backends[i], backends[0]
				break
			}
		}
	}

	backends = append(backends, b.cfg.Backends...)
	if len(backends) == 0 {
		backends = []backend.Backend{{
			Kind:      backend.KindAIChat,
			ConfigDir: b.cfg.AichatConfigDir,
		}}
	}
	return backend.NewManager(backends), nil
}

func (b *Bot) notice(ctx context.Context, roomID, text string) {
	if err := b.msg.SendNotice(ctx, roomID, text); err != nil {
		b.log.Error().Err(err).Str("room_id", roomID).Msg("failed to send notice")
	}
}

// flatten collapses an error message to a single line for room display.
func flatten(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}
