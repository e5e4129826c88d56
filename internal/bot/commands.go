package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/chazbot/chaz/internal/backend"
	"github.com/chazbot/chaz/internal/matrix"
	"github.com/chazbot/chaz/internal/tags"
)

const helpText = `!chaz commands:

help - Show this message
party - Party!
print - Print the conversation
send <message> - Send this message without any context
model <model> - Select the model to use
backend <name> <api_base> <api_key> - Manually enter an OpenAI compatible backend
list - List available backends and models
clear - Ignore all messages before this point
rename - Rename the room and set the topic based on the chat content`

func (b *Bot) cmdHelp(ctx context.Context, roomID, sender, args string) {
	b.notice(ctx, roomID, helpText)
}

func (b *Bot) cmdParty(ctx context.Context, roomID, sender, args string) {
	b.notice(ctx, roomID, ".🎉🎊🥳 let's PARTY!! 🥳🎊🎉")
}

// cmdPrint replays the exact prompt the backend would receive. Not rate
// limited because no backend call is made.
func (b *Bot) cmdPrint(ctx context.Context, roomID, sender, args string) {
	chat, err := b.builder.Assemble(ctx, roomID)
	if err != nil {
		b.log.Error().Err(err).Str("room_id", roomID).Msg("failed to assemble context")
		return
	}
	defer chat.CloseMedia()
	b.notice(ctx, roomID, chat.StringPrompt())
}

// cmdSend forwards the arguments as a one-message conversation, keeping the
// room's model and role but none of its history or media.
func (b *Bot) cmdSend(ctx context.Context, roomID, sender, args string) {
	if b.rateLimited(ctx, roomID, sender) {
		return
	}
	chat, err := b.builder.Assemble(ctx, roomID)
	if err != nil {
		b.log.Error().Err(err).Str("room_id", roomID).Msg("failed to assemble context")
		return
	}
	defer chat.CloseMedia()

	bare := &backend.ChatContext{
		Messages: []backend.Message{{Role: backend.RoleUser, Content: args}},
		Model:    chat.Model,
		Role:     chat.Role,
	}
	mgr, err := b.backendManager(ctx, roomID)
	if err != nil {
		b.log.Error().Err(err).Str("room_id", roomID).Msg("failed to resolve backends")
		return
	}
	b.log.Info().Str("room_id", roomID).Str("sender", sender).Msg("sending contextless request")
	result, err := mgr.Execute(ctx, bare)
	if err != nil {
		// Errors here stay in the log; the room gets no reply.
		b.log.Error().Err(err).Str("room_id", roomID).Msg("backend request failed")
		return
	}
	b.notice(ctx, roomID, result)
}

// cmdModel selects the default model for the room. The selection is written
// to the tag store even when validation fails: assembly revalidates on every
// use, so a bad tag costs nothing and a later-added backend can make it good.
func (b *Bot) cmdModel(ctx context.Context, roomID, sender, args string) {
	if args == "" {
		b.cmdList(ctx, roomID, sender, args)
		return
	}
	model := strings.Fields(args)[0]

	mgr, err := b.backendManager(ctx, roomID)
	if err != nil {
		b.log.Error().Err(err).Str("room_id", roomID).Msg("failed to resolve backends")
		return
	}
	if mgr.IsKnownModel(model) {
		b.notice(ctx, roomID, fmt.Sprintf("!chaz Model set to %q", model))
	} else if err := mgr.ValidateModel(model); err != nil {
		b.notice(ctx, roomID, "!chaz Error: "+flatten(err.Error()))
	} else {
		b.notice(ctx, roomID, fmt.Sprintf(
			"!chaz Model %s is unknown, but may be valid. Please manually verify that it is supported by your desired backend.",
			model))
	}

	ts, err := b.tags.Open(roomID, tags.NamespaceModel)
	if err != nil {
		b.log.Error().Err(err).Str("room_id", roomID).Msg("failed to open model tags")
		return
	}
	ts.Replace(tags.KeyDefaultModel, model)
	if err := ts.Sync(); err != nil {
		b.log.Error().Err(err).Str("room_id", roomID).Msg("failed to persist model tag")
	}
}

// cmdBackend registers an OpenAI-compatible backend for this room and makes
// it the room default.
func (b *Bot) cmdBackend(ctx context.Context, roomID, sender, args string) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		b.notice(ctx, roomID, "!chaz Error: invalid arguments. Usage: !chaz backend <name> <api_base> <api_key>")
		return
	}
	name, apiBase, apiKey := fields[0], fields[1], fields[2]

	ts, err := b.tags.Open(roomID, tags.NamespaceBackend)
	if err != nil {
		b.log.Error().Err(err).Str("room_id", roomID).Msg("failed to open backend tags")
		return
	}
	ts.Replace(tags.KeyDefaultBackend, name)
	ts.Replace(name+".url", apiBase)
	ts.Replace(name+".token", apiKey)
	if err := ts.Sync(); err != nil {
		b.log.Error().Err(err).Str("room_id", roomID).Msg("failed to persist backend tags")
		return
	}
	b.notice(ctx, roomID, "!chaz Successfully added backend "+name)
}

func (b *Bot) cmdList(ctx context.Context, roomID, sender, args string) {
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
	current := chat.Model
	if current == "" {
		if def, ok := mgr.DefaultModel(); ok {
			current = def
		} else {
			current = "unknown"
		}
	}
	b.notice(ctx, roomID, fmt.Sprintf(
		"!chaz Current Model: %s\n\nKnown Backends:\n%s\n\nKnown Models:\n%s",
		current,
		strings.Join(mgr.ListKnownBackends(), "\n"),
		strings.Join(mgr.ListKnownModels(), "\n")))
}

// cmdClear sends the marker that ends every future history walk at this
// point. The marker itself is never admitted into a context.
func (b *Bot) cmdClear(ctx context.Context, roomID, sender, args string) {
	b.notice(ctx, roomID, "!chaz clear: All messages before this will be ignored")
}

const (
	titleInstruction = "Summarize this conversation in less than 20 characters to use as the title of this conversation. " +
		"The output should be a single line of text describing the conversation. " +
		"Do not output anything except for the summary text. " +
		"Only the first 20 characters will be used."
	topicInstruction = "Summarize this conversation in less than 50 characters. " +
		"Do not output anything except for the summary text. " +
		"Do not include any commentary or context, only the summary."
)

// cmdRename asks the model to summarize the conversation and applies the
// result as the room name and topic.
func (b *Bot) cmdRename(ctx context.Context, roomID, sender, args string) {
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
	// Summaries use the dedicated summary model, even over a room selection.
	chat.Model = b.cfg.ChatSummaryModel

	chat.Messages = append(chat.Messages, backend.Message{Role: backend.RoleUser, Content: titleInstruction})
	result, err := mgr.Execute(ctx, chat)
	if err != nil {
		b.log.Error().Err(err).Str("room_id", roomID).Msg("title summary failed")
	} else {
		if err := b.msg.SetRoomName(ctx, roomID, cleanSummary(result)); err != nil {
			if matrix.IsForbidden(err) {
				b.notice(ctx, roomID, "!chaz Error: I don't have permission to rename the room")
			} else {
				b.log.Error().Err(err).Str("room_id", roomID).Msg("failed to rename room")
				b.notice(ctx, roomID, "!chaz Error: "+flatten(err.Error()))
			}
			return
		}
	}

	chat.Messages[len(chat.Messages)-1] = backend.Message{Role: backend.RoleUser, Content: topicInstruction}
	result, err = mgr.Execute(ctx, chat)
	if err != nil {
		b.log.Error().Err(err).Str("room_id", roomID).Msg("topic summary failed")
		return
	}
	if err := b.msg.SetRoomTopic(ctx, roomID, cleanSummary(result)); err != nil {
		if matrix.IsForbidden(err) {
			b.notice(ctx, roomID, "!chaz Error: I don't have permission to set the topic")
		} else {
			b.log.Error().Err(err).Str("room_id", roomID).Msg("failed to set topic")
			b.notice(ctx, roomID, "!chaz Error: "+flatten(err.Error()))
		}
	}
}

var quotedSummary = regexp.MustCompile(`"([^"]*)"`)

// cleanSummary strips the quotes some models wrap their summaries in.
func cleanSummary(response string) string {
	if m := quotedSummary.FindStringSubmatch(response); m != nil {
		return m[1]
	}
	return response
}
