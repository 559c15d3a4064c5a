package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/lynae/pkg/jid"
	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/outbound"
	"github.com/harun/lynae/pkg/plugin"
	"github.com/harun/lynae/pkg/transport"
)

type hidetagHandler struct {
	deps *Deps
}

func (h *hidetagHandler) Execute(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext) error {
	send := func(text string) error {
		_, err := ec.Client.SendText(ctx, cmd.Chat, text, outbound.WithoutQuote())
		return err
	}

	if !cmd.IsGroup {
		return send("❌ This command can only be used in a group.")
	}

	meta, err := ec.Client.GroupMetadata(ctx, cmd.Chat)
	if err != nil || meta == nil {
		ec.Logger.Warn().Err(err).Str("chat", cmd.Chat).Msg("Error getting group metadata")
		return send("❌ An error occurred while getting group information.")
	}

	if !ec.IsAdmin && !h.deps.IsOwner(cmd.Sender) && !rosterAdmin(meta.Participants, cmd.Sender) {
		return send("❌ This command can only be used by group admins.")
	}

	text := cmd.Arg()
	if text == "" && cmd.Quoted != nil {
		text = strings.TrimSpace(cmd.Quoted.Text)
	}
	if text == "" {
		p := ec.UsedPrefix
		return send(fmt.Sprintf("❌ Please include the message you want to send or reply to a message.\n\n"+
			"Usage:\n• %[1]shidetag <text>\n• %[1]shidetag (with reply to message)\n\n"+
			"Example:\n• %[1]shidetag Hello everyone!\n• Reply to a message then type: %[1]shidetag", p))
	}

	mentions := mentionTargets(meta.Participants, jid.Digits(jid.BaseNumber(ec.Client.Self())))
	if len(mentions) == 0 {
		return send("❌ No group participants can be tagged.")
	}

	ci := &message.ContextInfo{MentionedJID: mentions}
	if cmd.Quoted != nil {
		ci.StanzaID = cmd.Quoted.Key.ID
		ci.Participant = cmd.Quoted.Participant
		ci.QuotedMessage = cmd.Quoted.Message
	}

	_, err = ec.Client.SendMessage(ctx, cmd.Chat, &message.Outgoing{
		Text:        text,
		Mentions:    mentions,
		ContextInfo: ci,
	}, outbound.WithoutQuote())
	return err
}

// rosterAdmin compares bare digits, which covers every id encoding.
func rosterAdmin(participants []transport.Participant, sender string) bool {
	number := jid.Digits(jid.BaseNumber(sender))
	if number == "" {
		return false
	}
	for _, p := range participants {
		if jid.Digits(jid.BaseNumber(p.Identifier())) == number {
			return p.Admin.IsAdmin()
		}
	}
	return false
}

// mentionTargets lists every user participant except the bot.
func mentionTargets(participants []transport.Participant, botNumber string) []string {
	out := make([]string, 0, len(participants))
	for _, p := range participants {
		id := p.Identifier()
		if id == "" || !jid.IsUser(id) {
			continue
		}
		if botNumber != "" && jid.Digits(jid.BaseNumber(id)) == botNumber {
			continue
		}
		out = append(out, id)
	}
	return out
}
