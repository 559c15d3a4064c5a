package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/harun/lynae/pkg/jid"
	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/outbound"
	"github.com/harun/lynae/pkg/plugin"
)

var mentionPattern = regexp.MustCompile(`@(\d+)`)

type getppHandler struct {
	deps *Deps
}

func (h *getppHandler) Execute(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext) error {
	send := func(content *message.Outgoing) error {
		_, err := ec.Client.SendMessage(ctx, cmd.Chat, content, outbound.WithoutQuote())
		return err
	}

	if !jid.IsUser(cmd.Sender) {
		return send(message.Text("❌ Cannot determine user. Please use this command in private chat or mention a user."))
	}

	target := ppTarget(cmd)

	url, err := ec.Client.ProfilePictureURL(ctx, target, "image")
	if err != nil || !isHTTPURL(url) {
		ec.Logger.Debug().Err(err).Str("target", target).Msg("Full profile picture unavailable, trying preview")
		url, err = ec.Client.ProfilePictureURL(ctx, target, "preview")
	}

	var data []byte
	if err == nil && isHTTPURL(url) {
		data, err = fetch(ctx, h.deps.HTTP, url)
	}
	if err != nil || len(data) == 0 {
		ec.Logger.Warn().Err(err).Str("target", target).Msg("Error getting profile picture")
		return send(message.Text("❌ Profile picture not available for this user or failed to download."))
	}

	number := jid.BaseNumber(target)
	return send(&message.Outgoing{
		Image:   &message.Attachment{Data: data},
		Caption: fmt.Sprintf("📷 *Profile Picture*\n\n👤 *User:* %s\n📱 *JID:* %s", number, number),
	})
}

// ppTarget picks the user whose picture is requested: the quoted author,
// then the first mention, then an @number in the text, then the sender.
func ppTarget(cmd *message.Command) string {
	if q := cmd.Quoted; q != nil {
		if id := userID(q.Participant); id != "" {
			return id
		}
		if q.Participant == "" {
			if id := userID(q.Key.RemoteJID); id != "" {
				return id
			}
		}
	}

	if len(cmd.Mentions) > 0 {
		if id := userID(cmd.Mentions[0]); id != "" {
			return id
		}
	}

	if m := mentionPattern.FindStringSubmatch(cmd.Text); m != nil {
		return jid.FromNumber(m[1])
	}
	return cmd.Sender
}

// userID accepts user ids and bare numbers; groups yield "".
func userID(id string) string {
	switch {
	case id == "" || jid.IsGroup(id):
		return ""
	case jid.IsUser(id):
		return id
	case jid.Digits(id) == id:
		return jid.FromNumber(id)
	}
	return ""
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
