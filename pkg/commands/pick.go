package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/plugin"
)

type pickHandler struct {
	deps *Deps
}

func (h *pickHandler) Execute(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext) error {
	if !h.deps.IsOwner(cmd.Sender) {
		return reply(ctx, cmd, ec, "❌ This command is only for the bot owner.")
	}
	if cmd.Quoted == nil {
		return reply(ctx, cmd, ec, fmt.Sprintf("❌ Please reply to a ViewOnce message with %spick", ec.UsedPrefix))
	}

	if err := reply(ctx, cmd, ec, "⏳ Processing media..."); err != nil {
		return err
	}

	out, err := h.retrieve(ctx, cmd, ec)
	if err != nil {
		return fail(ctx, cmd, ec, "Failed to retrieve media", err)
	}

	_, err = ec.Client.SendMessage(ctx, cmd.Chat, out)
	return err
}

// retrieve downloads the quoted media and builds a resend payload.
func (h *pickHandler) retrieve(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext) (*message.Outgoing, error) {
	content := cmd.Quoted.Message.Unwrap()
	if content == nil {
		return nil, errors.New("could not retrieve message data")
	}

	media, kind := quotedMedia(content)
	if media == nil {
		return nil, errors.New("not a valid media message (or unsupported format)")
	}
	if media.MediaKey == "" {
		return nil, errors.New("media key is missing; the bot must have received the original message while online to decrypt it")
	}

	data, err := ec.Client.DownloadMedia(ctx, media, kind)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("downloaded media is empty")
	}

	att := &message.Attachment{Data: data}
	out := &message.Outgoing{Caption: media.Caption, Mimetype: media.Mimetype}
	switch kind {
	case "image":
		out.Image = att
	case "video":
		out.Video = att
	default:
		out.Audio = att
		out.Caption = ""
	}
	return out, nil
}

func quotedMedia(c *message.Container) (*message.Media, string) {
	switch {
	case c.ImageMessage != nil:
		return c.ImageMessage, "image"
	case c.VideoMessage != nil:
		return c.VideoMessage, "video"
	case c.AudioMessage != nil:
		return c.AudioMessage, "audio"
	}
	return nil, ""
}
