package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/plugin"
)

// pickswHandler resends the media of a replied status update. Statuses
// carry no caption worth keeping, so the copy goes out bare.
type pickswHandler struct {
	deps *Deps
}

func (h *pickswHandler) Execute(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext) error {
	if !h.deps.IsOwner(cmd.Sender) && !cmd.Key.FromMe {
		return reply(ctx, cmd, ec, "❌ This command is only for the bot owner.")
	}
	if cmd.Quoted == nil {
		return reply(ctx, cmd, ec, fmt.Sprintf("❌ Please reply to a status with %spicksw", ec.UsedPrefix))
	}

	if err := reply(ctx, cmd, ec, "⏳ Processing status..."); err != nil {
		return err
	}

	out, err := h.retrieve(ctx, cmd, ec)
	if err != nil {
		return fail(ctx, cmd, ec, "Failed to retrieve status", err)
	}

	_, err = ec.Client.SendMessage(ctx, cmd.Chat, out)
	return err
}

func (h *pickswHandler) retrieve(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext) (*message.Outgoing, error) {
	content := cmd.Quoted.Message.Unwrap()
	if content == nil {
		return nil, errors.New("could not retrieve message data")
	}

	media, kind := quotedMedia(content)
	if media == nil {
		return nil, errors.New("no media found in the replied message")
	}
	if media.MediaKey == "" {
		return nil, errors.New("media key is missing, cannot decrypt status")
	}

	data, err := ec.Client.DownloadMedia(ctx, media, kind)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("downloaded media is empty")
	}

	att := &message.Attachment{Data: data}
	switch kind {
	case "image":
		return &message.Outgoing{Image: att}, nil
	case "video":
		return &message.Outgoing{Video: att}, nil
	default:
		return &message.Outgoing{Audio: att, Mimetype: "audio/mpeg"}, nil
	}
}
