package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/lynae/pkg/message"
)

func viewOnceQuote(media *message.Media) *message.Quoted {
	return &message.Quoted{
		Key:         message.Key{ID: "VO1", RemoteJID: testUser},
		Participant: testUser,
		Message:     &message.Container{ImageMessage: media},
		ViewOnce:    true,
	}
}

func TestPick_ResendsViewOnceImage(t *testing.T) {
	cmd := newCommand(testUser, testOwner, "pick")
	cmd.Quoted = viewOnceQuote(&message.Media{MediaKey: "a2V5", Mimetype: "image/jpeg", Caption: "secret"})
	f := newFixture(cmd)

	var downloaded *message.Media
	f.client.DownloadFunc = func(ctx context.Context, media *message.Media, kind string) ([]byte, error) {
		downloaded = media
		assert.Equal(t, "image", kind)
		return []byte("jpeg bytes"), nil
	}

	require.NoError(t, build(t, testDeps(t), "pick").Execute(context.Background(), cmd, f.ec))

	require.NotNil(t, downloaded)
	sent := f.client.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "⏳ Processing media...", sent[0].Content.Text)
	require.NotNil(t, sent[1].Content.Image)
	assert.Equal(t, []byte("jpeg bytes"), sent[1].Content.Image.Data)
	assert.Equal(t, "secret", sent[1].Content.Caption)
	assert.False(t, sent[1].Content.ViewOnce)
}

func TestPick_Rejections(t *testing.T) {
	t.Run("not owner", func(t *testing.T) {
		cmd := newCommand(testUser, testUser, "pick")
		cmd.Quoted = viewOnceQuote(&message.Media{MediaKey: "a2V5"})
		f := newFixture(cmd)
		require.NoError(t, build(t, testDeps(t), "pick").Execute(context.Background(), cmd, f.ec))
		assert.Equal(t, []string{"❌ This command is only for the bot owner."}, sentTexts(f))
	})

	t.Run("no reply", func(t *testing.T) {
		cmd := newCommand(testUser, testOwner, "pick")
		f := newFixture(cmd)
		require.NoError(t, build(t, testDeps(t), "pick").Execute(context.Background(), cmd, f.ec))
		assert.Equal(t, []string{"❌ Please reply to a ViewOnce message with .pick"}, sentTexts(f))
	})

	t.Run("missing media key", func(t *testing.T) {
		cmd := newCommand(testUser, testOwner, "pick")
		cmd.Quoted = viewOnceQuote(&message.Media{})
		f := newFixture(cmd)
		require.NoError(t, build(t, testDeps(t), "pick").Execute(context.Background(), cmd, f.ec))
		texts := sentTexts(f)
		require.Len(t, texts, 2)
		assert.Contains(t, texts[1], "media key is missing")
	})

	t.Run("download error", func(t *testing.T) {
		cmd := newCommand(testUser, testOwner, "pick")
		cmd.Quoted = viewOnceQuote(&message.Media{MediaKey: "a2V5"})
		f := newFixture(cmd)
		f.client.DownloadFunc = func(ctx context.Context, media *message.Media, kind string) ([]byte, error) {
			return nil, errors.New("410 gone")
		}
		require.NoError(t, build(t, testDeps(t), "pick").Execute(context.Background(), cmd, f.ec))
		texts := sentTexts(f)
		require.Len(t, texts, 2)
		assert.Contains(t, texts[1], "❌ Failed to retrieve media: download failed: 410 gone")
	})

	t.Run("not media", func(t *testing.T) {
		cmd := newCommand(testUser, testOwner, "pick")
		cmd.Quoted = &message.Quoted{Message: &message.Container{Conversation: "text"}}
		f := newFixture(cmd)
		require.NoError(t, build(t, testDeps(t), "pick").Execute(context.Background(), cmd, f.ec))
		texts := sentTexts(f)
		require.Len(t, texts, 2)
		assert.Contains(t, texts[1], "not a valid media message")
	})
}
