package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/lynae/pkg/jid"
	"github.com/harun/lynae/pkg/message"
)

func statusQuote(c *message.Container) *message.Quoted {
	return &message.Quoted{
		Key:         message.Key{ID: "STATUS1", RemoteJID: jid.Broadcast, Participant: testUser},
		Participant: testUser,
		Message:     c,
	}
}

func TestPickSW_ResendsStatusWithoutCaption(t *testing.T) {
	tests := []struct {
		name  string
		quote *message.Container
		kind  string
		check func(t *testing.T, out *message.Outgoing)
	}{
		{
			name:  "image",
			quote: &message.Container{ImageMessage: &message.Media{MediaKey: "a2V5", Caption: "sunset"}},
			kind:  "image",
			check: func(t *testing.T, out *message.Outgoing) {
				require.NotNil(t, out.Image)
				assert.Equal(t, []byte("media"), out.Image.Data)
				assert.Empty(t, out.Caption)
			},
		},
		{
			name:  "video",
			quote: &message.Container{VideoMessage: &message.Media{MediaKey: "a2V5", Caption: "clip"}},
			kind:  "video",
			check: func(t *testing.T, out *message.Outgoing) {
				require.NotNil(t, out.Video)
				assert.Empty(t, out.Caption)
			},
		},
		{
			name:  "audio",
			quote: &message.Container{AudioMessage: &message.Media{MediaKey: "a2V5"}},
			kind:  "audio",
			check: func(t *testing.T, out *message.Outgoing) {
				require.NotNil(t, out.Audio)
				assert.Equal(t, "audio/mpeg", out.Mimetype)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newCommand(testUser, testOwner, "picksw")
			cmd.Quoted = statusQuote(tt.quote)
			f := newFixture(cmd)
			f.client.DownloadFunc = func(ctx context.Context, media *message.Media, kind string) ([]byte, error) {
				assert.Equal(t, tt.kind, kind)
				return []byte("media"), nil
			}

			require.NoError(t, build(t, testDeps(t), "picksw").Execute(context.Background(), cmd, f.ec))

			sent := f.client.Sent()
			require.Len(t, sent, 2)
			assert.Equal(t, "⏳ Processing status...", sent[0].Content.Text)
			tt.check(t, sent[1].Content)
		})
	}
}

func TestPickSW_FromSelf(t *testing.T) {
	cmd := newCommand(testUser, testUser, "sw")
	cmd.Key.FromMe = true
	cmd.Quoted = statusQuote(&message.Container{ImageMessage: &message.Media{MediaKey: "a2V5"}})
	f := newFixture(cmd)
	f.client.DownloadFunc = func(ctx context.Context, media *message.Media, kind string) ([]byte, error) {
		return []byte("media"), nil
	}

	require.NoError(t, build(t, testDeps(t), "picksw").Execute(context.Background(), cmd, f.ec))
	require.Len(t, f.client.Sent(), 2)
}

func TestPickSW_Rejections(t *testing.T) {
	t.Run("not owner", func(t *testing.T) {
		cmd := newCommand(testUser, testUser, "picksw")
		cmd.Quoted = statusQuote(&message.Container{ImageMessage: &message.Media{MediaKey: "a2V5"}})
		f := newFixture(cmd)
		require.NoError(t, build(t, testDeps(t), "picksw").Execute(context.Background(), cmd, f.ec))
		assert.Equal(t, []string{"❌ This command is only for the bot owner."}, sentTexts(f))
	})

	t.Run("no reply", func(t *testing.T) {
		cmd := newCommand(testUser, testOwner, "picksw")
		f := newFixture(cmd)
		require.NoError(t, build(t, testDeps(t), "picksw").Execute(context.Background(), cmd, f.ec))
		assert.Equal(t, []string{"❌ Please reply to a status with .picksw"}, sentTexts(f))
	})

	t.Run("text status", func(t *testing.T) {
		cmd := newCommand(testUser, testOwner, "picksw")
		cmd.Quoted = statusQuote(&message.Container{Conversation: "good morning"})
		f := newFixture(cmd)
		require.NoError(t, build(t, testDeps(t), "picksw").Execute(context.Background(), cmd, f.ec))
		texts := sentTexts(f)
		require.Len(t, texts, 2)
		assert.Equal(t, "❌ Failed to retrieve status: no media found in the replied message", texts[1])
	})

	t.Run("missing media key", func(t *testing.T) {
		cmd := newCommand(testUser, testOwner, "picksw")
		cmd.Quoted = statusQuote(&message.Container{VideoMessage: &message.Media{}})
		f := newFixture(cmd)
		require.NoError(t, build(t, testDeps(t), "picksw").Execute(context.Background(), cmd, f.ec))
		texts := sentTexts(f)
		require.Len(t, texts, 2)
		assert.Contains(t, texts[1], "media key is missing")
	})
}
