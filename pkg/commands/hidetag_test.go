package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/transport"
)

func roster() *transport.GroupMetadata {
	return &transport.GroupMetadata{
		ID: testGroup,
		Participants: []transport.Participant{
			{ID: "628111@lid", Admin: "admin"},
			{ID: "628444@s.whatsapp.net"},
			{ID: "628999@s.whatsapp.net", Admin: "admin"},
			{JID: "628555@s.whatsapp.net"},
			{ID: "status@broadcast"},
		},
	}
}

func runHidetag(t *testing.T, cmd *message.Command, meta *transport.GroupMetadata, metaErr error) *fixture {
	t.Helper()
	f := newFixture(cmd)
	f.client.GroupMetadataFunc = func(ctx context.Context, chat string) (*transport.GroupMetadata, error) {
		return meta, metaErr
	}
	require.NoError(t, build(t, testDeps(t), "hidetag").Execute(context.Background(), cmd, f.ec))
	return f
}

func TestHidetag_MentionsEveryoneButTheBot(t *testing.T) {
	cmd := newCommand(testGroup, testUser, "hidetag Meeting at 8")
	f := runHidetag(t, cmd, roster(), nil)

	sent := f.client.Sent()
	require.Len(t, sent, 1)
	out := sent[0].Content
	assert.Equal(t, testGroup, sent[0].To)
	assert.Equal(t, "Meeting at 8", out.Text)

	want := []string{"628111@lid", "628444@s.whatsapp.net", "628555@s.whatsapp.net"}
	assert.Equal(t, want, out.Mentions)
	require.NotNil(t, out.ContextInfo)
	assert.Equal(t, want, out.ContextInfo.MentionedJID)
	assert.Empty(t, out.ContextInfo.StanzaID)
	assert.Nil(t, sent[0].Opts.Quoted)
}

func TestHidetag_UsesQuotedText(t *testing.T) {
	cmd := newCommand(testGroup, testUser, "h")
	cmd.Quoted = &message.Quoted{
		Key:         message.Key{ID: "Q1", RemoteJID: testGroup},
		Participant: "628444@s.whatsapp.net",
		Text:        " quoted announcement ",
		Message:     &message.Container{Conversation: "quoted announcement"},
	}
	f := runHidetag(t, cmd, roster(), nil)

	sent := f.client.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "quoted announcement", sent[0].Content.Text)
	assert.Equal(t, "Q1", sent[0].Content.ContextInfo.StanzaID)
	assert.Equal(t, "628444@s.whatsapp.net", sent[0].Content.ContextInfo.Participant)
}

func TestHidetag_Rejections(t *testing.T) {
	t.Run("private chat", func(t *testing.T) {
		f := runHidetag(t, newCommand(testUser, testUser, "hidetag hi"), roster(), nil)
		assert.Equal(t, []string{"❌ This command can only be used in a group."}, sentTexts(f))
	})

	t.Run("metadata failure", func(t *testing.T) {
		f := runHidetag(t, newCommand(testGroup, testUser, "hidetag hi"), nil, errors.New("timeout"))
		assert.Equal(t, []string{"❌ An error occurred while getting group information."}, sentTexts(f))
	})

	t.Run("not admin", func(t *testing.T) {
		f := runHidetag(t, newCommand(testGroup, "628444@s.whatsapp.net", "hidetag hi"), roster(), nil)
		assert.Equal(t, []string{"❌ This command can only be used by group admins."}, sentTexts(f))
	})

	t.Run("no text", func(t *testing.T) {
		f := runHidetag(t, newCommand(testGroup, testUser, "hidetag"), roster(), nil)
		texts := sentTexts(f)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "• .hidetag <text>")
	})
}

func TestHidetag_OwnerBypassesAdminCheck(t *testing.T) {
	f := runHidetag(t, newCommand(testGroup, testOwner, "hidetag hi"), roster(), nil)

	sent := f.client.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "hi", sent[0].Content.Text)
}
