package identity

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/transport"
	"github.com/harun/lynae/pkg/transport/transporttest"
)

const group = "120363000@g.us"

func newResolver(self string, participants []transport.Participant, err error) (*Resolver, *transporttest.FakeClient) {
	client := transporttest.New(self)
	client.GroupMetadataFunc = func(ctx context.Context, chat string) (*transport.GroupMetadata, error) {
		if err != nil {
			return nil, err
		}
		return &transport.GroupMetadata{ID: chat, Participants: participants}, nil
	}
	return NewResolver(client, "", zerolog.New(io.Discard)), client
}

func TestSender(t *testing.T) {
	r, _ := newResolver("628999:14@s.whatsapp.net", nil, nil)

	tests := []struct {
		name string
		key  message.Key
		want string
	}{
		{
			name: "private chat",
			key:  message.Key{RemoteJID: "628111@s.whatsapp.net", ID: "1"},
			want: "628111@s.whatsapp.net",
		},
		{
			name: "group participant",
			key:  message.Key{RemoteJID: group, Participant: "628111@s.whatsapp.net"},
			want: "628111@s.whatsapp.net",
		},
		{
			name: "from me uses bot id without device",
			key:  message.Key{RemoteJID: group, Participant: "628999:14@s.whatsapp.net", FromMe: true},
			want: "628999@s.whatsapp.net",
		},
		{
			name: "group without participant falls back to chat",
			key:  message.Key{RemoteJID: group},
			want: group,
		},
		{
			name: "group suffixed participant falls back to chat",
			key:  message.Key{RemoteJID: "628111@s.whatsapp.net", Participant: "120363111@g.us"},
			want: "628111@s.whatsapp.net",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Sender(tt.key))
		})
	}
}

func TestSender_FallbackBotNumber(t *testing.T) {
	client := transporttest.New("")
	r := NewResolver(client, "+62 899", zerolog.New(io.Discard))

	got := r.Sender(message.Key{RemoteJID: "628111@s.whatsapp.net", FromMe: true})
	assert.Equal(t, "62899@s.whatsapp.net", got)
}

func TestAdmin(t *testing.T) {
	roster := []transport.Participant{
		{ID: "628111@s.whatsapp.net", Admin: "admin"},
		{ID: "628222@s.whatsapp.net"},
		{ID: "628999:3@s.whatsapp.net", Admin: "superadmin"},
	}

	t.Run("sender admin and bot admin", func(t *testing.T) {
		r, _ := newResolver("628999:14@s.whatsapp.net", roster, nil)
		status := r.Admin(context.Background(), group, "628111@s.whatsapp.net")
		assert.True(t, status.IsAdmin)
		assert.True(t, status.IsBotAdmin)
	})

	t.Run("regular member", func(t *testing.T) {
		r, _ := newResolver("628999:14@s.whatsapp.net", roster, nil)
		status := r.Admin(context.Background(), group, "628222@s.whatsapp.net")
		assert.False(t, status.IsAdmin)
		assert.True(t, status.IsBotAdmin)
	})

	t.Run("fetch error fails closed", func(t *testing.T) {
		r, _ := newResolver("628999@s.whatsapp.net", nil, errors.New("timeout"))
		status := r.Admin(context.Background(), group, "628111@s.whatsapp.net")
		assert.Equal(t, AdminStatus{}, status)
	})

	t.Run("private chat skips fetch", func(t *testing.T) {
		r, client := newResolver("628999@s.whatsapp.net", roster, nil)
		status := r.Admin(context.Background(), "628111@s.whatsapp.net", "628111@s.whatsapp.net")
		assert.Equal(t, AdminStatus{}, status)
		assert.Equal(t, 0, client.GroupMetadataCalls())
	})
}

func TestFindParticipant_CrossFormat(t *testing.T) {
	t.Run("device suffix", func(t *testing.T) {
		roster := []transport.Participant{{ID: "628111:7@s.whatsapp.net", Admin: "admin"}}
		p := FindParticipant(roster, "628111@s.whatsapp.net")
		require.NotNil(t, p)
		assert.True(t, p.Admin.IsAdmin())
	})

	t.Run("linked device alias with same number", func(t *testing.T) {
		roster := []transport.Participant{{ID: "628111@lid", Admin: "ADMIN"}}
		p := FindParticipant(roster, "628111:2@s.whatsapp.net")
		require.NotNil(t, p)
		assert.True(t, p.Admin.IsAdmin())
	})

	t.Run("partial numeric match", func(t *testing.T) {
		roster := []transport.Participant{{ID: "15628111@lid", Admin: "admin"}}
		p := FindParticipant(roster, "628111@s.whatsapp.net")
		require.NotNil(t, p)
		assert.Equal(t, "15628111@lid", p.ID)
	})

	t.Run("exact number preferred over partial", func(t *testing.T) {
		roster := []transport.Participant{
			{ID: "1628111@s.whatsapp.net"},
			{ID: "628111@s.whatsapp.net", Admin: "admin"},
		}
		p := FindParticipant(roster, "628111@s.whatsapp.net")
		require.NotNil(t, p)
		assert.Equal(t, "628111@s.whatsapp.net", p.ID)
	})

	t.Run("jid field", func(t *testing.T) {
		roster := []transport.Participant{{JID: "628111@s.whatsapp.net", Admin: "true"}}
		p := FindParticipant(roster, "628111@s.whatsapp.net")
		require.NotNil(t, p)
		assert.True(t, p.Admin.IsAdmin())
	})

	t.Run("no match", func(t *testing.T) {
		roster := []transport.Participant{{ID: "628222@s.whatsapp.net"}}
		assert.Nil(t, FindParticipant(roster, "628111@s.whatsapp.net"))
		assert.Nil(t, FindParticipant(roster, ""))
	})
}
