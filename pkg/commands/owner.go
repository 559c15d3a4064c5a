package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/lynae/pkg/jid"
	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/plugin"
)

type ownerHandler struct {
	deps *Deps
}

func (h *ownerHandler) Execute(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext) error {
	contacts := make([]message.Contact, 0, len(h.deps.Owners))
	for i, owner := range h.deps.Owners {
		number := jid.Digits(jid.BaseNumber(owner))
		if number == "" {
			continue
		}
		name := fmt.Sprintf("%s Owner", h.deps.BotName)
		if len(h.deps.Owners) > 1 {
			name = fmt.Sprintf("%s %d", name, i+1)
		}
		contacts = append(contacts, message.Contact{VCard: vcard(name, number)})
	}

	if len(contacts) == 0 {
		return reply(ctx, cmd, ec, "❌ No owner configured.")
	}

	_, err := ec.Client.SendMessage(ctx, cmd.Chat, &message.Outgoing{
		Contacts: &message.Contacts{
			DisplayName: fmt.Sprintf("%s Owner", h.deps.BotName),
			Contacts:    contacts,
		},
	})
	return err
}

func vcard(name, number string) string {
	return strings.Join([]string{
		"BEGIN:VCARD",
		"VERSION:3.0",
		"FN:" + name,
		fmt.Sprintf("TEL;type=CELL;type=VOICE;waid=%s:+%s", number, number),
		"END:VCARD",
	}, "\n")
}
