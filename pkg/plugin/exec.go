package plugin

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/hashicorp/go-plugin"

	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/outbound"
)

// launchExec starts an exec plugin binary and dispenses its command
// implementation. The returned func kills the process.
func launchExec(path string) (CommandPlugin, func(), error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("plugin executable not found: %s", path)
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap,
		Cmd:              exec.Command(path),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("failed to connect to plugin: %w", err)
	}

	raw, err := rpcClient.Dispense("command")
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("failed to dispense plugin: %w", err)
	}

	impl, ok := raw.(CommandPlugin)
	if !ok {
		client.Kill()
		return nil, nil, fmt.Errorf("unexpected plugin type %T", raw)
	}

	return impl, client.Kill, nil
}

// execHandler adapts a CommandPlugin to Handler.
type execHandler struct {
	name   string
	impl   CommandPlugin
	config map[string]any
}

func (h *execHandler) Execute(ctx context.Context, cmd *message.Command, ec *ExecutionContext) error {
	inv := &Invocation{
		Plugin:     h.name,
		Command:    cmd,
		UsedPrefix: ec.UsedPrefix,
		IsAdmin:    ec.IsAdmin,
		IsBotAdmin: ec.IsBotAdmin,
		Config:     h.config,
	}
	if ec.Client != nil {
		inv.Self = ec.Client.Self()
	}

	replies, err := h.impl.Execute(inv)
	if err != nil {
		return fmt.Errorf("exec plugin %s: %w", h.name, err)
	}

	for _, reply := range replies {
		var opts []outbound.SendOption
		if reply.NoQuote {
			opts = append(opts, outbound.WithoutQuote())
		}
		if _, err := ec.Client.SendMessage(ctx, reply.To, reply.Content, opts...); err != nil {
			return fmt.Errorf("exec plugin %s: send reply: %w", h.name, err)
		}
	}
	return nil
}
