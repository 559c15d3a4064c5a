package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// Handshake is used to verify that the plugin and host are compatible
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "LYNAE_PLUGIN",
	MagicCookieValue: "lynae-command-plugin-v1",
}

// PluginMap is the map of plugins we can dispense
var PluginMap = map[string]plugin.Plugin{
	"command": &CommandRPCPlugin{},
}

// Serve runs impl as an exec plugin. It is called from the plugin
// binary's main and blocks until the host kills the process.
func Serve(impl CommandPlugin) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			"command": &CommandRPCPlugin{Impl: impl},
		},
	})
}

// CommandRPCPlugin is the implementation of plugin.Plugin for RPC
type CommandRPCPlugin struct {
	Impl CommandPlugin
}

func (p *CommandRPCPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &CommandRPCServer{Impl: p.Impl}, nil
}

func (p *CommandRPCPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &CommandRPCClient{client: c}, nil
}

// ExecuteArgs carries a JSON encoded Invocation. JSON keeps gob away
// from the any-typed config maps.
type ExecuteArgs struct {
	Payload []byte
}

// ExecuteResp carries JSON encoded replies or an error message.
type ExecuteResp struct {
	Payload []byte
	Error   string
}

// CommandRPCServer is the RPC server that CommandRPCClient talks to
type CommandRPCServer struct {
	Impl CommandPlugin
}

func (s *CommandRPCServer) Execute(args *ExecuteArgs, resp *ExecuteResp) error {
	var inv Invocation
	if err := json.Unmarshal(args.Payload, &inv); err != nil {
		resp.Error = fmt.Sprintf("decode invocation: %v", err)
		return nil
	}

	replies, err := s.Impl.Execute(&inv)
	if err != nil {
		resp.Error = err.Error()
		return nil
	}

	payload, err := json.Marshal(replies)
	if err != nil {
		resp.Error = fmt.Sprintf("encode replies: %v", err)
		return nil
	}
	resp.Payload = payload
	return nil
}

// CommandRPCClient is the RPC client that talks to CommandRPCServer
type CommandRPCClient struct {
	client *rpc.Client
}

func (c *CommandRPCClient) Execute(inv *Invocation) ([]Reply, error) {
	payload, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("encode invocation: %w", err)
	}

	var resp ExecuteResp
	if err := c.client.Call("Plugin.Execute", &ExecuteArgs{Payload: payload}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}

	var replies []Reply
	if len(resp.Payload) > 0 {
		if err := json.Unmarshal(resp.Payload, &replies); err != nil {
			return nil, fmt.Errorf("decode replies: %w", err)
		}
	}
	return replies, nil
}
