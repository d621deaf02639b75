package goplugin

import (
	"net/rpc"

	plugin "github.com/hashicorp/go-plugin"

	"github.com/serverless/function-gateway/function"
)

// Handshake is a common handshake that is shared by the worker and function plugins.
var Handshake = plugin.HandshakeConfig{
	// ProtocolVersion has to be bumped whenever the worker and plugins can't safely communicate anymore.
	ProtocolVersion: 1,
	// The magic cookie values should NEVER be changed.
	MagicCookieKey:   "FUNCTION_GATEWAY_MAGIC_COOKIE",
	MagicCookieValue: "5d1f0a8e-3c4b-4f0e-9b7a-2e6c8d4f1a93",
}

const pluginName = "function"

// Function is implemented by function plugins.
type Function interface {
	Start(req *function.Request) (*function.Response, error)
}

// Serve runs the function as a plugin. It's called from the plugin's main function and blocks.
func Serve(fn Function) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         map[string]plugin.Plugin{pluginName: &FunctionRPCPlugin{Function: fn}},
	})
}

// FunctionRPCPlugin is the go-plugin's Plugin implementation.
type FunctionRPCPlugin struct {
	Function Function
}

// Server hosts FunctionServer.
func (f *FunctionRPCPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &FunctionServer{Function: f.Function}, nil
}

// Client provides FunctionClient client.
func (f *FunctionRPCPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &FunctionClient{client: c}, nil
}

// FunctionServer is a net/rpc compatible structure for serving a Function.
type FunctionServer struct {
	Function Function
}

// Start server implementation.
func (f *FunctionServer) Start(args *StartArgs, resp *StartResponse) error {
	output, err := f.Function.Start(args.Request)

	*resp = StartResponse{Response: output, Error: plugin.NewBasicError(err)}
	return nil
}

// FunctionClient is a RPC implementation of Function.
type FunctionClient struct {
	client *rpc.Client
}

// Start calls plugin implementation.
func (f *FunctionClient) Start(req *function.Request) (*function.Response, error) {
	args := &StartArgs{Request: req}
	var resp StartResponse
	err := f.client.Call("Plugin.Start", args, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Response, nil
}

// StartArgs RPC args
type StartArgs struct {
	Request *function.Request
}

// StartResponse RPC response
type StartResponse struct {
	Response *function.Response
	Error    *plugin.BasicError
}
