package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// Client calls a remote ProtocolService using the cramberry codec.
type Client struct {
	cc *grpc.ClientConn
}

// Dial creates a client for addr. The connection is established lazily
// on the first call.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("rpc client: dial %s: %w", addr, err)
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

// Compile compiles one source unit.
func (c *Client) Compile(ctx context.Context, name, source string) (*CompileResponse, error) {
	resp := new(CompileResponse)
	req := &CompileRequest{Name: name, Source: source}
	if err := c.cc.Invoke(ctx, fullMethod("Compile"), req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// DeriveABI derives the ABI of a JSON IR document.
func (c *Client) DeriveABI(ctx context.Context, irJSON []byte) ([]byte, error) {
	resp := new(DeriveABIResponse)
	if err := c.cc.Invoke(ctx, fullMethod("DeriveABI"), &DeriveABIRequest{IR: irJSON}, resp); err != nil {
		return nil, err
	}
	return resp.ABI, nil
}

// Deploy deploys a JSON IR document and returns its unit hash.
func (c *Client) Deploy(ctx context.Context, irJSON []byte) (*DeployResponse, error) {
	resp := new(DeployResponse)
	if err := c.cc.Invoke(ctx, fullMethod("Deploy"), &DeployRequest{IR: irJSON}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Invoke calls method on a deployed unit. A runtime fault is reported in
// the response, not as an error.
func (c *Client) Invoke(ctx context.Context, unitHash, method string, args []string, callCtx map[string]string) (*InvokeResponse, error) {
	req := &InvokeRequest{
		UnitHash: unitHash,
		Method:   method,
		Args:     args,
		Ctx:      Entries(callCtx),
	}
	resp := new(InvokeResponse)
	if err := c.cc.Invoke(ctx, fullMethod("Invoke"), req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
