package transport

import (
	"fmt"
	"net/rpc"
	"sync"
)

// RPCClient dispatches Search calls to a shard hosted on a remote node,
// over net/rpc. It is safe for concurrent use: net/rpc multiplexes calls
// over a single connection internally.
type RPCClient struct {
	addr string

	mu     sync.Mutex
	client *rpc.Client
}

// NewRPCClient returns a client for the shard server listening at addr.
// The connection is established lazily on the first Search call, so
// constructing a client for a node that is temporarily down is not itself
// an error.
func NewRPCClient(addr string) *RPCClient {
	return &RPCClient{addr: addr}
}

// Search dials addr if not already connected and invokes the remote
// shard's Search method. A dial or call failure is reported as
// StatusUnavailable together with the wrapped error; after a call failure
// the connection is dropped and the next call dials again.
func (c *RPCClient) Search(req Request) (Response, error) {
	client, err := c.dial()
	if err != nil {
		return Response{Status: StatusUnavailable}, fmt.Errorf("transport: dial %s: %w", c.addr, err)
	}

	var resp Response
	if err := client.Call("ShardServer.Search", &req, &resp); err != nil {
		c.mu.Lock()
		c.client = nil
		c.mu.Unlock()
		return Response{Status: StatusUnavailable}, fmt.Errorf("transport: call %s: %w", c.addr, err)
	}
	return resp, nil
}

func (c *RPCClient) dial() (*rpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	client, err := rpc.Dial("tcp", c.addr)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// Close releases the underlying connection, if one was established.
func (c *RPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
