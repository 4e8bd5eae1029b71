package transport

import (
	"fmt"
	"net"
	"net/rpc"

	"github.com/hupe1980/ivfshard/ivf"
)

// Server exposes a single shard over net/rpc for remote dispatch. Serve and
// ListenAndServe register exactly one Server per listener, under the fixed
// name "ShardServer".
type Server struct {
	local *Local
}

// NewServer wraps shard for RPC dispatch.
func NewServer(shard *ivf.Shard) *Server {
	return &Server{local: NewLocal(shard)}
}

// Search is the RPC entry point net/rpc invokes; it never returns a Go
// error for a shard-level failure (unavailable shard, bad request) since
// those are reported via Response.Status instead, matching the wire
// protocol's {hits, status} shape. A returned error indicates the RPC
// plumbing itself failed.
func (s *Server) Search(req *Request, resp *Response) error {
	r, err := s.local.Search(*req)
	*resp = r
	if r.Status != StatusOK {
		return nil
	}
	return err
}

// ListenAndServe registers shard as "ShardServer" and blocks accepting
// net/rpc connections on addr until the listener is closed or accept
// fails. Intended to run in its own goroutine, one per node process.
func ListenAndServe(addr string, shard *ivf.Shard) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: listen on %s: %w", addr, err)
	}
	return Serve(l, shard)
}

// Serve registers shard as "ShardServer" and blocks accepting net/rpc
// connections on l until it is closed or accept fails. Separated from
// ListenAndServe so tests can supply a listener bound to an ephemeral
// port.
func Serve(l net.Listener, shard *ivf.Shard) error {
	srv := rpc.NewServer()
	if err := srv.RegisterName("ShardServer", NewServer(shard)); err != nil {
		return fmt.Errorf("transport: register shard service: %w", err)
	}
	srv.Accept(l)
	return nil
}
