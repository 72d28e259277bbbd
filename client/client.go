// Package client implements the calling side: connect, send one request,
// wait for its reply, disconnect.
//
// The server answers exactly one request per connection and then closes it,
// so every Call needs a fresh Connect. Invoke does all three steps at once.
package client

import (
	"encoding/json"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tiny-rpc/codec"
	"tiny-rpc/message"
	"tiny-rpc/protocol"
)

// Resolver picks the address to dial on each Connect.
type Resolver interface {
	Resolve() (string, error)
}

// Client holds at most one connection. It is not safe for concurrent use.
type Client struct {
	addr           string
	codecType      codec.CodecType
	framing        protocol.Framing
	maxMessageSize int
	resolver       Resolver
	dialTimeout    time.Duration
	ioTimeout      time.Duration
	logger         *zap.Logger

	conn   net.Conn
	framer protocol.Framer
}

type Option func(*Client)

func WithCodec(ct codec.CodecType) Option {
	return func(c *Client) { c.codecType = ct }
}

// WithFraming must match the server's framing. Raw framing carries JSON only.
func WithFraming(f protocol.Framing) Option {
	return func(c *Client) { c.framing = f }
}

func WithMaxMessageSize(n int) Option {
	return func(c *Client) { c.maxMessageSize = n }
}

// WithResolver makes Connect ask r for the address instead of using the fixed one.
func WithResolver(r Resolver) Option {
	return func(c *Client) { c.resolver = r }
}

func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// WithIOTimeout bounds each Call's write and read. Zero waits forever.
func WithIOTimeout(d time.Duration) Option {
	return func(c *Client) { c.ioTimeout = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New returns an unconnected client for the server at addr.
func New(addr string, opts ...Option) *Client {
	c := &Client{
		addr:      addr,
		codecType: codec.CodecTypeJSON,
		framing:   protocol.FramingLengthPrefixed,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the server. An already open connection is closed first.
// A server that cannot be reached is reported as a *ConnectError.
func (c *Client) Connect() error {
	if c.conn != nil {
		c.logger.Debug("closing previous connection before reconnecting", zap.Stringer("remote", c.conn.RemoteAddr()))
		c.Disconnect()
	}

	if _, err := codec.GetCodec(c.codecType); err != nil {
		return err
	}
	framer, err := protocol.NewFramer(c.framing, c.maxMessageSize)
	if err != nil {
		return err
	}
	if c.framing == protocol.FramingRaw && c.codecType != codec.CodecTypeJSON {
		return errors.Errorf("raw framing only carries json, not %s", c.codecType)
	}

	addr := c.addr
	if c.resolver != nil {
		if addr, err = c.resolver.Resolve(); err != nil {
			return &ConnectError{Err: err}
		}
	}
	conn, err := net.DialTimeout("tcp", addr, c.dialTimeout)
	if err != nil {
		return &ConnectError{Addr: addr, Err: err}
	}
	c.conn, c.framer = conn, framer
	c.logger.Debug("connected", zap.String("addr", addr))
	return nil
}

// Connected reports whether Connect succeeded and Disconnect has not been called since.
func (c *Client) Connected() bool {
	return c.conn != nil
}

// Disconnect closes the connection, if any. It is safe to call repeatedly.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn, c.framer = nil, nil
	return err
}

// Call invokes method with params and decodes its result into reply, which
// may be nil to discard it. A failure reported by the server is an *RPCError.
func (c *Client) Call(method string, reply any, params ...any) error {
	result, err := c.CallRaw(method, params...)
	if err != nil {
		return err
	}
	if reply == nil {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(result, reply), "decoding result of %s", method)
}

// CallRaw is Call without decoding the result.
func (c *Client) CallRaw(method string, params ...any) (json.RawMessage, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}

	req, err := message.NewRequest(method, params...)
	if err != nil {
		return nil, err
	}
	cdc, err := codec.GetCodec(c.codecType)
	if err != nil {
		return nil, err
	}
	body, err := cdc.Encode(req)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding request for %s", method)
	}

	if c.ioTimeout > 0 {
		c.conn.SetDeadline(time.Now().Add(c.ioTimeout))
	}
	if err := c.framer.WriteFrame(c.conn, c.codecType, body); err != nil {
		return nil, errors.Wrapf(err, "sending %s", method)
	}

	ct, data, err := c.framer.ReadFrame(c.conn)
	if err == io.EOF {
		return nil, errors.Errorf("connection closed before the reply to %s; connect again for each call", method)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading reply to %s", method)
	}

	replyCodec, err := codec.GetCodec(ct)
	if err != nil {
		return nil, err
	}
	var resp message.Response
	if err := replyCodec.Decode(data, &resp); err != nil {
		return nil, errors.Wrapf(err, "reply to %s", method)
	}
	if resp.IsError() {
		return nil, &RPCError{Method: method, Message: resp.ErrorText()}
	}
	return resp.Result, nil
}

// Invoke connects, calls and disconnects.
func (c *Client) Invoke(method string, reply any, params ...any) error {
	if err := c.Connect(); err != nil {
		return err
	}
	defer c.Disconnect()
	return c.Call(method, reply, params...)
}
