// Package server implements the RPC server: a sequential accept loop and the
// per-connection handler.
//
// Request processing pipeline, one connection at a time:
//
//	Accept conn → read one frame → Codec.Decode → Middleware Chain
//	  → dispatchHandler (registry.Invoke) → Codec.Encode → write one frame → close conn
//
// The next connection is accepted only after the current one is closed.
package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tiny-rpc/codec"
	"tiny-rpc/discovery"
	"tiny-rpc/message"
	"tiny-rpc/middleware"
	"tiny-rpc/protocol"
	"tiny-rpc/registry"
)

// ErrAlreadyServing is returned by a second call to Serve on the same Server.
var ErrAlreadyServing = errors.New("rpc: server is already serving")

type Server struct {
	config      Config
	registry    *registry.Registry
	framer      protocol.Framer
	logger      *zap.Logger
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc // middleware(middleware(...(dispatchHandler))), built by Serve
	discovery   discovery.Registry     // nil unless announcing

	mu            sync.Mutex
	listener      net.Listener
	advertiseAddr string // set once announced

	serving  atomic.Bool
	shutdown atomic.Bool
	done     chan struct{} // closed when Serve returns
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithDiscovery makes the server announce Config.ServiceName at its advertise
// address when serving begins, and withdraw it on Shutdown.
func WithDiscovery(reg discovery.Registry) Option {
	return func(s *Server) { s.discovery = reg }
}

// NewServer creates a server dispatching to methods. The registry is frozen
// when serving begins.
func NewServer(methods *registry.Registry, config Config, opts ...Option) (*Server, error) {
	if methods == nil {
		return nil, errors.New("rpc: nil method registry")
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server config")
	}
	framer, err := protocol.NewFramer(config.Framing, config.MaxMessageSize)
	if err != nil {
		return nil, err
	}
	s := &Server{
		config:   config,
		registry: methods,
		framer:   framer,
		logger:   zap.NewNop(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Use adds a middleware. Middlewares run in the order added and must be
// added before Serve.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// ListenAndServe binds Config.Addr and serves it until Shutdown.
func (svr *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", svr.config.Addr())
	if err != nil {
		return errors.Wrapf(err, "listening on %s", svr.config.Addr())
	}
	return svr.Serve(listener)
}

// Serve accepts connections on listener one at a time and handles each to
// completion before accepting the next. It returns nil after Shutdown, and
// the accept error otherwise.
func (svr *Server) Serve(listener net.Listener) error {
	if !svr.serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}
	defer close(svr.done)

	svr.mu.Lock()
	svr.listener = listener
	svr.mu.Unlock()
	defer listener.Close()

	// Shutdown may have run before the listener was recorded.
	if svr.shutdown.Load() {
		return nil
	}

	svr.registry.Freeze()
	svr.handler = middleware.Chain(svr.middlewares...)(svr.dispatchHandler)

	if err := svr.announce(listener.Addr().String()); err != nil {
		return err
	}

	svr.logger.Info("server running",
		zap.Stringer("addr", listener.Addr()),
		zap.String("framing", string(svr.config.Framing)),
		zap.Strings("methods", svr.registry.Names()))

	for {
		conn, err := listener.Accept()
		if err != nil {
			// Shutdown closes the listener, which fails Accept.
			if svr.shutdown.Load() {
				return nil
			}
			return errors.Wrap(err, "accept")
		}
		svr.handleConn(conn)
	}
}

// Addr returns the address being served, or nil before Serve.
func (svr *Server) Addr() net.Addr {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if svr.listener == nil {
		return nil
	}
	return svr.listener.Addr()
}

// Shutdown withdraws the discovery announcement, stops accepting and waits
// for the connection being handled, if any, or for ctx.
func (svr *Server) Shutdown(ctx context.Context) error {
	svr.withdraw()

	svr.shutdown.Store(true)
	svr.mu.Lock()
	listener := svr.listener
	svr.mu.Unlock()
	if listener == nil {
		return nil
	}
	listener.Close()

	select {
	case <-svr.done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for in-flight connection")
	}
}

func (svr *Server) announce(listenAddr string) error {
	if svr.discovery == nil {
		return nil
	}
	addr := svr.config.AdvertiseAddr
	if addr == "" {
		addr = listenAddr
	}
	instance := discovery.ServiceInstance{
		Addr:    addr,
		Weight:  svr.config.ServiceWeight,
		Version: svr.config.ServiceVersion,
	}
	err := svr.discovery.Register(svr.config.ServiceName, instance, svr.config.AnnounceTTL)
	if err != nil {
		return errors.Wrapf(err, "announcing %s at %s", svr.config.ServiceName, addr)
	}
	svr.mu.Lock()
	svr.advertiseAddr = addr
	svr.mu.Unlock()
	svr.logger.Info("announced", zap.String("service", svr.config.ServiceName), zap.String("addr", addr))
	return nil
}

func (svr *Server) withdraw() {
	svr.mu.Lock()
	addr := svr.advertiseAddr
	svr.advertiseAddr = ""
	svr.mu.Unlock()
	if svr.discovery == nil || addr == "" {
		return
	}
	if err := svr.discovery.Deregister(svr.config.ServiceName, addr); err != nil {
		svr.logger.Warn("withdrawing announcement", zap.String("service", svr.config.ServiceName), zap.Error(err))
	}
}

// handleConn serves exactly one request on conn and closes it. A peer that
// closes without sending anything gets no reply. Nothing that goes wrong here
// stops the accept loop.
func (svr *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	logger := svr.logger.With(zap.Stringer("remote", conn.RemoteAddr()))
	logger.Debug("connection accepted")

	if svr.config.IOTimeout > 0 {
		conn.SetDeadline(time.Now().Add(svr.config.IOTimeout))
	}

	ct, body, err := svr.framer.ReadFrame(conn)
	if err == io.EOF {
		logger.Debug("peer closed before sending a request")
		return
	}
	var resp *message.Response
	if err != nil {
		logger.Warn("unreadable request frame", zap.Error(err))
		ct, resp = codec.CodecTypeJSON, message.NewError(err.Error())
	} else {
		resp = svr.handleRequest(ct, body)
	}

	if err := svr.writeResponse(conn, ct, resp); err != nil {
		logger.Warn("failed to write response", zap.Error(err))
	}
}

// handleRequest decodes body and runs it through the middleware chain. It
// always returns a response.
func (svr *Server) handleRequest(ct codec.CodecType, body []byte) (resp *message.Response) {
	// Middlewares are ours, but a bug in one must not take the loop down.
	defer func() {
		if r := recover(); r != nil {
			svr.logger.Error("panic while handling request", zap.Any("panic", r))
			resp = message.NewError(fmt.Sprintf("internal error: %v", r))
		}
	}()

	cdc, err := codec.GetCodec(ct)
	if err != nil {
		return message.NewError(err.Error())
	}
	var req message.Request
	if err := cdc.Decode(body, &req); err != nil {
		return message.NewError(err.Error())
	}
	if err := req.Validate(); err != nil {
		return message.NewError(err.Error())
	}

	if resp = svr.handler(context.Background(), &req); resp == nil {
		return message.NewError("")
	}
	return resp
}

// dispatchHandler is the innermost handler: registry lookup and invocation.
func (svr *Server) dispatchHandler(ctx context.Context, req *message.Request) *message.Response {
	result, err := svr.registry.Invoke(ctx, req.Method, req.Params)
	if err != nil {
		return message.NewError(err.Error())
	}
	return &message.Response{Result: result}
}

// writeResponse encodes resp with the request's codec and writes it as one
// frame. A result too large to frame is replaced by an error response.
func (svr *Server) writeResponse(conn net.Conn, ct codec.CodecType, resp *message.Response) error {
	cdc, err := codec.GetCodec(ct)
	if err != nil {
		return err
	}
	data, err := cdc.Encode(resp)
	if err != nil {
		return errors.Wrap(err, "encoding response")
	}
	err = svr.framer.WriteFrame(conn, ct, data)
	if errors.Cause(err) == protocol.ErrMessageTooLarge {
		data, encErr := cdc.Encode(message.NewError(err.Error()))
		if encErr != nil {
			return errors.Wrap(encErr, "encoding response")
		}
		return svr.framer.WriteFrame(conn, ct, data)
	}
	return err
}
