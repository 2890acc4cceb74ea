package ipc

import (
	"errors"
	"io"
	"log/slog"
	"net"
)

// ErrStop is returned by a handler to end the session once its reply,
// if any, has been written.
var ErrStop = errors.New("stop session")

// Handler processes a received envelope. Return nil to send no reply.
type Handler func(env Envelope) (*Envelope, error)

// Sender is the outbound half of a connection.
type Sender interface {
	Send(msgType string, data any) error
}

// Connection represents a single game mod instance talking to the sidecar.
// Each controlled faction gets its own connection, identified after the hello handshake.
type Connection struct {
	conn     net.Conn
	handlers map[string]Handler
	Player   string
}

func NewConnection(conn net.Conn, handlers map[string]Handler) *Connection {
	if handlers == nil {
		handlers = make(map[string]Handler)
	}
	return &Connection{
		conn:     conn,
		handlers: handlers,
	}
}

func (c *Connection) RegisterHandler(msgType string, handler Handler) {
	c.handlers[msgType] = handler
}

// Send writes one message. Commands issued while a handler runs go out
// before the handler's reply.
func (c *Connection) Send(msgType string, data any) error {
	env, err := NewEnvelope(msgType, data)
	if err != nil {
		return err
	}
	return WriteEnvelope(c.conn, env)
}

// ReadLoop blocks until the connection closes, errors or a handler stops
// it. It owns the conn lifetime so callers don't need to track cleanup.
// A clean end (peer closed, ErrStop) returns nil.
func (c *Connection) ReadLoop() error {
	defer c.conn.Close()

	for {
		env, err := ReadEnvelope(c.conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				slog.Info("connection closed", "player", c.Player)
				return nil
			}
			return err
		}

		handler, ok := c.handlers[env.Type]
		if !ok {
			slog.Warn("no handler for message type", "type", env.Type)
			continue
		}

		resp, err := handler(env)
		stop := errors.Is(err, ErrStop)
		if err != nil && !stop {
			slog.Error("handler error", "type", env.Type, "player", c.Player, "error", err)
			continue
		}

		if resp != nil {
			if err := WriteEnvelope(c.conn, *resp); err != nil {
				return err
			}
			slog.Debug("sent response", "type", resp.Type, "player", c.Player)
		}
		if stop {
			slog.Info("session stopped", "type", env.Type, "player", c.Player)
			return nil
		}
	}
}

var _ Sender = (*Connection)(nil)
