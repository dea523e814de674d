// internal/game/dispatcher.go
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/catchphrase/internal/metrics"
	"github.com/sirupsen/logrus"
)

const flushTimeout = time.Second

// Dispatcher routes a session's inbound frames to the session's operations.
type Dispatcher struct {
	s   *Session
	log *logrus.Entry
}

// NewDispatcher binds a dispatcher to s.
func NewDispatcher(s *Session) *Dispatcher {
	return &Dispatcher{s: s, log: s.log}
}

// Handle processes one frame. ClientErrors are the caller's to report back;
// any other error, including a recovered panic, should end the connection.
func (d *Dispatcher) Handle(frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling frame: %v", r)
		}
	}()

	var in inbound
	if err := json.Unmarshal(frame, &in); err != nil {
		return ErrInvalidJSON
	}
	action, ok := ParseAction(in.C)
	if !ok {
		return ErrInvalidAction
	}
	if action.needsData() && emptyPayload(in.D) {
		return ErrNoData
	}
	d.log.WithField("action", action).Debug("dispatch")

	switch action {
	case ActionJoinGroup:
		var data struct {
			Group json.RawMessage `json:"group"`
		}
		if err := json.Unmarshal(in.D, &data); err != nil {
			return ErrInvalidType
		}
		gid := ""
		if !absent(data.Group) {
			if err := json.Unmarshal(data.Group, &gid); err != nil {
				return ErrInvalidString
			}
		}
		return d.s.Join(gid)

	case ActionLeaveGroup:
		return d.s.Leave()

	case ActionEditUser:
		var data struct {
			Name json.RawMessage `json:"name"`
		}
		if err := json.Unmarshal(in.D, &data); err != nil {
			return ErrInvalidType
		}
		var name string
		if err := json.Unmarshal(data.Name, &name); err != nil {
			return ErrInvalidName
		}
		return d.s.Edit(name)

	case ActionEditGame:
		var edit GameEdit
		if err := json.Unmarshal(in.D, &edit); err != nil {
			return ErrInvalidType
		}
		g := d.s.Group()
		if g == nil {
			return ErrNoGroup
		}
		return g.EditGame(edit)

	case ActionGameStart:
		g := d.s.Group()
		if g == nil {
			return ErrNoGroup
		}
		return g.StartGame()

	case ActionChatMessage:
		var data struct {
			Message json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal(in.D, &data); err != nil {
			return ErrInvalidType
		}
		var msg string
		if err := json.Unmarshal(data.Message, &msg); err != nil {
			return ErrInvalidMessage
		}
		return d.s.Message(msg)

	case ActionCloseConnection:
		d.s.Close()
		return nil
	}
	return ErrInvalidAction
}

// Loop reads frames until the session closes, the connection fails or a
// non-client error occurs. Client errors are answered with {s: 0, c: code}.
func (d *Dispatcher) Loop(ctx context.Context, conn Conn) error {
	for d.s.Active() {
		frame, err := conn.ReceiveFrame(ctx)
		if err != nil {
			return err
		}
		if err := d.Handle(frame); err != nil {
			var ce *ClientError
			if errors.As(err, &ce) {
				metrics.ClientErrors.WithLabelValues(ce.Code).Inc()
				d.s.Send(false, ce.Code, nil)
				continue
			}
			d.log.Errorf("closing connection: %v", err)
			return err
		}
	}
	return nil
}

// Serve runs a connection from handshake to teardown: it registers the
// session, starts the write pump, greets the client with HELLO and
// dispatches frames until the connection ends. The session is always
// unregistered before Serve returns.
func Serve(ctx context.Context, reg *Registry, conn Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := Register(ctx, reg, conn)
	if err != nil {
		var ce *ClientError
		if errors.As(err, &ce) {
			if frame, encErr := encode(false, ce.Code, nil); encErr == nil {
				_ = conn.SendFrame(ctx, frame)
			}
		}
		conn.Close("handshake failed")
		return err
	}

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		s.writePump(ctx, conn)
		cancel()
	}()

	s.Send(true, EventHello, s.helloPayload())
	loopErr := NewDispatcher(s).Loop(ctx, conn)

	s.Unregister()
	cancel()
	<-pumpDone
	conn.Close("connection closed")
	if errors.Is(loopErr, context.Canceled) {
		return nil
	}
	return loopErr
}

// writePump drains the outbox onto the connection. On cancellation it makes
// one bounded attempt to flush what is still queued.
func (s *Session) writePump(ctx context.Context, conn Conn) {
	for {
		select {
		case <-ctx.Done():
			s.flush(conn)
			return
		case frame := <-s.out:
			if err := conn.SendFrame(ctx, frame); err != nil {
				if ctx.Err() == nil {
					s.log.Warnf("write failed: %v", err)
				}
				return
			}
		}
	}
}

func (s *Session) flush(conn Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for {
		select {
		case frame := <-s.out:
			if err := conn.SendFrame(ctx, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
