// internal/game/session.go
package game

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Conn is the transport a session talks over. ReceiveFrame blocks until a
// frame arrives or the connection closes.
type Conn interface {
	ReceiveFrame(ctx context.Context) ([]byte, error)
	SendFrame(ctx context.Context, frame []byte) error
	Close(reason string)
}

const (
	randomNameLength  = 16
	randomGroupLength = 16
	randomGroupTries  = 5
	joinAttempts      = 3
	maxMessageLength  = 100
)

// Session is one connected client.
type Session struct {
	UID   string
	token string

	reg     *Registry
	out     chan []byte
	active  atomic.Bool
	closed  atomic.Bool
	limiter *rate.Limiter
	log     *logrus.Entry

	// mu guards the fields below.
	mu            sync.Mutex
	name          string
	group         *Group
	lastMessageAt time.Time
}

func newSession(reg *Registry, name string) (*Session, error) {
	uid := uuid.NewString()
	token := uuid.NewString()
	if reg.tokens != nil {
		t, err := reg.tokens.Issue(uid)
		if err != nil {
			return nil, fmt.Errorf("issue session token: %w", err)
		}
		token = t
	}

	limit := rate.Inf
	if reg.messageInterval > 0 {
		limit = rate.Every(reg.messageInterval)
	}
	s := &Session{
		UID:     uid,
		token:   token,
		reg:     reg,
		out:     make(chan []byte, reg.outboxSize),
		limiter: rate.NewLimiter(limit, 1),
		name:    name,
		log:     reg.log.WithField("uid", uid),
	}
	s.active.Store(true)
	return s, nil
}

// Register performs the handshake on a fresh connection: it announces
// CONNECT_START, reads one frame for the requested name and registers the
// session. A malformed first frame yields ErrInvalidJSON and no session.
func Register(ctx context.Context, reg *Registry, conn Conn) (*Session, error) {
	hello, err := encode(true, EventConnectStart, nil)
	if err != nil {
		return nil, err
	}
	if err := conn.SendFrame(ctx, hello); err != nil {
		return nil, fmt.Errorf("send connect start: %w", err)
	}

	frame, err := conn.ReceiveFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("await handshake: %w", err)
	}
	var in inbound
	if err := json.Unmarshal(frame, &in); err != nil {
		return nil, ErrInvalidJSON
	}

	name := ""
	if !emptyPayload(in.D) {
		var d struct {
			Name json.RawMessage `json:"name"`
		}
		if json.Unmarshal(in.D, &d) == nil {
			var requested string
			if json.Unmarshal(d.Name, &requested) == nil {
				name = SanitizeString(requested)
			}
		}
	}
	if !ValidateString(name) {
		name = reg.randomString(randomNameLength)
	}

	s, err := newSession(reg, name)
	if err != nil {
		return nil, err
	}
	reg.RegisterSession(s)
	s.log.WithField("name", name).Info("session registered")
	return s, nil
}

// Send queues a frame for the client without blocking. A full outbox drops
// the frame.
func (s *Session) Send(success bool, code string, data any) {
	frame, err := encode(success, code, data)
	if err != nil {
		s.log.Errorf("failed to encode %s: %v", code, err)
		return
	}
	s.deliver(frame, code)
}

func (s *Session) deliver(frame []byte, code string) {
	select {
	case s.out <- frame:
	default:
		s.log.Warnf("outbox full or closed, dropped %s", code)
	}
}

// Outbox is the stream of encoded frames waiting to be written.
func (s *Session) Outbox() <-chan []byte {
	return s.out
}

// Token is the private session token. It is never part of a shared view.
func (s *Session) Token() string {
	return s.token
}

// Active reports whether the receive loop should keep running.
func (s *Session) Active() bool {
	return s.active.Load()
}

// Name returns the current display name.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Group returns the group the session is in, or nil.
func (s *Session) Group() *Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.group
}

// View is the projection shared with other clients.
func (s *Session) View() UserView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := UserView{Name: s.name, UID: s.UID}
	if s.group != nil {
		gid := s.group.ID
		v.Group = &gid
	}
	return v
}

func (s *Session) setName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

func (s *Session) setGroup(g *Group) {
	s.mu.Lock()
	s.group = g
	s.mu.Unlock()
}

// LastMessageAt is when the last chat message was accepted.
func (s *Session) LastMessageAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMessageAt
}

// Edit renames the session. It fails without changing anything when the
// name is invalid, unchanged, or held by another member of the group.
func (s *Session) Edit(raw string) error {
	name := SanitizeString(raw)
	if !ValidateString(name) {
		return ErrInvalidName
	}

	g := s.Group()
	if g == nil {
		if name == s.Name() {
			return ErrInvalidName
		}
		s.setName(name)
		s.Send(true, EventUserUpdate, s.View())
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if name == s.Name() {
		return ErrInvalidName
	}
	if g.nameTakenUnsafe(name, s) {
		return ErrTakenName
	}
	s.setName(name)
	g.alertUnsafe(EventUserUpdate, s)
	return nil
}

// Join enters the group gid, or a fresh randomly named group when gid is
// empty.
func (s *Session) Join(gid string) error {
	if s.Group() != nil {
		return ErrInGroup
	}
	if gid != "" && !ValidateString(gid) {
		return ErrInvalidString
	}

	for attempt := 0; attempt < joinAttempts; attempt++ {
		g, err := s.resolveGroup(gid)
		if err != nil {
			return err
		}
		err = g.join(s)
		if err == errGroupClosed {
			// Lost a race with the group being destroyed; look it up again.
			continue
		}
		return err
	}
	return ErrInvalidGroup
}

func (s *Session) resolveGroup(gid string) (*Group, error) {
	if gid != "" {
		return s.reg.GetOrCreateGroup(gid)
	}
	for tries := 0; tries < randomGroupTries; tries++ {
		g, err := s.reg.CreateGroup(s.reg.randomString(randomGroupLength))
		if err == nil {
			return g, nil
		}
	}
	return nil, ErrInvalidGroup
}

// Leave exits the current group.
func (s *Session) Leave() error {
	g := s.Group()
	if g == nil {
		return ErrNoGroup
	}
	return g.leave(s)
}

// Message posts a chat message to the group. When the sender is the
// answerer of the active round, the message is checked against the
// unscored words first.
func (s *Session) Message(text string) error {
	g := s.Group()
	if g == nil {
		return ErrNoGroup
	}
	msg := SanitizeString(text)
	if n := utf8.RuneCountInString(msg); n == 0 || n >= maxMessageLength {
		return ErrInvalidMessage
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	r := g.game.activeRoundUnsafe()
	if r != nil && r.questioner == s {
		return ErrCantMessage
	}
	now := s.reg.now()
	if !s.limiter.AllowN(now, 1) {
		return ErrRateLimit
	}
	s.mu.Lock()
	s.lastMessageAt = now
	s.mu.Unlock()

	if r != nil && r.answerer == s {
		guess := strings.ToLower(msg)
		for _, w := range r.words {
			if !w.Scored && strings.ToLower(strings.TrimSpace(w.Text)) == guess {
				r.answer(w.Text)
				break
			}
		}
	}

	g.sendUnsafe(EventChatMessage, chatPayload{User: s.View(), Message: msg})
	return nil
}

// Close stops the receive loop after the current frame.
func (s *Session) Close() {
	s.active.Store(false)
}

// Unregister removes the session from its group and the registry. It is
// safe to call more than once.
func (s *Session) Unregister() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.active.Store(false)
	if g := s.Group(); g != nil {
		if err := g.leave(s); err != nil {
			s.log.Debugf("leave on unregister: %v", err)
		}
	}
	s.reg.UnregisterSession(s)
	s.log.Info("session unregistered")
}

func (s *Session) helloPayload() helloPayload {
	return helloPayload{UserView: s.View(), Session: s.token}
}
