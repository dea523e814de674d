package game

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// manualClock only moves when told to.
type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// mockWords is a WordSource driven by testify expectations.
type mockWords struct {
	mock.Mock
}

func (m *mockWords) RandomWord() string {
	return m.Called().String(0)
}

// cycleWords hands out its words in order, wrapping around.
type cycleWords struct {
	mu    sync.Mutex
	words []string
	next  int
}

func (c *cycleWords) RandomWord() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.words[c.next%len(c.words)]
	c.next++
	return w
}

func defaultTestWords() *cycleWords {
	return &cycleWords{words: []string{"apple", "banana", "cherry", "date", "fig", "grape", "kiwi"}}
}

type testEnv struct {
	reg   *Registry
	clock *manualClock
	ctl   *Controller
}

func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()
	clock := newManualClock()
	opts := Options{
		Words:      defaultTestWords(),
		Now:        clock.Now,
		Seed:       42,
		OutboxSize: 512,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	reg := NewRegistry(opts)
	return &testEnv{reg: reg, clock: clock, ctl: NewController(reg, time.Millisecond)}
}

func (e *testEnv) session(t *testing.T, name string) *Session {
	t.Helper()
	s, err := newSession(e.reg, name)
	require.NoError(t, err)
	e.reg.RegisterSession(s)
	return s
}

// group joins every name to gid and clears their outboxes.
func (e *testEnv) group(t *testing.T, gid string, names ...string) (*Group, []*Session) {
	t.Helper()
	sessions := make([]*Session, len(names))
	for i, n := range names {
		sessions[i] = e.session(t, n)
		require.NoError(t, sessions[i].Join(gid))
	}
	g, ok := e.reg.Group(gid)
	require.True(t, ok)
	for _, s := range sessions {
		drain(s)
	}
	return g, sessions
}

// step advances the clock and runs one sweep.
func (e *testEnv) step(d time.Duration) {
	e.clock.Advance(d)
	e.ctl.Sweep()
}

type received struct {
	S int             `json:"s"`
	C string          `json:"c"`
	D json.RawMessage `json:"d"`
}

func drain(s *Session) []received {
	var out []received
	for {
		select {
		case frame := <-s.out:
			var r received
			if err := json.Unmarshal(frame, &r); err != nil {
				panic(err)
			}
			out = append(out, r)
		default:
			return out
		}
	}
}

func codes(events []received) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.C
	}
	return out
}

func count(events []received, code string) int {
	n := 0
	for _, e := range events {
		if e.C == code {
			n++
		}
	}
	return n
}

func find(events []received, code string) (received, bool) {
	for _, e := range events {
		if e.C == code {
			return e, true
		}
	}
	return received{}, false
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// fakeConn is an in-memory Conn. Tests push inbound frames on in and read
// what the server wrote from sent.
type fakeConn struct {
	in   chan []byte
	sent chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		sent:   make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReceiveFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-c.in:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	case <-c.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) SendFrame(ctx context.Context, frame []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	select {
	case c.sent <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) Close(string) {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *fakeConn) push(t *testing.T, frame string) {
	t.Helper()
	select {
	case c.in <- []byte(frame):
	case <-time.After(time.Second):
		t.Fatalf("inbound frame not consumed: %s", frame)
	}
}

// expect reads frames until one with the given code arrives.
func (c *fakeConn) expect(t *testing.T, code string) received {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case frame := <-c.sent:
			var r received
			require.NoError(t, json.Unmarshal(frame, &r))
			if r.C == code {
				return r
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", code)
			return received{}
		}
	}
}
