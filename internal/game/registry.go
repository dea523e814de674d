// internal/game/registry.go
package game

import (
	"context"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/jason-s-yu/catchphrase/internal/metrics"
	"github.com/jason-s-yu/catchphrase/internal/models"
	"github.com/sirupsen/logrus"
)

// WordSource supplies secret words when a game has no custom list.
type WordSource interface {
	RandomWord() string
}

// HistoryPublisher receives a record of every game that runs to completion.
type HistoryPublisher interface {
	PublishGame(ctx context.Context, rec models.GameRecord) error
}

// TokenIssuer mints the private session token handed to each connection.
type TokenIssuer interface {
	Issue(uid string) (string, error)
}

// Options configures a Registry. Zero values pick sensible defaults.
type Options struct {
	Words  WordSource
	Logger *logrus.Logger

	// Now is the clock used for rounds, cooldowns and rate limits.
	Now func() time.Time
	// Seed seeds team shuffles, random names and word draws. 0 uses the time.
	Seed int64

	// MessageInterval is the minimum spacing between chat messages of one
	// session. 0 disables the limit.
	MessageInterval time.Duration
	// OutboxSize is the per-session outbound buffer.
	OutboxSize int

	History HistoryPublisher
	Tokens  TokenIssuer
}

const defaultOutboxSize = 64

// Registry indexes the live sessions, groups and games and carries the
// collaborators they share. Its lock guards the indices only; it never
// calls into a Group while held.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	groups   map[string]*Group
	games    []*Game

	words           WordSource
	log             *logrus.Logger
	now             func() time.Time
	messageInterval time.Duration
	outboxSize      int
	history         HistoryPublisher
	tokens          TokenIssuer

	rngMu sync.Mutex
	rng   *rand.Rand

	publishing sync.WaitGroup
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
		opts.Logger.SetOutput(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = defaultOutboxSize
	}
	if opts.Words == nil {
		opts.Words = fallbackWords{}
	}
	return &Registry{
		sessions:        make(map[string]*Session),
		groups:          make(map[string]*Group),
		words:           opts.Words,
		log:             opts.Logger,
		now:             opts.Now,
		messageInterval: opts.MessageInterval,
		outboxSize:      opts.OutboxSize,
		history:         opts.History,
		tokens:          opts.Tokens,
		rng:             rand.New(rand.NewSource(opts.Seed)),
	}
}

// fallbackWords keeps a registry usable when no word source is configured.
type fallbackWords struct{}

func (fallbackWords) RandomWord() string { return "catchphrase" }

// Now returns the registry clock's current time.
func (r *Registry) Now() time.Time {
	return r.now()
}

func (r *Registry) intn(n int) int {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng.Intn(n)
}

func (r *Registry) shuffle(n int, swap func(i, j int)) {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	r.rng.Shuffle(n, swap)
}

func (r *Registry) perm(n int) []int {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng.Perm(n)
}

// randomString returns n random ASCII letters and digits.
func (r *Registry) randomString(n int) string {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumeric[r.rng.Intn(len(alphanumeric))]
	}
	return string(b)
}

// RegisterSession adds a session to the index.
func (r *Registry) RegisterSession(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.UID]; ok {
		return
	}
	r.sessions[s.UID] = s
	metrics.SessionsActive.Inc()
}

// UnregisterSession removes a session from the index.
func (r *Registry) UnregisterSession(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.UID]; !ok {
		return
	}
	delete(r.sessions, s.UID)
	metrics.SessionsActive.Dec()
}

// Session looks up a session by uid.
func (r *Registry) Session(uid string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[uid]
	return s, ok
}

// Sessions returns a snapshot of all registered sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// CreateGroup builds a new group (and its game) under gid. It fails with
// ErrGroupExists when the id is taken.
func (r *Registry) CreateGroup(gid string) (*Group, error) {
	if !ValidateString(gid) {
		return nil, ErrInvalidString
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[gid]; ok {
		return nil, ErrGroupExists
	}
	return r.createGroupLocked(gid), nil
}

// GetOrCreateGroup returns the group registered under gid, creating it on
// first reference.
func (r *Registry) GetOrCreateGroup(gid string) (*Group, error) {
	if !ValidateString(gid) {
		return nil, ErrInvalidString
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.groups[gid]; ok {
		return g, nil
	}
	return r.createGroupLocked(gid), nil
}

func (r *Registry) createGroupLocked(gid string) *Group {
	g := newGroup(r, gid)
	g.game = newGame(g, DefaultRoundCount, nil)
	r.groups[gid] = g
	r.games = append(r.games, g.game)
	metrics.GroupsActive.Inc()
	r.log.WithField("gid", gid).Debug("group created")
	return g
}

// UnregisterGroup removes a group from the index.
func (r *Registry) UnregisterGroup(g *Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.groups[g.ID]; !ok || cur != g {
		return
	}
	delete(r.groups, g.ID)
	metrics.GroupsActive.Dec()
}

// Group looks up a group by id.
func (r *Registry) Group(gid string) (*Group, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[gid]
	return g, ok
}

// Groups returns a snapshot of all groups ordered by id.
func (r *Registry) Groups() []*Group {
	r.mu.Lock()
	out := make([]*Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RegisterGame adds a game to the sweep list.
func (r *Registry) RegisterGame(g *Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.games {
		if cur == g {
			return
		}
	}
	r.games = append(r.games, g)
}

// UnregisterGame removes a game from the sweep list.
func (r *Registry) UnregisterGame(g *Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.games {
		if cur == g {
			r.games = append(r.games[:i], r.games[i+1:]...)
			return
		}
	}
}

// Games returns a snapshot of the registered games in registration order.
func (r *Registry) Games() []*Game {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Game, len(r.games))
	copy(out, r.games)
	return out
}

// GroupSummary is the public listing entry for a group.
type GroupSummary struct {
	GID    string `json:"gid"`
	Count  int    `json:"count"`
	InGame bool   `json:"in_game"`
}

// GroupSummaries lists live groups.
func (r *Registry) GroupSummaries() []GroupSummary {
	groups := r.Groups()
	out := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		if sum, ok := g.summary(); ok {
			out = append(out, sum)
		}
	}
	return out
}

// publish hands a finished game to the history publisher without blocking
// the caller, which usually holds a group lock.
func (r *Registry) publish(rec models.GameRecord) {
	if r.history == nil {
		return
	}
	r.publishing.Add(1)
	go func() {
		defer r.publishing.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.history.PublishGame(ctx, rec); err != nil {
			r.log.WithFields(logrus.Fields{"gid": rec.GroupID, "game": rec.ID}).
				Warnf("failed to publish game history: %v", err)
		}
	}()
}

// Wait blocks until pending history publishes finish.
func (r *Registry) Wait() {
	r.publishing.Wait()
}
