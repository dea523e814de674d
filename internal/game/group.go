// internal/game/group.go
package game

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// MaxMembers caps a group's roster.
const MaxMembers = 12

// errGroupClosed signals that a group was destroyed between lookup and use.
var errGroupClosed = errors.New("group closed")

// Group is a named lobby. mu guards the roster and everything reachable
// through game: teams, rounds and scores. Methods ending in Unsafe assume
// mu is held.
type Group struct {
	ID string

	reg *Registry
	log *logrus.Entry

	mu      sync.Mutex
	members []*Session
	game    *Game
	inGame  bool
	closed  bool
}

func newGroup(reg *Registry, gid string) *Group {
	return &Group{
		ID:  gid,
		reg: reg,
		log: reg.log.WithField("gid", gid),
	}
}

// Members returns a snapshot of the roster.
func (g *Group) Members() []*Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Session, len(g.members))
	copy(out, g.members)
	return out
}

// InGame mirrors the current game's in-progress flag.
func (g *Group) InGame() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inGame
}

// Game returns the group's current game.
func (g *Group) Game() *Game {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.game
}

func (g *Group) summary() (GroupSummary, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return GroupSummary{}, false
	}
	return GroupSummary{GID: g.ID, Count: len(g.members), InGame: g.inGame}, true
}

func (g *Group) join(s *Session) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return errGroupClosed
	}
	if g.inGame {
		return ErrInGame
	}
	return g.addUnsafe(s)
}

// addUnsafe appends s to the roster, renaming it if its name is taken.
func (g *Group) addUnsafe(s *Session) error {
	if len(g.members) >= MaxMembers {
		return ErrMaxMembers
	}

	name := s.Name()
	if g.nameTakenUnsafe(name, s) {
		base := name
		if len(base) > MaxStringLength-6 {
			base = base[:MaxStringLength-6]
		}
		for {
			candidate := base + "-" + g.reg.randomString(4)
			if !g.nameTakenUnsafe(candidate, s) {
				name = candidate
				break
			}
		}
		s.setName(name)
	}

	g.members = append(g.members, s)
	s.setGroup(g)
	g.log.WithFields(logrus.Fields{"uid": s.UID, "name": name, "count": len(g.members)}).Info("member joined")
	g.alertUnsafe(EventGroupJoin, s)
	return nil
}

func (g *Group) nameTakenUnsafe(name string, except *Session) bool {
	for _, m := range g.members {
		if m != except && m.Name() == name {
			return true
		}
	}
	return false
}

func (g *Group) leave(s *Session) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removeUnsafe(s)
}

// removeUnsafe drops s from the roster. A member leaving mid-game forfeits
// their team; the last member leaving destroys the group.
func (g *Group) removeUnsafe(s *Session) error {
	idx := -1
	for i, m := range g.members {
		if m == s {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNoGroup
	}
	g.members = append(g.members[:idx], g.members[idx+1:]...)
	g.log.WithFields(logrus.Fields{"uid": s.UID, "count": len(g.members)}).Info("member left")
	g.alertUnsafe(EventGroupLeave, s)
	s.setGroup(nil)

	if g.game.inProgress {
		g.game.forfeitUnsafe(s)
	}
	if len(g.members) == 0 {
		g.destroyUnsafe()
	}
	return nil
}

// destroyUnsafe takes an empty group and its game out of the registry.
// Sessions are never touched.
func (g *Group) destroyUnsafe() {
	g.closed = true
	g.game.closed = true
	g.reg.UnregisterGame(g.game)
	g.reg.UnregisterGroup(g)
	g.sendUnsafe(EventDeleteGroup, nil)
	g.log.Info("group destroyed")
}

// sendUnsafe encodes one frame and queues it to every member. Delivery is
// non-blocking so a slow member never stalls the others.
func (g *Group) sendUnsafe(code string, data any) {
	frame, err := encode(true, code, data)
	if err != nil {
		g.log.Errorf("failed to encode %s: %v", code, err)
		return
	}
	for _, m := range g.members {
		m.deliver(frame, code)
	}
}

func (g *Group) alertUnsafe(code string, member *Session) {
	views := make([]UserView, len(g.members))
	for i, m := range g.members {
		views[i] = m.View()
	}
	g.sendUnsafe(code, alertPayload{
		Member:  member.View(),
		Members: views,
		Count:   len(g.members),
		Name:    g.ID,
	})
}

// StartGame begins a game. The roster must be even, at least four strong,
// and not already playing.
func (g *Group) StartGame() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrNoGroup
	}
	if len(g.members) < 4 || len(g.members)%2 != 0 || g.inGame {
		return ErrCantStart
	}
	g.game.startUnsafe()
	return nil
}

// EditGame changes the settings of the next game. Absent fields are left
// as they are.
func (g *Group) EditGame(edit GameEdit) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrNoGroup
	}
	return g.game.editUnsafe(edit)
}
