// internal/game/game.go
package game

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/catchphrase/internal/metrics"
	"github.com/jason-s-yu/catchphrase/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	DefaultRoundCount = 4
	MaxRoundCount     = 9
	MaxCustomWords    = 49
	maxCustomWordLen  = 16

	// PreGameCooldown is the pause between GAME_START and the first round.
	PreGameCooldown = 10 * time.Second
	// RoundDuration is how long the answerer has to guess.
	RoundDuration = 30 * time.Second
	// RoundCooldown is the pause after ROUND_END.
	RoundCooldown = 10 * time.Second
)

// Team is a questioner/answerer pair. A team whose member leaves mid-game
// forfeits: it keeps its slot but is never chosen to play again.
type Team struct {
	Members   []*Session
	Forfeited bool

	index  int
	roster []models.MemberInfo
}

func (t *Team) has(s *Session) bool {
	for _, m := range t.Members {
		if m == s {
			return true
		}
	}
	return false
}

func (t *Team) views() []UserView {
	out := make([]UserView, len(t.Members))
	for i, m := range t.Members {
		out[i] = m.View()
	}
	return out
}

// Game holds one play-through for a group. Every method assumes the
// owning group's lock is held; the Controller and the dispatcher take it.
type Game struct {
	ID uuid.UUID

	group       *Group
	teams       []*Team
	rounds      []*Round
	inProgress  bool
	nextAction  time.Time
	roundCount  int
	customWords []string
	startedAt   time.Time

	// closed is set once the game has left the registry.
	closed bool
}

func newGame(group *Group, roundCount int, customWords []string) *Game {
	return &Game{
		ID:          uuid.New(),
		group:       group,
		roundCount:  roundCount,
		customWords: customWords,
	}
}

// RoundCount is the number of rounds each team plays.
func (g *Game) RoundCount() int { return g.roundCount }

// CustomWords returns the custom word list, if any.
func (g *Game) CustomWords() []string { return g.customWords }

// InProgress reports whether the game has started and not ended.
func (g *Game) InProgress() bool { return g.inProgress }

// Teams returns the teams built at start.
func (g *Game) Teams() []*Team { return g.teams }

// Rounds returns the round history.
func (g *Game) Rounds() []*Round { return g.rounds }

// NextAction is the earliest time the Controller will act on the game.
func (g *Game) NextAction() time.Time { return g.nextAction }

// Group returns the owning group.
func (g *Game) Group() *Group { return g.group }

// constructTeams pairs up a shuffled copy of the roster.
func (g *Game) constructTeams() []*Team {
	members := make([]*Session, len(g.group.members))
	copy(members, g.group.members)
	g.group.reg.shuffle(len(members), func(i, j int) {
		members[i], members[j] = members[j], members[i]
	})

	teams := make([]*Team, 0, len(members)/2)
	for i := 0; i+1 < len(members); i += 2 {
		pair := []*Session{members[i], members[i+1]}
		roster := make([]models.MemberInfo, len(pair))
		for k, m := range pair {
			roster[k] = models.MemberInfo{UID: m.UID, Name: m.Name()}
		}
		teams = append(teams, &Team{Members: pair, index: len(teams), roster: roster})
	}
	return teams
}

func (g *Game) roundsPlayed(t *Team) int {
	n := 0
	for _, r := range g.rounds {
		if r.team == t {
			n++
		}
	}
	return n
}

// CurrentTeam picks the playing team with the fewest rounds, ties going to
// the earlier team. Without forfeits this is strict round robin. It returns
// nil when every team has forfeited.
func (g *Game) CurrentTeam() *Team {
	var best *Team
	bestPlayed := 0
	for _, t := range g.teams {
		if t.Forfeited {
			continue
		}
		played := g.roundsPlayed(t)
		if best == nil || played < bestPlayed {
			best, bestPlayed = t, played
		}
	}
	return best
}

func (g *Game) lastRound() *Round {
	if len(g.rounds) == 0 {
		return nil
	}
	return g.rounds[len(g.rounds)-1]
}

func (g *Game) activeRoundUnsafe() *Round {
	if !g.inProgress {
		return nil
	}
	if r := g.lastRound(); r != nil && !r.finished {
		return r
	}
	return nil
}

// IsFinished reports whether every playing team has had its rounds and the
// last round is over. A game with no playing team left is finished.
func (g *Game) IsFinished() bool {
	if r := g.lastRound(); r != nil && !r.finished {
		return false
	}
	for _, t := range g.teams {
		if t.Forfeited {
			continue
		}
		if g.roundsPlayed(t) < g.roundCount {
			return false
		}
	}
	return true
}

// GameEdit carries the optional fields of an EDIT_GAME request.
type GameEdit struct {
	RoundCount json.RawMessage `json:"round_count"`
	Wordlist   json.RawMessage `json:"wordlist"`
}

func absent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// parseRoundCount accepts an integral JSON number or a string of digits.
func parseRoundCount(raw json.RawMessage) (int, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if text == "" {
			return 0, ErrInvalidType
		}
		for _, c := range text {
			if c < '0' || c > '9' {
				return 0, ErrInvalidType
			}
		}
	} else {
		var num json.Number
		if err := json.Unmarshal(raw, &num); err != nil {
			return 0, ErrInvalidType
		}
		text = num.String()
	}

	n, err := strconv.Atoi(text)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, ErrInvalidRange
		}
		return 0, ErrInvalidType
	}
	if n < 1 || n > MaxRoundCount {
		return 0, ErrInvalidRange
	}
	return n, nil
}

func parseWordlist(raw json.RawMessage) ([]string, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, ErrInvalidType
	}
	words := make([]string, 0, len(entries))
	for _, e := range entries {
		var w string
		if err := json.Unmarshal(e, &w); err != nil {
			return nil, ErrInvalidType
		}
		w = SanitizeString(w)
		if n := utf8.RuneCountInString(w); n == 0 || n >= maxCustomWordLen {
			continue
		}
		words = append(words, w)
	}
	if len(words) == 0 || len(words) > MaxCustomWords {
		return nil, ErrInvalidRange
	}
	return words, nil
}

// editUnsafe validates both fields before applying either.
func (g *Game) editUnsafe(edit GameEdit) error {
	if g.inProgress {
		return ErrInGame
	}

	roundCount := g.roundCount
	words := g.customWords
	if !absent(edit.RoundCount) {
		n, err := parseRoundCount(edit.RoundCount)
		if err != nil {
			return err
		}
		roundCount = n
	}
	if !absent(edit.Wordlist) {
		w, err := parseWordlist(edit.Wordlist)
		if err != nil {
			return err
		}
		words = w
	}

	g.roundCount = roundCount
	g.customWords = words
	g.group.log.WithFields(logrus.Fields{"round_count": roundCount, "wordlist_size": len(words)}).Info("game edited")
	g.group.sendUnsafe(EventGameUpdate, gameUpdatePayload{RoundCount: roundCount, WordlistSize: len(words)})
	return nil
}

func (g *Game) startUnsafe() {
	now := g.group.reg.now()
	g.inProgress = true
	g.group.inGame = true
	g.teams = g.constructTeams()
	g.rounds = nil
	g.startedAt = now
	g.nextAction = now.Add(PreGameCooldown)

	teams := make([][]UserView, len(g.teams))
	for i, t := range g.teams {
		teams[i] = t.views()
	}
	metrics.GamesStarted.Inc()
	g.group.log.WithFields(logrus.Fields{"game": g.ID, "teams": len(g.teams)}).Info("game started")
	g.group.sendUnsafe(EventGameStart, gameStartPayload{
		Teams:    teams,
		Cooldown: int(PreGameCooldown / time.Second),
	})
}

// forfeitUnsafe drops s from its team and retires the team. The team's
// active round, if any, ends immediately.
func (g *Game) forfeitUnsafe(s *Session) {
	for _, t := range g.teams {
		if !t.has(s) {
			continue
		}
		t.Forfeited = true
		for i, m := range t.Members {
			if m == s {
				t.Members = append(t.Members[:i], t.Members[i+1:]...)
				break
			}
		}
		g.group.log.WithFields(logrus.Fields{"uid": s.UID, "team": t.index}).Info("team forfeited")
		if r := g.activeRoundUnsafe(); r != nil && r.team == t {
			r.end(metrics.ReasonForfeit)
		}
		return
	}
}

func (g *Game) teamScore(t *Team) int {
	score := 0
	for _, r := range g.rounds {
		if r.team == t {
			score += r.Score()
		}
	}
	return score
}

// endUnsafe closes the game out: it broadcasts the tally, leaves the
// registry and hands the group a fresh game with the same settings.
func (g *Game) endUnsafe() {
	g.inProgress = false
	g.group.inGame = false

	scores := make([]teamScore, len(g.teams))
	for i, t := range g.teams {
		scores[i] = teamScore{Team: t.views(), Score: g.teamScore(t), Forfeited: t.Forfeited}
	}
	g.group.sendUnsafe(EventGameEnd, gameEndPayload{Scores: scores})

	g.closed = true
	reg := g.group.reg
	reg.UnregisterGame(g)
	next := newGame(g.group, g.roundCount, g.customWords)
	g.group.game = next
	reg.RegisterGame(next)

	metrics.GamesEnded.Inc()
	g.group.log.WithFields(logrus.Fields{"game": g.ID, "rounds": len(g.rounds)}).Info("game ended")
	reg.publish(g.record(reg.now()))
}

func (g *Game) record(endedAt time.Time) models.GameRecord {
	rec := models.GameRecord{
		ID:         g.ID,
		GroupID:    g.group.ID,
		RoundCount: g.roundCount,
		StartedAt:  g.startedAt,
		EndedAt:    endedAt,
		Teams:      make([]models.TeamResult, len(g.teams)),
		Rounds:     make([]models.RoundRecord, len(g.rounds)),
	}
	for i, t := range g.teams {
		rec.Teams[i] = models.TeamResult{
			Index:     t.index,
			Members:   append([]models.MemberInfo(nil), t.roster...),
			Score:     g.teamScore(t),
			Forfeited: t.Forfeited,
		}
	}
	for i, r := range g.rounds {
		rec.Rounds[i] = r.record()
	}
	return rec
}

// drawWords picks the words for a new round: distinct entries from the
// custom list when it is long enough, otherwise from the word source.
func (g *Game) drawWords() []Word {
	reg := g.group.reg
	out := make([]Word, 0, WordsPerRound)

	if n := len(g.customWords); n > 0 {
		for _, i := range reg.perm(n) {
			if len(out) == WordsPerRound {
				break
			}
			out = append(out, Word{Text: g.customWords[i]})
		}
		for len(out) < WordsPerRound {
			out = append(out, Word{Text: g.customWords[reg.intn(n)]})
		}
		return out
	}

	seen := make(map[string]bool, WordsPerRound)
	for tries := 0; len(out) < WordsPerRound; tries++ {
		w := reg.words.RandomWord()
		if seen[w] && tries < WordsPerRound*10 {
			continue
		}
		seen[w] = true
		out = append(out, Word{Text: w})
	}
	return out
}
