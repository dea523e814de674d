// internal/game/round.go
package game

import (
	"time"

	"github.com/jason-s-yu/catchphrase/internal/metrics"
	"github.com/jason-s-yu/catchphrase/internal/models"
	"github.com/sirupsen/logrus"
)

// WordsPerRound is the number of secret words in a round.
const WordsPerRound = 5

// Round is one team's turn: the questioner describes, the answerer guesses.
// Like Game, it is only touched with the group lock held.
type Round struct {
	Number int

	game       *Game
	team       *Team
	questioner *Session
	answerer   *Session
	words      []Word
	finished   bool
}

func newRound(g *Game, team *Team, number int) *Round {
	return &Round{Number: number, game: g, team: team}
}

// Team is the team playing this round.
func (r *Round) Team() *Team { return r.team }

// Questioner returns the member who knows the words.
func (r *Round) Questioner() *Session { return r.questioner }

// Answerer returns the member who guesses.
func (r *Round) Answerer() *Session { return r.answerer }

// Words returns a copy of the round's words.
func (r *Round) Words() []Word {
	out := make([]Word, len(r.words))
	copy(out, r.words)
	return out
}

// Finished reports whether the round has ended.
func (r *Round) Finished() bool { return r.finished }

// Score counts the scored words.
func (r *Round) Score() int {
	n := 0
	for _, w := range r.words {
		if w.Scored {
			n++
		}
	}
	return n
}

// IsFinished reports whether every word was guessed.
func (r *Round) IsFinished() bool {
	return r.Score() == WordsPerRound
}

func (r *Round) logger() *logrus.Entry {
	return r.game.group.log.WithField("round", r.Number)
}

func (r *Round) start() {
	r.questioner, r.answerer = r.team.Members[0], r.team.Members[1]
	r.words = r.game.drawWords()

	group := r.game.group
	group.sendUnsafe(EventRoundStart, roundStartPayload{
		Questioner: r.questioner.View(),
		Answerer:   r.answerer.View(),
		Round:      r.Number,
	})
	r.questioner.Send(true, EventQuestionerStart, wordsPayload{Words: r.Words()})
	r.answerer.Send(true, EventAnswererStart, nil)
	r.logger().WithFields(logrus.Fields{"questioner": r.questioner.UID, "answerer": r.answerer.UID}).Info("round started")
}

// answer scores the first unscored word equal to word. It returns false when
// nothing was scored. Scoring the last word ends the round.
func (r *Round) answer(word string) bool {
	if r.finished {
		return false
	}
	for i := range r.words {
		if r.words[i].Scored || r.words[i].Text != word {
			continue
		}
		r.words[i].Scored = true
		metrics.CorrectWords.Inc()
		r.game.group.sendUnsafe(EventCorrectWord, correctWordPayload{Word: word, Index: i})
		if r.IsFinished() {
			r.end(metrics.ReasonCompleted)
		}
		return true
	}
	return false
}

// end finishes the round once. Later calls are no-ops and return false.
func (r *Round) end(reason string) bool {
	if r.finished {
		return false
	}
	r.finished = true
	r.game.nextAction = r.game.group.reg.now().Add(RoundCooldown)

	metrics.RoundsEnded.WithLabelValues(reason).Inc()
	r.logger().WithFields(logrus.Fields{"score": r.Score(), "reason": reason}).Info("round ended")
	r.game.group.sendUnsafe(EventRoundEnd, roundEndPayload{
		Words:    r.Words(),
		Cooldown: int(RoundCooldown / time.Second),
	})
	return true
}

func (r *Round) record() models.RoundRecord {
	rec := models.RoundRecord{
		Number: r.Number,
		Team:   r.team.index,
		Score:  r.Score(),
		Words:  make([]models.WordRecord, len(r.words)),
	}
	if r.questioner != nil {
		rec.Questioner = models.MemberInfo{UID: r.questioner.UID, Name: r.questioner.Name()}
	}
	if r.answerer != nil {
		rec.Answerer = models.MemberInfo{UID: r.answerer.UID, Name: r.answerer.Name()}
	}
	for i, w := range r.words {
		rec.Words[i] = models.WordRecord{Word: w.Text, Scored: w.Scored}
	}
	return rec
}
