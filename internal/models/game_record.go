// internal/models/game_record.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// GameRecord is the summary of one finished game. The server publishes it to
// the history queue; the historian persists it.
type GameRecord struct {
	ID         uuid.UUID     `json:"id"`
	GroupID    string        `json:"group_id"`
	RoundCount int           `json:"round_count"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    time.Time     `json:"ended_at"`
	Teams      []TeamResult  `json:"teams"`
	Rounds     []RoundRecord `json:"rounds"`
}

// TeamResult is one team's final tally.
type TeamResult struct {
	Index     int          `json:"index"`
	Members   []MemberInfo `json:"members"`
	Score     int          `json:"score"`
	Forfeited bool         `json:"forfeited"`
}

// MemberInfo identifies a player without exposing their session token.
type MemberInfo struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// RoundRecord captures the outcome of a single round.
type RoundRecord struct {
	Number     int          `json:"number"`
	Team       int          `json:"team"`
	Questioner MemberInfo   `json:"questioner"`
	Answerer   MemberInfo   `json:"answerer"`
	Words      []WordRecord `json:"words"`
	Score      int          `json:"score"`
}

// WordRecord is a secret word and whether the answerer got it.
type WordRecord struct {
	Word   string `json:"word"`
	Scored bool   `json:"scored"`
}

// Winners returns the indices of the non-forfeited teams with the highest score.
func (r GameRecord) Winners() []int {
	best := -1
	var winners []int
	for _, t := range r.Teams {
		if t.Forfeited {
			continue
		}
		switch {
		case t.Score > best:
			best = t.Score
			winners = []int{t.Index}
		case t.Score == best:
			winners = append(winners, t.Index)
		}
	}
	return winners
}
