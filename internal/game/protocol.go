// internal/game/protocol.go
package game

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Action is an inbound request code.
type Action string

const (
	ActionJoinGroup       Action = "JOIN_GROUP"
	ActionLeaveGroup      Action = "LEAVE_GROUP"
	ActionEditUser        Action = "EDIT_USER"
	ActionEditGame        Action = "EDIT_GAME"
	ActionGameStart       Action = "GAME_START"
	ActionChatMessage     Action = "CHAT_MESSAGE"
	ActionCloseConnection Action = "CLOSE_CONNECTION"
)

// ParseAction maps a wire code onto the closed set of actions. Codes are
// matched case-insensitively.
func ParseAction(code string) (Action, bool) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(code))); a {
	case ActionJoinGroup, ActionLeaveGroup, ActionEditUser, ActionEditGame,
		ActionGameStart, ActionChatMessage, ActionCloseConnection:
		return a, true
	}
	return "", false
}

// needsData reports whether the action requires a non-empty payload.
func (a Action) needsData() bool {
	switch a {
	case ActionLeaveGroup, ActionGameStart, ActionCloseConnection:
		return false
	}
	return true
}

// Outbound event codes.
const (
	EventConnectStart    = "CONNECT_START"
	EventHello           = "HELLO"
	EventGroupJoin       = "GROUP_JOIN"
	EventGroupLeave      = "GROUP_LEAVE"
	EventUserUpdate      = "USER_UPDATE"
	EventDeleteGroup     = "DELETE_GROUP"
	EventGameStart       = "GAME_START"
	EventGameUpdate      = "GAME_UPDATE"
	EventGameEnd         = "GAME_END"
	EventRoundStart      = "ROUND_START"
	EventQuestionerStart = "QUESTIONER_START"
	EventAnswererStart   = "ANSWERER_START"
	EventRoundEnd        = "ROUND_END"
	EventCorrectWord     = "CORRECT_WORD"
	EventChatMessage     = "CHAT_MESSAGE"
)

// Envelope is the wire frame in both directions. S is 1 on success and 0 on
// failure; D is omitted when there is no payload.
type Envelope struct {
	S int    `json:"s"`
	C string `json:"c"`
	D any    `json:"d,omitempty"`
}

// inbound is the decoded form of a client frame. D stays raw until the
// action handler knows what shape it expects.
type inbound struct {
	C string          `json:"c"`
	D json.RawMessage `json:"d"`
}

func encode(success bool, code string, data any) ([]byte, error) {
	s := 0
	if success {
		s = 1
	}
	return json.Marshal(Envelope{S: s, C: code, D: data})
}

// emptyPayload treats absent, null and falsy JSON values as "no data".
func emptyPayload(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return true
	}
	switch val := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	case string:
		return val == ""
	case float64:
		return val == 0
	case bool:
		return !val
	}
	return false
}

// UserView is the projection of a session that any client may see.
type UserView struct {
	Group *string `json:"group"`
	Name  string  `json:"name"`
	UID   string  `json:"uid"`
}

// Word is one secret word of a round.
type Word struct {
	Text   string `json:"word"`
	Scored bool   `json:"scored"`
}

type helloPayload struct {
	UserView
	Session string `json:"session"`
}

type alertPayload struct {
	Member  UserView   `json:"member"`
	Members []UserView `json:"members"`
	Count   int        `json:"count"`
	Name    string     `json:"name"`
}

type chatPayload struct {
	User    UserView `json:"user"`
	Message string   `json:"message"`
}

type gameStartPayload struct {
	Teams    [][]UserView `json:"teams"`
	Cooldown int          `json:"cooldown"`
}

type gameUpdatePayload struct {
	RoundCount   int `json:"round_count"`
	WordlistSize int `json:"wordlist_size"`
}

type teamScore struct {
	Team      []UserView `json:"team"`
	Score     int        `json:"score"`
	Forfeited bool       `json:"forfeited"`
}

type gameEndPayload struct {
	Scores []teamScore `json:"scores"`
}

type roundStartPayload struct {
	Questioner UserView `json:"questioner"`
	Answerer   UserView `json:"answerer"`
	Round      int      `json:"round"`
}

type wordsPayload struct {
	Words []Word `json:"words"`
}

type roundEndPayload struct {
	Words    []Word `json:"words"`
	Cooldown int    `json:"cooldown"`
}

type correctWordPayload struct {
	Word  string `json:"word"`
	Index int    `json:"index"`
}
