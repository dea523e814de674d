package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/catchphrase/internal/database"
	"github.com/jason-s-yu/catchphrase/internal/game"
	"github.com/jason-s-yu/catchphrase/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) RecentGames(ctx context.Context, gid string, limit int) ([]models.GameRecord, error) {
	args := m.Called(ctx, gid, limit)
	recs, _ := args.Get(0).([]models.GameRecord)
	return recs, args.Error(1)
}

func (m *mockStore) GetGame(ctx context.Context, id uuid.UUID) (models.GameRecord, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(models.GameRecord)
	return rec, args.Error(1)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRouter(t *testing.T, store HistoryStore) (*game.Registry, http.Handler) {
	t.Helper()
	reg := game.NewRegistry(game.Options{Logger: quietLogger(), Seed: 7})
	return reg, NewRouter(quietLogger(), reg, store)
}

func TestHealthz(t *testing.T) {
	_, router := newTestRouter(t, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestListGroups(t *testing.T) {
	reg, router := newTestRouter(t, nil)
	_, err := reg.CreateGroup("room")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/groups", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	var got []game.GroupSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, []game.GroupSummary{{GID: "room", Count: 0, InGame: false}}, got)
}

func TestHistoryDisabledWithoutStore(t *testing.T) {
	_, router := newTestRouter(t, nil)

	for _, path := range []string{"/history", "/history/" + uuid.NewString()} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func TestListHistory(t *testing.T) {
	store := &mockStore{}
	_, router := newTestRouter(t, store)
	rec := models.GameRecord{ID: uuid.New(), GroupID: "room", RoundCount: 4}

	store.On("RecentGames", mock.Anything, "room", 5).Return([]models.GameRecord{rec}, nil).Once()
	store.On("RecentGames", mock.Anything, "", maxHistoryLimit).Return(nil, nil).Once()
	store.On("RecentGames", mock.Anything, "", defaultHistoryLimit).Return(nil, errors.New("db down")).Once()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history?group=room&limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got []models.GameRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID, got[0].ID)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history?limit=5000", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	store.AssertExpectations(t)
}

func TestGetHistory(t *testing.T) {
	store := &mockStore{}
	_, router := newTestRouter(t, store)
	known := models.GameRecord{ID: uuid.New(), GroupID: "room"}
	missing := uuid.New()

	store.On("GetGame", mock.Anything, known.ID).Return(known, nil).Once()
	store.On("GetGame", mock.Anything, missing).Return(models.GameRecord{}, database.ErrGameNotFound).Once()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history/"+known.ID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got models.GameRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, known.ID, got.ID)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history/"+missing.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	store.AssertExpectations(t)
}

type frame struct {
	S int             `json:"s"`
	C string          `json:"c"`
	D json.RawMessage `json:"d"`
}

func readFrame(t *testing.T, ctx context.Context, c *websocket.Conn) frame {
	t.Helper()
	typ, data, err := c.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, typ)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func writeFrame(t *testing.T, ctx context.Context, c *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(raw)))
}

func TestWebSocketSession(t *testing.T) {
	reg, router := newTestRouter(t, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{Subprotocol}})
	require.NoError(t, err)
	defer c.CloseNow()

	start := readFrame(t, ctx, c)
	assert.Equal(t, 1, start.S)
	assert.Equal(t, "CONNECT_START", start.C)

	writeFrame(t, ctx, c, `{"c":"CONNECT","d":{"name":"alice"}}`)
	hello := readFrame(t, ctx, c)
	require.Equal(t, "HELLO", hello.C)
	var me struct {
		UID     string  `json:"uid"`
		Name    string  `json:"name"`
		Group   *string `json:"group"`
		Session string  `json:"session"`
	}
	require.NoError(t, json.Unmarshal(hello.D, &me))
	assert.Equal(t, "alice", me.Name)
	assert.Nil(t, me.Group)
	assert.NotEmpty(t, me.Session)
	assert.Len(t, reg.Sessions(), 1)

	writeFrame(t, ctx, c, `{"c":"JOIN_GROUP","d":{"group":"room"}}`)
	joined := readFrame(t, ctx, c)
	assert.Equal(t, 1, joined.S)
	assert.Equal(t, "GROUP_JOIN", joined.C)

	writeFrame(t, ctx, c, `{"c":"CHAT_MESSAGE","d":{"message":"  hi there "}}`)
	chat := readFrame(t, ctx, c)
	require.Equal(t, "CHAT_MESSAGE", chat.C)
	var msg struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(chat.D, &msg))
	assert.Equal(t, "hi there", msg.Message)

	writeFrame(t, ctx, c, `{"c":"GAME_START"}`)
	refused := readFrame(t, ctx, c)
	assert.Equal(t, 0, refused.S)
	assert.Equal(t, "CANT_START", refused.C)

	writeFrame(t, ctx, c, `not json`)
	bad := readFrame(t, ctx, c)
	assert.Equal(t, 0, bad.S)
	assert.Equal(t, "INVALID_JSON", bad.C)

	writeFrame(t, ctx, c, `{"c":"CLOSE_CONNECTION"}`)
	for err == nil {
		_, _, err = c.Read(ctx)
	}
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))

	require.Eventually(t, func() bool { return len(reg.Sessions()) == 0 }, time.Second, 10*time.Millisecond)
	_, ok := reg.Group("room")
	assert.False(t, ok, "empty group is destroyed when its last member leaves")
}
