package database

import (
	"context"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/catchphrase/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var store *Store

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("catchphrase"),
		postgres.WithUsername("catchphrase"),
		postgres.WithPassword("catchphrase"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		// No Docker: nothing in this package can run.
		os.Stderr.WriteString("skipping database tests: " + err.Error() + "\n")
		os.Exit(0)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}
	if err := Migrate(url); err != nil {
		panic(err)
	}
	store, err = Connect(ctx, url)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	store.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func sampleGame(gid string, ended time.Time) models.GameRecord {
	alice := models.MemberInfo{UID: uuid.NewString(), Name: "alice"}
	bob := models.MemberInfo{UID: uuid.NewString(), Name: "bob"}
	carol := models.MemberInfo{UID: uuid.NewString(), Name: "carol"}
	dave := models.MemberInfo{UID: uuid.NewString(), Name: "dave"}
	return models.GameRecord{
		ID:         uuid.New(),
		GroupID:    gid,
		RoundCount: 1,
		StartedAt:  ended.Add(-time.Minute).UTC().Truncate(time.Microsecond),
		EndedAt:    ended.UTC().Truncate(time.Microsecond),
		Teams: []models.TeamResult{
			{Index: 0, Members: []models.MemberInfo{alice, bob}, Score: 2},
			{Index: 1, Members: []models.MemberInfo{carol, dave}, Score: 0, Forfeited: true},
		},
		Rounds: []models.RoundRecord{{
			Number: 1, Team: 0, Questioner: alice, Answerer: bob, Score: 2,
			Words: []models.WordRecord{
				{Word: "apple", Scored: true}, {Word: "banana", Scored: true},
				{Word: "cherry"}, {Word: "date"}, {Word: "fig"},
			},
		}},
	}
}

func TestRecordAndLoadGame(t *testing.T) {
	ctx := context.Background()
	rec := sampleGame("room-a", time.Now())

	n, err := store.RecordGames(ctx, []models.GameRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetGame(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.GroupID, got.GroupID)
	assert.True(t, rec.EndedAt.Equal(got.EndedAt))
	assert.Equal(t, rec.Teams, got.Teams)
	assert.Equal(t, rec.Rounds, got.Rounds)
}

func TestRecordGamesSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	rec := sampleGame("room-b", time.Now())

	n, err := store.RecordGames(ctx, []models.GameRecord{rec, rec})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecentGames(t *testing.T) {
	ctx := context.Background()
	base := time.Now().Add(time.Hour)
	older := sampleGame("room-c", base)
	newer := sampleGame("room-c", base.Add(time.Minute))
	_, err := store.RecordGames(ctx, []models.GameRecord{older, newer})
	require.NoError(t, err)

	recs, err := store.RecentGames(ctx, "room-c", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, newer.ID, recs[0].ID)
	assert.Equal(t, older.ID, recs[1].ID)
	assert.Len(t, recs[0].Rounds, 1)

	all, err := store.RecentGames(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetGameNotFound(t *testing.T) {
	_, err := store.GetGame(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrGameNotFound)
}
