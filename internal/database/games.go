// internal/database/games.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/catchphrase/internal/models"
)

// ErrGameNotFound is returned when no game has the requested id.
var ErrGameNotFound = errors.New("game not found")

// RecordGames persists a batch of finished games in one transaction. Games
// already stored are skipped, so redelivered records are harmless.
func (s *Store) RecordGames(ctx context.Context, recs []models.GameRecord) (int, error) {
	inserted := 0
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		inserted = 0
		for _, rec := range recs {
			ok, err := insertGameTx(ctx, tx, rec)
			if err != nil {
				return fmt.Errorf("insert game %s: %w", rec.ID, err)
			}
			if ok {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func insertGameTx(ctx context.Context, tx pgx.Tx, rec models.GameRecord) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO games (id, group_id, round_count, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, rec.GroupID, rec.RoundCount, rec.StartedAt, rec.EndedAt)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	for _, team := range rec.Teams {
		members, err := json.Marshal(team.Members)
		if err != nil {
			return false, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO game_teams (game_id, team_index, members, score, forfeited)
			VALUES ($1, $2, $3, $4, $5)
		`, rec.ID, team.Index, members, team.Score, team.Forfeited); err != nil {
			return false, err
		}
	}

	for _, r := range rec.Rounds {
		questioner, err := json.Marshal(r.Questioner)
		if err != nil {
			return false, err
		}
		answerer, err := json.Marshal(r.Answerer)
		if err != nil {
			return false, err
		}
		words, err := json.Marshal(r.Words)
		if err != nil {
			return false, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO game_rounds (game_id, round_number, team_index, questioner, answerer, words, score)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, rec.ID, r.Number, r.Team, questioner, answerer, words, r.Score); err != nil {
			return false, err
		}
	}
	return true, nil
}

// RecentGames returns the most recently finished games, newest first.
// An empty gid lists every group.
func (s *Store) RecentGames(ctx context.Context, gid string, limit int) ([]models.GameRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, group_id, round_count, started_at, ended_at
		FROM games
		WHERE $1 = '' OR group_id = $1
		ORDER BY ended_at DESC
		LIMIT $2
	`, gid, limit)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.GameRecord, error) {
		var rec models.GameRecord
		err := row.Scan(&rec.ID, &rec.GroupID, &rec.RoundCount, &rec.StartedAt, &rec.EndedAt)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan games: %w", err)
	}

	for i := range recs {
		if err := s.loadDetails(ctx, &recs[i]); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// GetGame loads one game with its teams and rounds.
func (s *Store) GetGame(ctx context.Context, id uuid.UUID) (models.GameRecord, error) {
	var rec models.GameRecord
	err := s.pool.QueryRow(ctx, `
		SELECT id, group_id, round_count, started_at, ended_at
		FROM games WHERE id = $1
	`, id).Scan(&rec.ID, &rec.GroupID, &rec.RoundCount, &rec.StartedAt, &rec.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, ErrGameNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("query game %s: %w", id, err)
	}
	if err := s.loadDetails(ctx, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func (s *Store) loadDetails(ctx context.Context, rec *models.GameRecord) error {
	teamRows, err := s.pool.Query(ctx, `
		SELECT team_index, members, score, forfeited
		FROM game_teams WHERE game_id = $1 ORDER BY team_index
	`, rec.ID)
	if err != nil {
		return fmt.Errorf("query teams for %s: %w", rec.ID, err)
	}
	rec.Teams, err = pgx.CollectRows(teamRows, func(row pgx.CollectableRow) (models.TeamResult, error) {
		var t models.TeamResult
		var members []byte
		if err := row.Scan(&t.Index, &members, &t.Score, &t.Forfeited); err != nil {
			return t, err
		}
		return t, json.Unmarshal(members, &t.Members)
	})
	if err != nil {
		return fmt.Errorf("scan teams for %s: %w", rec.ID, err)
	}

	roundRows, err := s.pool.Query(ctx, `
		SELECT round_number, team_index, questioner, answerer, words, score
		FROM game_rounds WHERE game_id = $1 ORDER BY round_number
	`, rec.ID)
	if err != nil {
		return fmt.Errorf("query rounds for %s: %w", rec.ID, err)
	}
	rec.Rounds, err = pgx.CollectRows(roundRows, func(row pgx.CollectableRow) (models.RoundRecord, error) {
		var r models.RoundRecord
		var questioner, answerer, words []byte
		if err := row.Scan(&r.Number, &r.Team, &questioner, &answerer, &words, &r.Score); err != nil {
			return r, err
		}
		if err := json.Unmarshal(questioner, &r.Questioner); err != nil {
			return r, err
		}
		if err := json.Unmarshal(answerer, &r.Answerer); err != nil {
			return r, err
		}
		return r, json.Unmarshal(words, &r.Words)
	})
	if err != nil {
		return fmt.Errorf("scan rounds for %s: %w", rec.ID, err)
	}
	return nil
}
