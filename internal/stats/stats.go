// internal/stats/stats.go
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/AndrioCelos/unobot/internal/models"
)

// GetPlayerStats loads a player's record, returning a fresh zero record if
// they have never been seen.
func GetPlayerStats(ctx context.Context, name string) (*models.PlayerStats, error) {
	s := &models.PlayerStats{Name: name}
	q := `
	SELECT points, wins, losses, current_streak, best_streak, best_streak_at
	FROM player_stats
	WHERE name=$1
	`
	err := DB.QueryRow(ctx, q, name).Scan(
		&s.Points, &s.Wins, &s.Losses,
		&s.CurrentStreak, &s.BestStreak, &s.BestStreakAt,
	)
	if err == pgx.ErrNoRows {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stats for %s: %w", name, err)
	}

	rows, err := DB.Query(ctx, `SELECT quit_at FROM player_quits WHERE name=$1 ORDER BY quit_at`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load quit history for %s: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		s.RecentQuits = append(s.RecentQuits, t)
	}
	return s, rows.Err()
}

// SavePlayerStats upserts a player's record and rewrites their quit
// history in one transaction.
func SavePlayerStats(ctx context.Context, s *models.PlayerStats) error {
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
		INSERT INTO player_stats (name, points, wins, losses, current_streak, best_streak, best_streak_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO UPDATE SET
			points=$2, wins=$3, losses=$4, current_streak=$5, best_streak=$6, best_streak_at=$7
		`
		if _, err := tx.Exec(ctx, q,
			s.Name, s.Points, s.Wins, s.Losses,
			s.CurrentStreak, s.BestStreak, s.BestStreakAt,
		); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM player_quits WHERE name=$1`, s.Name); err != nil {
			return err
		}
		for _, t := range s.RecentQuits {
			if _, err := tx.Exec(ctx, `INSERT INTO player_quits (name, quit_at) VALUES ($1, $2)`, s.Name, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save stats for %s: %w", s.Name, err)
	}
	return nil
}

// RecordRound logs a finished round and applies each player's point delta
// in one transaction.
func RecordRound(ctx context.Context, gameID uuid.UUID, room string, totals map[string]int, startedAt time.Time) error {
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `INSERT INTO rounds (id, room, started_at, ended_at) VALUES ($1, $2, $3, $4)`
		if _, err := tx.Exec(ctx, q, gameID, room, startedAt, time.Now()); err != nil {
			return err
		}
		for name, points := range totals {
			if _, err := tx.Exec(ctx, `
				INSERT INTO round_results (round_id, name, points) VALUES ($1, $2, $3)
			`, gameID, name, points); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO player_stats (name, points) VALUES ($1, $2)
				ON CONFLICT (name) DO UPDATE SET points = player_stats.points + $2
			`, name, points); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record round %s: %w", gameID, err)
	}
	return nil
}

// LeaderboardEntry is one row of the points leaderboard.
type LeaderboardEntry struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
}

// Leaderboard returns the top n players by lifetime points.
func Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	rows, err := DB.Query(ctx, `
		SELECT name, points, wins, losses
		FROM player_stats
		ORDER BY points DESC, wins DESC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Name, &e.Points, &e.Wins, &e.Losses); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
