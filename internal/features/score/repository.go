// Package score — repository.go выполняет операции с таблицами scores и score_history.
// Изменение счёта и запись истории выполняются в одной транзакции БД.
package score

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository — реализация Store поверх PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий счёта.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetScore возвращает запись счёта или nil, если её нет.
func (r *Repository) GetScore(ctx context.Context, userID, communityID int64) (*Record, error) {
	query := `
		SELECT user_id, community_id, display_name, score, total_changes, last_updated
		FROM scores WHERE user_id = $1 AND community_id = $2
	`
	var rec Record
	err := r.db.QueryRow(ctx, query, userID, communityID).Scan(
		&rec.UserID, &rec.CommunityID, &rec.DisplayName,
		&rec.Score, &rec.TotalChanges, &rec.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения счёта (user_id=%d): %w", userID, err)
	}
	return &rec, nil
}

// SaveChange записывает счёт (upsert) и строку истории атомарно.
func (r *Repository) SaveChange(ctx context.Context, rec *Record, entry *HistoryEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO scores (user_id, community_id, display_name, score, total_changes, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, community_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    score = EXCLUDED.score,
		    total_changes = EXCLUDED.total_changes,
		    last_updated = EXCLUDED.last_updated
	`, rec.UserID, rec.CommunityID, rec.DisplayName, rec.Score, rec.TotalChanges, rec.LastUpdated)
	if err != nil {
		return fmt.Errorf("ошибка записи счёта: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO score_history (user_id, community_id, delta, previous_score, new_score, reason, source_snippet, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, entry.UserID, entry.CommunityID, entry.Delta, entry.PreviousScore, entry.NewScore,
		entry.Reason, entry.SourceSnippet, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("ошибка записи истории: %w", err)
	}

	return tx.Commit(ctx)
}

// GetHistory возвращает последние limit записей истории, новые первыми.
func (r *Repository) GetHistory(ctx context.Context, userID, communityID int64, limit int) ([]*HistoryEntry, error) {
	query := `
		SELECT id, user_id, community_id, delta, previous_score, new_score, reason, source_snippet, created_at
		FROM score_history
		WHERE user_id = $1 AND community_id = $2
		ORDER BY id DESC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, userID, communityID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w", err)
	}
	defer rows.Close()

	var out []*HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.CommunityID, &e.Delta, &e.PreviousScore,
			&e.NewScore, &e.Reason, &e.SourceSnippet, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования истории: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения истории: %w", err)
	}
	return out, nil
}

// GetLeaderboard возвращает топ по убыванию счёта.
func (r *Repository) GetLeaderboard(ctx context.Context, communityID int64, limit int) ([]*LeaderboardEntry, error) {
	query := `
		SELECT user_id, display_name, score
		FROM scores
		WHERE community_id = $1
		ORDER BY score DESC, user_id
		LIMIT $2
	`
	args := []interface{}{communityID, limit}
	if communityID == GlobalCommunity {
		query = `
			SELECT user_id, MAX(display_name), SUM(score)::BIGINT AS total
			FROM scores
			GROUP BY user_id
			ORDER BY total DESC, user_id
			LIMIT $1
		`
		args = []interface{}{limit}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения таблицы лидеров: %w", err)
	}
	defer rows.Close()

	var out []*LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.Score); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// GetAggregateStats считает количество, среднее, максимум, минимум и число изменений.
func (r *Repository) GetAggregateStats(ctx context.Context, communityID int64) (*AggregateStats, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(AVG(score), 0)::FLOAT8,
		       COALESCE(MAX(score), 0),
		       COALESCE(MIN(score), 0),
		       COALESCE(SUM(total_changes), 0)::BIGINT
		FROM scores WHERE community_id = $1
	`
	var s AggregateStats
	err := r.db.QueryRow(ctx, query, communityID).Scan(&s.Count, &s.Mean, &s.Max, &s.Min, &s.TotalChanges)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	return &s, nil
}
