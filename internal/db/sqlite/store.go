// Package sqlite — хранилище для небольших установок без PostgreSQL.
// Реализует score.Store и channels.Store поверх одного файла SQLite.
// Время хранится в миллисекундах UTC.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"serotonyl.ru/reputation-bot/internal/features/channels"
	"serotonyl.ru/reputation-bot/internal/features/score"
)

const schema = `
CREATE TABLE IF NOT EXISTS scores (
	user_id       INTEGER NOT NULL,
	community_id  INTEGER NOT NULL,
	display_name  TEXT    NOT NULL DEFAULT '',
	score         INTEGER NOT NULL DEFAULT 0,
	total_changes INTEGER NOT NULL DEFAULT 0,
	last_updated  INTEGER NOT NULL,
	PRIMARY KEY (user_id, community_id)
);
CREATE TABLE IF NOT EXISTS score_history (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id        INTEGER NOT NULL,
	community_id   INTEGER NOT NULL,
	delta          INTEGER NOT NULL,
	previous_score INTEGER NOT NULL,
	new_score      INTEGER NOT NULL,
	reason         TEXT    NOT NULL DEFAULT '',
	source_snippet TEXT    NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_score_history_user ON score_history (user_id, community_id, id DESC);
CREATE TABLE IF NOT EXISTS monitored_channels (
	community_id INTEGER NOT NULL,
	channel_id   INTEGER NOT NULL,
	kind         TEXT    NOT NULL,
	created_at   INTEGER NOT NULL,
	PRIMARY KEY (community_id, channel_id, kind)
);`

// Store — хранилище SQLite.
type Store struct {
	db *sqlx.DB
}

// Open открывает (или создаёт) базу и схему. ":memory:" подходит для тестов.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("путь к SQLite не задан")
	}
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к SQLite: %w", err)
	}
	// один писатель; заодно ":memory:" остаётся одной базой
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка настройки SQLite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка создания схемы: %w", err)
	}

	log.WithField("path", path).Info("Хранилище SQLite открыто")
	return &Store{db: db}, nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

type scoreRow struct {
	UserID       int64  `db:"user_id"`
	CommunityID  int64  `db:"community_id"`
	DisplayName  string `db:"display_name"`
	Score        int64  `db:"score"`
	TotalChanges int64  `db:"total_changes"`
	LastUpdated  int64  `db:"last_updated"`
}

type historyRow struct {
	ID            int64  `db:"id"`
	UserID        int64  `db:"user_id"`
	CommunityID   int64  `db:"community_id"`
	Delta         int64  `db:"delta"`
	PreviousScore int64  `db:"previous_score"`
	NewScore      int64  `db:"new_score"`
	Reason        string `db:"reason"`
	SourceSnippet string `db:"source_snippet"`
	CreatedAt     int64  `db:"created_at"`
}

type channelRow struct {
	CommunityID int64  `db:"community_id"`
	ChannelID   int64  `db:"channel_id"`
	Kind        string `db:"kind"`
	CreatedAt   int64  `db:"created_at"`
}

// GetScore возвращает запись счёта или nil.
func (s *Store) GetScore(ctx context.Context, userID, communityID int64) (*score.Record, error) {
	var row scoreRow
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, community_id, display_name, score, total_changes, last_updated
		FROM scores WHERE user_id = ? AND community_id = ?`, userID, communityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения счёта (user_id=%d): %w", userID, err)
	}
	return &score.Record{
		UserID:       row.UserID,
		CommunityID:  row.CommunityID,
		DisplayName:  row.DisplayName,
		Score:        row.Score,
		TotalChanges: row.TotalChanges,
		LastUpdated:  fromMillis(row.LastUpdated),
	}, nil
}

// SaveChange записывает счёт и строку истории в одной транзакции.
func (s *Store) SaveChange(ctx context.Context, rec *score.Record, entry *score.HistoryEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scores (user_id, community_id, display_name, score, total_changes, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, community_id) DO UPDATE
		SET display_name = excluded.display_name,
		    score = excluded.score,
		    total_changes = excluded.total_changes,
		    last_updated = excluded.last_updated`,
		rec.UserID, rec.CommunityID, rec.DisplayName, rec.Score, rec.TotalChanges, toMillis(rec.LastUpdated))
	if err != nil {
		return fmt.Errorf("ошибка записи счёта: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO score_history (user_id, community_id, delta, previous_score, new_score, reason, source_snippet, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.CommunityID, entry.Delta, entry.PreviousScore, entry.NewScore,
		entry.Reason, entry.SourceSnippet, toMillis(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("ошибка записи истории: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("ошибка получения id истории: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	entry.ID = id
	return nil
}

// GetHistory возвращает последние limit записей, новые первыми.
func (s *Store) GetHistory(ctx context.Context, userID, communityID int64, limit int) ([]*score.HistoryEntry, error) {
	var rows []historyRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, community_id, delta, previous_score, new_score, reason, source_snippet, created_at
		FROM score_history
		WHERE user_id = ? AND community_id = ?
		ORDER BY id DESC
		LIMIT ?`, userID, communityID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w", err)
	}

	out := make([]*score.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, &score.HistoryEntry{
			ID:            r.ID,
			UserID:        r.UserID,
			CommunityID:   r.CommunityID,
			Delta:         r.Delta,
			PreviousScore: r.PreviousScore,
			NewScore:      r.NewScore,
			Reason:        r.Reason,
			SourceSnippet: r.SourceSnippet,
			CreatedAt:     fromMillis(r.CreatedAt),
		})
	}
	return out, nil
}

// GetLeaderboard возвращает топ по убыванию счёта.
func (s *Store) GetLeaderboard(ctx context.Context, communityID int64, limit int) ([]*score.LeaderboardEntry, error) {
	query := `
		SELECT user_id, display_name, score
		FROM scores
		WHERE community_id = ?
		ORDER BY score DESC, user_id
		LIMIT ?`
	args := []interface{}{communityID, limit}
	if communityID == score.GlobalCommunity {
		query = `
			SELECT user_id, MAX(display_name) AS display_name, SUM(score) AS score
			FROM scores
			GROUP BY user_id
			ORDER BY score DESC, user_id
			LIMIT ?`
		args = []interface{}{limit}
	}

	var out []*score.LeaderboardEntry
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("ошибка получения таблицы лидеров: %w", err)
	}
	return out, nil
}

// GetAggregateStats считает сводку по сообществу.
func (s *Store) GetAggregateStats(ctx context.Context, communityID int64) (*score.AggregateStats, error) {
	var st score.AggregateStats
	err := s.db.GetContext(ctx, &st, `
		SELECT COUNT(*) AS count,
		       CAST(COALESCE(AVG(score), 0) AS REAL) AS mean,
		       COALESCE(MAX(score), 0) AS max,
		       COALESCE(MIN(score), 0) AS min,
		       COALESCE(SUM(total_changes), 0) AS total_changes
		FROM scores WHERE community_id = ?`, communityID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	return &st, nil
}

// SaveChannel добавляет канал. Повторное добавление ничего не меняет.
func (s *Store) SaveChannel(ctx context.Context, ch *channels.Channel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monitored_channels (community_id, channel_id, kind, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (community_id, channel_id, kind) DO NOTHING`,
		ch.CommunityID, ch.ChannelID, string(ch.Kind), toMillis(ch.CreatedAt))
	if err != nil {
		return fmt.Errorf("ошибка добавления канала: %w", err)
	}
	return nil
}

// DeleteChannel удаляет канал. false, если его не было.
func (s *Store) DeleteChannel(ctx context.Context, communityID, channelID int64, kind channels.Kind) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM monitored_channels WHERE community_id = ? AND channel_id = ? AND kind = ?`,
		communityID, channelID, string(kind))
	if err != nil {
		return false, fmt.Errorf("ошибка удаления канала: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ошибка удаления канала: %w", err)
	}
	return n > 0, nil
}

// ListChannels возвращает все отслеживаемые каналы.
func (s *Store) ListChannels(ctx context.Context) ([]*channels.Channel, error) {
	var rows []channelRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT community_id, channel_id, kind, created_at
		FROM monitored_channels
		ORDER BY community_id, channel_id, kind`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения каналов: %w", err)
	}

	out := make([]*channels.Channel, 0, len(rows))
	for _, r := range rows {
		out = append(out, &channels.Channel{
			CommunityID: r.CommunityID,
			ChannelID:   r.ChannelID,
			Kind:        channels.Kind(r.Kind),
			CreatedAt:   fromMillis(r.CreatedAt),
		})
	}
	return out, nil
}
