// Package channels — repository.go работает с таблицей monitored_channels.
package channels

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository — реализация Store поверх PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий каналов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SaveChannel добавляет канал. Повторное добавление ничего не меняет.
func (r *Repository) SaveChannel(ctx context.Context, ch *Channel) error {
	query := `
		INSERT INTO monitored_channels (community_id, channel_id, kind, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (community_id, channel_id, kind) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, ch.CommunityID, ch.ChannelID, string(ch.Kind), ch.CreatedAt); err != nil {
		return fmt.Errorf("ошибка добавления канала: %w", err)
	}
	return nil
}

// DeleteChannel удаляет канал. Возвращает false, если его не было.
func (r *Repository) DeleteChannel(ctx context.Context, communityID, channelID int64, kind Kind) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM monitored_channels WHERE community_id = $1 AND channel_id = $2 AND kind = $3`,
		communityID, channelID, string(kind),
	)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления канала: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListChannels возвращает все отслеживаемые каналы.
func (r *Repository) ListChannels(ctx context.Context) ([]*Channel, error) {
	rows, err := r.db.Query(ctx, `
		SELECT community_id, channel_id, kind, created_at
		FROM monitored_channels
		ORDER BY community_id, channel_id, kind
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения каналов: %w", err)
	}
	defer rows.Close()

	var out []*Channel
	for rows.Next() {
		var ch Channel
		var kind string
		if err := rows.Scan(&ch.CommunityID, &ch.ChannelID, &kind, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования канала: %w", err)
		}
		ch.Kind = Kind(kind)
		out = append(out, &ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения каналов: %w", err)
	}
	return out, nil
}
