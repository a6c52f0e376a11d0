// Package score — service.go содержит единственную точку коммита счёта.
package score

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-bot/internal/clock"
	"serotonyl.ru/reputation-bot/internal/common"
)

// Store — контракт постоянного хранилища счёта.
type Store interface {
	// GetScore возвращает запись или nil, если счёт ещё не создавался.
	GetScore(ctx context.Context, userID, communityID int64) (*Record, error)
	// SaveChange сохраняет новый счёт и добавляет запись истории в одной транзакции.
	SaveChange(ctx context.Context, rec *Record, entry *HistoryEntry) error
	// GetHistory возвращает историю, новые записи первыми.
	GetHistory(ctx context.Context, userID, communityID int64, limit int) ([]*HistoryEntry, error)
	// GetLeaderboard сортирует по убыванию счёта. GlobalCommunity суммирует по сообществам.
	GetLeaderboard(ctx context.Context, communityID int64, limit int) ([]*LeaderboardEntry, error)
	GetAggregateStats(ctx context.Context, communityID int64) (*AggregateStats, error)
}

// Ledger — единственный компонент, который меняет счёт.
// Изменения одного ключа сериализуются, разные ключи идут параллельно.
type Ledger struct {
	store Store
	clock clock.Clock
	locks *common.KeyedMutex[Key]
}

// NewLedger создаёт реестр счёта.
func NewLedger(store Store, clk clock.Clock) *Ledger {
	return &Ledger{
		store: store,
		clock: clk,
		locks: common.NewKeyedMutex[Key](),
	}
}

// UpdateScore применяет УЖЕ трансформированную дельту: читает счёт,
// прибавляет дельту, сохраняет счёт и запись истории. Ошибки хранилища
// возвращаются вызывающему.
func (l *Ledger) UpdateScore(ctx context.Context, u Update) (Change, error) {
	key := Key{UserID: u.UserID, CommunityID: u.CommunityID}
	unlock := l.locks.Lock(key)
	defer unlock()

	rec, err := l.store.GetScore(ctx, u.UserID, u.CommunityID)
	if err != nil {
		return Change{}, fmt.Errorf("ошибка чтения счёта: %w", err)
	}
	if rec == nil {
		rec = &Record{UserID: u.UserID, CommunityID: u.CommunityID}
	}

	change := Change{
		UserID:      u.UserID,
		CommunityID: u.CommunityID,
		DisplayName: rec.DisplayName,
		NewScore:    rec.Score,
		Delta:       u.Delta,
		RawDelta:    u.Delta,
		Reason:      u.Reason,
	}
	if u.DisplayName != "" {
		change.DisplayName = u.DisplayName
	}

	if u.Delta == 0 && !u.KeepZero {
		return change, nil
	}

	now := l.clock.Now().UTC()
	previous := rec.Score
	updated := *rec
	updated.Score = previous + u.Delta
	updated.TotalChanges++
	updated.LastUpdated = now
	updated.DisplayName = change.DisplayName

	entry := &HistoryEntry{
		UserID:        u.UserID,
		CommunityID:   u.CommunityID,
		Delta:         u.Delta,
		PreviousScore: previous,
		NewScore:      updated.Score,
		Reason:        u.Reason,
		SourceSnippet: common.Truncate(u.SourceSnippet, snippetLimit),
		CreatedAt:     now,
	}

	if err := l.store.SaveChange(ctx, &updated, entry); err != nil {
		return Change{}, fmt.Errorf("ошибка сохранения счёта: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id":      u.UserID,
		"community_id": u.CommunityID,
		"delta":        u.Delta,
		"new_score":    updated.Score,
		"reason":       u.Reason,
	}).Debug("Счёт обновлён")

	change.NewScore = updated.Score
	change.Committed = true
	return change, nil
}

// GetScore возвращает счёт; отсутствие записи — 0.
func (l *Ledger) GetScore(ctx context.Context, userID, communityID int64) (int64, error) {
	rec, err := l.store.GetScore(ctx, userID, communityID)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения счёта: %w", err)
	}
	if rec == nil {
		return 0, nil
	}
	return rec.Score, nil
}

// GetHistory возвращает последние limit изменений, новые первыми.
func (l *Ledger) GetHistory(ctx context.Context, userID, communityID int64, limit int) ([]*HistoryEntry, error) {
	if limit <= 0 {
		return nil, common.ErrInvalidLimit
	}
	return l.store.GetHistory(ctx, userID, communityID, limit)
}

// GetLeaderboard возвращает топ сообщества (или глобальный при GlobalCommunity).
func (l *Ledger) GetLeaderboard(ctx context.Context, communityID int64, limit int) ([]*LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, common.ErrInvalidLimit
	}
	return l.store.GetLeaderboard(ctx, communityID, limit)
}

// GetAggregateStats возвращает сводку по сообществу.
func (l *Ledger) GetAggregateStats(ctx context.Context, communityID int64) (*AggregateStats, error) {
	return l.store.GetAggregateStats(ctx, communityID)
}
