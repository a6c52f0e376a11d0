// Package scoretest содержит хранилище счёта в памяти для тестов.
package scoretest

import (
	"context"
	"sort"
	"sync"

	"serotonyl.ru/reputation-bot/internal/features/score"
)

// MemStore — потокобезопасная реализация score.Store в памяти.
type MemStore struct {
	mu      sync.Mutex
	records map[score.Key]score.Record
	history []score.HistoryEntry
	nextID  int64

	// Err, если задан, возвращается из SaveChange.
	Err error
}

// NewMemStore создаёт пустое хранилище.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[score.Key]score.Record)}
}

func (m *MemStore) GetScore(_ context.Context, userID, communityID int64) (*score.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[score.Key{UserID: userID, CommunityID: communityID}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemStore) SaveChange(_ context.Context, rec *score.Record, entry *score.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.records[score.Key{UserID: rec.UserID, CommunityID: rec.CommunityID}] = *rec
	m.nextID++
	entry.ID = m.nextID
	m.history = append(m.history, *entry)
	return nil
}

func (m *MemStore) GetHistory(_ context.Context, userID, communityID int64, limit int) ([]*score.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*score.HistoryEntry
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.history[i]
		if e.UserID == userID && e.CommunityID == communityID {
			out = append(out, &e)
		}
	}
	return out, nil
}

func (m *MemStore) GetLeaderboard(_ context.Context, communityID int64, limit int) ([]*score.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := make(map[int64]*score.LeaderboardEntry)
	for key, rec := range m.records {
		if communityID != score.GlobalCommunity && key.CommunityID != communityID {
			continue
		}
		e, ok := totals[key.UserID]
		if !ok {
			e = &score.LeaderboardEntry{UserID: key.UserID, DisplayName: rec.DisplayName}
			totals[key.UserID] = e
		}
		e.Score += rec.Score
	}
	out := make([]*score.LeaderboardEntry, 0, len(totals))
	for _, e := range totals {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) GetAggregateStats(_ context.Context, communityID int64) (*score.AggregateStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s score.AggregateStats
	var sum int64
	for key, rec := range m.records {
		if key.CommunityID != communityID {
			continue
		}
		if s.Count == 0 || rec.Score > s.Max {
			s.Max = rec.Score
		}
		if s.Count == 0 || rec.Score < s.Min {
			s.Min = rec.Score
		}
		s.Count++
		sum += rec.Score
		s.TotalChanges += rec.TotalChanges
	}
	if s.Count > 0 {
		s.Mean = float64(sum) / float64(s.Count)
	}
	return &s, nil
}

// History возвращает копию всей истории в порядке записи.
func (m *MemStore) History() []score.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]score.HistoryEntry(nil), m.history...)
}
