// Package channels — service.go держит копию настроек в памяти, чтобы
// проверка «слушаем ли это сообщество» не ходила в БД на каждое сообщение.
package channels

import (
	"context"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-bot/internal/clock"
	"serotonyl.ru/reputation-bot/internal/common"
)

// Store — хранилище настроек мониторинга.
type Store interface {
	SaveChannel(ctx context.Context, ch *Channel) error
	DeleteChannel(ctx context.Context, communityID, channelID int64, kind Kind) (bool, error)
	ListChannels(ctx context.Context) ([]*Channel, error)
}

type channelKey struct {
	channel int64
	kind    Kind
}

// Service — настройки мониторинга со сквозной записью в Store.
type Service struct {
	store Store
	clock clock.Clock

	mu          sync.RWMutex
	communities map[int64]map[channelKey]Channel
}

// NewService создаёт сервис. Перед работой нужно вызвать Load.
func NewService(store Store, clk clock.Clock) *Service {
	return &Service{
		store:       store,
		clock:       clk,
		communities: make(map[int64]map[channelKey]Channel),
	}
}

// Load читает настройки из хранилища.
func (s *Service) Load(ctx context.Context) error {
	list, err := s.store.ListChannels(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.communities = make(map[int64]map[channelKey]Channel)
	for _, ch := range list {
		s.put(*ch)
	}
	log.WithField("channels", len(list)).Info("Настройки мониторинга загружены")
	return nil
}

func (s *Service) put(ch Channel) {
	m, ok := s.communities[ch.CommunityID]
	if !ok {
		m = make(map[channelKey]Channel)
		s.communities[ch.CommunityID] = m
	}
	m[channelKey{ch.ChannelID, ch.Kind}] = ch
}

// Monitor начинает отслеживать канал.
func (s *Service) Monitor(ctx context.Context, communityID, channelID int64, kind Kind) error {
	if !kind.Valid() {
		return common.ErrUnknownChannelKind
	}
	ch := Channel{
		CommunityID: communityID,
		ChannelID:   channelID,
		Kind:        kind,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.store.SaveChannel(ctx, &ch); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.communities[communityID][channelKey{channelID, kind}]; !exists {
		s.put(ch)
	}
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"community_id": communityID,
		"channel_id":   channelID,
		"kind":         kind,
	}).Info("Канал добавлен в мониторинг")
	return nil
}

// Unmonitor перестаёт отслеживать канал. Возвращает false, если он не отслеживался.
func (s *Service) Unmonitor(ctx context.Context, communityID, channelID int64, kind Kind) (bool, error) {
	if !kind.Valid() {
		return false, common.ErrUnknownChannelKind
	}
	removed, err := s.store.DeleteChannel(ctx, communityID, channelID, kind)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if m, ok := s.communities[communityID]; ok {
		delete(m, channelKey{channelID, kind})
		if len(m) == 0 {
			delete(s.communities, communityID)
		}
	}
	s.mu.Unlock()

	return removed, nil
}

// List возвращает каналы сообщества, упорядоченные по ID.
func (s *Service) List(communityID int64) []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Channel, 0, len(s.communities[communityID]))
	for _, ch := range s.communities[communityID] {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChannelID != out[j].ChannelID {
			return out[i].ChannelID < out[j].ChannelID
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// IsMonitored сообщает, отслеживается ли хотя бы один канал сообщества.
func (s *Service) IsMonitored(communityID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.communities[communityID]) > 0
}

// ChannelsOfKind возвращает ID каналов заданного вида.
func (s *Service) ChannelsOfKind(communityID int64, kind Kind) []int64 {
	var ids []int64
	for _, ch := range s.List(communityID) {
		if ch.Kind == kind {
			ids = append(ids, ch.ChannelID)
		}
	}
	return ids
}

// Communities возвращает все сообщества с мониторингом.
func (s *Service) Communities() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.communities))
	for id := range s.communities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
