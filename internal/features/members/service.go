// Package members — service.go хранит состав сообществ.
// Квотная мини-игра награждает «присутствующих» участников, поэтому
// состав обновляется из вступлений, выходов и любых сообщений.
package members

import (
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-bot/internal/clock"
)

type key struct {
	community int64
	user      int64
}

// Roster — состав участников по сообществам.
type Roster struct {
	clock clock.Clock

	mu      sync.RWMutex
	members map[key]*Member
}

// NewRoster создаёт пустой состав.
func NewRoster(clk clock.Clock) *Roster {
	return &Roster{clock: clk, members: make(map[key]*Member)}
}

// Join регистрирует вступление. Повторное вступление обновляет имя и
// снова помечает участника присутствующим.
func (r *Roster) Join(communityID int64, p Profile) {
	r.upsert(communityID, p)
	log.WithFields(log.Fields{
		"user_id":      p.UserID,
		"community_id": communityID,
		"username":     p.Username,
	}).Info("Участник вступил в сообщество")
}

// Touch отмечает активность. Автор сообщения всегда присутствует,
// даже если бот не видел его вступления.
func (r *Roster) Touch(communityID int64, p Profile) {
	r.upsert(communityID, p)
}

func (r *Roster) upsert(communityID int64, p Profile) {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{communityID, p.UserID}
	m, ok := r.members[k]
	if !ok {
		m = &Member{UserID: p.UserID, CommunityID: communityID, JoinedAt: now}
		r.members[k] = m
	}
	m.Username = p.Username
	m.FirstName = p.FirstName
	m.LastName = p.LastName
	m.IsBot = p.IsBot
	m.Present = true
	m.LastSeen = now
}

// Leave помечает участника ушедшим. Запись остаётся ради имени.
func (r *Roster) Leave(communityID, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[key{communityID, userID}]; ok {
		m.Present = false
		log.WithFields(log.Fields{
			"user_id":      userID,
			"community_id": communityID,
		}).Info("Участник покинул сообщество")
	}
}

// PresentMembers возвращает ID присутствующих участников-людей по возрастанию.
func (r *Roster) PresentMembers(communityID int64) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []int64
	for k, m := range r.members {
		if k.community == communityID && m.Present && !m.IsBot {
			ids = append(ids, k.user)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DisplayName возвращает имя участника или пустую строку, если он неизвестен.
func (r *Roster) DisplayName(communityID, userID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.members[key{communityID, userID}]; ok {
		return m.DisplayName()
	}
	return ""
}

// Get возвращает копию записи участника.
func (r *Roster) Get(communityID, userID int64) (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[key{communityID, userID}]
	if !ok {
		return Member{}, false
	}
	return *m, true
}
