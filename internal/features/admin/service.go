// Package admin — service.go проверяет права и ведёт сессии в памяти.
// Сессии и счётчик попыток сбрасываются при перезапуске.
package admin

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-bot/internal/clock"
	"serotonyl.ru/reputation-bot/internal/common"
)

// Service управляет доступом к админ-командам.
type Service struct {
	clock        clock.Clock
	passwordHash string
	adminIDs     map[int64]bool

	mu       sync.Mutex
	sessions map[int64]Session
	failures map[int64][]time.Time
}

// NewService создаёт сервис. Пустой passwordHash отключает вход по паролю.
func NewService(clk clock.Clock, passwordHash string, adminIDs []int64) *Service {
	ids := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = true
	}
	return &Service{
		clock:        clk,
		passwordHash: passwordHash,
		adminIDs:     ids,
		sessions:     make(map[int64]Session),
		failures:     make(map[int64][]time.Time),
	}
}

// Login проверяет пароль и открывает сессию.
// 3 неудачные попытки за час блокируют вход до конца окна.
func (s *Service) Login(userID int64, password string) (Session, error) {
	if s.passwordHash == "" {
		return Session{}, common.ErrNotAdmin
	}

	now := s.clock.Now()
	s.mu.Lock()
	recent := s.recentFailures(userID, now)
	s.mu.Unlock()
	if recent >= MaxAttempts {
		log.WithField("user_id", userID).Warn("Вход заблокирован: слишком много попыток")
		return Session{}, common.ErrTooManyAttempts
	}

	// argon2 считается без блокировки
	ok := verifyArgon2id(password, s.passwordHash)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		s.failures[userID] = append(s.failures[userID], now)
		log.WithField("user_id", userID).Warn("Неверный пароль администратора")
		return Session{}, common.ErrWrongPassword
	}

	delete(s.failures, userID)
	sess := Session{UserID: userID, AuthenticatedAt: now, ExpiresAt: now.Add(SessionTTL)}
	s.sessions[userID] = sess
	log.WithField("user_id", userID).Info("Администратор вошёл")
	return sess, nil
}

// recentFailures считает неудачи в окне и выбрасывает старые. Вызывать под mu.
func (s *Service) recentFailures(userID int64, now time.Time) int {
	list := s.failures[userID]
	kept := list[:0]
	for _, t := range list {
		if now.Sub(t) < AttemptWindow {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(s.failures, userID)
		return 0
	}
	s.failures[userID] = kept
	return len(kept)
}

// Logout закрывает сессию.
func (s *Service) Logout(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// IsAdmin сообщает, может ли пользователь выполнять админ-команды.
func (s *Service) IsAdmin(userID int64) bool {
	if s.adminIDs[userID] {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return false
	}
	if !sess.ExpiresAt.After(s.clock.Now()) {
		delete(s.sessions, userID)
		return false
	}
	return true
}

// Require возвращает ErrNotAdmin, если пользователь не администратор.
func (s *Service) Require(userID int64) error {
	if !s.IsAdmin(userID) {
		return common.ErrNotAdmin
	}
	return nil
}
