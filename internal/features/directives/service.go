// Package directives — service.go: трекер заданий. Состояние живёт в памяти
// процесса. Задания пользователя меняются только под его блокировкой,
// генератор и начисление наград вызываются без неё.
package directives

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-bot/internal/clock"
	"serotonyl.ru/reputation-bot/internal/common"
	"serotonyl.ru/reputation-bot/internal/features/activity"
	"serotonyl.ru/reputation-bot/internal/features/effects"
	"serotonyl.ru/reputation-bot/internal/features/score"
	"serotonyl.ru/reputation-bot/internal/generator"
)

// RerollCooldown — как часто можно заменить дневное задание.
const RerollCooldown = 24 * time.Hour

// Rewarder начисляет награды через общий путь изменения счёта.
type Rewarder interface {
	Apply(ctx context.Context, u score.Update) (score.Change, error)
}

// ScoreReader даёт текущий счёт для контекста генератора.
type ScoreReader interface {
	GetScore(ctx context.Context, userID, communityID int64) (int64, error)
}

// Generator придумывает задания.
type Generator interface {
	Task(ctx context.Context, kind string, rules generator.TaskRules, uc generator.Context) (*generator.Task, error)
}

// Emitter публикует активность (выполнение дневного задания).
type Emitter interface {
	Dispatch(ctx context.Context, n activity.Notification)
}

// Cooldowns — реестр эффектов для кулдауна замены задания.
type Cooldowns interface {
	TryApply(userID, communityID int64, t effects.Type, duration time.Duration, meta effects.Metadata) (string, effects.Cooldown, error)
}

// CompletionObserver узнаёт о выполненных заданиях (для уведомления пользователя).
type CompletionObserver interface {
	TrackerCompleted(ctx context.Context, t Tracker, change score.Change)
}

// Deps — зависимости трекера. Generator, Emitter, Cooldowns и Observer могут быть nil.
type Deps struct {
	Clock     clock.Clock
	Generator Generator
	Rewarder  Rewarder
	Scores    ScoreReader
	Emitter   Emitter
	Cooldowns Cooldowns
	Observer  CompletionObserver
	// Intn выбирает запасной шаблон и награду. nil — math/rand/v2.
	Intn func(n int) int
}

type counterKey struct {
	community int64
	kind      Kind
}

type userTrackers struct {
	trackers  []*Tracker
	completed map[counterKey]int
}

// Service — трекер дневных и недельных заданий.
type Service struct {
	deps  Deps
	locks *common.KeyedMutex[int64] // по пользователю

	mu    sync.Mutex // защищает только карту users
	users map[int64]*userTrackers
}

// NewService создаёт трекер.
func NewService(deps Deps) *Service {
	if deps.Intn == nil {
		deps.Intn = rand.IntN
	}
	return &Service{
		deps:  deps,
		locks: common.NewKeyedMutex[int64](),
		users: make(map[int64]*userTrackers),
	}
}

// user возвращает состояние пользователя. Вызывать под его блокировкой.
func (s *Service) user(userID int64, create bool) *userTrackers {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok && create {
		u = &userTrackers{completed: make(map[counterKey]int)}
		s.users[userID] = u
	}
	return u
}

// open возвращает невыполненное неистёкшее задание класса kind.
func (s *Service) open(userID, communityID int64, kind Kind) (Tracker, bool) {
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.openLocked(userID, communityID, kind)
}

func (s *Service) openLocked(userID, communityID int64, kind Kind) (Tracker, bool) {
	u := s.user(userID, false)
	if u == nil {
		return Tracker{}, false
	}
	now := s.deps.Clock.Now()
	for _, t := range u.trackers {
		if t.Kind == kind && t.CommunityID == communityID && t.Open(now) {
			return *t, true
		}
	}
	return Tracker{}, false
}

// GenerateDaily выдаёт дневное задание. Если открытое уже есть, возвращает его.
func (s *Service) GenerateDaily(ctx context.Context, userID, communityID int64, displayName string) (Tracker, bool) {
	return s.generate(ctx, Daily, userID, communityID, displayName)
}

// GenerateWeekly выдаёт недельную цель. Если открытая уже есть, возвращает её.
func (s *Service) GenerateWeekly(ctx context.Context, userID, communityID int64, displayName string) (Tracker, bool) {
	return s.generate(ctx, Weekly, userID, communityID, displayName)
}

func (s *Service) generate(ctx context.Context, kind Kind, userID, communityID int64, displayName string) (Tracker, bool) {
	if t, ok := s.open(userID, communityID, kind); ok {
		return t, false
	}

	t := s.compose(ctx, kind, userID, communityID, displayName)

	unlock := s.locks.Lock(userID)
	if existing, ok := s.openLocked(userID, communityID, kind); ok {
		unlock()
		return existing, false
	}
	now := s.deps.Clock.Now()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.ExpiresAt = now.Add(kind.lifetime())
	u := s.user(userID, true)
	u.trackers = append(u.trackers, &t)
	unlock()

	log.WithFields(log.Fields{
		"user_id":      userID,
		"community_id": communityID,
		"tracker_id":   t.ID,
		"kind":         kind,
		"task_type":    t.TaskType,
		"target":       t.Target,
		"generated":    t.Generated,
	}).Info("Выдано задание")

	return t, true
}

// Reroll заменяет открытое дневное задание новым не чаще раза в RerollCooldown.
// Без открытого задания возвращает ErrNothingToReroll и кулдаун не тратит.
func (s *Service) Reroll(ctx context.Context, userID, communityID int64, displayName string) (Tracker, error) {
	unlock := s.locks.Lock(userID)
	if _, ok := s.openLocked(userID, communityID, Daily); !ok {
		unlock()
		return Tracker{}, common.ErrNothingToReroll
	}

	if s.deps.Cooldowns != nil {
		_, cd, err := s.deps.Cooldowns.TryApply(userID, communityID, effects.TypeDirectiveRerollCooldown,
			RerollCooldown, effects.Metadata{Reason: fmt.Sprint(communityID)})
		if err != nil {
			unlock()
			return Tracker{}, fmt.Errorf("ошибка кулдауна замены задания: %w", err)
		}
		if cd.OnCooldown {
			unlock()
			return Tracker{}, fmt.Errorf("замена будет доступна через %s: %w", common.FormatDuration(cd.TimeLeft), common.ErrOnCooldown)
		}
	}

	now := s.deps.Clock.Now()
	u := s.user(userID, false)
	kept := u.trackers[:0]
	for _, t := range u.trackers {
		if t.Kind == Daily && t.CommunityID == communityID && t.Open(now) {
			continue
		}
		kept = append(kept, t)
	}
	u.trackers = kept
	unlock()

	t, _ := s.GenerateDaily(ctx, userID, communityID, displayName)
	return t, nil
}

// compose получает задание у генератора или берёт запасной шаблон.
func (s *Service) compose(ctx context.Context, kind Kind, userID, communityID int64, displayName string) Tracker {
	t := Tracker{Kind: kind, UserID: userID, CommunityID: communityID}

	if s.deps.Generator != nil {
		uc := s.userContext(ctx, userID, communityID, displayName)
		g, err := s.deps.Generator.Task(ctx, kind.Title(), kind.rules(), uc)
		if err == nil {
			t.TaskType = TaskType(g.TaskType)
			t.Description = g.Description
			t.Target = g.Target
			t.Reward = g.Reward
			t.Keywords = g.Keywords
			t.Generated = true
			return t
		}
		log.WithError(err).WithFields(log.Fields{
			"user_id": userID,
			"kind":    kind,
		}).Warn("Генератор заданий недоступен, берём запасной шаблон")
	}

	list := fallbackTemplates[kind]
	tpl := list[s.deps.Intn(len(list))]
	b := bounds[kind]
	t.TaskType = tpl.taskType
	t.Description = tpl.description
	t.Target = tpl.target
	t.Keywords = append([]string(nil), tpl.keywords...)
	t.Reward = b.min + int64(s.deps.Intn(int(b.max-b.min+1)))
	return t
}

func (s *Service) userContext(ctx context.Context, userID, communityID int64, displayName string) generator.Context {
	c := s.Counters(userID, communityID)
	uc := generator.Context{
		DisplayName:         displayName,
		CompletedDirectives: c.Daily,
		CompletedGoals:      c.Weekly,
	}
	if s.deps.Scores != nil {
		sc, err := s.deps.Scores.GetScore(ctx, userID, communityID)
		if err != nil {
			log.WithError(err).Warn("Не удалось прочитать счёт для генератора")
		}
		uc.Score = sc
	}
	var recent []string
	for _, t := range s.GetDaily(userID, communityID) {
		recent = append(recent, fmt.Sprintf("%s %d/%d", t.TaskType, t.Progress, t.Target))
	}
	uc.RecentActivity = strings.Join(recent, "; ")
	return uc
}

// HandleActivity подписывает трекер на диспетчер активности.
func (s *Service) HandleActivity(ctx context.Context, n activity.Notification) {
	s.RecordActivity(ctx, n.UserID, n.CommunityID, n.Type, n.Amount, n.Meta)
}

// RecordActivity продвигает подходящие открытые задания. Задание, впервые
// достигшее цели, помечается выполненным, и награда начисляется один раз.
func (s *Service) RecordActivity(ctx context.Context, userID, communityID int64, typ activity.Type, amount int64, meta activity.Meta) {
	unlock := s.locks.Lock(userID)
	u := s.user(userID, false)
	if u == nil {
		unlock()
		return
	}

	now := s.deps.Clock.Now()
	keyword := strings.ToLower(strings.TrimSpace(meta.Keyword))
	var done []Tracker
	for _, t := range u.trackers {
		if t.CommunityID != communityID || !t.Open(now) || activityFor[t.TaskType] != typ {
			continue
		}
		switch t.TaskType {
		case UseKeyword:
			if amount <= 0 || !containsKeyword(t.Keywords, keyword) {
				continue
			}
		case GainScore:
			// чистый прирост: минусы тоже учитываются
		default:
			if amount <= 0 {
				continue
			}
		}
		t.Progress += amount
		if t.Progress >= t.Target {
			t.Completed = true
			t.CompletedAt = now
			u.completed[counterKey{communityID, t.Kind}]++
			done = append(done, *t)
		}
	}
	unlock()

	for _, t := range done {
		s.complete(ctx, t)
	}
}

func containsKeyword(list []string, kw string) bool {
	if kw == "" {
		return false
	}
	for _, k := range list {
		if k == kw {
			return true
		}
	}
	return false
}

// complete начисляет награду за выполненное задание. Если запись счёта
// не удалась, задание снова открывается: следующая подходящая активность
// повторит начисление.
func (s *Service) complete(ctx context.Context, t Tracker) {
	change, err := s.deps.Rewarder.Apply(ctx, score.Update{
		UserID:      t.UserID,
		CommunityID: t.CommunityID,
		Delta:       t.Reward,
		Reason:      "Задание выполнено: " + t.Description,
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"user_id":    t.UserID,
			"tracker_id": t.ID,
		}).Error("Не удалось начислить награду за задание, задание открыто снова")
		s.reopen(t)
		return
	}

	log.WithFields(log.Fields{
		"user_id":      t.UserID,
		"community_id": t.CommunityID,
		"tracker_id":   t.ID,
		"kind":         t.Kind,
		"delta":        change.Delta,
	}).Info("Задание выполнено")

	if s.deps.Observer != nil {
		s.deps.Observer.TrackerCompleted(ctx, t, change)
	}
	if t.Kind == Daily && s.deps.Emitter != nil {
		s.deps.Emitter.Dispatch(ctx, activity.Notification{
			UserID:      t.UserID,
			CommunityID: t.CommunityID,
			Type:        activity.DirectiveCompleted,
			Amount:      1,
		})
	}
}

// reopen снимает отметку о выполнении после неудачного начисления.
func (s *Service) reopen(done Tracker) {
	unlock := s.locks.Lock(done.UserID)
	defer unlock()
	u := s.user(done.UserID, false)
	if u == nil {
		return
	}
	for _, t := range u.trackers {
		if t.ID != done.ID || !t.Completed {
			continue
		}
		t.Completed = false
		t.CompletedAt = time.Time{}
		key := counterKey{t.CommunityID, t.Kind}
		if u.completed[key] > 0 {
			u.completed[key]--
		}
		return
	}
}

// GetDaily возвращает неистёкшие дневные задания. communityID 0 — во всех сообществах.
func (s *Service) GetDaily(userID, communityID int64) []Tracker {
	return s.list(userID, communityID, Daily)
}

// GetWeekly возвращает неистёкшие недельные цели. communityID 0 — во всех сообществах.
func (s *Service) GetWeekly(userID, communityID int64) []Tracker {
	return s.list(userID, communityID, Weekly)
}

func (s *Service) list(userID, communityID int64, kind Kind) []Tracker {
	unlock := s.locks.Lock(userID)
	defer unlock()
	u := s.user(userID, false)
	if u == nil {
		return nil
	}
	now := s.deps.Clock.Now()
	var out []Tracker
	for _, t := range u.trackers {
		if t.Kind != kind || !t.Live(now) {
			continue
		}
		if communityID != 0 && t.CommunityID != communityID {
			continue
		}
		c := *t
		c.Keywords = append([]string(nil), t.Keywords...)
		out = append(out, c)
	}
	return out
}

// ActiveKeywords — слова, которые отслеживают открытые задания пользователя.
func (s *Service) ActiveKeywords(userID, communityID int64) []string {
	var out []string
	for _, t := range s.GetDaily(userID, communityID) {
		if t.TaskType == UseKeyword && !t.Completed {
			out = append(out, t.Keywords...)
		}
	}
	return out
}

// Counters возвращает число выполненных заданий пользователя в сообществе.
func (s *Service) Counters(userID, communityID int64) Counters {
	unlock := s.locks.Lock(userID)
	defer unlock()
	u := s.user(userID, false)
	if u == nil {
		return Counters{}
	}
	return Counters{
		Daily:  u.completed[counterKey{communityID, Daily}],
		Weekly: u.completed[counterKey{communityID, Weekly}],
	}
}

// Sweep удаляет истёкшие задания и возвращает их число.
// Истёкшее задание никогда не засчитывается задним числом.
func (s *Service) Sweep() int {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	now := s.deps.Clock.Now()
	removed := 0
	for _, id := range ids {
		unlock := s.locks.Lock(id)
		u := s.user(id, false)
		if u != nil {
			kept := u.trackers[:0]
			for _, t := range u.trackers {
				if t.Live(now) {
					kept = append(kept, t)
				} else {
					removed++
				}
			}
			u.trackers = kept
		}
		unlock()
	}

	if removed > 0 {
		log.WithField("removed", removed).Debug("Очистка заданий")
	}
	return removed
}
