// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: очистку истёкших эффектов и заданий
// и периодический запуск случайных ивентов в отслеживаемых сообществах.
package jobs

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-bot/internal/features/events"
)

// Sweeper удаляет истёкшие записи и возвращает их число.
type Sweeper interface {
	Sweep() int
}

// CampaignTrigger запускает случайный ивент в сообществе.
type CampaignTrigger interface {
	TriggerRandom(ctx context.Context, communityID int64) (events.Campaign, bool)
}

// CommunitySource перечисляет отслеживаемые сообщества.
type CommunitySource interface {
	Communities() []int64
}

// Options — расписание задач.
type Options struct {
	Location            *time.Location
	EffectSweepInterval time.Duration
	TrackerSweepSpec    string
	EventSchedule       string
	EventChance         float64
	EventsEnabled       bool
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron        *cron.Cron
	opts        Options
	effects     Sweeper
	trackers    Sweeper
	campaigns   CampaignTrigger
	communities CommunitySource

	// roll возвращает число в [0, 1); подменяется в тестах
	roll func() float64
}

// NewScheduler создаёт планировщик. trackers и campaigns могут быть nil,
// если соответствующие фичи выключены.
func NewScheduler(opts Options, effects, trackers Sweeper, campaigns CampaignTrigger, communities CommunitySource) *Scheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:        cron.New(cron.WithLocation(loc)),
		opts:        opts,
		effects:     effects,
		trackers:    trackers,
		campaigns:   campaigns,
		communities: communities,
		roll:        rand.Float64,
	}
}

// Start регистрирует задачи и запускает cron.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.opts.EffectSweepInterval), s.sweepEffects); err != nil {
		return fmt.Errorf("ошибка расписания очистки эффектов: %w", err)
	}

	if s.trackers != nil {
		if _, err := s.cron.AddFunc(s.opts.TrackerSweepSpec, s.sweepTrackers); err != nil {
			return fmt.Errorf("ошибка расписания очистки заданий: %w", err)
		}
	}

	if s.opts.EventsEnabled && s.campaigns != nil {
		if _, err := s.cron.AddFunc(s.opts.EventSchedule, func() { s.TickEvents(ctx) }); err != nil {
			return fmt.Errorf("ошибка расписания ивентов: %w", err)
		}
	}

	s.cron.Start()
	log.WithField("jobs", len(s.cron.Entries())).Info("Планировщик задач запущен")
	return nil
}

func (s *Scheduler) sweepEffects() {
	if n := s.effects.Sweep(); n > 0 {
		log.WithField("removed", n).Debug("[CRON] Истёкшие эффекты удалены")
	}
}

func (s *Scheduler) sweepTrackers() {
	if n := s.trackers.Sweep(); n > 0 {
		log.WithField("removed", n).Debug("[CRON] Истёкшие задания удалены")
	}
}

// TickEvents с вероятностью EventChance запускает ивент в каждом
// отслеживаемом сообществе. Сообщества с активным ивентом пропускаются
// самим оркестратором.
func (s *Scheduler) TickEvents(ctx context.Context) int {
	started := 0
	for _, communityID := range s.communities.Communities() {
		if ctx.Err() != nil {
			return started
		}
		if s.roll() >= s.opts.EventChance {
			continue
		}
		c, ok := s.campaigns.TriggerRandom(ctx, communityID)
		if !ok {
			continue
		}
		started++
		log.WithFields(log.Fields{
			"community_id": communityID,
			"type":         c.Type,
		}).Info("[CRON] Запущен случайный ивент")
	}
	return started
}

// Stop останавливает планировщик и ждёт завершения текущих задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
