// Package events — service.go: оркестратор ивентов. В каждом сообществе
// идёт не больше одного ивента; запуск — условная вставка под блокировкой
// сообщества, завершение отменяет таймер и даёт ровно одно итоговое объявление.
package events

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-bot/internal/clock"
	"serotonyl.ru/reputation-bot/internal/common"
	"serotonyl.ru/reputation-bot/internal/features/activity"
	"serotonyl.ru/reputation-bot/internal/features/channels"
	"serotonyl.ru/reputation-bot/internal/features/score"
	"serotonyl.ru/reputation-bot/internal/generator"
)

// Announcer отправляет объявления в каналы сообщества.
type Announcer interface {
	Announce(ctx context.Context, communityID int64, channelIDs []int64, text string)
}

// Rewarder начисляет награды через общий путь изменения счёта.
type Rewarder interface {
	Apply(ctx context.Context, u score.Update) (score.Change, error)
}

// Roster — состав сообщества.
type Roster interface {
	PresentMembers(communityID int64) []int64
	DisplayName(communityID, userID int64) string
}

// ChannelSource — настройки каналов сообщества.
type ChannelSource interface {
	ChannelsOfKind(communityID int64, kind channels.Kind) []int64
}

// Generator — генератор содержимого ивентов.
type Generator interface {
	Campaign(ctx context.Context) (*generator.Campaign, error)
	Quiz(ctx context.Context) (*generator.Quiz, error)
}

// Deps — зависимости оркестратора. Generator может быть nil.
type Deps struct {
	Clock     clock.Clock
	Generator Generator
	Rewarder  Rewarder
	Announcer Announcer
	Roster    Roster
	Channels  ChannelSource
}

// Options — настройки ивентов.
type Options struct {
	Duration       time.Duration
	QuotaThreshold int
	DynamicEnabled bool
	// Intn выбирает запасной ивент и вопрос. nil — math/rand/v2.
	Intn func(n int) int
}

// Status — состояние идущего ивента для команды /event.
type Status struct {
	Campaign Campaign
	TimeLeft time.Duration
	Tally    int
}

// Orchestrator управляет ивентами всех сообществ.
type Orchestrator struct {
	clock     clock.Clock
	gen       Generator
	rewarder  Rewarder
	announcer Announcer
	roster    Roster
	channels  ChannelSource
	opts      Options

	locks *common.KeyedMutex[int64] // сериализует изменения ивента сообщества

	mu   sync.RWMutex // защищает только карту live
	live map[int64]*live
}

// NewOrchestrator создаёт оркестратор.
func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if opts.Duration <= 0 {
		opts.Duration = 30 * time.Minute
	}
	if opts.QuotaThreshold <= 0 {
		opts.QuotaThreshold = 50
	}
	if opts.Intn == nil {
		opts.Intn = rand.IntN
	}
	return &Orchestrator{
		clock:     deps.Clock,
		gen:       deps.Generator,
		rewarder:  deps.Rewarder,
		announcer: deps.Announcer,
		roster:    deps.Roster,
		channels:  deps.Channels,
		opts:      opts,
		locks:     common.NewKeyedMutex[int64](),
		live:      make(map[int64]*live),
	}
}

func (o *Orchestrator) current(communityID int64) *live {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.live[communityID]
}

// ApplyEventEffects трансформирует сырую дельту активным ивентом сообщества.
// Без ивента дельта возвращается без изменений.
func (o *Orchestrator) ApplyEventEffects(communityID int64, rawDelta int64) int64 {
	l := o.current(communityID)
	if l == nil || !l.campaign.Active(o.clock.Now()) {
		return rawDelta
	}
	return transform(l.campaign.Effect, rawDelta)
}

func transform(e Effect, d int64) int64 {
	switch e.Kind {
	case ScoreModifier:
		return int64(math.Round(float64(d) * e.Multiplier))
	case BehaviorRule:
		if e.BlockNegative && d < 0 {
			return 0
		}
	}
	return d
}

// ActiveCampaign возвращает идущий ивент сообщества.
func (o *Orchestrator) ActiveCampaign(communityID int64) (Campaign, bool) {
	l := o.current(communityID)
	if l == nil || !l.campaign.Active(o.clock.Now()) {
		return Campaign{}, false
	}
	return l.campaign, true
}

// Status возвращает ивент вместе с прогрессом мини-игры.
func (o *Orchestrator) Status(communityID int64) (Status, bool) {
	unlock := o.locks.Lock(communityID)
	defer unlock()
	l := o.current(communityID)
	now := o.clock.Now()
	if l == nil || l.closed || !l.campaign.Active(now) {
		return Status{}, false
	}
	return Status{
		Campaign: l.campaign,
		TimeLeft: l.campaign.EndTime.Sub(now),
		Tally:    l.tally,
	}, true
}

// StartCampaign запускает предопределённый ивент. Если в сообществе уже идёт
// ивент, ничего не меняет и возвращает его со started=false.
func (o *Orchestrator) StartCampaign(ctx context.Context, communityID int64, typ string) (c Campaign, started bool, err error) {
	if cur, ok := o.ActiveCampaign(communityID); ok {
		o.logBusy(cur)
		return cur, false, nil
	}
	c, err = o.build(ctx, communityID, typ)
	if err != nil {
		return Campaign{}, false, err
	}
	c, started = o.start(ctx, c)
	return c, started, nil
}

// TriggerRandom запускает ивент по расписанию. Сначала пробует сгенерировать
// новый ивент, при любой ошибке выбирает случайный предопределённый.
func (o *Orchestrator) TriggerRandom(ctx context.Context, communityID int64) (Campaign, bool) {
	if cur, ok := o.ActiveCampaign(communityID); ok {
		o.logBusy(cur)
		return cur, false
	}

	var c Campaign
	built := false
	if o.opts.DynamicEnabled && o.gen != nil {
		g, err := o.gen.Campaign(ctx)
		if err == nil {
			c, err = fromGenerated(communityID, g)
		}
		if err != nil {
			log.WithError(err).WithField("community_id", communityID).
				Warn("Не удалось сгенерировать ивент, берём предопределённый")
		} else {
			built = true
		}
	}
	if !built {
		typ := PredefinedTypes[o.opts.Intn(len(PredefinedTypes))]
		var err error
		if c, err = o.build(ctx, communityID, typ); err != nil {
			log.WithError(err).WithField("type", typ).Error("Ошибка сборки ивента")
			return Campaign{}, false
		}
	}
	return o.start(ctx, c)
}

func (o *Orchestrator) logBusy(cur Campaign) {
	log.WithFields(log.Fields{
		"community_id": cur.CommunityID,
		"campaign":     cur.Type,
	}).Info("Ивент уже идёт, запуск пропущен")
}

// start — условная вставка ивента.
func (o *Orchestrator) start(ctx context.Context, c Campaign) (Campaign, bool) {
	cid := c.CommunityID

	unlock := o.locks.Lock(cid)
	now := o.clock.Now()
	var stale *live
	var staleText string
	if cur := o.current(cid); cur != nil {
		if cur.campaign.Active(now) {
			unlock()
			o.logBusy(cur.campaign)
			return cur.campaign, false
		}
		// время вышло, но таймер старого ивента ещё не сработал
		o.closeLocked(cur)
		stale, staleText = cur, timeoutText(cur)
	}

	c.ID = uuid.NewString()
	c.StartedAt = now
	c.EndTime = now.Add(o.opts.Duration)
	l := &live{campaign: c, announced: o.announceTargets(cid)}
	if c.Effect.Task != nil && c.Effect.Task.Quota != nil {
		l.seen = make(map[int64]bool)
	}

	o.mu.Lock()
	o.live[cid] = l
	o.mu.Unlock()

	id := c.ID
	l.timer = o.clock.AfterFunc(o.opts.Duration, func() { o.expire(cid, id) })
	unlock()

	if stale != nil {
		o.announce(ctx, cid, stale.announced, staleText)
	}

	log.WithFields(log.Fields{
		"community_id": cid,
		"campaign":     c.Type,
		"campaign_id":  c.ID,
		"end_time":     c.EndTime,
	}).Info("Ивент запущен")

	o.announce(ctx, cid, l.announced, startText(c, o.opts.Duration))
	return c, true
}

// EndCampaign досрочно завершает ивент. Награды не выдаются.
func (o *Orchestrator) EndCampaign(ctx context.Context, communityID int64) bool {
	unlock := o.locks.Lock(communityID)
	l := o.current(communityID)
	if l == nil || l.closed {
		unlock()
		return false
	}
	o.closeLocked(l)
	unlock()

	log.WithFields(log.Fields{
		"community_id": communityID,
		"campaign":     l.campaign.Type,
	}).Info("Ивент остановлен вручную")

	o.announce(ctx, communityID, l.announced, endedText(l.campaign))
	return true
}

// expire вызывается таймером по окончании ивента.
func (o *Orchestrator) expire(communityID int64, campaignID string) {
	unlock := o.locks.Lock(communityID)
	l := o.current(communityID)
	if l == nil || l.closed || l.campaign.ID != campaignID {
		unlock()
		return
	}
	o.closeLocked(l)
	text := timeoutText(l)
	unlock()

	log.WithFields(log.Fields{
		"community_id": communityID,
		"campaign":     l.campaign.Type,
	}).Info("Ивент завершён по времени")

	o.announce(context.Background(), communityID, l.announced, text)
}

// closeLocked закрывает ивент: мини-игра перестаёт принимать события,
// таймер отменяется, запись удаляется. Вызывается под блокировкой сообщества.
func (o *Orchestrator) closeLocked(l *live) {
	l.closed = true
	l.timer.Stop()
	o.mu.Lock()
	if o.live[l.campaign.CommunityID] == l {
		delete(o.live, l.campaign.CommunityID)
	}
	o.mu.Unlock()
}

// HandleActivity передаёт активность в мини-игру идущего ивента.
func (o *Orchestrator) HandleActivity(ctx context.Context, n activity.Notification) {
	l := o.current(n.CommunityID)
	if l == nil || l.campaign.Effect.Kind != SpecialTask {
		return
	}

	unlock := o.locks.Lock(n.CommunityID)
	if l.closed || o.current(n.CommunityID) != l || !l.campaign.Active(o.clock.Now()) {
		unlock()
		return
	}

	task := l.campaign.Effect.Task
	switch {
	case task.Race != nil:
		if n.Type != activity.MessageSent || l.claimed || !answerMatches(n.Meta.Text, task.Race.Answer) {
			unlock()
			return
		}
		l.claimed = true
		o.closeLocked(l)
		unlock()
		o.finishRace(ctx, l, n.UserID)

	case task.Quota != nil:
		q := task.Quota
		if n.Type != q.Activity || n.Amount <= 0 || !inChannels(q.Channels, n.Meta.ChannelID) {
			unlock()
			return
		}
		if n.Meta.MessageID != 0 {
			if l.seen[n.Meta.MessageID] {
				unlock()
				return
			}
			l.seen[n.Meta.MessageID] = true
		}
		l.tally++
		if l.tally < q.Threshold {
			unlock()
			return
		}
		o.closeLocked(l)
		unlock()
		o.finishQuota(ctx, l)

	default:
		unlock()
	}
}

func inChannels(set []int64, id int64) bool {
	if len(set) == 0 {
		return true
	}
	for _, c := range set {
		if c == id {
			return true
		}
	}
	return false
}

func (o *Orchestrator) finishRace(ctx context.Context, l *live, winnerID int64) {
	c := l.campaign
	name := o.roster.DisplayName(c.CommunityID, winnerID)
	change, err := o.rewarder.Apply(ctx, score.Update{
		UserID:      winnerID,
		CommunityID: c.CommunityID,
		Delta:       c.Effect.Task.Reward,
		Reason:      "Победа в ивенте «" + c.Title + "»",
		DisplayName: name,
	})
	if err != nil {
		log.WithError(err).WithField("user_id", winnerID).Error("Не удалось начислить награду победителю")
	}

	log.WithFields(log.Fields{
		"community_id": c.CommunityID,
		"campaign":     c.Type,
		"user_id":      winnerID,
	}).Info("Викторина выиграна")

	o.announce(ctx, c.CommunityID, l.announced, raceWonText(c, name, change.Delta))
}

func (o *Orchestrator) finishQuota(ctx context.Context, l *live) {
	c := l.campaign
	rewarded := 0
	for _, userID := range o.roster.PresentMembers(c.CommunityID) {
		_, err := o.rewarder.Apply(ctx, score.Update{
			UserID:      userID,
			CommunityID: c.CommunityID,
			Delta:       c.Effect.Task.Reward,
			Reason:      "Квота ивента «" + c.Title + "» выполнена",
			DisplayName: o.roster.DisplayName(c.CommunityID, userID),
		})
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Не удалось начислить награду за квоту")
			continue
		}
		rewarded++
	}

	log.WithFields(log.Fields{
		"community_id": c.CommunityID,
		"campaign":     c.Type,
		"rewarded":     rewarded,
	}).Info("Квота выполнена")

	o.announce(ctx, c.CommunityID, l.announced, quotaReachedText(c, l.tally, rewarded))
}

func (o *Orchestrator) announceTargets(communityID int64) []int64 {
	ids := o.channels.ChannelsOfKind(communityID, channels.KindAnnounce)
	if len(ids) == 0 {
		return []int64{0}
	}
	return ids
}

func (o *Orchestrator) announce(ctx context.Context, communityID int64, channelIDs []int64, text string) {
	if o.announcer == nil {
		return
	}
	o.announcer.Announce(ctx, communityID, channelIDs, text)
}
