// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: хранилище, реестр счёта, эффекты, ивенты,
// задания, транспорт Telegram и планировщик.
package app

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/reputation-bot/internal/bot"
	"serotonyl.ru/reputation-bot/internal/clock"
	"serotonyl.ru/reputation-bot/internal/common"
	"serotonyl.ru/reputation-bot/internal/config"
	"serotonyl.ru/reputation-bot/internal/db/postgres"
	"serotonyl.ru/reputation-bot/internal/db/sqlite"
	"serotonyl.ru/reputation-bot/internal/features/activity"
	"serotonyl.ru/reputation-bot/internal/features/admin"
	"serotonyl.ru/reputation-bot/internal/features/channels"
	"serotonyl.ru/reputation-bot/internal/features/confessions"
	"serotonyl.ru/reputation-bot/internal/features/directives"
	"serotonyl.ru/reputation-bot/internal/features/effects"
	"serotonyl.ru/reputation-bot/internal/features/events"
	"serotonyl.ru/reputation-bot/internal/features/members"
	"serotonyl.ru/reputation-bot/internal/features/score"
	"serotonyl.ru/reputation-bot/internal/features/thanks"
	"serotonyl.ru/reputation-bot/internal/generator"
	"serotonyl.ru/reputation-bot/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler

	closeStore func()
}

// storage — выбранная реализация хранилищ.
type storage struct {
	scores   score.Store
	channels channels.Store
	close    func()
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StorageSQLite:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.WithField("path", cfg.SQLitePath).Info("Хранилище: SQLite")
		return &storage{scores: st, channels: st, close: func() { _ = st.Close() }}, nil

	default:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		log.Info("Хранилище: PostgreSQL")
		return &storage{
			scores:   score.NewRepository(pool),
			channels: channels.NewRepository(pool),
			close:    pool.Close,
		}, nil
	}
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	clk := clock.Real()

	// === 1. Хранилище ===
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*App, error) {
		st.close()
		return nil, err
	}

	// === 2. Telegram Bot API ===
	api, err := telego.NewBot(cfg.TelegramBotToken, telego.WithLogger(log.StandardLogger()))
	if err != nil {
		return fail(fmt.Errorf("ошибка создания Telegram API: %w", err))
	}
	announcer := bot.NewAnnouncer(api)

	// === 3. Ядро: счёт, эффекты, участники, каналы ===
	ledger := score.NewLedger(st.scores, clk)
	pipeline := score.NewPipeline(ledger, nil)
	registry := effects.NewRegistry(clk)
	roster := members.NewRoster(clk)
	dispatcher := activity.NewDispatcher()

	monitored := channels.NewService(st.channels, clk)
	if err := monitored.Load(ctx); err != nil {
		return fail(fmt.Errorf("ошибка загрузки каналов: %w", err))
	}

	// каждое изменение счёта становится активностью для заданий
	pipeline.Observe(score.ObserverFunc(func(ctx context.Context, ch score.Change) {
		dispatcher.Dispatch(ctx, activity.Notification{
			UserID:      ch.UserID,
			CommunityID: ch.CommunityID,
			Type:        activity.ScoreChanged,
			Amount:      ch.Delta,
		})
	}))

	// === 4. Генератор контента ===
	provider, err := generator.NewProvider(cfg)
	if err != nil {
		return fail(err)
	}
	gen := generator.NewClient(provider, generator.Options{
		Timeout:           cfg.AITimeout,
		MaxAttempts:       cfg.AIMaxAttempts,
		RequestsPerMinute: cfg.AIRequestsPerMinute,
	})

	svc := bot.Services{
		Pipeline: pipeline,
		Effects:  registry,
		Activity: dispatcher,
		Roster:   roster,
		Channels: monitored,
		Admin:    admin.NewService(clk, cfg.AdminPasswordHash, cfg.AdminIDs),
	}

	// === 5. Фичи ===
	if cfg.FeatureEventsEnabled {
		svc.Events = events.NewOrchestrator(events.Deps{
			Clock:     clk,
			Generator: gen,
			Rewarder:  pipeline,
			Announcer: announcer,
			Roster:    roster,
			Channels:  monitored,
		}, events.Options{
			Duration:       cfg.EventDuration,
			QuotaThreshold: cfg.QuotaThreshold,
			DynamicEnabled: cfg.EventDynamicEnabled,
		})
		pipeline.SetTransformer(svc.Events)
		dispatcher.Subscribe(svc.Events)
	}

	if cfg.FeatureDirectivesEnabled {
		svc.Directives = directives.NewService(directives.Deps{
			Clock:     clk,
			Generator: gen,
			Rewarder:  pipeline,
			Scores:    ledger,
			Emitter:   dispatcher,
			Cooldowns: registry,
			Observer:  announcer,
		})
		dispatcher.Subscribe(svc.Directives)
	}

	if cfg.FeatureThanksEnabled {
		svc.Thanks = thanks.NewService(pipeline, registry, dispatcher, cfg.ThanksPoints, cfg.ThanksCooldown)
	}

	if cfg.FeatureConfessionsEnabled {
		svc.Confessions = confessions.NewService(gen, pipeline, registry, cfg.ConfessionCooldown, cfg.ConfessionReward)
	}

	// === 6. Бот ===
	b := bot.New(api, cfg, svc, clk)

	// === 7. Планировщик задач ===
	var (
		trackers  jobs.Sweeper
		campaigns jobs.CampaignTrigger
	)
	if svc.Directives != nil {
		trackers = svc.Directives
	}
	if svc.Events != nil {
		campaigns = svc.Events
	}
	scheduler := jobs.NewScheduler(jobs.Options{
		Location:            common.LoadLocation(cfg.AppTimezone),
		EffectSweepInterval: cfg.EffectSweepInterval,
		TrackerSweepSpec:    cfg.TrackerSweepSpec,
		EventSchedule:       cfg.EventSchedule,
		EventChance:         cfg.EventChance,
		EventsEnabled:       cfg.FeatureEventsEnabled,
	}, registry, trackers, campaigns, monitored)

	log.WithFields(log.Fields{
		"storage":     cfg.StorageDriver,
		"ai_provider": cfg.AIProvider,
		"events":      cfg.FeatureEventsEnabled,
		"directives":  cfg.FeatureDirectivesEnabled,
		"thanks":      cfg.FeatureThanksEnabled,
		"confessions": cfg.FeatureConfessionsEnabled,
	}).Info("Компоненты собраны")

	return &App{
		Bot:        b,
		Scheduler:  scheduler,
		closeStore: st.close,
	}, nil
}

// Run запускает бота и планировщик и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.closeStore()

	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Bot.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Scheduler.Stop()
		return nil
	})
	return g.Wait()
}
