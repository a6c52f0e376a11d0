// Package bot — тонкий транспорт Telegram: long polling, классификация
// активности, маршрутизация команд, отправка ответов.
// bot.go принимает апдейты и раздаёт их обработчикам.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-bot/internal/bot/filters"
	"serotonyl.ru/reputation-bot/internal/bot/middleware"
	"serotonyl.ru/reputation-bot/internal/clock"
	"serotonyl.ru/reputation-bot/internal/common"
	"serotonyl.ru/reputation-bot/internal/config"
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
)

// Services — всё, с чем работает транспорт. Directives, Events, Thanks и
// Confessions равны nil, если фича выключена.
type Services struct {
	Pipeline    *score.Pipeline
	Effects     *effects.Registry
	Events      *events.Orchestrator
	Directives  *directives.Service
	Activity    *activity.Dispatcher
	Roster      *members.Roster
	Channels    *channels.Service
	Thanks      *thanks.Service
	Confessions *confessions.Service
	Admin       *admin.Service
}

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api    *telego.Bot
	sender Sender
	cfg    *config.Config
	svc    Services
	clock  clock.Clock
	loc    *time.Location

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter
	parser      *CommandParser
	commands    map[string]route

	selfID int64

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
	wg       sync.WaitGroup
}

// New создаёт бота со всеми зависимостями.
func New(api *telego.Bot, cfg *config.Config, svc Services, clk clock.Clock) *Bot {
	b := newBot(api, cfg, svc, clk)
	b.api = api
	return b
}

func newBot(sender Sender, cfg *config.Config, svc Services, clk clock.Clock) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}
	b := &Bot{
		sender:      sender,
		cfg:         cfg,
		svc:         svc,
		clock:       clk,
		loc:         common.LoadLocation(cfg.AppTimezone),
		chatFilter:  filters.NewChatFilter(svc.Channels),
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		parser:      NewCommandParser(""),
		inflight:    make(chan struct{}, maxInFlight),
	}
	b.commands = b.routes()
	return b
}

// Start запускает long polling и блокируется до отмены ctx.
// Перед возвратом дожидается обработки уже принятых апдейтов.
func (b *Bot) Start(ctx context.Context) error {
	defer b.rateLimiter.Close()

	me, err := b.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("ошибка getMe: %w", err)
	}
	b.selfID = me.ID
	b.parser = NewCommandParser(me.Username)

	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        b.cfg.BotUpdateTimeoutSeconds,
		AllowedUpdates: []string{"message", "message_reaction"},
	})
	if err != nil {
		return fmt.Errorf("ошибка запуска long polling: %w", err)
	}

	log.WithFields(log.Fields{
		"username":     me.Username,
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			return nil

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return nil
			}

			// лимит параллелизма
			select {
			case b.inflight <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
			b.wg.Add(1)
			go func(upd telego.Update) {
				defer b.wg.Done()
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic(update.UpdateID)

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.MessageReaction != nil:
		b.handleReaction(ctx, update.MessageReaction)
	}
}

func profileOf(u *telego.User) members.Profile {
	return members.Profile{
		UserID:    u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsBot:     u.IsBot,
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *telego.Message) {
	middleware.LogMessage(message)

	scope := b.chatFilter.Scope(message.Chat)
	if scope == filters.ScopeIgnored {
		return
	}
	communityID := message.Chat.ID

	// Вступление и выход участников
	if scope != filters.ScopePrivate {
		for i := range message.NewChatMembers {
			b.svc.Roster.Join(communityID, profileOf(&message.NewChatMembers[i]))
		}
		if message.LeftChatMember != nil {
			b.svc.Roster.Leave(communityID, message.LeftChatMember.ID)
		}
	}

	if message.From == nil || message.Text == "" {
		return
	}
	from := profileOf(message.From)
	if scope != filters.ScopePrivate {
		b.svc.Roster.Touch(communityID, from)
	}

	req := Request{
		UserID:      from.UserID,
		CommunityID: communityID,
		ChannelID:   channelOf(message),
		Private:     scope == filters.ScopePrivate,
		Name:        from.DisplayName(),
	}
	if req.Private {
		req.CommunityID = 0
	}
	if reply := repliedUser(message); reply != nil {
		p := profileOf(reply)
		req.ReplyToUserID = p.UserID
		req.ReplyToName = p.DisplayName()
	}

	// Команды
	if cmd, args, ok := b.parser.ParseCommand(message.Text); ok {
		if _, known := b.commands[cmd]; known {
			if !b.rateLimiter.Allow(from.UserID) {
				log.WithField("user_id", from.UserID).Debug("rate limited")
				return
			}
			req.Command, req.Args = cmd, args
			text, _ := b.Execute(ctx, req)
			b.reply(ctx, message, text)
			return
		}
	}

	if scope != filters.ScopeMonitored || message.From.IsBot {
		return
	}

	// Благодарность ответом на сообщение
	if b.svc.Thanks != nil && req.ReplyToUserID != 0 && thanks.IsThankYou(message.Text) {
		b.handleThanks(ctx, message, req)
	}

	b.dispatchMessage(ctx, message, req)
}

// channelOf — тема форума; вне форумов всегда 0.
func channelOf(message *telego.Message) int64 {
	if !message.IsTopicMessage {
		return 0
	}
	return int64(message.MessageThreadID)
}

// repliedUser — автор сообщения, на которое ответили. Служебный ответ на
// корневое сообщение темы форума ответом не считается.
func repliedUser(message *telego.Message) *telego.User {
	r := message.ReplyToMessage
	if r == nil || r.From == nil || r.From.IsBot {
		return nil
	}
	if message.IsTopicMessage && r.MessageID == message.MessageThreadID {
		return nil
	}
	return r.From
}

func (b *Bot) handleThanks(ctx context.Context, message *telego.Message, req Request) {
	change, err := b.svc.Thanks.Give(ctx, thanks.Thanks{
		FromUserID:  req.UserID,
		ToUserID:    req.ReplyToUserID,
		CommunityID: req.CommunityID,
		ToName:      req.ReplyToName,
		Text:        message.Text,
		ChannelID:   req.ChannelID,
		MessageID:   int64(message.MessageID),
	})
	switch {
	case err == nil:
		b.reply(ctx, message, fmt.Sprintf("🙏 %s: %s → %s",
			req.ReplyToName, common.FormatDelta(change.Delta), common.FormatPoints(change.NewScore)))
	case errors.Is(err, common.ErrOnCooldown), errors.Is(err, common.ErrSelfThanks):
		// молча: благодарность ответом не требует реакции бота
		log.WithError(err).WithField("user_id", req.UserID).Debug("Благодарность не засчитана")
	default:
		log.WithError(err).WithField("user_id", req.UserID).Error("Ошибка начисления благодарности")
		b.reply(ctx, message, renderError(err))
	}
}

func (b *Bot) dispatchMessage(ctx context.Context, message *telego.Message, req Request) {
	var keywords []string
	if b.svc.Directives != nil {
		keywords = b.svc.Directives.ActiveKeywords(req.UserID, req.CommunityID)
	}

	in := Incoming{
		UserID:      req.UserID,
		CommunityID: req.CommunityID,
		ChannelID:   req.ChannelID,
		MessageID:   int64(message.MessageID),
		Text:        message.Text,
		Mentions:    b.countMentions(message),
	}
	for _, n := range Classify(in, keywords) {
		b.svc.Activity.Dispatch(ctx, n)
	}
}

// countMentions считает упоминания других людей (не бота и не себя).
func (b *Bot) countMentions(message *telego.Message) int {
	n := 0
	for _, e := range message.Entities {
		switch e.Type {
		case "mention":
			n++
		case "text_mention":
			if e.User != nil && e.User.ID != message.From.ID && e.User.ID != b.selfID && !e.User.IsBot {
				n++
			}
		}
	}
	return n
}

func (b *Bot) handleReaction(ctx context.Context, r *telego.MessageReactionUpdated) {
	if r.User == nil || r.User.IsBot {
		return
	}
	if b.chatFilter.Scope(r.Chat) != filters.ScopeMonitored {
		return
	}
	added := ReactionsAdded(len(r.OldReaction), len(r.NewReaction))
	if added == 0 {
		return
	}
	b.svc.Roster.Touch(r.Chat.ID, profileOf(r.User))
	b.svc.Activity.Dispatch(ctx, activity.Notification{
		UserID:      r.User.ID,
		CommunityID: r.Chat.ID,
		Type:        activity.ReactionAdded,
		Amount:      added,
		Meta:        activity.Meta{MessageID: int64(r.MessageID)},
	})
}

// reply отвечает на сообщение в той же теме.
func (b *Bot) reply(ctx context.Context, message *telego.Message, text string) {
	if text == "" {
		return
	}
	params := &telego.SendMessageParams{
		ChatID:          tu.ID(message.Chat.ID),
		MessageThreadID: int(channelOf(message)),
		Text:            text,
		ReplyParameters: &telego.ReplyParameters{
			MessageID:                message.MessageID,
			AllowSendingWithoutReply: true,
		},
	}
	if _, err := b.sender.SendMessage(ctx, params); err != nil {
		log.WithError(err).WithField("chat_id", message.Chat.ID).Error("Ошибка отправки сообщения")
	}
}
