// Package bot — handlers.go выполняет команды и возвращает текст ответа.
// Сюда не попадает ничего от Telegram, поэтому команды тестируются
// без сети.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-bot/internal/common"
	"serotonyl.ru/reputation-bot/internal/features/channels"
	"serotonyl.ru/reputation-bot/internal/features/directives"
	"serotonyl.ru/reputation-bot/internal/features/events"
	"serotonyl.ru/reputation-bot/internal/features/score"
)

const (
	topLimit     = 10
	historyLimit = 10
)

const helpText = `Команды:
/score — твой счёт (ответом на сообщение — чужой)
/rank — ранг
/top [global] — таблица лидеров
/history — последние изменения счёта
/stats — статистика сообщества
/daily [reroll] — дневное задание
/weekly — недельная цель
/event — текущий ивент
/confess — признание
/effects — активные эффекты и кулдауны

Поблагодари ответом «спасибо», чтобы дать участнику очки.`

const adminHelpText = `Админ-команды:
/login <пароль> — вход (в личке)
/logout — выход
/event_start [тип] — запустить ивент (` + "double_points, golden_hour, harmony, trivia_rush, team_quota" + `)
/event_end — остановить ивент
/monitor <announce|quota> [тема] — отслеживать тему
/unmonitor <announce|quota> [тема] — перестать отслеживать
/channels — отслеживаемые темы
/adjust <±очки> [причина] — ответом на сообщение`

// Request — команда вместе с контекстом чата.
type Request struct {
	UserID      int64
	CommunityID int64 // 0 в личке
	ChannelID   int64 // тема форума, 0 — общая
	Private     bool
	Name        string
	Command     string
	Args        []string

	// адресат, если команда отправлена ответом на сообщение
	ReplyToUserID int64
	ReplyToName   string
}

type handlerFunc func(ctx context.Context, req Request) (string, error)

type route struct {
	handler   handlerFunc
	group     bool // только в группе
	adminOnly bool
}

func (b *Bot) routes() map[string]route {
	return map[string]route{
		"start":       {handler: b.cmdHelp},
		"help":        {handler: b.cmdHelp},
		"score":       {handler: b.cmdScore, group: true},
		"rank":        {handler: b.cmdRank, group: true},
		"top":         {handler: b.cmdTop, group: true},
		"history":     {handler: b.cmdHistory, group: true},
		"stats":       {handler: b.cmdStats, group: true},
		"daily":       {handler: b.cmdDaily, group: true},
		"weekly":      {handler: b.cmdWeekly, group: true},
		"event":       {handler: b.cmdEvent, group: true},
		"confess":     {handler: b.cmdConfess, group: true},
		"effects":     {handler: b.cmdEffects},
		"login":       {handler: b.cmdLogin},
		"logout":      {handler: b.cmdLogout},
		"event_start": {handler: b.cmdEventStart, group: true, adminOnly: true},
		"event_end":   {handler: b.cmdEventEnd, group: true, adminOnly: true},
		"monitor":     {handler: b.cmdMonitor, group: true, adminOnly: true},
		"unmonitor":   {handler: b.cmdUnmonitor, group: true, adminOnly: true},
		"channels":    {handler: b.cmdChannels, group: true, adminOnly: true},
		"adjust":      {handler: b.cmdAdjust, group: true, adminOnly: true},
	}
}

// Execute выполняет команду. handled=false — команда не наша, сообщение
// обрабатывается как обычное.
func (b *Bot) Execute(ctx context.Context, req Request) (reply string, handled bool) {
	r, ok := b.commands[req.Command]
	if !ok {
		return "", false
	}
	if r.group && req.Private {
		return "Эта команда работает в чате сообщества.", true
	}
	if r.adminOnly {
		if err := b.svc.Admin.Require(req.UserID); err != nil {
			return renderError(err), true
		}
	}

	text, err := r.handler(ctx, req)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"user_id":      req.UserID,
			"community_id": req.CommunityID,
			"command":      req.Command,
		}).Warn("Команда завершилась ошибкой")
		return renderError(err), true
	}
	return text, true
}

// renderError превращает ошибку в сообщение. Ошибки хранилища
// показываются обобщённо.
func renderError(err error) string {
	switch {
	case errors.Is(err, common.ErrOnCooldown):
		return "⏳ " + strings.TrimSuffix(err.Error(), ": "+common.ErrOnCooldown.Error())
	case errors.Is(err, common.ErrNotAdmin),
		errors.Is(err, common.ErrWrongPassword),
		errors.Is(err, common.ErrTooManyAttempts),
		errors.Is(err, common.ErrSelfThanks),
		errors.Is(err, common.ErrUnknownCampaignType),
		errors.Is(err, common.ErrNothingToReroll),
		errors.Is(err, common.ErrUnknownChannelKind),
		errors.Is(err, common.ErrInvalidLimit):
		return "❌ " + err.Error()
	default:
		return "⚠️ Не удалось выполнить команду, попробуйте позже."
	}
}

// target — чей счёт показывать: адресат ответа или автор команды.
func target(req Request) (int64, string) {
	if req.ReplyToUserID != 0 {
		return req.ReplyToUserID, req.ReplyToName
	}
	return req.UserID, req.Name
}

func (b *Bot) cmdHelp(_ context.Context, req Request) (string, error) {
	if b.svc.Admin.IsAdmin(req.UserID) {
		return helpText + "\n\n" + adminHelpText, nil
	}
	return helpText, nil
}

func (b *Bot) cmdScore(ctx context.Context, req Request) (string, error) {
	userID, name := target(req)
	s, err := b.svc.Pipeline.Ledger().GetScore(ctx, userID, req.CommunityID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("⭐ %s: %s\nРанг: %s", name, common.FormatPoints(s), score.RankFor(s).Label), nil
}

func (b *Bot) cmdRank(ctx context.Context, req Request) (string, error) {
	userID, name := target(req)
	s, err := b.svc.Pipeline.Ledger().GetScore(ctx, userID, req.CommunityID)
	if err != nil {
		return "", err
	}
	r := score.RankFor(s)
	return fmt.Sprintf("%s — %s\n%s\nСчёт: %s", name, r.Label, r.Description, common.FormatPoints(s)), nil
}

func (b *Bot) cmdTop(ctx context.Context, req Request) (string, error) {
	communityID := req.CommunityID
	title := "🏆 Таблица лидеров"
	if len(req.Args) > 0 && strings.EqualFold(req.Args[0], "global") {
		communityID = score.GlobalCommunity
		title = "🌍 Глобальная таблица лидеров"
	}

	top, err := b.svc.Pipeline.Ledger().GetLeaderboard(ctx, communityID, topLimit)
	if err != nil {
		return "", err
	}
	if len(top) == 0 {
		return "Таблица лидеров пока пуста.", nil
	}

	var sb strings.Builder
	sb.WriteString(title + "\n")
	for i, e := range top {
		name := e.DisplayName
		if name == "" {
			name = fmt.Sprintf("id%d", e.UserID)
		}
		fmt.Fprintf(&sb, "%d. %s — %s\n", i+1, name, common.FormatPoints(e.Score))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Bot) cmdHistory(ctx context.Context, req Request) (string, error) {
	userID, name := target(req)
	entries, err := b.svc.Pipeline.Ledger().GetHistory(ctx, userID, req.CommunityID, historyLimit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return fmt.Sprintf("У %s пока нет изменений счёта.", name), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 История %s\n", name)
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s  %s → %d  %s\n",
			common.FormatDateTime(e.CreatedAt, b.loc), common.FormatDelta(e.Delta), e.NewScore, e.Reason)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Bot) cmdStats(ctx context.Context, req Request) (string, error) {
	st, err := b.svc.Pipeline.Ledger().GetAggregateStats(ctx, req.CommunityID)
	if err != nil {
		return "", err
	}
	if st.Count == 0 {
		return "В сообществе ещё нет счётов.", nil
	}
	return fmt.Sprintf("📊 Статистика\nУчастников со счётом: %d\nСредний счёт: %.1f\nМаксимум: %d\nМинимум: %d\nВсего изменений: %d",
		st.Count, st.Mean, st.Max, st.Min, st.TotalChanges), nil
}

func (b *Bot) cmdDaily(ctx context.Context, req Request) (string, error) {
	if b.svc.Directives == nil {
		return "Задания отключены.", nil
	}
	if len(req.Args) > 0 && strings.EqualFold(req.Args[0], "reroll") {
		t, err := b.svc.Directives.Reroll(ctx, req.UserID, req.CommunityID, req.Name)
		if err != nil {
			return "", err
		}
		return "🔄 Новое задание\n" + describeTracker(t), nil
	}

	// выполненное задание показываем до истечения, новое не выдаём
	for _, t := range b.svc.Directives.GetDaily(req.UserID, req.CommunityID) {
		if t.Completed {
			return describeTracker(t), nil
		}
	}
	t, _ := b.svc.Directives.GenerateDaily(ctx, req.UserID, req.CommunityID, req.Name)
	return describeTracker(t), nil
}

func (b *Bot) cmdWeekly(ctx context.Context, req Request) (string, error) {
	if b.svc.Directives == nil {
		return "Задания отключены.", nil
	}
	for _, t := range b.svc.Directives.GetWeekly(req.UserID, req.CommunityID) {
		if t.Completed {
			return describeTracker(t), nil
		}
	}
	t, _ := b.svc.Directives.GenerateWeekly(ctx, req.UserID, req.CommunityID, req.Name)
	return describeTracker(t), nil
}

func describeTracker(t directives.Tracker) string {
	icon := "📋"
	if t.Kind == directives.Weekly {
		icon = "🗓"
	}
	status := fmt.Sprintf("Прогресс: %d/%d", t.Progress, t.Target)
	if t.Completed {
		status = "✅ Выполнено"
	}
	return fmt.Sprintf("%s %s\n%s\nНаграда: %s", icon, t.Description, status, common.FormatDelta(t.Reward))
}

func (b *Bot) cmdEvent(_ context.Context, req Request) (string, error) {
	if b.svc.Events == nil {
		return "Ивенты отключены.", nil
	}
	st, ok := b.svc.Events.Status(req.CommunityID)
	if !ok {
		return "Сейчас ивентов нет.", nil
	}
	return events.Describe(st), nil
}

func (b *Bot) cmdConfess(ctx context.Context, req Request) (string, error) {
	if b.svc.Confessions == nil {
		return "Признания отключены.", nil
	}
	res, err := b.svc.Confessions.Confess(ctx, req.UserID, req.CommunityID, req.Name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("🤫 %s\n%s (%s)", res.Text, req.Name, common.FormatDelta(res.Change.Delta)), nil
}

func (b *Bot) cmdEffects(_ context.Context, req Request) (string, error) {
	active := b.svc.Effects.GetActiveEffects(req.UserID)
	if len(active) == 0 {
		return "Активных эффектов нет.", nil
	}
	now := b.clock.Now()
	var sb strings.Builder
	sb.WriteString("✨ Активные эффекты\n")
	for _, e := range active {
		fmt.Fprintf(&sb, "• %s — ещё %s\n", e.Type, common.FormatDuration(e.ExpiresAt.Sub(now)))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Bot) cmdLogin(_ context.Context, req Request) (string, error) {
	if !req.Private {
		return "🔒 Вход только в личных сообщениях. Смените пароль, если отправили его в чат.", nil
	}
	if len(req.Args) == 0 {
		return "Использование: /login <пароль>", nil
	}
	sess, err := b.svc.Admin.Login(req.UserID, strings.Join(req.Args, " "))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Вход выполнен до %s.\n\n%s", common.FormatDateTime(sess.ExpiresAt, b.loc), adminHelpText), nil
}

func (b *Bot) cmdLogout(_ context.Context, req Request) (string, error) {
	b.svc.Admin.Logout(req.UserID)
	return "Сессия закрыта.", nil
}

func (b *Bot) cmdEventStart(ctx context.Context, req Request) (string, error) {
	if b.svc.Events == nil {
		return "Ивенты отключены.", nil
	}
	var (
		c       events.Campaign
		started bool
	)
	if len(req.Args) == 0 {
		c, started = b.svc.Events.TriggerRandom(ctx, req.CommunityID)
	} else {
		var err error
		c, started, err = b.svc.Events.StartCampaign(ctx, req.CommunityID, strings.ToLower(req.Args[0]))
		if err != nil {
			return "", err
		}
	}
	if !started {
		if c.ID != "" {
			return fmt.Sprintf("Уже идёт ивент «%s».", c.Title), nil
		}
		return "Не удалось запустить ивент.", nil
	}
	return fmt.Sprintf("Ивент «%s» запущен.", c.Title), nil
}

func (b *Bot) cmdEventEnd(ctx context.Context, req Request) (string, error) {
	if b.svc.Events == nil {
		return "Ивенты отключены.", nil
	}
	if !b.svc.Events.EndCampaign(ctx, req.CommunityID) {
		return "Сейчас ивентов нет.", nil
	}
	return "Ивент остановлен.", nil
}

// channelArgs разбирает «<announce|quota> [тема]». Без темы берётся текущая.
func channelArgs(req Request) (channels.Kind, int64, error) {
	if len(req.Args) == 0 {
		return "", 0, common.ErrUnknownChannelKind
	}
	kind := channels.Kind(strings.ToLower(req.Args[0]))
	if !kind.Valid() {
		return "", 0, common.ErrUnknownChannelKind
	}
	channelID := req.ChannelID
	if len(req.Args) > 1 {
		v, err := strconv.ParseInt(req.Args[1], 10, 64)
		if err != nil || v < 0 {
			return "", 0, fmt.Errorf("некорректный номер темы %q: %w", req.Args[1], common.ErrUnknownChannelKind)
		}
		channelID = v
	}
	return kind, channelID, nil
}

func (b *Bot) cmdMonitor(ctx context.Context, req Request) (string, error) {
	kind, channelID, err := channelArgs(req)
	if err != nil {
		return "", err
	}
	if err := b.svc.Channels.Monitor(ctx, req.CommunityID, channelID, kind); err != nil {
		return "", err
	}
	return fmt.Sprintf("👀 Тема %d отслеживается (%s).", channelID, kind), nil
}

func (b *Bot) cmdUnmonitor(ctx context.Context, req Request) (string, error) {
	kind, channelID, err := channelArgs(req)
	if err != nil {
		return "", err
	}
	removed, err := b.svc.Channels.Unmonitor(ctx, req.CommunityID, channelID, kind)
	if err != nil {
		return "", err
	}
	if !removed {
		return "Эта тема не отслеживалась.", nil
	}
	return fmt.Sprintf("Тема %d больше не отслеживается (%s).", channelID, kind), nil
}

func (b *Bot) cmdChannels(_ context.Context, req Request) (string, error) {
	list := b.svc.Channels.List(req.CommunityID)
	if len(list) == 0 {
		return "Сообщество не отслеживается. Добавьте тему: /monitor announce", nil
	}
	var sb strings.Builder
	sb.WriteString("👀 Отслеживаемые темы\n")
	for _, ch := range list {
		fmt.Fprintf(&sb, "• %d — %s\n", ch.ChannelID, ch.Kind)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Bot) cmdAdjust(ctx context.Context, req Request) (string, error) {
	if req.ReplyToUserID == 0 || len(req.Args) == 0 {
		return "Использование: ответом на сообщение /adjust <±очки> [причина]", nil
	}
	delta, err := strconv.ParseInt(req.Args[0], 10, 64)
	if err != nil || delta == 0 {
		return "Использование: ответом на сообщение /adjust <±очки> [причина]", nil
	}
	reason := "Решение администратора"
	if len(req.Args) > 1 {
		reason = strings.Join(req.Args[1:], " ")
	}

	change, err := b.svc.Pipeline.Apply(ctx, score.Update{
		UserID:      req.ReplyToUserID,
		CommunityID: req.CommunityID,
		Delta:       delta,
		Reason:      reason,
		DisplayName: req.ReplyToName,
	})
	if err != nil {
		return "", err
	}
	if !change.Committed {
		return fmt.Sprintf("Изменение поглощено ивентом, счёт %s не изменился.", req.ReplyToName), nil
	}
	return fmt.Sprintf("%s: %s → %s", req.ReplyToName, common.FormatDelta(change.Delta), common.FormatPoints(change.NewScore)), nil
}
