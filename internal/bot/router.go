// Package bot routes inbound chat updates: slash commands and the inline
// button callbacks emitted by reminder keyboards.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"vitabot/internal/plan"
	"vitabot/internal/profile"
	"vitabot/internal/reminder"
	"vitabot/internal/store"
	"vitabot/internal/transport"
	"vitabot/pkg/logx"
	"vitabot/pkg/tgui"
)

const (
	snoozeDefault   = 15 * time.Minute
	postWorkoutGap  = 30 * time.Minute
	defaultDoseML   = 200
	handlerDeadline = 15 * time.Second
)

// Storage is the slice of the persistence layer the router needs.
type Storage interface {
	CreateUserIfAbsent(ctx context.Context, telegramID int64, timezone string) (bool, error)
	GetUser(ctx context.Context, telegramID int64) (profile.User, error)

	CompleteByID(ctx context.Context, id int64) error
	CreateAdhoc(ctx context.Context, userID int64, kind reminder.Kind, at time.Time, payload reminder.Payload) (int64, error)

	AddHydrationEvent(ctx context.Context, userID int64, planDate string, volumeML int) error
	HydrationTotal(ctx context.Context, userID int64, planDate string) (int, error)

	UpdateSleepDebt(ctx context.Context, telegramID int64, delta int) error
	AppendSleepLog(ctx context.Context, l *store.SleepLog) error
}

type Router struct {
	adapter transport.Adapter
	db      Storage
	log     logx.Logger

	now func() time.Time
}

func NewRouter(adapter transport.Adapter, db Storage, log logx.Logger) *Router {
	return &Router{
		adapter: adapter,
		db:      db,
		log:     log.With(logx.String("component", "router")),
		now:     time.Now,
	}
}

// Run consumes updates until ctx is cancelled or the channel closes. Each
// update is handled inline; handlers are short (one or two DB round-trips and
// one send) so per-update goroutines are not worth their ordering problems.
func (r *Router) Run(ctx context.Context, in <-chan transport.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-in:
			if !ok {
				return
			}
			r.handle(ctx, upd)
		}
	}
}

func (r *Router) handle(ctx context.Context, upd transport.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("handler panic",
				logx.Any("panic", rec),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	hctx, cancel := context.WithTimeout(ctx, handlerDeadline)
	defer cancel()

	switch upd.Kind {
	case transport.UpdateMessage:
		if upd.Message != nil {
			r.handleMessage(hctx, upd.Message)
		}
	case transport.UpdateCallback:
		if upd.Callback != nil {
			r.handleCallback(hctx, upd.Callback)
		}
	}
}

// ---- commands ----

func (r *Router) handleMessage(ctx context.Context, msg *transport.Message) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	cmd := text
	if i := strings.IndexAny(cmd, " @"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start":
		r.cmdStart(ctx, msg)
	case "/help":
		r.reply(ctx, msg.ChatID, helpText())
	case "/plan":
		r.cmdPlan(ctx, msg)
	case "/water":
		r.cmdWater(ctx, msg)
	case "/modules":
		r.cmdModules(ctx, msg)
	default:
		r.reply(ctx, msg.ChatID, "Не знаю такой команды. Список: /help")
	}
}

func (r *Router) cmdStart(ctx context.Context, msg *transport.Message) {
	tz := profile.DetectTimezone(msg.LanguageCode)
	created, err := r.db.CreateUserIfAbsent(ctx, msg.FromID, tz)
	if err != nil {
		r.log.Error("create user failed", logx.Int64("user", msg.FromID), logx.Err(err))
		r.reply(ctx, msg.ChatID, "Что-то пошло не так, попробуйте ещё раз.")
		return
	}
	if created {
		r.log.Info("user registered",
			logx.Int64("user", msg.FromID),
			logx.String("timezone", tz))
		r.reply(ctx, msg.ChatID, fmt.Sprintf(
			"Привет! Я помогу следить за сном, водой и тренировками.\n"+
				"Часовой пояс по умолчанию: %s.\n\n%s", tz, helpText()))
		return
	}
	r.reply(ctx, msg.ChatID, "С возвращением! Напоминания уже работают. Команды: /help")
}

func (r *Router) cmdPlan(ctx context.Context, msg *transport.Message) {
	u, err := r.db.GetUser(ctx, msg.FromID)
	if err != nil {
		r.reply(ctx, msg.ChatID, "Сначала нажмите /start")
		return
	}
	goal := plan.SleepGoalMinutes(u.SleepGoalMinutes, u.SleepGoalCycles)
	bp := plan.BuildBedtimePlan(u.WakeTime, goal, u.SleepGoalCycles, u.SleepDebtMinutes, u.AverageBedtime)

	mins := int(bp.Duration.Minutes())
	var b strings.Builder
	fmt.Fprintf(&b, "🛌 Подъём: %s\n", bp.WakeTime)
	fmt.Fprintf(&b, "Лечь спать: %s (сон %d ч %02d мин)\n", bp.TargetBedtime, mins/60, mins%60)
	if u.SleepDebtMinutes > 0 {
		fmt.Fprintf(&b, "Недосып: %d мин\n", u.SleepDebtMinutes)
	}
	if bp.Notes != "" {
		b.WriteString("\n" + bp.Notes)
	}
	r.reply(ctx, msg.ChatID, b.String())
}

func (r *Router) cmdWater(ctx context.Context, msg *transport.Message) {
	u, err := r.db.GetUser(ctx, msg.FromID)
	if err != nil {
		r.reply(ctx, msg.ChatID, "Сначала нажмите /start")
		return
	}
	total, err := r.db.HydrationTotal(ctx, u.TelegramID, r.localDate(&u))
	if err != nil {
		r.log.Warn("hydration total failed", logx.Int64("user", u.TelegramID), logx.Err(err))
	}
	doses := plan.BuildHydrationSchedule(u.HydrationGoalML, u.WakeTime, u.HydrationStart, u.HydrationEnd)

	var b strings.Builder
	fmt.Fprintf(&b, "💧 Сегодня: %d / %d мл\n\nПлан на день:\n", total, u.HydrationGoalML)
	for _, d := range doses {
		fmt.Fprintf(&b, "%s — %d мл\n", d.Time, d.VolumeML)
	}
	r.reply(ctx, msg.ChatID, b.String())
}

func (r *Router) cmdModules(ctx context.Context, msg *transport.Message) {
	u, err := r.db.GetUser(ctx, msg.FromID)
	if err != nil {
		r.reply(ctx, msg.ChatID, "Сначала нажмите /start")
		return
	}
	var b strings.Builder
	b.WriteString("Модули:\n")
	for _, m := range profile.AvailableModules {
		mark := "▫️"
		if u.ModuleEnabled(m.ID) {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s — %s\n", mark, m.Label, m.Description)
	}
	r.reply(ctx, msg.ChatID, b.String())
}

func helpText() string {
	return "Команды:\n" +
		"/plan — план сна на сегодня\n" +
		"/water — прогресс по воде\n" +
		"/modules — включённые модули\n" +
		"/help — эта справка"
}

// ---- callbacks ----

func (r *Router) handleCallback(ctx context.Context, cb *transport.Callback) {
	scope, action, payload := tgui.Split(cb.Data)
	log := r.log.With(
		logx.Int64("user", cb.FromID),
		logx.String("scope", scope),
		logx.String("action", action))

	var ack string
	switch scope {
	case reminder.CallbackWake:
		ack = r.cbWake(ctx, cb, action, payload)
	case reminder.CallbackWater:
		ack = r.cbWater(ctx, cb, action, payload)
	case reminder.CallbackMeds:
		ack = r.cbMeds(ctx, cb, action, payload)
	case reminder.CallbackTraining:
		ack = r.cbTraining(ctx, cb, action)
	case reminder.CallbackWellness:
		ack = r.cbWellness(ctx, cb, action, payload)
	default:
		log.Debug("unknown callback scope")
	}

	if err := r.adapter.AnswerCallback(ctx, cb.ID, ack); err != nil {
		log.Warn("answer callback failed", logx.Err(err))
	}
}

// cbWake records the confirmed wake-up against the sleep ledger, or snoozes
// the reminder by the requested number of minutes.
func (r *Router) cbWake(ctx context.Context, cb *transport.Callback, action, payload string) string {
	switch action {
	case "confirmed":
		u, err := r.db.GetUser(ctx, cb.FromID)
		if err != nil {
			return ""
		}
		if u.CurrentBedtime == nil {
			r.reply(ctx, cb.ChatID, "Доброе утро! ☀️")
			return "Отмечено"
		}
		nowLocal := r.localTime(&u)
		slept := plan.SleepDuration(*u.CurrentBedtime, nowLocal)
		goal := plan.SleepGoalMinutes(u.SleepGoalMinutes, u.SleepGoalCycles)
		delta := goal - slept

		if err := r.db.UpdateSleepDebt(ctx, u.TelegramID, delta); err != nil {
			r.log.Warn("sleep debt update failed", logx.Int64("user", u.TelegramID), logx.Err(err))
		}
		logEntry := &store.SleepLog{
			UserID:          u.TelegramID,
			LogDate:         r.localDate(&u),
			Bedtime:         u.CurrentBedtime,
			WakeTime:        &nowLocal,
			DurationMinutes: slept,
			DebtDelta:       delta,
		}
		if err := r.db.AppendSleepLog(ctx, logEntry); err != nil {
			r.log.Warn("sleep log append failed", logx.Int64("user", u.TelegramID), logx.Err(err))
		}

		text := fmt.Sprintf("Доброе утро! ☀️ Вы спали %d ч %02d мин.", slept/60, slept%60)
		if delta > 0 {
			text += fmt.Sprintf(" Недосып +%d мин.", delta)
		}
		r.reply(ctx, cb.ChatID, text)
		return "Отмечено"

	case "snooze":
		mins, err := strconv.Atoi(payload)
		if err != nil || mins <= 0 {
			mins = int(snoozeDefault / time.Minute)
		}
		at := r.now().UTC().Add(time.Duration(mins) * time.Minute)
		if _, err := r.db.CreateAdhoc(ctx, cb.FromID, reminder.KindMorningWake, at, reminder.Payload{}); err != nil {
			r.log.Warn("wake snooze failed", logx.Int64("user", cb.FromID), logx.Err(err))
			return ""
		}
		return fmt.Sprintf("Напомню через %d мин", mins)
	}
	return ""
}

func (r *Router) cbWater(ctx context.Context, cb *transport.Callback, action, payload string) string {
	u, err := r.db.GetUser(ctx, cb.FromID)
	if err != nil {
		return ""
	}

	switch action {
	case "add", "done":
		volume := defaultDoseML
		if action == "add" {
			if v, err := strconv.Atoi(payload); err == nil && v > 0 {
				volume = v
			}
		} else if doses := plan.BuildHydrationSchedule(u.HydrationGoalML, u.WakeTime, u.HydrationStart, u.HydrationEnd); len(doses) > 0 {
			volume = doses[0].VolumeML
		}
		date := r.localDate(&u)
		if err := r.db.AddHydrationEvent(ctx, u.TelegramID, date, volume); err != nil {
			r.log.Warn("hydration event failed", logx.Int64("user", u.TelegramID), logx.Err(err))
			return ""
		}
		total, err := r.db.HydrationTotal(ctx, u.TelegramID, date)
		if err != nil {
			return fmt.Sprintf("+%d мл", volume)
		}
		if total >= u.HydrationGoalML {
			r.reply(ctx, cb.ChatID, fmt.Sprintf("💧 %d / %d мл — дневная цель выполнена! 🎉", total, u.HydrationGoalML))
		}
		return fmt.Sprintf("+%d мл (всего %d)", volume, total)

	case "snooze":
		at := r.now().UTC().Add(snoozeDefault)
		if _, err := r.db.CreateAdhoc(ctx, u.TelegramID, reminder.KindHydration, at, reminder.Payload{}); err != nil {
			r.log.Warn("hydration snooze failed", logx.Int64("user", u.TelegramID), logx.Err(err))
			return ""
		}
		return "Напомню через 15 мин"
	}
	return ""
}

// cbMeds completes the medication instance referenced by the button payload.
// Taken and skipped both terminate the instance; the distinction is only in
// the acknowledgement.
func (r *Router) cbMeds(ctx context.Context, cb *transport.Callback, action, payload string) string {
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || id <= 0 {
		return ""
	}
	if err := r.db.CompleteByID(ctx, id); err != nil {
		r.log.Warn("complete medication failed",
			logx.Int64("user", cb.FromID), logx.Int64("reminder", id), logx.Err(err))
		return ""
	}
	switch action {
	case "taken":
		return "Принято 💊"
	case "skip":
		return "Пропущено"
	}
	return ""
}

func (r *Router) cbTraining(ctx context.Context, cb *transport.Callback, action string) string {
	switch action {
	case "start":
		return "Хорошей тренировки! 💪"
	case "cancel":
		return "Тренировка отменена"
	case "end":
		at := r.now().UTC().Add(postWorkoutGap)
		if _, err := r.db.CreateAdhoc(ctx, cb.FromID, reminder.KindPostWorkout, at, reminder.Payload{}); err != nil {
			r.log.Warn("post-workout schedule failed", logx.Int64("user", cb.FromID), logx.Err(err))
			return ""
		}
		r.reply(ctx, cb.ChatID, "Отличная работа! Через 30 минут напомню про белок и воду.")
		return "Записано"
	}
	return ""
}

func (r *Router) cbWellness(ctx context.Context, cb *transport.Callback, action, payload string) string {
	if action != "score" {
		return ""
	}
	score, err := strconv.Atoi(payload)
	if err != nil || score < 0 || score > 4 {
		return ""
	}
	r.log.Info("wellness score",
		logx.Int64("user", cb.FromID), logx.Int("score", score))
	if score <= 1 {
		r.reply(ctx, cb.ChatID, "Поняла. Постарайтесь сегодня лечь пораньше и пить больше воды.")
	}
	return fmt.Sprintf("Оценка %d сохранена", score)
}

// ---- helpers ----

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	if _, err := r.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, nil); err != nil {
		r.log.Warn("send failed", logx.Int64("chat", chatID), logx.Err(err))
	}
}

func (r *Router) userLocation(u *profile.User) *time.Location {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (r *Router) localDate(u *profile.User) string {
	return r.now().In(r.userLocation(u)).Format("2006-01-02")
}

func (r *Router) localTime(u *profile.User) plan.TimeOfDay {
	t := r.now().In(r.userLocation(u))
	return plan.At(t.Hour(), t.Minute())
}
