package reminder

import (
	"strconv"

	tele "gopkg.in/telebot.v4"

	"vitabot/pkg/tgui"
)

// Callback-data namespaces shared with the chat router. The router parses
// these back with tgui.Split.
const (
	CallbackWake     = "wake"
	CallbackWater    = "water"
	CallbackTraining = "training"
	CallbackMeds     = "meds"
	CallbackWellness = "wellness"
)

func inline(rows ...[]tele.InlineButton) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

func btn(text, data string) tele.InlineButton {
	return tele.InlineButton{Text: text, Data: data}
}

func wakeKeyboard() *tele.ReplyMarkup {
	return inline(
		[]tele.InlineButton{btn("Я проснулся", tgui.Data(CallbackWake, "confirmed", ""))},
		[]tele.InlineButton{btn("Отложить 15 мин", tgui.Data(CallbackWake, "snooze", "15"))},
		[]tele.InlineButton{btn("Отложить 30 мин", tgui.Data(CallbackWake, "snooze", "30"))},
		[]tele.InlineButton{btn("Отложить 60 мин", tgui.Data(CallbackWake, "snooze", "60"))},
	)
}

func hydrationKeyboard() *tele.ReplyMarkup {
	return inline(
		[]tele.InlineButton{
			btn("50 мл", tgui.Data(CallbackWater, "add", "50")),
			btn("100 мл", tgui.Data(CallbackWater, "add", "100")),
			btn("200 мл", tgui.Data(CallbackWater, "add", "200")),
		},
		[]tele.InlineButton{btn("Я попил", tgui.Data(CallbackWater, "done", ""))},
		[]tele.InlineButton{btn("Напомнить позже", tgui.Data(CallbackWater, "snooze", ""))},
	)
}

func trainingKeyboard() *tele.ReplyMarkup {
	return inline(
		[]tele.InlineButton{btn("Начать тренировку", tgui.Data(CallbackTraining, "start", ""))},
		[]tele.InlineButton{btn("Отменить", tgui.Data(CallbackTraining, "cancel", ""))},
		[]tele.InlineButton{btn("Закончил", tgui.Data(CallbackTraining, "end", ""))},
	)
}

func wellnessScoreKeyboard() *tele.ReplyMarkup {
	row := make([]tele.InlineButton, 0, 5)
	for score := 0; score <= 4; score++ {
		s := strconv.Itoa(score)
		row = append(row, btn(s, tgui.Data(CallbackWellness, "score", s)))
	}
	return inline(row)
}

func medicationKeyboard(reminderID int64) *tele.ReplyMarkup {
	id := strconv.FormatInt(reminderID, 10)
	return inline([]tele.InlineButton{
		btn("Принял", tgui.Data(CallbackMeds, "taken", id)),
		btn("Пропустить", tgui.Data(CallbackMeds, "skip", id)),
	})
}
