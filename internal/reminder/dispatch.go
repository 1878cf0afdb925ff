package reminder

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"vitabot/internal/transport"
	"vitabot/internal/transport/telegram"
	logx "vitabot/pkg/logx"
)

// Dispatcher sends one reminder instance to the messaging channel and
// classifies the result.
type Dispatcher interface {
	Dispatch(ctx context.Context, inst Instance) Outcome
}

// TelegramDispatcher renders kind-specific messages (with inline action
// keyboards for interactive kinds) and sends them through the transport
// adapter, throttled by a shared token-bucket limiter.
type TelegramDispatcher struct {
	adapter transport.Adapter
	limiter *rate.Limiter
	log     logx.Logger
}

func NewTelegramDispatcher(adapter transport.Adapter, ratePerSec int, log logx.Logger) *TelegramDispatcher {
	if ratePerSec <= 0 {
		ratePerSec = 20
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &TelegramDispatcher{
		adapter: adapter,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		log:     log,
	}
}

func (d *TelegramDispatcher) Dispatch(ctx context.Context, inst Instance) Outcome {
	text, markup := render(inst)

	if err := d.limiter.Wait(ctx); err != nil {
		return TransientFailure
	}

	_, err := d.adapter.SendText(ctx, transport.ChatTarget{ChatID: inst.UserID}, text, &transport.SendOptions{
		ReplyMarkupAdapter: markup,
	})
	if err == nil {
		return Delivered
	}

	switch {
	case errors.Is(err, telegram.Transient):
		d.log.Warn("dispatch failed, transient",
			logx.Int64("reminder", inst.ID), logx.String("kind", string(inst.Kind)), logx.Err(err))
		return TransientFailure
	case errors.Is(err, telegram.RecipientGone):
		d.log.Info("dispatch rejected by channel",
			logx.Int64("reminder", inst.ID), logx.Int64("user", inst.UserID), logx.Err(err))
		return PermanentFailure
	default:
		// Unknown errors never retry: fail safe.
		d.log.Error("dispatch failed, unknown error",
			logx.Int64("reminder", inst.ID), logx.String("kind", string(inst.Kind)), logx.Err(err))
		return PermanentFailure
	}
}

// render produces the message text and (for interactive kinds) the inline
// keyboard for one instance.
func render(inst Instance) (string, any) {
	switch inst.Kind {
	case KindMorningWake:
		return "Доброе утро! Нажмите «Я проснулся» или выберите время отложить напоминание.", wakeKeyboard()
	case KindHydration:
		return "Напоминание о воде: сделайте пару глотков и нажмите «Я попил».", hydrationKeyboard()
	case KindMeal:
		return "Время приёма пищи из сегодняшнего плана.", nil
	case KindTraining:
		return "Тренировка скоро начнётся. Нажмите «Начать» или «Отменить».", trainingKeyboard()
	case KindPostWorkout:
		return "Как самочувствие после тренировки? Оцените по шкале 0–4.", wellnessScoreKeyboard()
	case KindMedication:
		name := "препарат"
		dosage := ""
		if inst.Payload.Medication != nil {
			if inst.Payload.Medication.Name != "" {
				name = inst.Payload.Medication.Name
			}
			dosage = inst.Payload.Medication.Dosage
		}
		text := fmt.Sprintf("Напоминание о приёме %s", name)
		if dosage != "" {
			text += fmt.Sprintf(" (%s)", dosage)
		}
		return text + ". Пожалуйста, подтвердите приём.", medicationKeyboard(inst.ID)
	case KindWellnessCheck:
		return "Как вы себя чувствуете? Опишите самочувствие или используйте /symptoms для детального описания.", nil
	default:
		return "Напоминание.", nil
	}
}
