// Package profile holds the user-facing configuration the reminder engine
// reads each tick: identity, timezone, wake time, goals and the enabled
// wellness module set. The engine never caches these across ticks.
package profile

import (
	"sort"
	"strings"
	"time"

	"vitabot/internal/plan"
)

// Module identifies one optional wellness feature a user can enable.
type Module string

const (
	ModuleSleep     Module = "sleep"
	ModuleHydration Module = "hydration"
	ModuleTraining  Module = "training"
	ModuleMeds      Module = "meds"
	ModuleSymptoms  Module = "symptoms"
)

// ModuleInfo describes a module for the chat UI.
type ModuleInfo struct {
	ID          Module
	Label       string
	Description string
}

var AvailableModules = []ModuleInfo{
	{ID: ModuleSleep, Label: "🛌 Сон", Description: "Поддержание режима и расчёт bedtime"},
	{ID: ModuleHydration, Label: "💧 Вода", Description: "Напоминания о воде и цели"},
	{ID: ModuleTraining, Label: "🏃 Тренировки", Description: "Учёт тренировок"},
	{ID: ModuleMeds, Label: "💊 Лекарства", Description: "Напоминания о приёме лекарств"},
	{ID: ModuleSymptoms, Label: "🩺 Симптомы", Description: "Самооценка самочувствия"},
}

// DefaultModules is what an empty module set means. Historically the empty set
// enabled sleep and hydration implicitly at each call site; keeping the default
// in one exported constant makes that behavior deliberate.
var DefaultModules = []Module{ModuleSleep, ModuleHydration, ModuleTraining}

// NormalizeModules drops unknown ids, de-duplicates and sorts. An empty result
// falls back to DefaultModules.
func NormalizeModules(in []Module) []Module {
	allowed := map[Module]bool{}
	for _, m := range AvailableModules {
		allowed[m.ID] = true
	}
	set := map[Module]bool{}
	for _, m := range in {
		if allowed[m] {
			set[m] = true
		}
	}
	if len(set) == 0 {
		return append([]Module(nil), DefaultModules...)
	}
	out := make([]Module, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// User is the per-user snapshot the scheduler reads. Lifecycle is owned by the
// profile subsystem; the reminder engine treats it as read-only.
type User struct {
	TelegramID int64
	Timezone   string
	WakeTime   plan.TimeOfDay

	SleepGoalMinutes int
	SleepGoalCycles  int
	SleepDebtMinutes int
	CurrentBedtime   *plan.TimeOfDay
	AverageBedtime   *plan.TimeOfDay

	HydrationGoalML int
	HydrationStart  *plan.TimeOfDay
	HydrationEnd    *plan.TimeOfDay

	HeightCM int
	WeightKG float64
	Age      int
	Sex      string

	Modules []Module

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ModuleEnabled reports whether the module is active for this user, applying
// the default-on set when no modules are configured.
func (u *User) ModuleEnabled(m Module) bool {
	mods := u.Modules
	if len(mods) == 0 {
		mods = DefaultModules
	}
	for _, got := range mods {
		if got == m {
			return true
		}
	}
	return false
}

// MedicationSchedule is one configured intake: name, dosage and local
// time-of-day. Owned by the medication-management subsystem; read-only input
// to the medication recurrence generator.
type MedicationSchedule struct {
	ID         int64
	UserID     int64
	Name       string
	Dosage     string
	IntakeTime plan.TimeOfDay
	Notes      string
	CreatedAt  time.Time
}

// languageTimezones maps a chat language code to a plausible home timezone.
// Used only as an onboarding default; users can change it later.
var languageTimezones = map[string]string{
	"ru": "Europe/Moscow",
	"uk": "Europe/Kyiv",
	"be": "Europe/Minsk",
	"kz": "Asia/Almaty",
	"uz": "Asia/Tashkent",
	"en": "America/New_York",
	"de": "Europe/Berlin",
	"fr": "Europe/Paris",
	"es": "Europe/Madrid",
	"it": "Europe/Rome",
	"pt": "America/Sao_Paulo",
	"pl": "Europe/Warsaw",
	"tr": "Europe/Istanbul",
	"ar": "Asia/Dubai",
	"zh": "Asia/Shanghai",
	"ja": "Asia/Tokyo",
	"ko": "Asia/Seoul",
	"th": "Asia/Bangkok",
	"vi": "Asia/Ho_Chi_Minh",
	"id": "Asia/Jakarta",
	"hi": "Asia/Kolkata",
}

const fallbackTimezone = "Europe/Moscow"

// DetectTimezone guesses a timezone from a Telegram language code
// ("ru-RU" → Europe/Moscow). Unknown or empty codes fall back to the default.
func DetectTimezone(languageCode string) string {
	if languageCode == "" {
		return fallbackTimezone
	}
	lang := strings.ToLower(languageCode)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if tz, ok := languageTimezones[lang]; ok {
		return tz
	}
	return fallbackTimezone
}
