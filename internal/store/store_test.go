package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"vitabot/internal/plan"
	"vitabot/internal/profile"
	"vitabot/internal/reminder"
	"vitabot/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: ":memory:"}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMaterializeIfAbsentIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	target := time.Date(2024, 3, 11, 4, 0, 0, 0, time.UTC)

	created, err := s.MaterializeIfAbsent(ctx, 42, reminder.KindMorningWake, target, reminder.Payload{})
	if err != nil || !created {
		t.Fatalf("first call: created=%v err=%v", created, err)
	}
	created, err = s.MaterializeIfAbsent(ctx, 42, reminder.KindMorningWake, target, reminder.Payload{})
	if err != nil || created {
		t.Fatalf("second call: created=%v err=%v, want no-op", created, err)
	}

	// Within the ±5 minute window still counts as the same slot.
	created, err = s.MaterializeIfAbsent(ctx, 42, reminder.KindMorningWake, target.Add(3*time.Minute), reminder.Payload{})
	if err != nil || created {
		t.Fatalf("nearby slot: created=%v err=%v, want dedup", created, err)
	}

	// Outside the window it is a new slot.
	created, err = s.MaterializeIfAbsent(ctx, 42, reminder.KindMorningWake, target.Add(10*time.Minute), reminder.Payload{})
	if err != nil || !created {
		t.Fatalf("distant slot: created=%v err=%v, want new row", created, err)
	}

	// Different users never collide.
	created, err = s.MaterializeIfAbsent(ctx, 43, reminder.KindMorningWake, target, reminder.Payload{})
	if err != nil || !created {
		t.Fatalf("other user: created=%v err=%v", created, err)
	}
}

func TestMaterializeMedicationDedup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	today := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	magnesium := reminder.Payload{Medication: &reminder.MedicationPayload{Name: "Магний", Dosage: "400мг"}}
	vitamin := reminder.Payload{Medication: &reminder.MedicationPayload{Name: "Витамин D"}}

	if created, _ := s.MaterializeIfAbsent(ctx, 42, reminder.KindMedication, today, magnesium); !created {
		t.Fatal("first magnesium slot should materialize")
	}
	// Recomputing the same slot is a no-op.
	if created, _ := s.MaterializeIfAbsent(ctx, 42, reminder.KindMedication, today, magnesium); created {
		t.Fatal("same slot should dedup")
	}
	// Medication dedups by payload within the day window, not by exact time.
	if created, _ := s.MaterializeIfAbsent(ctx, 42, reminder.KindMedication, today.Add(6*time.Hour), magnesium); created {
		t.Fatal("same payload later the same day should dedup")
	}
	// A different medication at the same time is a separate instance.
	if created, _ := s.MaterializeIfAbsent(ctx, 42, reminder.KindMedication, today, vitamin); !created {
		t.Fatal("different payload should materialize")
	}
	// Tomorrow is a new cycle: its window starts at tomorrow's midnight, so
	// today's pending instance does not block it.
	if created, _ := s.MaterializeIfAbsent(ctx, 42, reminder.KindMedication, today.AddDate(0, 0, 1), magnesium); !created {
		t.Fatal("next day's slot should materialize")
	}

	// Completed rows never count against the dedup window.
	due, err := s.SelectDue(ctx, today, time.Minute, time.Minute)
	if err != nil || len(due) != 2 {
		t.Fatalf("due=%d err=%v, want 2", len(due), err)
	}
	for _, in := range due {
		if err := s.MarkDispatched(ctx, in.ID); err != nil {
			t.Fatalf("mark dispatched: %v", err)
		}
	}
	if created, _ := s.MaterializeIfAbsent(ctx, 42, reminder.KindMedication, today, vitamin); !created {
		t.Fatal("completed instance should not block re-materialization")
	}
}

func TestSelectDueWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	ids := map[string]int64{}
	for name, at := range map[string]time.Time{
		"past_in_window":  now.Add(-3 * time.Minute),
		"past_too_old":    now.Add(-10 * time.Minute),
		"future_in_tick":  now.Add(30 * time.Second),
		"future_too_far":  now.Add(5 * time.Minute),
		"exactly_on_time": now,
	} {
		id, err := s.CreateAdhoc(ctx, 42, reminder.KindHydration, at, reminder.Payload{})
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		ids[name] = id
	}

	due, err := s.SelectDue(ctx, now, time.Minute, 5*time.Minute)
	if err != nil {
		t.Fatalf("select due: %v", err)
	}
	got := map[int64]bool{}
	for _, in := range due {
		got[in.ID] = true
	}
	for _, name := range []string{"past_in_window", "future_in_tick", "exactly_on_time"} {
		if !got[ids[name]] {
			t.Errorf("%s should be due", name)
		}
	}
	for _, name := range []string{"past_too_old", "future_too_far"} {
		if got[ids[name]] {
			t.Errorf("%s should not be due", name)
		}
	}

	// Ascending by scheduled time.
	for i := 1; i < len(due); i++ {
		if due[i].ScheduledFor.Before(due[i-1].ScheduledFor) {
			t.Fatal("due instances not ordered by scheduled_for")
		}
	}
}

func TestMarksIdempotentOnCompleted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	id, err := s.CreateAdhoc(ctx, 42, reminder.KindHydration, now, reminder.Payload{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.MarkRescheduled(ctx, id, now.Add(15*time.Minute)); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	in, err := s.GetReminder(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if in.Attempt != 1 || !in.ScheduledFor.Equal(now.Add(15*time.Minute)) {
		t.Fatalf("after reschedule: attempt=%d at=%v", in.Attempt, in.ScheduledFor)
	}

	if err := s.CompleteByID(ctx, id); err != nil {
		t.Fatalf("complete: %v", err)
	}
	// Further marks must not resurrect or mutate the completed row.
	if err := s.MarkRescheduled(ctx, id, now.Add(time.Hour)); err != nil {
		t.Fatalf("reschedule completed: %v", err)
	}
	in, _ = s.GetReminder(ctx, id)
	if !in.Completed || in.Attempt != 1 || !in.ScheduledFor.Equal(now.Add(15*time.Minute)) {
		t.Fatalf("completed row changed: %+v", in)
	}

	if _, err := s.GetReminder(ctx, 9999); !errors.Is(err, reminder.ErrNotFound) {
		t.Fatalf("missing id: err=%v, want ErrNotFound", err)
	}
}

func TestUserLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUserIfAbsent(ctx, 42, "Europe/Moscow")
	if err != nil || !created {
		t.Fatalf("create: created=%v err=%v", created, err)
	}
	created, err = s.CreateUserIfAbsent(ctx, 42, "Asia/Tokyo")
	if err != nil || created {
		t.Fatalf("re-create: created=%v err=%v, want no-op", created, err)
	}

	u, err := s.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Timezone != "Europe/Moscow" {
		t.Fatalf("timezone %q, want original Europe/Moscow", u.Timezone)
	}
	if u.WakeTime != plan.At(8, 0) {
		t.Fatalf("default wake %v, want 08:00", u.WakeTime)
	}
	if u.HydrationGoalML != 2000 {
		t.Fatalf("default goal %d, want 2000", u.HydrationGoalML)
	}
	if u.CurrentBedtime != nil || u.HydrationStart != nil {
		t.Fatal("optional times should be nil by default")
	}

	bed := plan.At(23, 0)
	u.WakeTime = plan.At(6, 30)
	u.CurrentBedtime = &bed
	u.Modules = []profile.Module{profile.ModuleSleep, profile.ModuleMeds}
	if err := s.SaveUser(ctx, &u); err != nil {
		t.Fatalf("save: %v", err)
	}

	u2, err := s.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("get after save: %v", err)
	}
	if u2.WakeTime != plan.At(6, 30) {
		t.Fatalf("wake %v, want 06:30", u2.WakeTime)
	}
	if u2.CurrentBedtime == nil || *u2.CurrentBedtime != bed {
		t.Fatalf("bedtime %v, want 23:00", u2.CurrentBedtime)
	}
	if len(u2.Modules) != 2 {
		t.Fatalf("modules %v, want [meds sleep]", u2.Modules)
	}

	if _, err := s.GetUser(ctx, 777); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("missing user: err=%v, want ErrUserNotFound", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("list: n=%d err=%v", len(users), err)
	}
}

func TestUpdateSleepDebtClampsAtZero(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateUserIfAbsent(ctx, 42, "UTC"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.UpdateSleepDebt(ctx, 42, 90); err != nil {
		t.Fatalf("add debt: %v", err)
	}
	if err := s.UpdateSleepDebt(ctx, 42, -200); err != nil {
		t.Fatalf("pay debt: %v", err)
	}
	u, _ := s.GetUser(ctx, 42)
	if u.SleepDebtMinutes != 0 {
		t.Fatalf("debt %d, want clamped 0", u.SleepDebtMinutes)
	}
}

func TestMedicationSchedules(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.AddMedication(ctx, &profile.MedicationSchedule{
		UserID: 42, Name: "Витамин D", IntakeTime: plan.At(21, 0),
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.AddMedication(ctx, &profile.MedicationSchedule{
		UserID: 42, Name: "Магний", Dosage: "400мг", IntakeTime: plan.At(9, 0),
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	meds, err := s.ListMedications(ctx, 42)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(meds) != 2 {
		t.Fatalf("got %d meds, want 2", len(meds))
	}
	// Ordered by intake time.
	if meds[0].Name != "Магний" || meds[1].Name != "Витамин D" {
		t.Fatalf("order %s, %s; want Магний first", meds[0].Name, meds[1].Name)
	}
	if meds[0].Dosage != "400мг" {
		t.Fatalf("dosage %q lost", meds[0].Dosage)
	}

	other, err := s.ListMedications(ctx, 43)
	if err != nil || len(other) != 0 {
		t.Fatalf("other user meds: n=%d err=%v", len(other), err)
	}
}

func TestHydrationEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, v := range []int{200, 150, 300} {
		if err := s.AddHydrationEvent(ctx, 42, "2024-03-10", v); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := s.AddHydrationEvent(ctx, 42, "2024-03-11", 500); err != nil {
		t.Fatalf("add: %v", err)
	}

	total, err := s.HydrationTotal(ctx, 42, "2024-03-10")
	if err != nil || total != 650 {
		t.Fatalf("total=%d err=%v, want 650", total, err)
	}
	// No events for the day sums to zero, not an error.
	total, err = s.HydrationTotal(ctx, 42, "2024-03-12")
	if err != nil || total != 0 {
		t.Fatalf("empty day total=%d err=%v", total, err)
	}
}

func TestAppendSleepLog(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	bed := plan.At(23, 30)
	wake := plan.At(7, 0)

	err := s.AppendSleepLog(ctx, &SleepLog{
		UserID: 42, LogDate: "2024-03-10",
		Bedtime: &bed, WakeTime: &wake,
		DurationMinutes: 450, DebtDelta: 0,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	// Ratings are optional.
	err = s.AppendSleepLog(ctx, &SleepLog{UserID: 42, LogDate: "2024-03-11", DurationMinutes: 400, DebtDelta: 50})
	if err != nil {
		t.Fatalf("append without rating: %v", err)
	}
}
