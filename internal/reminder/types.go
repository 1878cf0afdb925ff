// Package reminder implements the reminder scheduling and dispatch engine:
// per-kind recurrence generation, idempotent materialization of daily
// instances, due-selection under a coarse polling tick and at-least-once
// delivery with kind-specific retry.
package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind is the closed set of reminder categories. The kind determines the
// recurrence rule, the dispatch template and the retry policy.
type Kind string

const (
	KindMorningWake   Kind = "morning_wake"
	KindHydration     Kind = "hydration"
	KindMeal          Kind = "meal"
	KindTraining      Kind = "training"
	KindPostWorkout   Kind = "post_workout"
	KindMedication    Kind = "medication"
	KindWellnessCheck Kind = "wellness_check"
)

// Kinds lists every valid kind, for validation and tests.
var Kinds = []Kind{
	KindMorningWake, KindHydration, KindMeal, KindTraining,
	KindPostWorkout, KindMedication, KindWellnessCheck,
}

func (k Kind) Valid() bool {
	for _, got := range Kinds {
		if got == k {
			return true
		}
	}
	return false
}

// MedicationPayload identifies one medication intake; it doubles as the
// de-duplication key when a user has several medication reminders per day.
type MedicationPayload struct {
	Name   string `json:"name"`
	Dosage string `json:"dosage,omitempty"`
}

// Payload is the kind-specific variant data carried by an instance. Only
// medication reminders carry anything today; the struct leaves room for other
// kinds without resorting to free-form maps.
type Payload struct {
	Medication *MedicationPayload `json:"medication,omitempty"`
}

func (p Payload) IsZero() bool { return p.Medication == nil }

// Encode renders the canonical string stored in the database and compared by
// the medication dedup check. Zero payloads encode as "".
func (p Payload) Encode() string {
	if p.IsZero() {
		return ""
	}
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(b)
}

// DecodePayload parses a stored payload string; empty input yields the zero
// payload, malformed input is reported so the caller can degrade gracefully.
func DecodePayload(s string) (Payload, error) {
	if s == "" {
		return Payload{}, nil
	}
	var p Payload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

// Instance is one concrete, dated occurrence of a reminder kind for one user.
// Terminal state is Completed=true; rows are never deleted.
type Instance struct {
	ID           int64
	UserID       int64
	Kind         Kind
	Payload      Payload
	ScheduledFor time.Time // UTC
	Completed    bool
	Attempt      int
	CreatedAt    time.Time
}

// Outcome classifies one dispatch attempt.
type Outcome int

const (
	Delivered Outcome = iota
	TransientFailure
	PermanentFailure
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case TransientFailure:
		return "transient_failure"
	case PermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// Dedup windows used by MaterializeIfAbsent. Non-medication kinds match an
// existing instance within ±5 minutes of the target. Medication matches any
// pending instance with the same payload inside [UTC midnight of the target
// day, +2d), so recomputing a dose slot anywhere in its cycle is a no-op while
// the next day's dose still materializes.
const (
	DedupWindow           = 5 * time.Minute
	MedicationDedupWindow = 48 * time.Hour
)

// Store is the durable table of reminder instances.
//
// All mark operations are idempotent no-ops on completed rows. Every method
// is a single transaction-scoped read-modify-write; no cross-call locking is
// required by the engine.
type Store interface {
	// MaterializeIfAbsent inserts a pending instance unless an equivalent one
	// already exists within the kind's dedup window. It reports whether a row
	// was created.
	MaterializeIfAbsent(ctx context.Context, userID int64, kind Kind, targetUTC time.Time, payload Payload) (bool, error)

	// SelectDue returns pending instances scheduled within
	// [now-lookbehind, now+lookahead].
	SelectDue(ctx context.Context, nowUTC time.Time, lookahead, lookbehind time.Duration) ([]Instance, error)

	MarkDispatched(ctx context.Context, id int64) error
	MarkRescheduled(ctx context.Context, id int64, newUTC time.Time) error
	MarkTerminallyFailed(ctx context.Context, id int64) error

	// CompleteByID is the seam for the chat layer: interactive reminder
	// actions (taken/skip/done) complete the instance out of band.
	CompleteByID(ctx context.Context, id int64) error

	// CreateAdhoc inserts a one-off instance (snooze N minutes) bypassing the
	// dedup check.
	CreateAdhoc(ctx context.Context, userID int64, kind Kind, at time.Time, payload Payload) (int64, error)
}

var (
	ErrStopped  = errors.New("reminder engine stopped")
	ErrNotFound = errors.New("reminder not found")
)
