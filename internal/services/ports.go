// Package services orchestrates the ledger core: booking transactions,
// sweeping recurrence rules and assembling balance reports on top of the
// storage ports defined here.
package services

import (
	"context"
	"time"

	"walletai/internal/core"
)

// LedgerStore is the durable transaction ledger.
type LedgerStore interface {
	// Append persists one committed transaction.
	Append(ctx context.Context, tx core.Transaction) error
	// Query returns one owner's transactions inside the window,
	// ordered by booking time descending.
	Query(ctx context.Context, ownerID int64, w core.Window) ([]core.Transaction, error)
}

// Advance carries everything one rule firing writes: the materialized
// transaction and the rule's schedule update, applied atomically.
type Advance struct {
	RuleID      int64
	Expected    time.Time // NextDueAt the sweep read; the write is conditioned on it
	NextDueAt   time.Time
	FiredAt     time.Time
	Transaction core.Transaction
}

// RuleStore holds recurrence rules and performs the optimistic advance.
type RuleStore interface {
	// Due returns every active rule with next_due_at <= now.
	Due(ctx context.Context, now time.Time) ([]core.RecurrenceRule, error)
	// CompareAndAdvance appends adv.Transaction and moves the rule to
	// adv.NextDueAt in one transaction, but only while the rule's
	// next_due_at still equals adv.Expected. Returns false without
	// error when the check fails: another sweep already fired the rule.
	CompareAndAdvance(ctx context.Context, adv Advance) (bool, error)
}

// EventPublisher announces booked transactions to downstream consumers.
// Publishing is best-effort; the ledger write never waits on it.
type EventPublisher interface {
	PublishTransactionBooked(ctx context.Context, txID string, ruleID int64) error
}
