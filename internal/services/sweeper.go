package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"walletai/internal/core"
)

// Sweeper materializes due recurrence rules into ledger transactions.
// It holds no timer of its own: any external trigger (ticker, cron,
// orchestrator) calls Sweep with the current time, which keeps it
// testable and safe to run from several worker instances at once.
type Sweeper struct {
	rules     RuleStore
	publisher EventPublisher // optional
}

func NewSweeper(rules RuleStore, publisher EventPublisher) *Sweeper {
	return &Sweeper{
		rules:     rules,
		publisher: publisher,
	}
}

// RuleFailure records one rule the sweep could not process.
type RuleFailure struct {
	RuleID int64
	Err    error
}

// SweepResult is the structured outcome of one sweep: which rules
// fired, which were skipped because another sweep got there first, and
// which failed.
type SweepResult struct {
	Fired     []int64
	Conflicts []int64
	Failed    []RuleFailure
}

// Sweep processes every active rule due at now. Each rule is handled
// independently: a failure is recorded in the result and the remaining
// rules still run. A failed rule keeps its next_due_at, so it is simply
// retried on the next sweep.
//
// A rule fires at most once per sweep regardless of how many periods
// were missed; the scheduler does not backfill. The write is an
// optimistic compare-and-advance on the due date the sweep read, so two
// concurrent sweeps over the same rule book exactly one transaction.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	due, err := s.rules.Due(ctx, now)
	if err != nil {
		return result, fmt.Errorf("select due rules: %w", err)
	}

	slog.InfoContext(ctx, "Sweeping due recurrence rules",
		"due", len(due),
		"sweep_time", now.Format(time.RFC3339))

	for _, rule := range due {
		if err := ctx.Err(); err != nil {
			// Partial sweeps are fine: every processed rule committed
			// atomically, the rest stays due for the next sweep.
			return result, err
		}
		s.fireRule(ctx, rule, now, &result)
	}

	slog.InfoContext(ctx, "Sweep complete",
		"fired", len(result.Fired),
		"conflicts", len(result.Conflicts),
		"failed", len(result.Failed))

	return result, nil
}

func (s *Sweeper) fireRule(ctx context.Context, rule core.RecurrenceRule, now time.Time, result *SweepResult) {
	// Cadence derives from the previous due date, not the sweep time,
	// so a delayed sweep does not shift the schedule.
	nextDue, err := core.NextDue(rule.Frequency, rule.NextDueAt)
	if err != nil {
		slog.ErrorContext(ctx, "Rule has unknown frequency, leaving it for inspection",
			"rule_id", rule.ID,
			"frequency", rule.Frequency)
		result.Failed = append(result.Failed, RuleFailure{RuleID: rule.ID, Err: err})
		return
	}

	tx, err := rule.Materialize(now)
	if err != nil {
		slog.ErrorContext(ctx, "Rule template is invalid",
			"rule_id", rule.ID,
			"error", err)
		result.Failed = append(result.Failed, RuleFailure{RuleID: rule.ID, Err: err})
		return
	}
	tx.ID = uuid.NewString()

	advanced, err := s.rules.CompareAndAdvance(ctx, Advance{
		RuleID:      rule.ID,
		Expected:    rule.NextDueAt,
		NextDueAt:   nextDue,
		FiredAt:     now,
		Transaction: tx,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to materialize rule, will retry next sweep",
			"rule_id", rule.ID,
			"error", err)
		result.Failed = append(result.Failed, RuleFailure{
			RuleID: rule.ID,
			Err:    fmt.Errorf("compare and advance: %w", err),
		})
		return
	}
	if !advanced {
		slog.InfoContext(ctx, "Rule already fired by a concurrent sweep",
			"rule_id", rule.ID,
			"expected_due", rule.NextDueAt.Format(time.RFC3339))
		result.Conflicts = append(result.Conflicts, rule.ID)
		return
	}

	result.Fired = append(result.Fired, rule.ID)
	slog.InfoContext(ctx, "Booked transaction from recurrence rule",
		"rule_id", rule.ID,
		"transaction_id", tx.ID,
		"description", rule.Description,
		"amount_cents", rule.Amount.Cents,
		"frequency", rule.Frequency,
		"next_due", nextDue.Format(time.RFC3339))

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionBooked(ctx, tx.ID, rule.ID); err != nil {
			// The booking is committed; downstream sync catches up later.
			slog.ErrorContext(ctx, "Failed to publish booking event",
				"transaction_id", tx.ID,
				"error", err)
		}
	}
}
