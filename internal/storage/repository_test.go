package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"walletai/internal/core"
	"walletai/internal/services"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testRule(due time.Time) core.RecurrenceRule {
	return core.RecurrenceRule{
		OwnerID:     42,
		Amount:      core.Money{Cents: 120000},
		Kind:        core.Expense,
		CategoryRef: "housing",
		Description: "rent",
		Frequency:   core.Monthly,
		NextDueAt:   due,
		Active:      true,
	}
}

func materialized(id string, ruleID int64, bookedAt time.Time) core.Transaction {
	return core.Transaction{
		ID:          id,
		OwnerID:     42,
		Amount:      core.Money{Cents: 120000},
		Kind:        core.Expense,
		BookedAt:    bookedAt,
		CategoryRef: "housing",
		Description: "rent",
		RuleID:      ruleID,
	}
}

func TestCompareAndAdvance_CommitsAdvanceAndAppendTogether(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	due := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	firedAt := time.Date(2024, 4, 1, 6, 0, 0, 0, time.UTC)
	newDue := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	ruleID, err := repo.CreateRule(ctx, testRule(due))
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	advanced, err := repo.CompareAndAdvance(ctx, services.Advance{
		RuleID:      ruleID,
		Expected:    due,
		NextDueAt:   newDue,
		FiredAt:     firedAt,
		Transaction: materialized("tx-1", ruleID, firedAt),
	})
	if err != nil {
		t.Fatalf("CompareAndAdvance() error = %v", err)
	}
	if !advanced {
		t.Fatal("CompareAndAdvance() = false, want true for matching due date")
	}

	rule, err := repo.GetRule(ctx, ruleID)
	if err != nil {
		t.Fatalf("GetRule() error = %v", err)
	}
	if !rule.NextDueAt.Equal(newDue) {
		t.Errorf("next due = %v, want %v", rule.NextDueAt, newDue)
	}
	if !rule.LastFiredAt.Equal(firedAt) {
		t.Errorf("last fired = %v, want %v", rule.LastFiredAt, firedAt)
	}

	txs, err := repo.Query(ctx, 42, core.Window{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(txs) != 1 || txs[0].ID != "tx-1" || txs[0].RuleID != ruleID {
		t.Errorf("ledger = %+v, want the materialized transaction", txs)
	}
}

func TestCompareAndAdvance_StaleExpectedWritesNothing(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	due := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	firedAt := time.Date(2024, 4, 1, 6, 0, 0, 0, time.UTC)
	newDue := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	ruleID, err := repo.CreateRule(ctx, testRule(due))
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	// First sweep wins.
	advanced, err := repo.CompareAndAdvance(ctx, services.Advance{
		RuleID:      ruleID,
		Expected:    due,
		NextDueAt:   newDue,
		FiredAt:     firedAt,
		Transaction: materialized("tx-1", ruleID, firedAt),
	})
	if err != nil || !advanced {
		t.Fatalf("first CompareAndAdvance() = %v, %v", advanced, err)
	}

	// Second sweep read the same due date before the first committed.
	advanced, err = repo.CompareAndAdvance(ctx, services.Advance{
		RuleID:      ruleID,
		Expected:    due,
		NextDueAt:   newDue,
		FiredAt:     firedAt,
		Transaction: materialized("tx-2", ruleID, firedAt),
	})
	if err != nil {
		t.Fatalf("second CompareAndAdvance() error = %v", err)
	}
	if advanced {
		t.Fatal("second CompareAndAdvance() = true, want false for stale due date")
	}

	txs, err := repo.Query(ctx, 42, core.Window{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(txs) != 1 {
		t.Errorf("ledger = %d transactions, want exactly 1 after a lost race", len(txs))
	}
}

func TestCompareAndAdvance_FailedAppendRollsBackAdvance(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	due := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	firedAt := time.Date(2024, 4, 1, 6, 0, 0, 0, time.UTC)
	newDue := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	ruleID, err := repo.CreateRule(ctx, testRule(due))
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	// Occupy the transaction ID so the insert inside the firing fails.
	if err := repo.Append(ctx, materialized("tx-dup", 0, firedAt)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	_, err = repo.CompareAndAdvance(ctx, services.Advance{
		RuleID:      ruleID,
		Expected:    due,
		NextDueAt:   newDue,
		FiredAt:     firedAt,
		Transaction: materialized("tx-dup", ruleID, firedAt),
	})
	if err == nil {
		t.Fatal("CompareAndAdvance() = nil error, want insert failure")
	}

	// The advance must have rolled back with the failed insert, leaving
	// the rule due for retry.
	rule, err := repo.GetRule(ctx, ruleID)
	if err != nil {
		t.Fatalf("GetRule() error = %v", err)
	}
	if !rule.NextDueAt.Equal(due) {
		t.Errorf("next due = %v, want unchanged %v after rollback", rule.NextDueAt, due)
	}
	if !rule.LastFiredAt.IsZero() {
		t.Errorf("last fired = %v, want unset after rollback", rule.LastFiredAt)
	}
}

func TestCompareAndAdvance_DeactivatedRuleNotAdvanced(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	due := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	ruleID, err := repo.CreateRule(ctx, testRule(due))
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	if err := repo.DeactivateRule(ctx, ruleID); err != nil {
		t.Fatalf("DeactivateRule() error = %v", err)
	}

	advanced, err := repo.CompareAndAdvance(ctx, services.Advance{
		RuleID:      ruleID,
		Expected:    due,
		NextDueAt:   due.AddDate(0, 1, 0),
		FiredAt:     due,
		Transaction: materialized("tx-1", ruleID, due),
	})
	if err != nil {
		t.Fatalf("CompareAndAdvance() error = %v", err)
	}
	if advanced {
		t.Error("CompareAndAdvance() = true for a deactivated rule")
	}
}

func TestDue_SelectsOnlyActiveDueRules(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	dueID, err := repo.CreateRule(ctx, testRule(now.Add(-time.Hour)))
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	if _, err := repo.CreateRule(ctx, testRule(now.Add(time.Hour))); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	inactiveID, err := repo.CreateRule(ctx, testRule(now.Add(-time.Hour)))
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	if err := repo.DeactivateRule(ctx, inactiveID); err != nil {
		t.Fatalf("DeactivateRule() error = %v", err)
	}

	rules, err := repo.Due(ctx, now)
	if err != nil {
		t.Fatalf("Due() error = %v", err)
	}
	if len(rules) != 1 || rules[0].ID != dueID {
		t.Errorf("due rules = %+v, want only rule %d", rules, dueID)
	}
}

func TestQuery_WindowAndOwnerFiltering(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	march := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	april := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)

	for _, tx := range []core.Transaction{
		materialized("tx-march", 0, march),
		materialized("tx-april", 0, april),
		{ID: "tx-other-owner", OwnerID: 7, Amount: core.Money{Cents: 500}, Kind: core.Income, BookedAt: march},
	} {
		if err := repo.Append(ctx, tx); err != nil {
			t.Fatalf("Append(%s) error = %v", tx.ID, err)
		}
	}

	txs, err := repo.Query(ctx, 42, core.MonthWindow(2024, time.March))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(txs) != 1 || txs[0].ID != "tx-march" {
		t.Errorf("march window = %+v, want only tx-march", txs)
	}

	all, err := repo.Query(ctx, 42, core.Window{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all time = %d transactions, want 2 (other owners excluded)", len(all))
	}
}
