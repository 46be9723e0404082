// Package storage persists the ledger in SQLite. It implements the
// services LedgerStore and RuleStore ports; schema changes go through
// the embedded golang-migrate migrations.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"walletai/internal/core"
	"walletai/internal/services"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append implements services.LedgerStore.
func (r *SQLiteRepository) Append(ctx context.Context, tx core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, owner_id, amount_cents, kind, booked_at, category_ref, description, rule_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.OwnerID, tx.Amount.Cents, string(tx.Kind), tx.BookedAt.UTC(),
		tx.CategoryRef, tx.Description, tx.RuleID)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"owner_id", tx.OwnerID,
		"kind", tx.Kind,
		"amount_cents", tx.Amount.Cents)

	return nil
}

// Query implements services.LedgerStore. A zero window field leaves
// that side of the range unbounded.
func (r *SQLiteRepository) Query(ctx context.Context, ownerID int64, w core.Window) ([]core.Transaction, error) {
	query := `
		SELECT id, owner_id, amount_cents, kind, booked_at, category_ref, description, rule_id
		FROM transactions
		WHERE owner_id = ?`
	args := []any{ownerID}

	if !w.Start.IsZero() {
		query += " AND booked_at >= ?"
		args = append(args, w.Start.UTC())
	}
	if !w.End.IsZero() {
		query += " AND booked_at < ?"
		args = append(args, w.End.UTC())
	}
	query += " ORDER BY booked_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var tx core.Transaction
		var kind string
		if err := rows.Scan(&tx.ID, &tx.OwnerID, &tx.Amount.Cents, &kind,
			&tx.BookedAt, &tx.CategoryRef, &tx.Description, &tx.RuleID); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = core.Kind(kind)
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// Due implements services.RuleStore.
func (r *SQLiteRepository) Due(ctx context.Context, now time.Time) ([]core.RecurrenceRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, amount_cents, kind, category_ref, description, frequency, next_due_at, last_fired_at, active
		FROM recurrence_rules
		WHERE active = 1 AND next_due_at <= ?
		ORDER BY next_due_at`,
		now.UTC())
	if err != nil {
		return nil, fmt.Errorf("query due rules: %w", err)
	}
	defer rows.Close()

	var rules []core.RecurrenceRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due rules: %w", err)
	}
	return rules, nil
}

// CompareAndAdvance implements services.RuleStore. The conditional rule
// update and the transaction insert share one SQL transaction, so a
// firing either fully commits or leaves the rule due for retry. The
// next_due_at guard is the optimistic lock: when a concurrent sweep
// already advanced the rule, zero rows match and the whole write is
// rolled back.
func (r *SQLiteRepository) CompareAndAdvance(ctx context.Context, adv services.Advance) (bool, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.ExecContext(ctx, `
		UPDATE recurrence_rules
		SET next_due_at = ?, last_fired_at = ?
		WHERE id = ? AND active = 1 AND next_due_at = ?`,
		adv.NextDueAt.UTC(), adv.FiredAt.UTC(), adv.RuleID, adv.Expected.UTC())
	if err != nil {
		return false, fmt.Errorf("advance rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	tx := adv.Transaction
	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO transactions (id, owner_id, amount_cents, kind, booked_at, category_ref, description, rule_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.OwnerID, tx.Amount.Cents, string(tx.Kind), tx.BookedAt.UTC(),
		tx.CategoryRef, tx.Description, tx.RuleID)
	if err != nil {
		return false, fmt.Errorf("insert materialized transaction: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return false, fmt.Errorf("commit rule firing: %w", err)
	}
	return true, nil
}

// CreateRule persists a new recurrence rule and returns its ID.
func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.RecurrenceRule) (int64, error) {
	if err := rule.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurrence_rules (owner_id, amount_cents, kind, category_ref, description, frequency, next_due_at, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.OwnerID, rule.Amount.Cents, string(rule.Kind), rule.CategoryRef,
		rule.Description, string(rule.Frequency), rule.NextDueAt.UTC(), rule.Active)
	if err != nil {
		return 0, fmt.Errorf("insert rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// GetRule returns one rule by ID.
func (r *SQLiteRepository) GetRule(ctx context.Context, id int64) (core.RecurrenceRule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, amount_cents, kind, category_ref, description, frequency, next_due_at, last_fired_at, active
		FROM recurrence_rules
		WHERE id = ?`, id)
	return scanRule(row)
}

// ListRules returns all of one owner's rules, active first.
func (r *SQLiteRepository) ListRules(ctx context.Context, ownerID int64) ([]core.RecurrenceRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, amount_cents, kind, category_ref, description, frequency, next_due_at, last_fired_at, active
		FROM recurrence_rules
		WHERE owner_id = ?
		ORDER BY active DESC, next_due_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var rules []core.RecurrenceRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

// DeactivateRule soft-deactivates a rule. Rules are never deleted:
// booked transactions keep referencing them.
func (r *SQLiteRepository) DeactivateRule(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurrence_rules SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	slog.InfoContext(ctx, "Recurrence rule deactivated", "rule_id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (core.RecurrenceRule, error) {
	var rule core.RecurrenceRule
	var kind, frequency string
	var lastFired sql.NullTime
	if err := row.Scan(&rule.ID, &rule.OwnerID, &rule.Amount.Cents, &kind,
		&rule.CategoryRef, &rule.Description, &frequency,
		&rule.NextDueAt, &lastFired, &rule.Active); err != nil {
		return core.RecurrenceRule{}, fmt.Errorf("scan rule: %w", err)
	}
	rule.Kind = core.Kind(kind)
	rule.Frequency = core.Frequency(frequency)
	if lastFired.Valid {
		rule.LastFiredAt = lastFired.Time
	}
	return rule, nil
}
