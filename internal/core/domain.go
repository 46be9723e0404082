package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income   Kind = "income"
	Expense  Kind = "expense"
	Transfer Kind = "transfer"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

type (
	// Kind classifies a transaction. Transfers move value between an
	// owner's own accounts and are excluded from income/expense totals.
	Kind string

	// Frequency is the cadence of a recurrence rule.
	Frequency string

	Money struct {
		Cents int64
	}

	// Transaction is an immutable ledger fact. Amendments are new
	// transactions; amount, kind and booking time never change after
	// the record is committed.
	Transaction struct {
		ID          string // UUID, assigned at booking time
		OwnerID     int64
		Amount      Money
		Kind        Kind
		BookedAt    time.Time
		CategoryRef string // opaque reference, not interpreted here
		Description string
		RuleID      int64 // recurrence rule that spawned it, 0 for manual entries
	}

	// RecurrenceRule is the template and schedule for automatically
	// booked transactions. Rules are soft-deactivated, never deleted,
	// so spawned transactions always have a rule to point back to.
	RecurrenceRule struct {
		ID          int64
		OwnerID     int64
		Amount      Money
		Kind        Kind
		CategoryRef string
		Description string
		Frequency   Frequency
		NextDueAt   time.Time
		LastFiredAt time.Time // zero when the rule has never fired
		Active      bool
	}

	// Settlement is one proposed transfer between two wallet members.
	// It is a value object handed back to the caller; this core never
	// persists or executes it.
	Settlement struct {
		From   string
		To     string
		Amount Money
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrUnknownKind        = errors.New("unknown transaction kind")
	ErrUnknownFrequency   = errors.New("unknown recurrence frequency")
	ErrZeroTimestamp      = errors.New("timestamp cannot be zero")
	ErrEmptyDescription   = errors.New("empty description")
	ErrImbalancedLedger   = errors.New("member balances do not sum to zero")
	ErrMissingOwner       = errors.New("missing owner id")
	ErrInactiveRule       = errors.New("rule is not active")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (k Kind) Validate() error {
	switch k {
	case Income, Expense, Transfer:
		return nil
	default:
		return ErrUnknownKind
	}
}

func (f Frequency) Validate() error {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return nil
	default:
		return ErrUnknownFrequency
	}
}

func (t Transaction) Validate() error {
	if t.OwnerID == 0 {
		return ErrMissingOwner
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if t.BookedAt.IsZero() {
		return ErrZeroTimestamp
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}

func (r RecurrenceRule) Validate() error {
	if r.OwnerID == 0 {
		return ErrMissingOwner
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if err := r.Kind.Validate(); err != nil {
		return err
	}
	if err := r.Frequency.Validate(); err != nil {
		return err
	}
	if r.NextDueAt.IsZero() {
		return ErrZeroTimestamp
	}
	if len(strings.TrimSpace(r.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(r.Description) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}

// Materialize builds the transaction a due rule books at firedAt. The
// rule itself is not touched; advancing NextDueAt is the scheduler's job.
func (r RecurrenceRule) Materialize(firedAt time.Time) (Transaction, error) {
	if !r.Active {
		return Transaction{}, ErrInactiveRule
	}
	tx := Transaction{
		OwnerID:     r.OwnerID,
		Amount:      r.Amount,
		Kind:        r.Kind,
		BookedAt:    firedAt,
		CategoryRef: r.CategoryRef,
		Description: r.Description,
		RuleID:      r.ID,
	}
	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}
