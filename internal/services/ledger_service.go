package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"walletai/internal/core"
)

// LedgerService is the booking and reporting entry point used by the
// chat layer. Writes go to the ledger store first; the booking event is
// published best-effort afterwards and never fails the booking.
type LedgerService struct {
	ledger    LedgerStore
	publisher EventPublisher // optional
}

func NewLedgerService(ledger LedgerStore, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		ledger:    ledger,
		publisher: publisher,
	}
}

// BookTransaction validates and persists a manual transaction, returning
// its assigned ID. No mutation happens on validation failure.
func (s *LedgerService) BookTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	if err := s.ledger.Append(ctx, tx); err != nil {
		return "", fmt.Errorf("append transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction booked",
		"transaction_id", tx.ID,
		"owner_id", tx.OwnerID,
		"kind", tx.Kind,
		"amount_cents", tx.Amount.Cents)

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionBooked(ctx, tx.ID, tx.RuleID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish booking event",
				"transaction_id", tx.ID,
				"error", err)
		}
	}

	return tx.ID, nil
}

// Balance aggregates one owner's ledger over the window.
func (s *LedgerService) Balance(ctx context.Context, ownerID int64, w core.Window) (core.Summary, error) {
	txs, err := s.ledger.Query(ctx, ownerID, w)
	if err != nil {
		return core.Summary{}, fmt.Errorf("query transactions: %w", err)
	}
	return core.Balance(txs, w), nil
}

// BalanceByCategory aggregates one owner's ledger per category ref.
func (s *LedgerService) BalanceByCategory(ctx context.Context, ownerID int64, w core.Window) (map[string]core.Summary, error) {
	txs, err := s.ledger.Query(ctx, ownerID, w)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return core.BalanceByCategory(txs, w), nil
}

// ListTransactions returns one owner's transactions inside the window.
func (s *LedgerService) ListTransactions(ctx context.Context, ownerID int64, w core.Window) ([]core.Transaction, error) {
	txs, err := s.ledger.Query(ctx, ownerID, w)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return txs, nil
}
