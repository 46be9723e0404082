package core

import "time"

// Window is a half-open time interval [Start, End). A zero Start means
// unbounded past, a zero End means unbounded future; the zero Window is
// "all time".
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}

// MonthWindow returns the window covering one calendar month in UTC.
func MonthWindow(year int, month time.Month) Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// YearWindow returns the window covering one calendar year in UTC.
func YearWindow(year int) Window {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(1, 0, 0)}
}

// Summary aggregates one owner's transactions over a window.
// NetBalance is always IncomeTotal - ExpenseTotal and may be negative.
type Summary struct {
	IncomeTotal  Money
	ExpenseTotal Money
	NetBalance   Money
}

// Balance sums income and expense transactions inside the window.
// Transfers net to zero across the owner's own records and are excluded
// from both totals. The input slice is never modified; an empty slice
// yields a zero Summary.
func Balance(txs []Transaction, w Window) Summary {
	var income, expense int64
	for _, tx := range txs {
		if !w.Contains(tx.BookedAt) {
			continue
		}
		switch tx.Kind {
		case Income:
			income += tx.Amount.Cents
		case Expense:
			expense += tx.Amount.Cents
		}
	}
	return Summary{
		IncomeTotal:  Money{Cents: income},
		ExpenseTotal: Money{Cents: expense},
		NetBalance:   Money{Cents: income - expense},
	}
}

// BalanceByCategory splits the aggregation per CategoryRef. Transactions
// without a category land under the empty key.
func BalanceByCategory(txs []Transaction, w Window) map[string]Summary {
	byCat := make(map[string]Summary)
	for _, tx := range txs {
		if !w.Contains(tx.BookedAt) {
			continue
		}
		s := byCat[tx.CategoryRef]
		switch tx.Kind {
		case Income:
			s.IncomeTotal.Cents += tx.Amount.Cents
		case Expense:
			s.ExpenseTotal.Cents += tx.Amount.Cents
		default:
			continue
		}
		s.NetBalance.Cents = s.IncomeTotal.Cents - s.ExpenseTotal.Cents
		byCat[tx.CategoryRef] = s
	}
	return byCat
}
