package core

import "sort"

// party is one side of the settlement matching: a member and the amount
// still owed to them (creditor) or by them (debtor), always positive.
type party struct {
	id        string
	remaining int64
}

// Settle reduces a shared wallet's net member balances to a minimal set
// of pairwise transfers. Positive balances are owed to the member,
// negative balances are owed by the member, in minor currency units.
//
// The balances must sum to exactly zero; money inside a wallet is only
// ever redistributed, so a nonzero sum means the upstream balance
// derivation is broken and Settle returns ErrImbalancedLedger instead
// of an incorrect plan.
//
// Matching is greedy largest-creditor against largest-debtor, with ties
// broken by member ID, which makes the output deterministic and bounds
// it at N-1 transfers for N members with nonzero balances.
func Settle(balances map[string]int64) ([]Settlement, error) {
	var sum int64
	for _, b := range balances {
		sum += b
	}
	if sum != 0 {
		return nil, ErrImbalancedLedger
	}

	var creditors, debtors []party
	for id, b := range balances {
		switch {
		case b > 0:
			creditors = append(creditors, party{id: id, remaining: b})
		case b < 0:
			debtors = append(debtors, party{id: id, remaining: -b})
		}
	}
	var plan []Settlement
	for len(creditors) > 0 && len(debtors) > 0 {
		// Re-rank each round: a partially settled party may no longer
		// be the largest.
		sortParties(creditors)
		sortParties(debtors)
		c := &creditors[0]
		d := &debtors[0]

		transfer := min(c.remaining, d.remaining)
		plan = append(plan, Settlement{
			From:   d.id,
			To:     c.id,
			Amount: Money{Cents: transfer},
		})

		c.remaining -= transfer
		d.remaining -= transfer
		if c.remaining == 0 {
			creditors = creditors[1:]
		}
		if d.remaining == 0 {
			debtors = debtors[1:]
		}
	}
	return plan, nil
}

// sortParties orders by remaining amount descending, member ID ascending
// on equal amounts.
func sortParties(ps []party) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].remaining != ps[j].remaining {
			return ps[i].remaining > ps[j].remaining
		}
		return ps[i].id < ps[j].id
	})
}
