package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

// Balance aggregates the splits between a user and one counterparty.
type Balance struct {
	CounterpartyID string
	Counterparty   *models.User
	// Pending is still owed, Completed is already settled.
	Pending   decimal.Decimal
	Completed decimal.Decimal
	Splits    int
}

// NetBalance is what a counterparty owes the user after offsetting both directions.
// A negative Amount means the user owes the counterparty.
type NetBalance struct {
	CounterpartyID string
	Amount         decimal.Decimal
}

// BalanceSummary is the full balance view of one user.
type BalanceSummary struct {
	UserID string
	// Payables are owed by the user to the authors of expenses they take part in.
	Payables []Balance
	// Receivables are owed to the user on expenses they recorded.
	Receivables []Balance
	Net         []NetBalance
	TotalOwed   decimal.Decimal
	TotalOwing  decimal.Decimal
}

// ProjectBalances aggregates userID's split rows per expense author.
// Rows on the user's own expenses contribute nothing.
func ProjectBalances(userID string, splits []models.Split) []Balance {
	agg := newAggregator()
	for _, s := range splits {
		if s.UserID != userID || s.Expense == nil {
			continue
		}
		authorID := s.Expense.AuthorID
		if authorID == userID {
			continue
		}
		agg.add(authorID, s.Expense.Author, s)
	}
	return agg.result()
}

// ProjectReceivables aggregates the split rows on expenses userID recorded, per debtor.
func ProjectReceivables(userID string, splits []models.Split) []Balance {
	agg := newAggregator()
	for _, s := range splits {
		if s.Expense == nil || s.Expense.AuthorID != userID || s.UserID == userID {
			continue
		}
		agg.add(s.UserID, s.User, s)
	}
	return agg.result()
}

// Summarize combines both directions into a net view per counterparty.
func Summarize(userID string, payables, receivables []Balance) *BalanceSummary {
	sum := &BalanceSummary{
		UserID:      userID,
		Payables:    payables,
		Receivables: receivables,
		TotalOwed:   decimal.Zero,
		TotalOwing:  decimal.Zero,
	}

	net := make(map[string]decimal.Decimal)
	for _, b := range receivables {
		net[b.CounterpartyID] = net[b.CounterpartyID].Add(b.Pending)
		sum.TotalOwed = sum.TotalOwed.Add(b.Pending)
	}
	for _, b := range payables {
		net[b.CounterpartyID] = net[b.CounterpartyID].Sub(b.Pending)
		sum.TotalOwing = sum.TotalOwing.Add(b.Pending)
	}
	for id, amount := range net {
		if amount.IsZero() {
			continue
		}
		sum.Net = append(sum.Net, NetBalance{CounterpartyID: id, Amount: amount})
	}
	sort.Slice(sum.Net, func(i, j int) bool { return sum.Net[i].CounterpartyID < sum.Net[j].CounterpartyID })
	return sum
}

type aggregator struct {
	byID map[string]*Balance
}

func newAggregator() *aggregator {
	return &aggregator{byID: make(map[string]*Balance)}
}

func (a *aggregator) add(counterpartyID string, counterparty *models.User, s models.Split) {
	b, ok := a.byID[counterpartyID]
	if !ok {
		b = &Balance{
			CounterpartyID: counterpartyID,
			Counterparty:   counterparty,
			Pending:        decimal.Zero,
			Completed:      decimal.Zero,
		}
		a.byID[counterpartyID] = b
	}
	b.Pending = b.Pending.Add(s.Pending)
	b.Completed = b.Completed.Add(s.Completed)
	b.Splits++
}

func (a *aggregator) result() []Balance {
	if len(a.byID) == 0 {
		return nil
	}
	out := make([]Balance, 0, len(a.byID))
	for _, b := range a.byID {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CounterpartyID < out[j].CounterpartyID })
	return out
}
