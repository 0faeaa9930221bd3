package ledger

import (
	"context"

	"gitlab.com/yelinaung/split-ledger/internal/logger"
)

// GetBalances projects what userID owes and is owed, per counterparty.
func (s *Service) GetBalances(ctx context.Context, userID string) (result *BalanceSummary, err error) {
	ctx, span := s.start(ctx, "GetBalances")
	defer func() { s.end(ctx, span, "GetBalances", err) }()

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound("user %s", userID)
	}

	owing, err := s.store.SplitsByUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	owed, err := s.store.SplitsByExpenseAuthor(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}

	result = Summarize(userID, ProjectBalances(userID, owing), ProjectReceivables(userID, owed))
	logger.Log.Debug().
		Str("user", logger.HashUserID(userID)).
		Int("payables", len(result.Payables)).
		Int("receivables", len(result.Receivables)).
		Msg("Balances projected")
	return result, nil
}
