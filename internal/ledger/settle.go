package ledger

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Settle computes balances for the snapshot and the transactions that
// clear them, with participant names filled in.
func Settle(s Snapshot) (*Plan, error) {
	balances, err := ComputeBalances(s)
	if err != nil {
		return nil, err
	}

	transactions, err := Simplify(balances)
	if err != nil {
		return nil, err
	}

	names := make(map[int64]string, len(s.Participants))
	for _, p := range s.Participants {
		names[p.ID] = p.Name
	}
	for i := range transactions {
		transactions[i].FromName = names[transactions[i].FromID]
		transactions[i].ToName = names[transactions[i].ToID]
	}

	return &Plan{
		GroupID:      s.GroupID,
		Balances:     balances,
		Transactions: transactions,
	}, nil
}

// SettleGroups settles independent snapshots in parallel, running at most
// limit at once (no limit when limit <= 0). Plans are returned in input
// order. The first failure cancels the remaining work.
func SettleGroups(ctx context.Context, snapshots []Snapshot, limit int) ([]*Plan, error) {
	plans := make([]*Plan, len(snapshots))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i := range snapshots {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			plan, err := Settle(snapshots[i])
			if err != nil {
				return err
			}
			plans[i] = plan
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}
