package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ripple-community/pebs-api/internal/domain"
)

// BalanceDriftRow reports a user whose cached balance disagrees with the
// net of their exchange entries.
type BalanceDriftRow struct {
	UserID    uuid.UUID
	Username  string
	Balance   domain.Pebs
	LedgerNet domain.Pebs
}

// BalanceDrifts compares every user's cached pebs balance against the signed
// sum of their exchange entries. A "provided" entry debits the initiator and
// credits the counterpart; "received" is the mirror image. Rows come back
// only when the two disagree.
func (r *Repository) BalanceDrifts(ctx context.Context) ([]BalanceDriftRow, error) {
	query := `SELECT u.id, u.username, u.pebs_balance, COALESCE(d.net, 0) AS ledger_net
		FROM users u
		LEFT JOIN (
			SELECT account_id, SUM(delta) AS net FROM (
				SELECT CASE WHEN direction = 'provided' THEN initiator_id ELSE counterpart_id END AS account_id,
					-amount_micros AS delta
				FROM exchanges
				UNION ALL
				SELECT CASE WHEN direction = 'provided' THEN counterpart_id ELSE initiator_id END,
					amount_micros
				FROM exchanges
			) flows
			GROUP BY account_id
		) d ON d.account_id = u.id
		WHERE u.pebs_balance <> COALESCE(d.net, 0)`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance drifts: %w", err)
	}
	defer rows.Close()

	drifts := []BalanceDriftRow{}
	for rows.Next() {
		var d BalanceDriftRow
		if err := rows.Scan(&d.UserID, &d.Username, &d.Balance, &d.LedgerNet); err != nil {
			return nil, fmt.Errorf("failed to scan balance drift: %w", err)
		}
		drifts = append(drifts, d)
	}
	return drifts, nil
}

// LedgerNet returns the net sum of all exchange deltas across the community.
// Every exchange moves the same amount out of one account and into another,
// so this is zero whenever the ledger is intact.
func (r *Repository) LedgerNet(ctx context.Context) (int64, error) {
	var net int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(pebs_balance), 0) FROM users`).Scan(&net)
	if err != nil {
		return 0, fmt.Errorf("failed to query ledger net: %w", err)
	}
	return net, nil
}
