// Package oracles holds the SQL invariants the replay stress test checks
// while the actors are running. Every oracle must return zero rows on a
// healthy projection regardless of event interleaving.
package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_agreement_status_domain",
			SQL: `SELECT id, status FROM agreements
                  WHERE status NOT IN ('Created','Ongoing','Finalized','Disputed')`,
		},
		{
			Name: "O2_position_status_domain",
			SQL: `SELECT id, status FROM agreement_positions
                  WHERE status NOT IN ('Pending','Joined','Finalized','Withdrawn','Disputed')`,
		},
		{
			Name: "O3_released_deposit",
			SQL: `SELECT id, status, deposit FROM agreement_positions
                  WHERE status IN ('Withdrawn','Disputed') AND deposit <> 0`,
		},
		{
			Name: "O4_position_key_shape",
			SQL: `SELECT id FROM agreement_positions
                  WHERE id <> agreement || party`,
		},
		{
			Name: "O5_resolved_dispute_linkage",
			SQL: `SELECT id FROM disputes
                  WHERE resolution <> '' AND settlement = ''`,
		},
		{
			Name: "O6_settlement_orphan",
			SQL: `SELECT s.id FROM settlements s
                  LEFT JOIN disputes d ON d.id = s.dispute
                  WHERE d.id IS NULL`,
		},
		{
			Name: "O7_settlement_status_domain",
			SQL: `SELECT id, status FROM settlements
                  WHERE status NOT IN ('Submitted','Appealed','Endorsed','Executed')`,
		},
		{
			Name: "O8_key_casing",
			SQL: `SELECT id FROM agreements
                  WHERE id <> lower(id) OR framework <> lower(framework)`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample
// row text) or an empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
