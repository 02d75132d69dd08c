package repository

import (
    "context"
    "database/sql"

    "github.com/lib/pq"

    appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
)

const pqUniqueViolation = "23505"

// isUniqueViolation reports whether err is a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
    var pqErr *pq.Error
    return appErrors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
    Scan(dest ...any) error
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
    ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// withTx runs fn in a transaction, committing only when fn returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
    tx, err := db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    if err := fn(tx); err != nil {
        _ = tx.Rollback()
        return err
    }
    return tx.Commit()
}

// updateLeadStatus moves a campaign lead between statuses only when it is
// currently in from. It reports whether a row changed.
func updateLeadStatus(ctx context.Context, q execer, campaignLeadID int, from, to string, at any) (bool, error) {
    res, err := q.ExecContext(ctx, `
        UPDATE campaign_leads
        SET status = $3, updated_at = $4,
            processed_at = CASE WHEN $3 = 'PROCESSED' THEN $4 ELSE processed_at END
        WHERE id = $1 AND status = $2`,
        campaignLeadID, from, to, at,
    )
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}
