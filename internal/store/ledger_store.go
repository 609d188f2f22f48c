package store

import (
	"context"

	"github.com/shopspring/decimal"
)

// Entry kinds. The ledger is append-only: refunds and redemptions are
// new entries, never edits to prior ones.
const (
	KindSale       = "sale"
	KindRefund     = "refund"
	KindRedemption = "redemption"
)

type LedgerStore struct {
	db DB
}

type LedgerEntry struct {
	ID          string          `db:"id"`
	AccountID   string          `db:"account_id"`
	Kind        string          `db:"kind"`
	Amount      decimal.Decimal `db:"amount"`
	PointsDelta decimal.Decimal `db:"points_delta"`
	Description string          `db:"description"`
	CreatedAt   any             `db:"created_at"`
}

type LedgerEntryInput struct {
	ID          string
	AccountID   string
	Kind        string
	Amount      decimal.Decimal
	PointsDelta decimal.Decimal
	Description string
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) InsertEntry(ctx context.Context, tx Execer, entry LedgerEntryInput) error {
	query := `
		INSERT INTO ledger_entries (id, account_id, kind, amount, points_delta, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.ExecContext(ctx, query,
		entry.ID, entry.AccountID, entry.Kind, entry.Amount, entry.PointsDelta, entry.Description)
	return err
}

// ListByAccount returns an account's entries newest first, matching the
// dashboard display order. The caller supplies the query target so the
// read can share a transaction with a balance read.
func (s *LedgerStore) ListByAccount(ctx context.Context, q Selecter, accountID string, limit, offset int) ([]LedgerEntry, error) {
	var rows []LedgerEntry
	err := q.SelectContext(ctx, &rows, `
		SELECT id, account_id, kind, amount, points_delta, description, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *LedgerStore) SumByAccount(ctx context.Context, q Getter, accountID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := q.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(points_delta), 0)
		FROM ledger_entries
		WHERE account_id = $1
	`, accountID)
	return sum, err
}
