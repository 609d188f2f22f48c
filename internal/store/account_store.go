package store

import (
	"context"

	"github.com/shopspring/decimal"
)

type AccountStore struct {
	db DB
}

type Account struct {
	ID           string          `db:"id"`
	IdentityRef  string          `db:"identity_ref"`
	Email        string          `db:"email"`
	PasswordHash string          `db:"password_hash"`
	DisplayName  string          `db:"display_name"`
	Role         string          `db:"role"`
	Balance      decimal.Decimal `db:"balance"`
	CreatedAt    any             `db:"created_at"`
}

type AccountInput struct {
	ID           string
	IdentityRef  string
	Email        string
	PasswordHash string
	DisplayName  string
	Role         string
}

type AccountBalanceSummary struct {
	ID                string          `db:"id"`
	Email             string          `db:"email"`
	DisplayName       string          `db:"display_name"`
	StoredBalance     decimal.Decimal `db:"stored_balance"`
	CalculatedBalance decimal.Decimal `db:"calculated_balance"`
	Difference        decimal.Decimal `db:"difference"`
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, tx Execer, input AccountInput) error {
	query := `
		INSERT INTO accounts (id, identity_ref, email, password_hash, display_name, role, balance)
		VALUES ($1, $2, $3, $4, $5, $6, 0)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.IdentityRef, input.Email, input.PasswordHash, input.DisplayName, input.Role)
	return err
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (Account, error) {
	var row Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, identity_ref, email, password_hash, display_name, role, balance, created_at
		FROM accounts
		WHERE id = $1
	`, accountID)
	if err != nil {
		return Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (Account, error) {
	var row Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, identity_ref, email, password_hash, display_name, role, balance, created_at
		FROM accounts
		WHERE email = $1
	`, email)
	if err != nil {
		return Account{}, err
	}
	return row, nil
}

// GetByRef resolves an account by id, external identity reference, or
// contact email through one query, so callers never grow parallel
// lookup paths per reference kind.
func (s *AccountStore) GetByRef(ctx context.Context, ref string) (Account, error) {
	var row Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, identity_ref, email, password_hash, display_name, role, balance, created_at
		FROM accounts
		WHERE id = $1 OR identity_ref = $1 OR email = $1
	`, ref)
	if err != nil {
		return Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID string) (Account, error) {
	var row Account
	err := tx.GetContext(ctx, &row, `
		SELECT id, identity_ref, email, password_hash, display_name, role, balance, created_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID)
	if err != nil {
		return Account{}, err
	}
	return row, nil
}

func (s *AccountStore) Get(ctx context.Context, q Getter, accountID string) (Account, error) {
	var row Account
	err := q.GetContext(ctx, &row, `
		SELECT id, identity_ref, email, password_hash, display_name, role, balance, created_at
		FROM accounts
		WHERE id = $1
	`, accountID)
	if err != nil {
		return Account{}, err
	}
	return row, nil
}

func (s *AccountStore) UpdateBalance(ctx context.Context, tx Execer, accountID string, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`, balance, accountID)
	return err
}

func (s *AccountStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM accounts WHERE role = 'admin')
	`)
	return exists, err
}

func (s *AccountStore) ListAll(ctx context.Context) ([]Account, error) {
	var rows []Account
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, identity_ref, email, password_hash, display_name, role, balance, created_at
		FROM accounts
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// BalanceSummaries compares each account's stored balance against the
// sum of its ledger entries. Any nonzero difference is an invariant
// violation.
func (s *AccountStore) BalanceSummaries(ctx context.Context) ([]AccountBalanceSummary, error) {
	var rows []AccountBalanceSummary
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id,
		       a.email,
		       a.display_name,
		       a.balance AS stored_balance,
		       COALESCE(SUM(l.points_delta), 0) AS calculated_balance,
		       (a.balance - COALESCE(SUM(l.points_delta), 0)) AS difference
		FROM accounts a
		LEFT JOIN ledger_entries l ON l.account_id = a.id
		GROUP BY a.id, a.email, a.display_name, a.balance
		ORDER BY a.email
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
