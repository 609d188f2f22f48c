package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"loyalty/internal/db"
	"loyalty/internal/events"
	"loyalty/internal/points"
	"loyalty/internal/store"
	"loyalty/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrAccountNotFound     = errors.New("account not found")
	ErrDuplicateAccount    = errors.New("account already exists")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, input store.AccountInput) error
	GetByRef(ctx context.Context, ref string) (store.Account, error)
	Get(ctx context.Context, q store.Getter, accountID string) (store.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (store.Account, error)
	UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance decimal.Decimal) error
}

type LedgerStore interface {
	InsertEntry(ctx context.Context, tx store.Execer, entry store.LedgerEntryInput) error
	ListByAccount(ctx context.Context, q store.Selecter, accountID string, limit, offset int) ([]store.LedgerEntry, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type BalanceHub interface {
	BroadcastBalance(accountID string, update websocket.BalanceUpdate)
}

// LedgerService applies point deltas to account balances. Every
// mutation appends one ledger entry and updates the stored balance in
// the same serializable transaction, with the account row locked for
// the read-modify-write, so balance always equals the sum of the
// account's entry deltas and never goes negative.
type LedgerService struct {
	txRunner  db.TxRunner
	accounts  AccountStore
	ledger    LedgerStore
	audit     AuditStore
	hub       BalanceHub
	publisher events.Publisher
}

func NewLedgerService(txRunner db.TxRunner, accounts AccountStore, ledger LedgerStore, audit AuditStore, hub BalanceHub, publisher events.Publisher) *LedgerService {
	return &LedgerService{
		txRunner:  txRunner,
		accounts:  accounts,
		ledger:    ledger,
		audit:     audit,
		hub:       hub,
		publisher: publisher,
	}
}

type CreateAccountRequest struct {
	ActorID      string
	IdentityRef  string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
}

func (s *LedgerService) CreateAccount(ctx context.Context, req CreateAccountRequest) (string, error) {
	accountID := uuid.NewString()
	identityRef := req.IdentityRef
	if identityRef == "" {
		identityRef = uuid.NewString()
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.accounts.Create(ctx, tx, store.AccountInput{
			ID:           accountID,
			IdentityRef:  identityRef,
			Email:        req.Email,
			PasswordHash: req.PasswordHash,
			DisplayName:  req.DisplayName,
			Role:         req.Role,
		}); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{
			"email": req.Email,
			"role":  req.Role,
		})
		return s.audit.Log(ctx, tx, req.ActorID, "create_account", "account", accountID, string(data))
	})
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", ErrDuplicateAccount
		}
		return "", err
	}
	return accountID, nil
}

type SaleRequest struct {
	ActorID    string
	AccountRef string
	Amount     decimal.Decimal
}

type SaleResult struct {
	AccountID    string
	PointsEarned decimal.Decimal
	NewBalance   decimal.Decimal
}

// RecordSale accrues points for a monetary sale amount.
func (s *LedgerService) RecordSale(ctx context.Context, req SaleRequest) (SaleResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return SaleResult{}, ErrInvalidAmount
	}
	earned, err := points.EarnedPoints(req.Amount)
	if err != nil {
		return SaleResult{}, ErrInvalidAmount
	}
	accountID, err := s.resolveAccountID(ctx, req.AccountRef)
	if err != nil {
		return SaleResult{}, err
	}
	var result SaleResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, accountID)
		if err != nil {
			if err == sql.ErrNoRows {
				return ErrAccountNotFound
			}
			return err
		}
		newBalance := account.Balance.Add(earned)
		entryID := uuid.NewString()
		if err := s.ledger.InsertEntry(ctx, tx, store.LedgerEntryInput{
			ID:          entryID,
			AccountID:   accountID,
			Kind:        store.KindSale,
			Amount:      req.Amount,
			PointsDelta: earned,
			Description: "Sale accrual",
		}); err != nil {
			return err
		}
		if err := s.accounts.UpdateBalance(ctx, tx, accountID, newBalance); err != nil {
			return err
		}
		result = SaleResult{AccountID: accountID, PointsEarned: earned, NewBalance: newBalance}
		data, _ := json.Marshal(map[string]string{
			"amount":        req.Amount.String(),
			"points_earned": earned.String(),
		})
		return s.audit.Log(ctx, tx, req.ActorID, "record_sale", "ledger_entry", entryID, string(data))
	})
	if err != nil {
		return SaleResult{}, err
	}
	s.emitBalanceChanged(accountID, store.KindSale, earned, result.NewBalance)
	return result, nil
}

type RefundRequest struct {
	ActorID    string
	AccountRef string
	Amount     decimal.Decimal
}

type RefundResult struct {
	AccountID     string
	PointsRemoved decimal.Decimal
	NewBalance    decimal.Decimal
	Partial       bool
}

// RecordRefund removes the points the refunded amount originally
// earned. The balance clamps at zero: if the account holds fewer
// points than the refund would remove, only the available points are
// removed and the result is flagged partial.
func (s *LedgerService) RecordRefund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return RefundResult{}, ErrInvalidAmount
	}
	removed, err := points.RefundPointsRemoved(req.Amount)
	if err != nil {
		return RefundResult{}, ErrInvalidAmount
	}
	accountID, err := s.resolveAccountID(ctx, req.AccountRef)
	if err != nil {
		return RefundResult{}, err
	}
	var result RefundResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, accountID)
		if err != nil {
			if err == sql.ErrNoRows {
				return ErrAccountNotFound
			}
			return err
		}
		actualRemoved := removed
		partial := false
		if actualRemoved.GreaterThan(account.Balance) {
			actualRemoved = account.Balance
			partial = true
		}
		newBalance := account.Balance.Sub(actualRemoved)
		entryID := uuid.NewString()
		if err := s.ledger.InsertEntry(ctx, tx, store.LedgerEntryInput{
			ID:          entryID,
			AccountID:   accountID,
			Kind:        store.KindRefund,
			Amount:      req.Amount.Neg(),
			PointsDelta: actualRemoved.Neg(),
			Description: "Refund reversal",
		}); err != nil {
			return err
		}
		if err := s.accounts.UpdateBalance(ctx, tx, accountID, newBalance); err != nil {
			return err
		}
		result = RefundResult{AccountID: accountID, PointsRemoved: actualRemoved, NewBalance: newBalance, Partial: partial}
		data, _ := json.Marshal(map[string]string{
			"amount":         req.Amount.String(),
			"points_removed": actualRemoved.String(),
		})
		return s.audit.Log(ctx, tx, req.ActorID, "record_refund", "ledger_entry", entryID, string(data))
	})
	if err != nil {
		return RefundResult{}, err
	}
	s.emitBalanceChanged(accountID, store.KindRefund, result.PointsRemoved.Neg(), result.NewBalance)
	return result, nil
}

type RedeemRequest struct {
	AccountID string
	Points    decimal.Decimal
}

type RedeemResult struct {
	RedeemValue decimal.Decimal
	NewBalance  decimal.Decimal
}

// Redeem debits points and returns their currency value. The balance
// check happens under the account row lock, so two concurrent
// redemptions cannot both drain the same points.
func (s *LedgerService) Redeem(ctx context.Context, req RedeemRequest) (RedeemResult, error) {
	if req.Points.LessThanOrEqual(decimal.Zero) {
		return RedeemResult{}, ErrInvalidAmount
	}
	value, err := points.RedemptionValue(req.Points)
	if err != nil {
		return RedeemResult{}, ErrInvalidAmount
	}
	var result RedeemResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, req.AccountID)
		if err != nil {
			if err == sql.ErrNoRows {
				return ErrAccountNotFound
			}
			return err
		}
		if req.Points.GreaterThan(account.Balance) {
			return ErrInsufficientBalance
		}
		newBalance := account.Balance.Sub(req.Points)
		entryID := uuid.NewString()
		if err := s.ledger.InsertEntry(ctx, tx, store.LedgerEntryInput{
			ID:          entryID,
			AccountID:   req.AccountID,
			Kind:        store.KindRedemption,
			Amount:      value.Neg(),
			PointsDelta: req.Points.Neg(),
			Description: "Points redemption",
		}); err != nil {
			return err
		}
		if err := s.accounts.UpdateBalance(ctx, tx, req.AccountID, newBalance); err != nil {
			return err
		}
		result = RedeemResult{RedeemValue: value, NewBalance: newBalance}
		data, _ := json.Marshal(map[string]string{
			"points":       req.Points.String(),
			"redeem_value": value.String(),
		})
		return s.audit.Log(ctx, tx, req.AccountID, "redeem_points", "ledger_entry", entryID, string(data))
	})
	if err != nil {
		return RedeemResult{}, err
	}
	s.emitBalanceChanged(req.AccountID, store.KindRedemption, req.Points.Neg(), result.NewBalance)
	return result, nil
}

type DashboardResult struct {
	Account store.Account
	Entries []store.LedgerEntry
}

// Dashboard reads balance and transaction history in one transaction,
// so the balance never reflects an entry missing from the list.
func (s *LedgerService) Dashboard(ctx context.Context, accountID string, limit, offset int) (DashboardResult, error) {
	var result DashboardResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accounts.Get(ctx, tx, accountID)
		if err != nil {
			if err == sql.ErrNoRows {
				return ErrAccountNotFound
			}
			return err
		}
		entries, err := s.ledger.ListByAccount(ctx, tx, accountID, limit, offset)
		if err != nil {
			return err
		}
		result = DashboardResult{Account: account, Entries: entries}
		return nil
	})
	if err != nil {
		return DashboardResult{}, err
	}
	return result, nil
}

func (s *LedgerService) resolveAccountID(ctx context.Context, ref string) (string, error) {
	account, err := s.accounts.GetByRef(ctx, ref)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrAccountNotFound
		}
		return "", err
	}
	return account.ID, nil
}

func (s *LedgerService) emitBalanceChanged(accountID, kind string, delta, balance decimal.Decimal) {
	s.hub.BroadcastBalance(accountID, websocket.BalanceUpdate{
		AccountID: accountID,
		Kind:      kind,
		Delta:     points.Format(delta),
		Balance:   points.Format(balance),
	})
	if err := s.publisher.Publish(events.BalanceChanged{
		AccountID:  accountID,
		Kind:       kind,
		Delta:      delta,
		Balance:    balance,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("failed to publish balance change for %s: %v", accountID, err)
	}
}
