package handlers

import (
	"context"

	"loyalty/internal/services"
	"loyalty/internal/store"
)

type AccountStore interface {
	GetByID(ctx context.Context, accountID string) (store.Account, error)
	GetByEmail(ctx context.Context, email string) (store.Account, error)
	HasAnyAdmin(ctx context.Context) (bool, error)
	ListAll(ctx context.Context) ([]store.Account, error)
	BalanceSummaries(ctx context.Context) ([]store.AccountBalanceSummary, error)
}

type AuditStore interface {
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

type LedgerService interface {
	CreateAccount(ctx context.Context, req services.CreateAccountRequest) (string, error)
	RecordSale(ctx context.Context, req services.SaleRequest) (services.SaleResult, error)
	RecordRefund(ctx context.Context, req services.RefundRequest) (services.RefundResult, error)
	Redeem(ctx context.Context, req services.RedeemRequest) (services.RedeemResult, error)
	Dashboard(ctx context.Context, accountID string, limit, offset int) (services.DashboardResult, error)
}
