package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loyalty/internal/auth"
	"loyalty/internal/config"
	"loyalty/internal/middleware"
	"loyalty/internal/services"
	"loyalty/internal/store"
	"loyalty/internal/websocket"
)

type stubAccountStore struct {
	getByIDFn          func(ctx context.Context, accountID string) (store.Account, error)
	getByEmailFn       func(ctx context.Context, email string) (store.Account, error)
	hasAnyAdminFn      func(ctx context.Context) (bool, error)
	listAllFn          func(ctx context.Context) ([]store.Account, error)
	balanceSummariesFn func(ctx context.Context) ([]store.AccountBalanceSummary, error)
}

func (s stubAccountStore) GetByID(ctx context.Context, accountID string) (store.Account, error) {
	if s.getByIDFn == nil {
		return store.Account{ID: accountID}, nil
	}
	return s.getByIDFn(ctx, accountID)
}

func (s stubAccountStore) GetByEmail(ctx context.Context, email string) (store.Account, error) {
	if s.getByEmailFn == nil {
		return store.Account{Email: email}, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubAccountStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	if s.hasAnyAdminFn == nil {
		return true, nil
	}
	return s.hasAnyAdminFn(ctx)
}

func (s stubAccountStore) ListAll(ctx context.Context) ([]store.Account, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx)
}

func (s stubAccountStore) BalanceSummaries(ctx context.Context) ([]store.AccountBalanceSummary, error) {
	if s.balanceSummariesFn == nil {
		return nil, nil
	}
	return s.balanceSummariesFn(ctx)
}

type stubAuditStore struct {
	listFn func(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubService struct {
	createAccountFn func(ctx context.Context, req services.CreateAccountRequest) (string, error)
	recordSaleFn    func(ctx context.Context, req services.SaleRequest) (services.SaleResult, error)
	recordRefundFn  func(ctx context.Context, req services.RefundRequest) (services.RefundResult, error)
	redeemFn        func(ctx context.Context, req services.RedeemRequest) (services.RedeemResult, error)
	dashboardFn     func(ctx context.Context, accountID string, limit, offset int) (services.DashboardResult, error)
}

func (s stubService) CreateAccount(ctx context.Context, req services.CreateAccountRequest) (string, error) {
	if s.createAccountFn == nil {
		return "acc-1", nil
	}
	return s.createAccountFn(ctx, req)
}

func (s stubService) RecordSale(ctx context.Context, req services.SaleRequest) (services.SaleResult, error) {
	if s.recordSaleFn == nil {
		return services.SaleResult{}, nil
	}
	return s.recordSaleFn(ctx, req)
}

func (s stubService) RecordRefund(ctx context.Context, req services.RefundRequest) (services.RefundResult, error) {
	if s.recordRefundFn == nil {
		return services.RefundResult{}, nil
	}
	return s.recordRefundFn(ctx, req)
}

func (s stubService) Redeem(ctx context.Context, req services.RedeemRequest) (services.RedeemResult, error) {
	if s.redeemFn == nil {
		return services.RedeemResult{}, nil
	}
	return s.redeemFn(ctx, req)
}

func (s stubService) Dashboard(ctx context.Context, accountID string, limit, offset int) (services.DashboardResult, error) {
	if s.dashboardFn == nil {
		return services.DashboardResult{}, nil
	}
	return s.dashboardFn(ctx, accountID, limit, offset)
}

func newTestHandler(accounts stubAccountStore, audit stubAuditStore, service stubService) *Handler {
	cfg := config.Config{
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	return New(cfg, accounts, audit, service, websocket.NewHub())
}

func authedRequest(t *testing.T, method, target string, body []byte, accountID, role string) *http.Request {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	}
	token, err := auth.GenerateToken("secret", accountID, role, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func serveAuthed(handler http.HandlerFunc, admin bool) http.Handler {
	var inner http.Handler = handler
	if admin {
		inner = middleware.RequireAdmin(inner)
	}
	return middleware.Auth("secret")(inner)
}
