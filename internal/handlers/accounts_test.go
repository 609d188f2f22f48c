package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"loyalty/internal/services"
	"loyalty/internal/store"

	"github.com/shopspring/decimal"
)

func TestCreateAccountSuccess(t *testing.T) {
	var created services.CreateAccountRequest
	handler := newTestHandler(stubAccountStore{}, stubAuditStore{}, stubService{
		createAccountFn: func(_ context.Context, req services.CreateAccountRequest) (string, error) {
			created = req
			return "acc-9", nil
		},
	})
	body := []byte(`{"identity_ref":"LOY-0009","email":"new@example.com","display_name":"New Customer","password":"longenough"}`)
	req := authedRequest(t, http.MethodPost, "/admin/accounts", body, "admin-1", "admin")
	rr := httptest.NewRecorder()
	serveAuthed(handler.CreateAccount, true).ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if created.Role != "customer" {
		t.Fatalf("expected default customer role, got %q", created.Role)
	}
	if created.ActorID != "admin-1" {
		t.Fatalf("expected actor from token, got %q", created.ActorID)
	}
	if created.IdentityRef != "LOY-0009" {
		t.Fatalf("unexpected identity ref: %q", created.IdentityRef)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp["account_id"] != "acc-9" {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestCreateAccountDuplicate(t *testing.T) {
	handler := newTestHandler(stubAccountStore{}, stubAuditStore{}, stubService{
		createAccountFn: func(context.Context, services.CreateAccountRequest) (string, error) {
			return "", services.ErrDuplicateAccount
		},
	})
	body := []byte(`{"email":"taken@example.com","display_name":"Taken","password":"longenough"}`)
	req := authedRequest(t, http.MethodPost, "/admin/accounts", body, "admin-1", "admin")
	rr := httptest.NewRecorder()
	serveAuthed(handler.CreateAccount, true).ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp["error"] != "duplicate_account" {
		t.Fatalf("unexpected error payload: %#v", resp)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	handler := newTestHandler(stubAccountStore{}, stubAuditStore{}, stubService{
		createAccountFn: func(context.Context, services.CreateAccountRequest) (string, error) {
			t.Fatal("service should not be called")
			return "", nil
		},
	})
	cases := []string{
		`{"email":"bad","display_name":"New","password":"longenough"}`,
		`{"email":"new@example.com","display_name":"New","password":"short"}`,
		`{"email":"new@example.com","display_name":"New","password":"longenough","role":"superuser"}`,
	}
	for _, payload := range cases {
		req := authedRequest(t, http.MethodPost, "/admin/accounts", []byte(payload), "admin-1", "admin")
		rr := httptest.NewRecorder()
		serveAuthed(handler.CreateAccount, true).ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("payload %s: expected 400, got %d", payload, rr.Code)
		}
	}
}

func TestCreateAccountForbiddenForCustomers(t *testing.T) {
	handler := newTestHandler(stubAccountStore{}, stubAuditStore{}, stubService{})
	body := []byte(`{"email":"new@example.com","display_name":"New","password":"longenough"}`)
	req := authedRequest(t, http.MethodPost, "/admin/accounts", body, "acc-1", "customer")
	rr := httptest.NewRecorder()
	serveAuthed(handler.CreateAccount, true).ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestListAccounts(t *testing.T) {
	handler := newTestHandler(stubAccountStore{
		listAllFn: func(context.Context) ([]store.Account, error) {
			return []store.Account{
				{ID: "acc-1", Email: "a@example.com", Balance: decimal.RequireFromString("2.5")},
				{ID: "acc-2", Email: "b@example.com", Balance: decimal.Zero},
			}, nil
		},
	}, stubAuditStore{}, stubService{})
	req := authedRequest(t, http.MethodGet, "/admin/accounts", nil, "admin-1", "admin")
	rr := httptest.NewRecorder()
	serveAuthed(handler.ListAccounts, true).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp) != 2 || resp[0]["balance"] != "2.50" {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestSelfCheck(t *testing.T) {
	handler := newTestHandler(stubAccountStore{
		balanceSummariesFn: func(context.Context) ([]store.AccountBalanceSummary, error) {
			return []store.AccountBalanceSummary{
				{
					ID:                "acc-1",
					Email:             "a@example.com",
					DisplayName:       "A",
					StoredBalance:     decimal.RequireFromString("2.5"),
					CalculatedBalance: decimal.RequireFromString("2.5"),
					Difference:        decimal.Zero,
				},
			}, nil
		},
	}, stubAuditStore{}, stubService{})
	req := authedRequest(t, http.MethodGet, "/admin/accounts/self-check", nil, "admin-1", "admin")
	rr := httptest.NewRecorder()
	serveAuthed(handler.SelfCheck, true).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp) != 1 || resp[0]["difference"] != "0.00" {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestListAuditLogsPagination(t *testing.T) {
	var gotLimit, gotOffset int
	handler := newTestHandler(stubAccountStore{}, stubAuditStore{
		listFn: func(_ context.Context, limit, offset int) ([]map[string]any, error) {
			gotLimit, gotOffset = limit, offset
			return []map[string]any{{"action": "sale_recorded"}}, nil
		},
	}, stubService{})
	req := authedRequest(t, http.MethodGet, "/admin/audit?limit=10&page=3", nil, "admin-1", "admin")
	rr := httptest.NewRecorder()
	serveAuthed(handler.ListAuditLogs, true).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotLimit != 10 || gotOffset != 20 {
		t.Fatalf("expected limit 10 offset 20, got %d %d", gotLimit, gotOffset)
	}
}
