package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
)

func TestAuditStoreLog(t *testing.T) {
	var gotQuery string
	var gotArgs []any
	audit := NewAuditStore(stubDB{})
	err := audit.Log(context.Background(), stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			gotQuery = query
			gotArgs = args
			return stubResult{}, nil
		},
	}, "admin-1", "record_sale", "ledger_entry", "entry-1", `{"amount":"250"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotQuery, "INSERT INTO audit_logs") {
		t.Fatalf("unexpected query: %s", gotQuery)
	}
	if len(gotArgs) != 5 || gotArgs[0] != "admin-1" || gotArgs[1] != "record_sale" {
		t.Fatalf("unexpected args: %#v", gotArgs)
	}
}

func TestAuditStoreList(t *testing.T) {
	audit := NewAuditStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "ORDER BY created_at DESC") {
				t.Fatalf("unexpected query: %s", query)
			}
			rows := dest.(*[]auditRow)
			actor := "admin-1"
			*rows = append(*rows, auditRow{ID: "log-1", ActorID: &actor, Action: "record_sale"})
			return nil
		},
	})
	logs, err := audit.List(context.Background(), 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 || logs[0]["actor_id"] != "admin-1" {
		t.Fatalf("unexpected logs: %#v", logs)
	}
}
