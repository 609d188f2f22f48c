package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceChanged is emitted by the ledger service after a mutation
// commits. Notification consumers react to the event instead of
// polling and diffing balances client-side.
type BalanceChanged struct {
	AccountID  string          `json:"account_id"`
	Kind       string          `json:"kind"`
	Delta      decimal.Decimal `json:"delta"`
	Balance    decimal.Decimal `json:"balance"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(event BalanceChanged) error
}

// NopPublisher drops events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(BalanceChanged) error { return nil }
