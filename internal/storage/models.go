package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a monitored storefront product. A product is identified
// by the (store, sku) pair; current/lowest/highest prices are derived from
// the observation history and updated on every new observation.
type Product struct {
	ID           int64
	Store        string
	SKU          string
	URL          string
	Title        string
	ImageURL     *string
	Category     *string
	TargetPrice  *decimal.Decimal
	CurrentPrice *decimal.Decimal
	LowestPrice  *decimal.Decimal
	HighestPrice *decimal.Decimal
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PriceObservation is one append-only price history record. RecordedAt
// ordering defines the series; backfilling out of order is not supported.
type PriceObservation struct {
	ID           int64
	ProductID    int64
	Price        decimal.Decimal
	WasAvailable bool
	RecordedAt   time.Time
}

// AlertState is the persisted trigger state for one (product, rule) pair.
// RuleKey encodes the rule kind plus its window/k parameters.
type AlertState struct {
	ID             int64
	ProductID      int64
	RuleKey        string
	IsTriggered    bool
	TriggeredPrice *decimal.Decimal
	TriggeredAt    *time.Time
	IsActive       bool
	UpdatedAt      time.Time
}

// TriggeredAlert pairs a triggered state with its product for display.
type TriggeredAlert struct {
	State   AlertState
	Product Product
}
